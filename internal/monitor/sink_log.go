package monitor

import (
	"context"
	"log/slog"
	"sort"

	"github.com/objectfs/tiercache/pkg/types"
	"github.com/objectfs/tiercache/pkg/utils"
)

// LogSink writes one structured record per cache per snapshot
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a log sink writing at INFO
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{
		logger: logger.With("component", "stats"),
		level:  slog.LevelInfo,
	}
}

// WithLevel sets the level records are written at
func (s *LogSink) WithLevel(level slog.Level) *LogSink {
	s.level = level
	return s
}

// Name implements types.Sink
func (s *LogSink) Name() string {
	return "log"
}

// Emit implements types.Sink
func (s *LogSink) Emit(ctx context.Context, snapshot types.Snapshot) error {
	names := snapshot.Names()
	sort.Strings(names)

	for _, name := range names {
		st := snapshot.Caches[name]
		s.logger.Log(ctx, s.level, "cache stats",
			"cache", name,
			"hot_size", st.Hot.Size,
			"hot_max", st.Hot.MaxSize,
			"warm_size", st.Warm.Size,
			"warm_max", st.Warm.MaxSize,
			"entries", st.Total.Entries,
			"estimated_memory", utils.FormatBytes(st.Total.EstimatedMemory),
			"hit_rate", st.HitRate,
			"hits", st.Hits,
			"misses", st.Misses,
			"promotions", st.Promotions,
			"demotions", st.Demotions,
			"evictions", st.Evictions,
			"expirations", st.Expirations,
		)
	}
	return nil
}
