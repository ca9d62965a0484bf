// Package monitor periodically snapshots every named cache and emits the
// snapshot to a set of sinks. It only reads cache state.
package monitor

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/objectfs/tiercache/pkg/errors"
	"github.com/objectfs/tiercache/pkg/retry"
	"github.com/objectfs/tiercache/pkg/types"
)

const (
	// DefaultInterval is how often snapshots are emitted
	DefaultInterval = 5 * time.Minute

	// DefaultEmitTimeout bounds a single sink write
	DefaultEmitTimeout = 30 * time.Second
)

// StatsSource reports the stats of every named cache
type StatsSource interface {
	Stats() map[string]types.Stats
}

// Config configures the monitor
type Config struct {
	// Interval is the time between emissions
	Interval time.Duration

	// EmitTimeout bounds each sink's Emit call, retries included
	EmitTimeout time.Duration

	// Retry controls re-attempts of a failed sink write. The zero value
	// makes a single attempt.
	Retry retry.Config

	// Logger for monitor events and sink failures
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		EmitTimeout: DefaultEmitTimeout,
	}
}

// Monitor emits cache statistics on a timer
type Monitor struct {
	config  Config
	source  StatsSource
	sinks   []types.Sink
	logger  *slog.Logger
	retryer *retry.Retryer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	lastMu sync.RWMutex
	last   types.Snapshot

	// now is replaced in tests
	now func() time.Time
}

// New creates a monitor reading from source and writing to sinks
func New(config Config, source StatsSource, sinks ...types.Sink) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.EmitTimeout <= 0 {
		config.EmitTimeout = DefaultEmitTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		config: config,
		source: source,
		sinks:  sinks,
		logger: logger.With("component", "monitor"),
		now:    time.Now,
	}
	m.retryer = retry.New(config.Retry).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		m.logger.Debug("retrying stats sink", "attempt", attempt, "delay", delay, "error", err)
	})
	return m
}

// Snapshot reads the current stats of every cache
func (m *Monitor) Snapshot() types.Snapshot {
	return types.Snapshot{
		Taken:  m.now(),
		Caches: m.source.Stats(),
	}
}

// LastSnapshot returns the most recently emitted snapshot
func (m *Monitor) LastSnapshot() (types.Snapshot, bool) {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	return m.last, !m.last.Taken.IsZero()
}

// Sinks returns the names of the configured sinks
func (m *Monitor) Sinks() []string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Start begins periodic emission. The loop ends on Stop or when ctx is done.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.NewError(errors.ErrCodeAlreadyStarted, "monitor already running").
			WithComponent("monitor").
			WithOperation("start")
	}
	m.running = true
	m.stopCh = make(chan struct{})

	m.logger.Info("Starting cache monitor",
		"interval", m.config.Interval,
		"sinks", m.Sinks())

	m.wg.Add(1)
	go m.monitorLoop(ctx, m.stopCh)

	return nil
}

// Stop ends periodic emission and waits for the loop to exit. Safe to call
// more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("Cache monitor stopped")
}

// EmitNow takes one snapshot and writes it to every sink. Every sink is tried;
// failures are logged and returned joined.
func (m *Monitor) EmitNow(ctx context.Context) error {
	snap := m.Snapshot()

	m.lastMu.Lock()
	m.last = snap
	m.lastMu.Unlock()

	var errs []error
	for _, sink := range m.sinks {
		if err := m.emit(ctx, sink, snap); err != nil {
			m.logger.Warn("stats sink failed", "sink", sink.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (m *Monitor) emit(ctx context.Context, sink types.Sink, snap types.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.EmitTimeout)
	defer cancel()

	err := m.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		if err := sink.Emit(ctx, snap); err != nil {
			return sinkFailed(sink, err)
		}
		return nil
	})
	if err != nil && !errors.IsCode(err, errors.ErrCodeSinkFailed) {
		err = sinkFailed(sink, err)
	}
	return err
}

func sinkFailed(sink types.Sink, cause error) error {
	return errors.NewError(errors.ErrCodeSinkFailed, "emit failed").
		WithComponent("monitor").
		WithOperation("emit").
		WithContext("sink", sink.Name()).
		WithCause(cause)
}

// monitorLoop runs the emission loop
func (m *Monitor) monitorLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			_ = m.EmitNow(ctx)
		}
	}
}
