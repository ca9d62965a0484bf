package cacheutil

import (
	"log/slog"
	"time"
)

// Cache-aside outcomes reported to a Recorder
const (
	OutcomeHit        = "hit"
	OutcomeMiss       = "miss"
	OutcomeShared     = "shared"
	OutcomeCorrupt    = "corrupt"
	OutcomeFetchError = "fetch_error"
	OutcomeUncachable = "uncachable"
)

// DefaultWarmConcurrency bounds parallel stores during warm-up
const DefaultWarmConcurrency = 4

// Recorder receives cache-aside instrumentation
type Recorder interface {
	RecordOutcome(outcome string)
	RecordFetch(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string)       {}
func (nopRecorder) RecordFetch(time.Duration) {}

type options struct {
	logger      *slog.Logger
	recorder    Recorder
	concurrency int
}

// Option configures the helpers in this package
type Option func(*options)

// WithLogger sets the logger used for corruption and failure warnings
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder reports outcomes and fetch latency to r
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithConcurrency bounds the number of warm-up entries stored in parallel
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:      slog.Default(),
		recorder:    nopRecorder{},
		concurrency: DefaultWarmConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
