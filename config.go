package kfuse

import "log/slog"

// Option is a function that configures an Optimizer.
type Option func(*Optimizer)

// WithLog sets the logger used for fusion debug output.
var WithLog = func(log *slog.Logger) Option {
	return func(o *Optimizer) {
		o.log = log
	}
}

// WithStatsFunc sets a callback that receives the fusion counters after each
// OptimizeChain run. Formatting and transport are the callback's concern.
var WithStatsFunc = func(fn func(Stats)) Option {
	return func(o *Optimizer) {
		o.statsFn = fn
	}
}

// WithFusionDebug enables per-attempt debug logging from construction.
var WithFusionDebug = func(enabled bool) Option {
	return func(o *Optimizer) {
		o.debug.Store(enabled)
	}
}

// NullWriter is a writer that discards all data.
type NullWriter struct{}

func (NullWriter) Write([]byte) (int, error) { return 0, nil }

// NullLogger creates a logger that discards all output.
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(NullWriter{}, nil))
}
