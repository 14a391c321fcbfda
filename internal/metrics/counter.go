package metrics

import (
	"go.uber.org/zap"
)

// Recorder counts query command invocations. A Recorder without a store is a
// no-op, so a missing or broken stats database never fails a query.
type Recorder struct {
	store  *Store
	logger *zap.Logger
}

// NewRecorder wraps store; store may be nil.
func NewRecorder(store *Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, logger: logger.Named("metrics")}
}

// OpenRecorder opens the store at path and falls back to a no-op recorder on failure.
// An empty path disables statistics without touching the filesystem.
func OpenRecorder(path string, logger *zap.Logger) *Recorder {
	if path == "" {
		return NewRecorder(nil, logger)
	}
	store, err := OpenStore(path)
	if err != nil {
		if logger != nil {
			logger.Warn("invocation stats disabled", zap.Error(err))
		}
		return NewRecorder(nil, logger)
	}
	return NewRecorder(store, logger)
}

// RecordInvocation increments the invocation count for the given mode.
func (r *Recorder) RecordInvocation(mode Mode) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Increment(mode); err != nil {
		r.logger.Warn("failed to record invocation", zap.String("mode", string(mode)), zap.Error(err))
	}
}

// Totals returns cumulative counts per mode, or nil when no store is open.
func (r *Recorder) Totals() map[Mode]int64 {
	if r == nil || r.store == nil {
		return nil
	}
	stats, err := r.store.GetAllTotals()
	if err != nil {
		r.logger.Warn("failed to read invocation totals", zap.Error(err))
		return nil
	}
	return stats
}

// Close closes the underlying store.
func (r *Recorder) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}
