package capturedb

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/spincam/internal/diag"
	"github.com/banshee-data/spincam/internal/timeutil"
)

// DiagnosticWriter buffers diagnostic reports in memory and writes them to
// the database in batches. Reports are raised on the hot capture path, so
// the subscriber must not block on sqlite; Enqueue only appends to a slice
// and the Run loop flushes on a ticker.
type DiagnosticWriter struct {
	db       *DB
	clock    timeutil.Clock
	interval time.Duration

	mu      sync.Mutex
	pending []diag.Diagnostic
}

// NewDiagnosticWriter creates a writer that flushes buffered diagnostics to
// db every interval once Run is started.
func NewDiagnosticWriter(db *DB, clock timeutil.Clock, interval time.Duration) *DiagnosticWriter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DiagnosticWriter{
		db:       db,
		clock:    clock,
		interval: interval,
	}
}

// Enqueue buffers one diagnostic for the next flush. Safe to pass directly
// to diag.Subscribe.
func (w *DiagnosticWriter) Enqueue(d diag.Diagnostic) {
	w.mu.Lock()
	w.pending = append(w.pending, d)
	w.mu.Unlock()
}

// Pending returns the number of buffered, unflushed diagnostics.
func (w *DiagnosticWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush writes all buffered diagnostics to the database. On a write error
// the remaining unwritten reports are kept for the next attempt.
func (w *DiagnosticWriter) Flush() error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	for i, d := range batch {
		if err := w.db.RecordDiagnostic(d); err != nil {
			w.mu.Lock()
			w.pending = append(batch[i:], w.pending...)
			w.mu.Unlock()
			return err
		}
	}
	return nil
}

// Run flushes on the configured interval until ctx is cancelled, then does
// a final flush so shutdown does not drop buffered reports.
func (w *DiagnosticWriter) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := w.Flush(); err != nil {
				diag.Logf("failed to flush diagnostics on shutdown: %v", err)
			}
			return
		case <-ticker.C():
			if err := w.Flush(); err != nil {
				diag.Logf("failed to flush diagnostics: %v", err)
			}
		}
	}
}
