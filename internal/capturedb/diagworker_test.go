package capturedb

import (
	"context"
	"testing"
	"time"

	"github.com/banshee-data/spincam/internal/diag"
	"github.com/banshee-data/spincam/internal/timeutil"
)

func TestDiagnosticWriterFlush(t *testing.T) {
	db := setupTestDB(t)
	w := NewDiagnosticWriter(db, timeutil.RealClock{}, time.Minute)

	w.Enqueue(diag.Diagnostic{Category: diag.Clipped, Node: "ExposureTime", Message: "clipped"})
	w.Enqueue(diag.Diagnostic{Category: diag.Capture, Message: "grab timed out"})
	if got := w.Pending(); got != 2 {
		t.Fatalf("Pending = %d, want 2", got)
	}

	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got := w.Pending(); got != 0 {
		t.Errorf("Pending after flush = %d, want 0", got)
	}

	rows, err := db.Diagnostics(10)
	if err != nil {
		t.Fatalf("Diagnostics failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestDiagnosticWriterFlushEmpty(t *testing.T) {
	db := setupTestDB(t)
	w := NewDiagnosticWriter(db, timeutil.RealClock{}, time.Minute)

	if err := w.Flush(); err != nil {
		t.Fatalf("Flush of empty buffer failed: %v", err)
	}
}

func TestDiagnosticWriterTickerFlush(t *testing.T) {
	db := setupTestDB(t)
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	w := NewDiagnosticWriter(db, clock, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Enqueue(diag.Diagnostic{Category: diag.Capture, Message: "buffered"})

	// Run registers its ticker asynchronously, so keep advancing until the
	// tick lands and the flush drains the buffer.
	deadline := time.Now().Add(5 * time.Second)
	for w.Pending() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("diagnostic not flushed after tick")
		}
		clock.Advance(time.Minute)
		time.Sleep(time.Millisecond)
	}

	rows, err := db.Diagnostics(10)
	if err != nil {
		t.Fatalf("Diagnostics failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Message != "buffered" {
		t.Errorf("rows = %+v, want one buffered row", rows)
	}

	cancel()
	<-done
}

func TestDiagnosticWriterFinalFlushOnShutdown(t *testing.T) {
	db := setupTestDB(t)
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	w := NewDiagnosticWriter(db, clock, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Enqueue(diag.Diagnostic{Category: diag.Clipped, Node: "Gain", Message: "pending at shutdown"})
	cancel()
	<-done

	if got := w.Pending(); got != 0 {
		t.Errorf("Pending after shutdown = %d, want 0", got)
	}
	rows, err := db.Diagnostics(10)
	if err != nil {
		t.Fatalf("Diagnostics failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected 1 row after final flush, got %d", len(rows))
	}
}
