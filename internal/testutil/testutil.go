// Package testutil provides shared test helpers for the diagnostic layer.
//
// Most packages exercise code paths that raise diagnostics; these helpers
// keep the reports out of test output and restore the global diag state
// when the test ends.
package testutil

import (
	"testing"

	"github.com/banshee-data/spincam/internal/diag"
)

// MuteDiagnostics silences the diagnostic log for the duration of the test
// and resets all diag subscribers on cleanup.
func MuteDiagnostics(t *testing.T) {
	t.Helper()
	diag.SetLogger(func(string, ...interface{}) {})
	t.Cleanup(func() {
		diag.Reset()
		diag.SetLogger(nil)
	})
}

// CollectDiagnostics mutes the diagnostic log and returns a collector that
// accumulates every report raised during the test.
func CollectDiagnostics(t *testing.T) *diag.Collector {
	t.Helper()
	MuteDiagnostics(t)
	return diag.NewCollector()
}
