package capturedb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/spincam/internal/bracket"
	"github.com/banshee-data/spincam/internal/diag"
	"github.com/banshee-data/spincam/internal/frame"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture_test.db")
	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSamples(t *testing.T) []bracket.Sample {
	t.Helper()
	times := []float64{100, 200, 400}
	samples := make([]bracket.Sample, len(times))
	for i, et := range times {
		f := frame.New(4, 2, 8)
		for j := range f.Pix {
			f.Pix[j] = uint16(10 * (i + 1))
		}
		samples[i] = bracket.Sample{ExposureTime: et, Frame: f}
	}
	return samples
}

func TestRecordAndQueryBracketRun(t *testing.T) {
	db := setupTestDB(t)

	samples := testSamples(t)
	runID, err := db.RecordBracketRun(BracketRun{
		CameraSerial:    "21345678",
		Kind:            "hdr",
		Weighting:       "gaussian",
		ReferenceTimeUs: 10000,
	}, samples)
	if err != nil {
		t.Fatalf("RecordBracketRun failed: %v", err)
	}
	if runID == "" {
		t.Fatal("RecordBracketRun returned empty run id")
	}

	runs, err := db.BracketRuns(10)
	if err != nil {
		t.Fatalf("BracketRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].RunID != runID {
		t.Errorf("run id = %q, want %q", runs[0].RunID, runID)
	}
	if runs[0].CameraSerial != "21345678" || runs[0].Kind != "hdr" {
		t.Errorf("run header = %+v", runs[0])
	}
	if runs[0].FrameCount != 3 {
		t.Errorf("frame_count = %d, want 3", runs[0].FrameCount)
	}

	frames, err := db.RunFrames(runID)
	if err != nil {
		t.Fatalf("RunFrames failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.FrameIndex != int64(i) {
			t.Errorf("frame %d index = %d", i, f.FrameIndex)
		}
		if f.ExposureTimeUs != samples[i].ExposureTime {
			t.Errorf("frame %d exposure = %f, want %f", i, f.ExposureTimeUs, samples[i].ExposureTime)
		}
		if f.Width != 4 || f.Height != 2 || f.BitDepth != 8 {
			t.Errorf("frame %d shape = %dx%d/%d", i, f.Width, f.Height, f.BitDepth)
		}
		wantMean := float64(10 * (i + 1))
		if f.MeanLevel != wantMean {
			t.Errorf("frame %d mean = %f, want %f", i, f.MeanLevel, wantMean)
		}
	}
}

func TestRunFramesUnknownRun(t *testing.T) {
	db := setupTestDB(t)

	frames, err := db.RunFrames("no-such-run")
	if err != nil {
		t.Fatalf("RunFrames failed: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("expected no frames, got %d", len(frames))
	}
}

func TestRecordBracketRunKeepsExplicitID(t *testing.T) {
	db := setupTestDB(t)

	runID, err := db.RecordBracketRun(BracketRun{RunID: "fixed-id", Kind: "bracket"}, testSamples(t))
	if err != nil {
		t.Fatalf("RecordBracketRun failed: %v", err)
	}
	if runID != "fixed-id" {
		t.Errorf("run id = %q, want fixed-id", runID)
	}
}

func TestRecordDiagnostics(t *testing.T) {
	db := setupTestDB(t)

	reports := []diag.Diagnostic{
		{Category: diag.Clipped, Node: "ExposureTime", Message: "clipped 5 to 20"},
		{Category: diag.Capture, Message: "grab timed out"},
	}
	for _, r := range reports {
		if err := db.RecordDiagnostic(r); err != nil {
			t.Fatalf("RecordDiagnostic failed: %v", err)
		}
	}

	rows, err := db.Diagnostics(10)
	if err != nil {
		t.Fatalf("Diagnostics failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(rows))
	}
	seen := map[string]bool{}
	for _, d := range rows {
		seen[d.Category] = true
	}
	if !seen[diag.Clipped.String()] || !seen[diag.Capture.String()] {
		t.Errorf("diagnostic categories = %v", rows)
	}
}

func setupTestMigrations(t *testing.T) string {
	t.Helper()
	tmpDir := filepath.Join(t.TempDir(), "migrations")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		t.Fatalf("failed to create temp migrations dir: %v", err)
	}

	migrations := map[string]string{
		"000001_create_runs.up.sql": `
			CREATE TABLE IF NOT EXISTS test_runs (
				run_id TEXT PRIMARY KEY,
				kind   TEXT
			);`,
		"000001_create_runs.down.sql": `DROP TABLE IF EXISTS test_runs;`,
		"000002_add_index.up.sql":     `CREATE INDEX IF NOT EXISTS idx_test_runs_kind ON test_runs (kind);`,
		"000002_add_index.down.sql":   `DROP INDEX IF EXISTS idx_test_runs_kind;`,
	}
	for name, content := range migrations {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write migration %s: %v", name, err)
		}
	}
	return tmpDir
}

func TestMigrateUpDownVersion(t *testing.T) {
	db := setupTestDB(t)
	dir := setupTestMigrations(t)

	version, dirty, err := db.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("fresh db version = %d dirty=%v, want 0 clean", version, dirty)
	}

	if err := db.MigrateUp(dir); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	version, dirty, err = db.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("after up version = %d dirty=%v, want 2 clean", version, dirty)
	}

	// Up again is a no-op.
	if err := db.MigrateUp(dir); err != nil {
		t.Fatalf("MigrateUp (repeat) failed: %v", err)
	}

	if err := db.MigrateDown(dir); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, err = db.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("after down version = %d, want 1", version)
	}
}
