// Package capturedb persists bracket runs and their per-frame statistics to
// sqlite. Full pixel data stays out of the database; each frame is stored as
// its exposure time plus summary statistics, which is what the review UI
// and regression tooling consume.
package capturedb

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/spincam/internal/bracket"
	"github.com/banshee-data/spincam/internal/diag"
)

type DB struct {
	*sql.DB

	path string
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bracket_runs (
			run_id            TEXT PRIMARY KEY,
			camera_serial     TEXT,
			kind              TEXT,
			weighting         TEXT,
			reference_time_us DOUBLE,
			frame_count       BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS bracket_frames (
			run_id            TEXT,
			frame_index       BIGINT,
			exposure_time_us  DOUBLE,
			width             BIGINT,
			height            BIGINT,
			bit_depth         BIGINT,
			mean_level        DOUBLE,
			std_dev           DOUBLE,
			min_level         DOUBLE,
			max_level         DOUBLE,
			FOREIGN KEY(run_id) REFERENCES bracket_runs(run_id)
		);
		CREATE TABLE IF NOT EXISTS diagnostics (
			category          TEXT,
			node              TEXT,
			message           TEXT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{DB: db, path: path}, nil
}

// BracketRun is one recorded capture sequence.
type BracketRun struct {
	RunID           string    `json:"run_id"`
	CameraSerial    string    `json:"camera_serial"`
	Kind            string    `json:"kind"` // "bracket" or "hdr"
	Weighting       string    `json:"weighting,omitempty"`
	ReferenceTimeUs float64   `json:"reference_time_us,omitempty"`
	FrameCount      int64     `json:"frame_count"`
	Timestamp       time.Time `json:"timestamp"`
}

// FrameRecord is the persisted summary of one frame in a run.
type FrameRecord struct {
	RunID          string  `json:"run_id"`
	FrameIndex     int64   `json:"frame_index"`
	ExposureTimeUs float64 `json:"exposure_time_us"`
	Width          int64   `json:"width"`
	Height         int64   `json:"height"`
	BitDepth       int64   `json:"bit_depth"`
	MeanLevel      float64 `json:"mean_level"`
	StdDev         float64 `json:"std_dev"`
	MinLevel       float64 `json:"min_level"`
	MaxLevel       float64 `json:"max_level"`
}

// RecordBracketRun stores a run header plus one frame row per sample and
// returns the generated run id.
func (db *DB) RecordBracketRun(run BracketRun, samples []bracket.Sample) (string, error) {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO bracket_runs (
			run_id, camera_serial, kind, weighting, reference_time_us, frame_count
		) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CameraSerial, run.Kind, run.Weighting, run.ReferenceTimeUs, len(samples),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert bracket run: %w", err)
	}

	for i, s := range samples {
		stats := s.Frame.Summarize()
		_, err = tx.Exec(
			`INSERT INTO bracket_frames (
				run_id, frame_index, exposure_time_us, width, height, bit_depth,
				mean_level, std_dev, min_level, max_level
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, i, s.ExposureTime, s.Frame.Width, s.Frame.Height, s.Frame.BitDepth,
			stats.Mean, stats.StdDev, stats.Min, stats.Max,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert bracket frame %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.RunID, nil
}

// BracketRuns returns the most recent runs, newest first.
func (db *DB) BracketRuns(limit int) ([]BracketRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT run_id, camera_serial, kind, weighting, reference_time_us, frame_count, timestamp
		 FROM bracket_runs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []BracketRun
	for rows.Next() {
		var r BracketRun
		if err := rows.Scan(
			&r.RunID, &r.CameraSerial, &r.Kind, &r.Weighting,
			&r.ReferenceTimeUs, &r.FrameCount, &r.Timestamp,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// RunFrames returns the frame records of one run in capture order.
func (db *DB) RunFrames(runID string) ([]FrameRecord, error) {
	rows, err := db.Query(
		`SELECT run_id, frame_index, exposure_time_us, width, height, bit_depth,
			mean_level, std_dev, min_level, max_level
		 FROM bracket_frames WHERE run_id = ? ORDER BY frame_index ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []FrameRecord
	for rows.Next() {
		var f FrameRecord
		if err := rows.Scan(
			&f.RunID, &f.FrameIndex, &f.ExposureTimeUs, &f.Width, &f.Height,
			&f.BitDepth, &f.MeanLevel, &f.StdDev, &f.MinLevel, &f.MaxLevel,
		); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// RecordDiagnostic stores one diagnostic report row.
func (db *DB) RecordDiagnostic(d diag.Diagnostic) error {
	_, err := db.Exec(
		"INSERT INTO diagnostics (category, node, message) VALUES (?, ?, ?)",
		d.Category.String(), d.Node, d.Message,
	)
	return err
}

// Diagnostic is a persisted diagnostic row.
type Diagnostic struct {
	Category  string    `json:"category"`
	Node      string    `json:"node,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Diagnostics returns the most recent diagnostic rows, newest first.
func (db *DB) Diagnostics(limit int) ([]Diagnostic, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(
		`SELECT category, node, message, timestamp
		 FROM diagnostics ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.Category, &d.Node, &d.Message, &d.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AttachAdminRoutes mounts the debug surfaces: a tailSQL live query UI and
// an on-demand gzipped database backup.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Capture DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				diag.Logf("failed to remove backup file: %v", err)
			}
		}()

		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			diag.Logf("failed to stream backup: %v", err)
		}
	}))

	return nil
}
