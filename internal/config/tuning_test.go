package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/spincam/internal/hdr"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.GrabTimeout == nil || *cfg.GrabTimeout != "5s" {
		t.Errorf("Expected GrabTimeout '5s', got %v", cfg.GrabTimeout)
	}
	if cfg.WarmupFrames == nil || *cfg.WarmupFrames != 2 {
		t.Errorf("Expected WarmupFrames 2, got %v", cfg.WarmupFrames)
	}
	if cfg.Weighting == nil || *cfg.Weighting != "gaussian" {
		t.Errorf("Expected Weighting 'gaussian', got %v", cfg.Weighting)
	}
	if cfg.ReferenceTimeUs == nil || *cfg.ReferenceTimeUs != 10000 {
		t.Errorf("Expected ReferenceTimeUs 10000, got %v", cfg.ReferenceTimeUs)
	}

	if cfg.GetGrabTimeout() != 5*time.Second {
		t.Errorf("GetGrabTimeout() = %v, want 5s", cfg.GetGrabTimeout())
	}
	if cfg.GetWarmupFrames() != 2 {
		t.Errorf("GetWarmupFrames() = %d, want 2", cfg.GetWarmupFrames())
	}
	if cfg.GetWeighting() != hdr.Gaussian {
		t.Errorf("GetWeighting() = %v, want gaussian", cfg.GetWeighting())
	}
	if cfg.GetAutoSoftwareTrigger() != false {
		t.Errorf("GetAutoSoftwareTrigger() = true, want false")
	}
}

func TestEmptyConfigGetterDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetGrabTimeout() != 5*time.Second {
		t.Errorf("GetGrabTimeout() = %v, want 5s", cfg.GetGrabTimeout())
	}
	if cfg.GetFlushInterval() != 60*time.Second {
		t.Errorf("GetFlushInterval() = %v, want 60s", cfg.GetFlushInterval())
	}
	if cfg.GetWarmupFrames() != 2 {
		t.Errorf("GetWarmupFrames() = %d, want 2", cfg.GetWarmupFrames())
	}
	if cfg.GetWeighting() != hdr.Gaussian {
		t.Errorf("GetWeighting() = %v, want gaussian", cfg.GetWeighting())
	}
	if cfg.GetReferenceTimeUs() != 10000 {
		t.Errorf("GetReferenceTimeUs() = %f, want 10000", cfg.GetReferenceTimeUs())
	}
	if cfg.GetHDRMinTimeUs() != 100 || cfg.GetHDRMaxTimeUs() != 1000000 {
		t.Errorf("HDR bounds = [%f, %f], want [100, 1000000]",
			cfg.GetHDRMinTimeUs(), cfg.GetHDRMaxTimeUs())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "grab_timeout": "2s",
  "warmup_frames": 4,
  "weighting": "photon",
  "reference_time_us": 20000
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if cfg.GetGrabTimeout() != 2*time.Second {
		t.Errorf("GetGrabTimeout() = %v, want 2s", cfg.GetGrabTimeout())
	}
	if cfg.GetWarmupFrames() != 4 {
		t.Errorf("GetWarmupFrames() = %d, want 4", cfg.GetWarmupFrames())
	}
	if cfg.GetWeighting() != hdr.Photon {
		t.Errorf("GetWeighting() = %v, want photon", cfg.GetWeighting())
	}
	if cfg.GetReferenceTimeUs() != 20000 {
		t.Errorf("GetReferenceTimeUs() = %f, want 20000", cfg.GetReferenceTimeUs())
	}

	// Omitted fields fall back to defaults.
	if cfg.GetFlushInterval() != 60*time.Second {
		t.Errorf("GetFlushInterval() = %v, want 60s default", cfg.GetFlushInterval())
	}
}

func TestLoadTuningConfigRejectsInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	cases := []struct {
		name string
		json string
	}{
		{"bad_grab_timeout", `{"grab_timeout": "fast"}`},
		{"negative_warmup", `{"warmup_frames": -1}`},
		{"unknown_weighting", `{"weighting": "cubic"}`},
		{"zero_reference", `{"reference_time_us": 0}`},
		{"inverted_hdr_bounds", `{"hdr_min_time_us": 5000, "hdr_max_time_us": 100}`},
		{"malformed", `{"warmup_frames": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tc.name+".json")
			if err := os.WriteFile(path, []byte(tc.json), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := LoadTuningConfig(path); err == nil {
				t.Errorf("LoadTuningConfig accepted invalid config %s", tc.name)
			}
		})
	}
}

func TestLoadTuningConfigRejectsNonJSONExtension(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("LoadTuningConfig accepted a non-JSON extension")
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig("/nonexistent/config.json"); err == nil {
		t.Error("LoadTuningConfig accepted a missing file")
	}
}
