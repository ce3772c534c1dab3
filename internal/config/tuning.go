package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/spincam/internal/hdr"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the capture pipeline tuning parameters. The schema
// matches the /api/camera/params endpoint so the same JSON works for both
// startup configuration and runtime updates. All fields are pointers so a
// partial config only overrides what it names.
type TuningConfig struct {
	// Capture params
	GrabTimeout         *string `json:"grab_timeout,omitempty"` // duration string like "5s"
	AutoSoftwareTrigger *bool   `json:"auto_software_trigger,omitempty"`

	// Bracket params
	WarmupFrames *int `json:"warmup_frames,omitempty"`

	// HDR merge params
	Weighting       *string  `json:"weighting,omitempty"` // gaussian, uniform, tent, photon
	ReferenceTimeUs *float64 `json:"reference_time_us,omitempty"`
	HDRMinTimeUs    *float64 `json:"hdr_min_time_us,omitempty"`
	HDRMaxTimeUs    *float64 `json:"hdr_max_time_us,omitempty"`

	// Capture store params
	FlushInterval *string `json:"flush_interval,omitempty"` // duration string like "60s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultTuningConfig returns a TuningConfig populated with the built-in
// defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		GrabTimeout:         ptrString("5s"),
		AutoSoftwareTrigger: ptrBool(false),
		WarmupFrames:        ptrInt(2),
		Weighting:           ptrString("gaussian"),
		ReferenceTimeUs:     ptrFloat64(10000),
		HDRMinTimeUs:        ptrFloat64(100),
		HDRMaxTimeUs:        ptrFloat64(1000000),
		FlushInterval:       ptrString("60s"),
	}
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the JSON retain their default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.GrabTimeout != nil && *c.GrabTimeout != "" {
		if _, err := time.ParseDuration(*c.GrabTimeout); err != nil {
			return fmt.Errorf("invalid grab_timeout '%s': %w", *c.GrabTimeout, err)
		}
	}

	if c.FlushInterval != nil && *c.FlushInterval != "" {
		if _, err := time.ParseDuration(*c.FlushInterval); err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
	}

	if c.WarmupFrames != nil && *c.WarmupFrames < 0 {
		return fmt.Errorf("warmup_frames must be non-negative, got %d", *c.WarmupFrames)
	}

	if c.Weighting != nil && *c.Weighting != "" {
		if _, err := hdr.ParseWeighting(*c.Weighting); err != nil {
			return fmt.Errorf("invalid weighting: %w", err)
		}
	}

	if c.ReferenceTimeUs != nil && *c.ReferenceTimeUs <= 0 {
		return fmt.Errorf("reference_time_us must be positive, got %f", *c.ReferenceTimeUs)
	}

	if c.HDRMinTimeUs != nil && *c.HDRMinTimeUs <= 0 {
		return fmt.Errorf("hdr_min_time_us must be positive, got %f", *c.HDRMinTimeUs)
	}
	if c.HDRMaxTimeUs != nil && *c.HDRMaxTimeUs <= 0 {
		return fmt.Errorf("hdr_max_time_us must be positive, got %f", *c.HDRMaxTimeUs)
	}
	if c.HDRMinTimeUs != nil && c.HDRMaxTimeUs != nil && *c.HDRMaxTimeUs < *c.HDRMinTimeUs {
		return fmt.Errorf("hdr_max_time_us %f is below hdr_min_time_us %f", *c.HDRMaxTimeUs, *c.HDRMinTimeUs)
	}

	return nil
}

// GetGrabTimeout parses and returns the GrabTimeout as a time.Duration.
func (c *TuningConfig) GetGrabTimeout() time.Duration {
	if c.GrabTimeout == nil || *c.GrabTimeout == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.GrabTimeout)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

// GetFlushInterval parses and returns the FlushInterval as a time.Duration.
func (c *TuningConfig) GetFlushInterval() time.Duration {
	if c.FlushInterval == nil || *c.FlushInterval == "" {
		return 60 * time.Second // default
	}
	d, err := time.ParseDuration(*c.FlushInterval)
	if err != nil {
		return 60 * time.Second // default on parse error
	}
	return d
}

// GetAutoSoftwareTrigger returns the auto_software_trigger value or the default.
func (c *TuningConfig) GetAutoSoftwareTrigger() bool {
	if c.AutoSoftwareTrigger == nil {
		return false // default: callers fire triggers themselves
	}
	return *c.AutoSoftwareTrigger
}

// GetWarmupFrames returns the warmup_frames value or the default.
func (c *TuningConfig) GetWarmupFrames() int {
	if c.WarmupFrames == nil {
		return 2
	}
	return *c.WarmupFrames
}

// GetWeighting returns the parsed weighting scheme or the default.
func (c *TuningConfig) GetWeighting() hdr.Weighting {
	if c.Weighting == nil || *c.Weighting == "" {
		return hdr.Gaussian
	}
	w, err := hdr.ParseWeighting(*c.Weighting)
	if err != nil {
		return hdr.Gaussian // default on parse error
	}
	return w
}

// GetReferenceTimeUs returns the reference_time_us value or the default.
func (c *TuningConfig) GetReferenceTimeUs() float64 {
	if c.ReferenceTimeUs == nil {
		return 10000
	}
	return *c.ReferenceTimeUs
}

// GetHDRMinTimeUs returns the hdr_min_time_us value or the default.
func (c *TuningConfig) GetHDRMinTimeUs() float64 {
	if c.HDRMinTimeUs == nil {
		return 100
	}
	return *c.HDRMinTimeUs
}

// GetHDRMaxTimeUs returns the hdr_max_time_us value or the default.
func (c *TuningConfig) GetHDRMaxTimeUs() float64 {
	if c.HDRMaxTimeUs == nil {
		return 1000000
	}
	return *c.HDRMaxTimeUs
}
