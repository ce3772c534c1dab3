// Package bracket orchestrates deterministic multi-exposure capture
// sequences. A bracket snapshots the camera's trigger and exposure state,
// forces software-triggered single-frame acquisition, captures one frame per
// requested exposure time, and unconditionally restores the snapshot, on
// the failure path as much as the success path.
package bracket

import (
	"fmt"
	"sync"

	"github.com/banshee-data/spincam/internal/capture"
	"github.com/banshee-data/spincam/internal/diag"
	"github.com/banshee-data/spincam/internal/frame"
)

// DefaultWarmupFrames is the number of grabs discarded after changing the
// exposure time. Device pipelines lag a few frames behind a changed
// exposure setting; without the discards the first sample would reflect the
// previous exposure.
const DefaultWarmupFrames = 2

// savedNodes is the state snapshot taken before and restored after every
// bracket, in restore order. Gain is read and pinned, never varied: the
// merge math assumes constant gain across the series.
var savedNodes = []string{
	"TriggerSelector",
	"TriggerMode",
	"TriggerSource",
	"ExposureTime",
	"ExposureAuto",
	"GainAuto",
	"Gain",
}

// Sample pairs one captured frame with the exposure time the device
// reported for it.
type Sample struct {
	ExposureTime float64 // microseconds
	Frame        *frame.Frame
}

// Bracketer runs exposure brackets against one device. The zero value is
// not usable; construct with New.
//
// A bracket is a critical section: the internal mutex serialises brackets
// against each other, and callers must not mutate properties or grab on the
// same device while a bracket runs.
type Bracketer struct {
	mu  sync.Mutex
	dev *capture.Device

	// WarmupFrames is the number of discarded grabs per exposure step.
	WarmupFrames int
}

// New returns a Bracketer for the device.
func New(dev *capture.Device) *Bracketer {
	return &Bracketer{
		dev:          dev,
		WarmupFrames: DefaultWarmupFrames,
	}
}

// ReadBracket captures one frame per exposure time, in the order given.
// Times must be strictly positive and strictly increasing.
//
// Any single grab or retrieve failure aborts the remaining captures and the
// whole bracket fails: no partial frame list is ever returned. State
// restoration is mandatory cleanup and runs on every path.
func (b *Bracketer) ReadBracket(times []float64) ([]Sample, error) {
	if err := validateTimes(times); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dev.IsOpened() {
		return nil, fmt.Errorf("camera is not open")
	}
	props := b.dev.Props()

	// Snapshot the surrounding trigger/exposure/gain state. Gain is
	// captured so it can be pinned at its current value for the series.
	snap := props.Snapshot(savedNodes)
	autoTrigger := b.dev.AutoSoftwareTrigger

	defer func() {
		// Mandatory restoration, success or failure. Acquisition is
		// stopped first so trigger reprogramming does not race a
		// streaming sensor.
		b.dev.EndAcquisition()
		props.Restore(snap)
		b.dev.AutoSoftwareTrigger = autoTrigger
	}()

	// Force deterministic software-triggered capture: every grab fires
	// exactly one trigger and waits for exactly one frame, instead of
	// racing a free-running sensor.
	forced := props.Set("TriggerSelector", "FrameStart") &&
		props.Set("TriggerMode", "On") &&
		props.Set("TriggerSource", "Software") &&
		props.Set("ExposureAuto", "Off") &&
		props.Set("GainAuto", "Off")
	if !forced {
		return nil, fmt.Errorf("failed to force software-triggered capture")
	}
	if gain, ok := snap.Values["Gain"]; ok {
		if !props.Set("Gain", gain) {
			return nil, fmt.Errorf("failed to pin gain")
		}
	}
	b.dev.AutoSoftwareTrigger = true

	samples := make([]Sample, 0, len(times))
	for i, t := range times {
		if !props.Set("ExposureTime", t) {
			diag.Reportf(diag.Sequence, "ExposureTime", "aborting bracket: failed to set exposure %g", t)
			return nil, fmt.Errorf("failed to set exposure time %g", t)
		}

		// The sensor pipeline lags behind the new exposure; discard
		// the stale in-flight frames.
		for w := 0; w < b.WarmupFrames; w++ {
			if !b.dev.Grab() {
				diag.Reportf(diag.Sequence, "", "aborting bracket: warm-up grab failed at step %d", i)
				return nil, fmt.Errorf("warm-up grab failed at exposure %g", t)
			}
		}

		f, ok := b.dev.Read()
		if !ok {
			diag.Reportf(diag.Sequence, "", "aborting bracket: capture failed at step %d", i)
			return nil, fmt.Errorf("capture failed at exposure %g", t)
		}

		// Record the exposure the device actually applied; a clipped
		// request differs from the ask.
		actual := t
		if v, ok := props.GetFloat("ExposureTime"); ok {
			actual = v
		}
		samples = append(samples, Sample{ExposureTime: actual, Frame: f})
	}
	return samples, nil
}

func validateTimes(times []float64) error {
	if len(times) == 0 {
		return fmt.Errorf("no exposure times requested")
	}
	prev := 0.0
	for i, t := range times {
		if t <= 0 {
			return fmt.Errorf("exposure time %g at index %d must be positive", t, i)
		}
		if t <= prev {
			return fmt.Errorf("exposure times must be strictly increasing: %g follows %g", t, prev)
		}
		prev = t
	}
	return nil
}
