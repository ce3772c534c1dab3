package bracket

import (
	"fmt"

	"github.com/banshee-data/spincam/internal/capture"
	"github.com/banshee-data/spincam/internal/frame"
	"github.com/banshee-data/spincam/internal/hdr"
)

// DefaultReferenceTime scales the merged radiance map; a pixel exposed at
// the reference time maps back to its normalized LDR value. Microseconds.
const DefaultReferenceTime = 10000.0

// HDRRequest configures one ReadHDR call.
type HDRRequest struct {
	// TMin and TMax bound the exposure ladder in microseconds. Both are
	// clamped into the device's exposure limits.
	TMin float64
	TMax float64

	// Num is the shot count. Zero picks it automatically so neighboring
	// exposures differ by roughly 2x.
	Num int

	// ReferenceTime scales the output; zero selects
	// DefaultReferenceTime.
	ReferenceTime float64

	// Weighting selects the merge weighting scheme; the zero value is
	// the Gaussian default.
	Weighting hdr.Weighting
}

// ReadHDR captures an exposure bracket across [TMin, TMax] and merges it
// into a radiance map. Gamma is forced to 1.0 for the series so the samples
// are linear in exposure, and restored afterwards on every path.
func (b *Bracketer) ReadHDR(req HDRRequest) (*frame.Float, error) {
	if !b.dev.IsOpened() {
		return nil, fmt.Errorf("camera is not open")
	}
	props := b.dev.Props()

	tMin, tMax := req.TMin, req.TMax
	if info, ok := props.Info("ExposureTime"); ok {
		tMin = clamp(tMin, info.FloatMin, info.FloatMax)
		tMax = clamp(tMax, info.FloatMin, info.FloatMax)
	}
	if tMax < tMin {
		return nil, fmt.Errorf("exposure bounds inverted after clamping: [%g, %g]", tMin, tMax)
	}

	num := req.Num
	if num <= 0 {
		num = AutoCount(tMin, tMax)
	}
	times, err := Series(tMin, tMax, num)
	if err != nil {
		return nil, err
	}

	tRef := req.ReferenceTime
	if tRef <= 0 {
		tRef = DefaultReferenceTime
	}

	// The merge assumes samples linear in exposure time; capture the
	// series with gamma 1.0 and put the original back afterwards.
	gamma, hadGamma := b.dev.Get(capture.PropGamma)
	if hadGamma {
		if !b.dev.Set(capture.PropGamma, 1.0) {
			return nil, fmt.Errorf("failed to force linear gamma")
		}
		defer b.dev.Set(capture.PropGamma, gamma.Float)
	}

	samples, err := b.ReadBracket(times)
	if err != nil {
		return nil, fmt.Errorf("bracket failed: %w", err)
	}

	frames := make([]*frame.Frame, len(samples))
	actual := make([]float64, len(samples))
	for i, s := range samples {
		frames[i] = s.Frame
		actual[i] = s.ExposureTime
	}
	return hdr.MergeFrames(frames, actual, tRef, req.Weighting)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
