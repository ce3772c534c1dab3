// Package hdr merges a series of differently exposed LDR frames into one
// radiance map. Pure computation: no device or I/O dependency.
package hdr

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/spincam/internal/frame"
)

// Valid exposure band. Samples outside it carry no weight in the merge.
const (
	ZMin = 0.01
	ZMax = 0.99
)

// epsilon keeps the weight sum strictly positive when every sample of a
// pixel is masked out.
const epsilon = 1e-32

// Weighting selects the per-sample weighting scheme inside the valid band.
type Weighting int

const (
	// Gaussian falls off smoothly from mid-gray: exp(-4*((z-0.5)/0.5)^2).
	// The default.
	Gaussian Weighting = iota
	// Uniform weights every well-exposed sample equally.
	Uniform
	// Tent falls off linearly from mid-gray: 0.5 - |z-0.5|.
	Tent
	// Photon weights proportionally to exposure time, approximating
	// photon-noise-limited SNR.
	Photon
)

func (w Weighting) String() string {
	switch w {
	case Gaussian:
		return "gaussian"
	case Uniform:
		return "uniform"
	case Tent:
		return "tent"
	case Photon:
		return "photon"
	default:
		return fmt.Sprintf("weighting(%d)", int(w))
	}
}

// ParseWeighting maps a scheme name to its Weighting. Empty selects the
// default.
func ParseWeighting(s string) (Weighting, error) {
	switch s {
	case "", "gaussian":
		return Gaussian, nil
	case "uniform":
		return Uniform, nil
	case "tent":
		return Tent, nil
	case "photon":
		return Photon, nil
	default:
		return Gaussian, fmt.Errorf("unknown weighting scheme %q", s)
	}
}

func (w Weighting) weight(z, relTime float64) float64 {
	switch w {
	case Uniform:
		return 1
	case Tent:
		return 0.5 - math.Abs(z-0.5)
	case Photon:
		return relTime
	default:
		d := (z - 0.5) / 0.5
		return math.Exp(-4 * d * d)
	}
}

// Merge combines normalized frames (values in [0,1]) captured at the given
// exposure times into one radiance map scaled around timeRef. Every output
// pixel is finite: pixels under- or over-exposed in every sample fall back
// to anchors at the longest and shortest exposure respectively.
func Merge(imgs []*frame.Float, times []float64, timeRef float64, scheme Weighting) (*frame.Float, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("no frames to merge")
	}
	if len(imgs) != len(times) {
		return nil, fmt.Errorf("%d frames but %d exposure times", len(imgs), len(times))
	}
	if timeRef <= 0 {
		return nil, fmt.Errorf("reference time %g must be positive", timeRef)
	}
	for i, t := range times {
		if t <= 0 {
			return nil, fmt.Errorf("exposure time %g at index %d must be positive", t, i)
		}
	}
	first := imgs[0]
	for _, img := range imgs[1:] {
		if !first.SameShape(img) {
			return nil, fmt.Errorf("frame shape %dx%d does not match %dx%d",
				img.Width, img.Height, first.Width, first.Height)
		}
	}

	// Relative exposure times t_i / t_ref.
	rel := make([]float64, len(times))
	for i, t := range times {
		rel[i] = t / timeRef
	}
	relMax := floats.Max(rel)
	relMin := floats.Min(rel)

	out := frame.NewFloat(first.Width, first.Height)
	for p := range out.Pix {
		var num, den float64
		allUnder, allOver := true, true

		for i, img := range imgs {
			z := img.Pix[p]
			if z >= ZMin {
				allUnder = false
			}
			if z <= ZMax {
				allOver = false
			}
			if z < ZMin || z > ZMax {
				continue
			}
			w := scheme.weight(z, rel[i])
			num += w * z / rel[i]
			den += w
		}

		switch {
		case allUnder:
			// Truly dark: anchor to the longest exposure.
			out.Pix[p] = ZMin / relMax
		case allOver:
			// Truly saturated: anchor to the shortest exposure.
			out.Pix[p] = ZMax / relMin
		default:
			out.Pix[p] = num / (den + epsilon)
		}
	}
	return out, nil
}

// MergeFrames normalizes raw sensor frames by their format maximum and
// merges them.
func MergeFrames(frames []*frame.Frame, times []float64, timeRef float64, scheme Weighting) (*frame.Float, error) {
	imgs := make([]*frame.Float, len(frames))
	for i, f := range frames {
		imgs[i] = f.Normalize()
	}
	return Merge(imgs, times, timeRef, scheme)
}
