// Package frame holds the in-memory image types shared by the capture and
// merge layers: integer sensor frames as delivered by the driver, and
// floating-point planes used for normalized samples and radiance maps.
package frame

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Frame is one decoded sensor frame, row-major mono samples.
type Frame struct {
	Width    int
	Height   int
	BitDepth int
	Pix      []uint16
}

// New allocates a zeroed frame.
func New(width, height, bitDepth int) *Frame {
	return &Frame{
		Width:    width,
		Height:   height,
		BitDepth: bitDepth,
		Pix:      make([]uint16, width*height),
	}
}

// MaxValue is the largest representable sample for the frame's bit depth.
func (f *Frame) MaxValue() float64 {
	return float64(uint64(1)<<uint(f.BitDepth) - 1)
}

// Normalize divides every sample by the format maximum, producing values in
// [0,1].
func (f *Frame) Normalize() *Float {
	out := NewFloat(f.Width, f.Height)
	max := f.MaxValue()
	for i, p := range f.Pix {
		out.Pix[i] = float64(p) / max
	}
	return out
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := New(f.Width, f.Height, f.BitDepth)
	copy(out.Pix, f.Pix)
	return out
}

// Float is a floating-point image plane: normalized LDR samples, averaged
// frames, or a merged radiance map.
type Float struct {
	Width  int
	Height int
	Pix    []float64
}

// NewFloat allocates a zeroed float plane.
func NewFloat(width, height int) *Float {
	return &Float{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// Stats summarises a plane for persistence and debug plots.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes plane statistics.
func (p *Float) Summarize() Stats {
	if len(p.Pix) == 0 {
		return Stats{}
	}
	mean, std := stat.MeanStdDev(p.Pix, nil)
	return Stats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(p.Pix),
		Max:    floats.Max(p.Pix),
	}
}

// Summarize computes frame statistics on the raw integer samples.
func (f *Frame) Summarize() Stats {
	if len(f.Pix) == 0 {
		return Stats{}
	}
	vals := make([]float64, len(f.Pix))
	for i, p := range f.Pix {
		vals[i] = float64(p)
	}
	mean, std := stat.MeanStdDev(vals, nil)
	return Stats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(vals),
		Max:    floats.Max(vals),
	}
}

// SameShape reports whether two planes have identical dimensions.
func (p *Float) SameShape(q *Float) bool {
	return p.Width == q.Width && p.Height == q.Height
}

// Mean averages several frames of identical shape into one float plane of
// raw sample values.
func Mean(frames []*Frame) (*Float, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to average")
	}
	first := frames[0]
	out := NewFloat(first.Width, first.Height)
	for _, f := range frames {
		if f.Width != first.Width || f.Height != first.Height {
			return nil, fmt.Errorf("frame shape %dx%d does not match %dx%d",
				f.Width, f.Height, first.Width, first.Height)
		}
		for i, p := range f.Pix {
			out.Pix[i] += float64(p)
		}
	}
	floats.Scale(1/float64(len(frames)), out.Pix)
	return out, nil
}
