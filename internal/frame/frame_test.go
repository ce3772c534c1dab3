package frame

import (
	"math"
	"testing"
)

func TestNormalize8Bit(t *testing.T) {
	f := New(2, 1, 8)
	f.Pix = []uint16{0, 255}

	n := f.Normalize()
	if n.Pix[0] != 0 || n.Pix[1] != 1 {
		t.Errorf("normalized = %v, want [0 1]", n.Pix)
	}
}

func TestNormalize16Bit(t *testing.T) {
	f := New(1, 1, 16)
	f.Pix = []uint16{65535}

	if got := f.Normalize().Pix[0]; got != 1 {
		t.Errorf("normalized = %v, want 1", got)
	}
	if f.MaxValue() != 65535 {
		t.Errorf("MaxValue = %v", f.MaxValue())
	}
}

func TestSummarize(t *testing.T) {
	f := New(2, 2, 8)
	f.Pix = []uint16{10, 20, 30, 40}

	s := f.Summarize()
	if s.Mean != 25 || s.Min != 10 || s.Max != 40 {
		t.Errorf("stats = %+v", s)
	}
	if s.StdDev == 0 {
		t.Error("expected nonzero std dev")
	}
}

func TestMean(t *testing.T) {
	a := New(2, 1, 8)
	a.Pix = []uint16{10, 100}
	b := New(2, 1, 8)
	b.Pix = []uint16{20, 200}

	avg, err := Mean([]*Frame{a, b})
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if math.Abs(avg.Pix[0]-15) > 1e-12 || math.Abs(avg.Pix[1]-150) > 1e-12 {
		t.Errorf("mean = %v, want [15 150]", avg.Pix)
	}
}

func TestMeanShapeMismatch(t *testing.T) {
	a := New(2, 1, 8)
	b := New(1, 2, 8)
	if _, err := Mean([]*Frame{a, b}); err == nil {
		t.Error("expected shape mismatch error")
	}
	if _, err := Mean(nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestClone(t *testing.T) {
	f := New(1, 1, 8)
	f.Pix[0] = 7
	c := f.Clone()
	c.Pix[0] = 9
	if f.Pix[0] != 7 {
		t.Error("Clone should not share pixel storage")
	}
}
