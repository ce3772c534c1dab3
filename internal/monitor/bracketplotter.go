// Package monitor renders diagnostic plots for bracket runs. A
// BracketPlotter records per-frame statistics while a bracket executes and
// produces per-exposure histograms plus a mean-vs-exposure response plot
// after the run.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/spincam/internal/bracket"
	"github.com/banshee-data/spincam/internal/frame"
)

// BracketPlotter records per-exposure frame statistics over a bracket run,
// accumulating data that can be plotted after the run completes.
type BracketPlotter struct {
	mu           sync.Mutex
	enabled      bool
	outputDir    string
	cameraSerial string

	steps []StepSample
}

// StepSample is the recorded state of one exposure step.
type StepSample struct {
	Index          int
	ExposureTimeUs float64
	Stats          frame.Stats
	// Levels holds the frame's normalized pixel values for the
	// histogram.
	Levels []float64
}

// NewBracketPlotter creates a plotter for the given camera.
func NewBracketPlotter(cameraSerial string) *BracketPlotter {
	return &BracketPlotter{cameraSerial: cameraSerial}
}

// Start initializes the plotter for a new run.
// outputDir should be a timestamped directory (e.g., "plots/21345678/20260831_101500").
func (bp *BracketPlotter) Start(outputDir string) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	bp.outputDir = outputDir
	bp.enabled = true
	bp.steps = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (bp *BracketPlotter) Stop() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (bp *BracketPlotter) IsEnabled() bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.enabled
}

// Sample records one captured bracket step. Call once per frame as the
// bracket produces them.
func (bp *BracketPlotter) Sample(s bracket.Sample) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if !bp.enabled || s.Frame == nil {
		return
	}

	norm := s.Frame.Normalize()
	levels := make([]float64, len(norm.Pix))
	copy(levels, norm.Pix)

	bp.steps = append(bp.steps, StepSample{
		Index:          len(bp.steps),
		ExposureTimeUs: s.ExposureTime,
		Stats:          norm.Summarize(),
		Levels:         levels,
	})
}

// SampleAll records a whole bracket result at once.
func (bp *BracketPlotter) SampleAll(samples []bracket.Sample) {
	for _, s := range samples {
		bp.Sample(s)
	}
}

// SampleCount returns the number of recorded exposure steps.
func (bp *BracketPlotter) SampleCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.steps)
}

// Steps returns a copy of the recorded step samples, in capture order.
func (bp *BracketPlotter) Steps() []StepSample {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	out := make([]StepSample, len(bp.steps))
	copy(out, bp.steps)
	return out
}

// GetOutputDir returns the current output directory for plots.
func (bp *BracketPlotter) GetOutputDir() string {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.outputDir
}

// GeneratePlots creates PNG files: one level histogram per exposure step
// and one response plot of mean level against exposure time. Returns the
// number of files written.
func (bp *BracketPlotter) GeneratePlots() (int, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(bp.steps) == 0 {
		return 0, nil
	}

	plotCount := 0
	for _, step := range bp.steps {
		if err := bp.generateHistogramPlot(step); err != nil {
			return plotCount, fmt.Errorf("step %d: %w", step.Index, err)
		}
		plotCount++
	}

	if err := bp.generateResponsePlot(); err != nil {
		return plotCount, fmt.Errorf("response plot: %w", err)
	}
	plotCount++

	return plotCount, nil
}

// generateHistogramPlot renders the level distribution of one exposure step.
func (bp *BracketPlotter) generateHistogramPlot(step StepSample) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Level Histogram at %gus", bp.cameraSerial, step.ExposureTimeUs)
	p.X.Label.Text = "Normalized Level"
	p.Y.Label.Text = "Pixels"
	p.X.Min = 0
	p.X.Max = 1

	hist, err := plotter.NewHist(plotter.Values(step.Levels), 32)
	if err != nil {
		return err
	}
	hist.FillColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	p.Add(hist)

	file := filepath.Join(bp.outputDir, fmt.Sprintf("step_%02d_hist.png", step.Index))
	if err := p.Save(8*vg.Inch, 5*vg.Inch, file); err != nil {
		return fmt.Errorf("save histogram plot: %w", err)
	}
	return nil
}

// generateResponsePlot renders mean, min and max level against exposure
// time. A linear sensor shows a straight mean line until saturation bends
// it flat.
func (bp *BracketPlotter) generateResponsePlot() error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Exposure Response", bp.cameraSerial)
	p.X.Label.Text = "Exposure Time (us)"
	p.Y.Label.Text = "Normalized Level"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Min = 0
	p.Y.Max = 1

	meanPts := make(plotter.XYs, 0, len(bp.steps))
	minPts := make(plotter.XYs, 0, len(bp.steps))
	maxPts := make(plotter.XYs, 0, len(bp.steps))
	for _, step := range bp.steps {
		meanPts = append(meanPts, plotter.XY{X: step.ExposureTimeUs, Y: step.Stats.Mean})
		minPts = append(minPts, plotter.XY{X: step.ExposureTimeUs, Y: step.Stats.Min})
		maxPts = append(maxPts, plotter.XY{X: step.ExposureTimeUs, Y: step.Stats.Max})
	}

	series := []struct {
		name string
		pts  plotter.XYs
	}{
		{"mean", meanPts},
		{"min", minPts},
		{"max", maxPts},
	}
	colors := generateColors(len(series))
	for i, s := range series {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10

	file := filepath.Join(bp.outputDir, "exposure_response.png")
	if err := p.Save(10*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save response plot: %w", err)
	}
	return nil
}

// generateColors creates a palette of distinct colors for plot lines.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory path for one
// camera's plots: <baseDir>/<serial>/<timestamp>.
func MakePlotOutputDir(baseDir, cameraSerial string) string {
	ts := FormatTimestamp(time.Now())
	if cameraSerial == "" {
		cameraSerial = "camera"
	}
	return filepath.Join(baseDir, cameraSerial, ts)
}
