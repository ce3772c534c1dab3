package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/spincam/internal/bracket"
	"github.com/banshee-data/spincam/internal/frame"
	"github.com/banshee-data/spincam/internal/httputil"
)

const histogramBins = 32

// responseStep is the per-exposure data retained for the debug chart page.
type responseStep struct {
	exposureUs float64
	stats      frame.Stats
	histogram  []int
}

// recordSteps keeps the latest bracket's per-exposure statistics for
// /debug/exposure-response.
func (s *Server) recordSteps(samples []bracket.Sample) {
	steps := make([]responseStep, len(samples))
	for i, smp := range samples {
		norm := smp.Frame.Normalize()
		hist := make([]int, histogramBins)
		for _, z := range norm.Pix {
			bin := int(z * histogramBins)
			if bin >= histogramBins {
				bin = histogramBins - 1
			}
			hist[bin]++
		}
		steps[i] = responseStep{
			exposureUs: smp.ExposureTime,
			stats:      norm.Summarize(),
			histogram:  hist,
		}
	}

	s.mu.Lock()
	s.lastSteps = steps
	s.mu.Unlock()
}

// handleExposureResponseChart renders an HTML page of the last bracket's
// mean-level response curve and per-exposure level histograms using
// go-echarts. This is a debugging-only endpoint (no auth) to eyeball
// sensor linearity and saturation without external tooling.
func (s *Server) handleExposureResponseChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	s.mu.Lock()
	steps := s.lastSteps
	s.mu.Unlock()

	if len(steps) == 0 {
		httputil.NotFound(w, "no bracket has run yet")
		return
	}

	page := components.NewPage()
	page.AddCharts(s.responseChart(steps))
	for i := range steps {
		page.AddCharts(s.histogramChart(i, steps[i]))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) responseChart(steps []responseStep) *charts.Line {
	xAxis := make([]string, len(steps))
	meanData := make([]opts.LineData, len(steps))
	maxData := make([]opts.LineData, len(steps))
	for i, step := range steps {
		xAxis[i] = fmt.Sprintf("%gus", step.exposureUs)
		meanData[i] = opts.LineData{Value: step.stats.Mean}
		maxData[i] = opts.LineData{Value: step.stats.Max}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Exposure Response", Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Exposure Response",
			Subtitle: fmt.Sprintf("camera=%s steps=%d", s.cameraSerial(), len(steps)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "Normalized Level"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Exposure"}),
	)
	line.SetXAxis(xAxis).
		AddSeries("mean", meanData).
		AddSeries("max", maxData)
	return line
}

func (s *Server) histogramChart(idx int, step responseStep) *charts.Bar {
	xAxis := make([]string, histogramBins)
	data := make([]opts.BarData, histogramBins)
	for b := 0; b < histogramBins; b++ {
		xAxis[b] = fmt.Sprintf("%.2f", (float64(b)+0.5)/histogramBins)
		data[b] = opts.BarData{Value: step.histogram[b]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Level Histogram %d", idx),
			Subtitle: fmt.Sprintf("exposure=%gus mean=%.3f", step.exposureUs,
				step.stats.Mean),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(xAxis).AddSeries("pixels", data)
	return bar
}
