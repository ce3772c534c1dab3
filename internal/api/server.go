package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/spincam/internal/bracket"
	"github.com/banshee-data/spincam/internal/capture"
	"github.com/banshee-data/spincam/internal/capturedb"
	"github.com/banshee-data/spincam/internal/diag"
	"github.com/banshee-data/spincam/internal/exposure"
	"github.com/banshee-data/spincam/internal/frame"
	"github.com/banshee-data/spincam/internal/hdr"
	"github.com/banshee-data/spincam/internal/httputil"
	"github.com/banshee-data/spincam/internal/monitor"
	"github.com/banshee-data/spincam/internal/security"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server serves the camera control API for one device. Bracket and HDR
// requests are serialized by the Bracketer; property and frame requests
// take the device as they find it.
type Server struct {
	dev *capture.Device
	br  *bracket.Bracketer
	db  *capturedb.DB // optional, nil disables run persistence

	// collector accumulates diagnostics for the life of the server so
	// setProperty can attach the ones its write raised.
	collector *diag.Collector

	// plotsDir is the root directory for generated plot files. Empty
	// disables plot generation and the /api/plots endpoint.
	plotsDir string

	mu        sync.Mutex
	lastSteps []responseStep // for the debug chart page
}

// NewServer creates an API server around an opened device. db may be nil.
func NewServer(dev *capture.Device, br *bracket.Bracketer, db *capturedb.DB) *Server {
	return &Server{
		dev:       dev,
		br:        br,
		db:        db,
		collector: diag.NewCollector(),
	}
}

// EnablePlots turns on plot generation for bracket requests. Generated
// files land under dir and are served back through /api/plots.
func (s *Server) EnablePlots(dir string) {
	s.plotsDir = dir
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		diag.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/camera/properties", s.handleProperties)
	mux.HandleFunc("/api/camera/frame", s.handleFrame)
	mux.HandleFunc("/api/camera/bracket", s.handleBracket)
	mux.HandleFunc("/api/camera/hdr", s.handleHDR)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/frames", s.listRunFrames)
	mux.HandleFunc("/api/plots", s.servePlotFile)
	mux.HandleFunc("/debug/exposure-response", s.handleExposureResponseChart)
	return mux
}

// propertyView is one property in the GET response.
type propertyView struct {
	Property string      `json:"property"`
	Value    interface{} `json:"value,omitempty"`
	OK       bool        `json:"ok"`
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listProperties(w, r)
	case http.MethodPost:
		s.setProperty(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listProperties(w http.ResponseWriter, r *http.Request) {
	if !s.dev.IsOpened() {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "camera is not open")
		return
	}

	views := make([]propertyView, 0)
	for _, id := range capture.Properties() {
		view := propertyView{Property: id.String()}
		if v, ok := s.dev.Get(id); ok {
			view.OK = true
			view.Value = v
		}
		views = append(views, view)
	}
	httputil.WriteJSONOK(w, views)
}

type setPropertyRequest struct {
	Property string      `json:"property"`
	Value    interface{} `json:"value"`
}

func (s *Server) setProperty(w http.ResponseWriter, r *http.Request) {
	var req setPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	id, err := capture.ParseProperty(req.Property)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	// Attach the diagnostics this write raised so the caller sees why
	// it was rejected or clipped.
	before := s.collector.Len()
	ok := s.dev.Set(id, normalizeJSONValue(req.Value))
	raised := s.collector.All()[before:]

	resp := map[string]interface{}{
		"property": id.String(),
		"ok":       ok,
	}
	if v, got := s.dev.Get(id); got {
		resp["value"] = v
	}
	if len(raised) > 0 {
		msgs := make([]string, 0, len(raised))
		for _, d := range raised {
			msgs = append(msgs, d.String())
		}
		resp["diagnostics"] = msgs
	}
	httputil.WriteJSONOK(w, resp)
}

// normalizeJSONValue keeps integral JSON numbers usable for integer nodes.
// encoding/json decodes every number as float64; an exposure of 2000 must
// not be rejected by an integer node for arriving as 2000.0.
func normalizeJSONValue(v interface{}) interface{} {
	if f, ok := v.(float64); ok {
		if f == float64(int64(f)) {
			return int(f)
		}
	}
	return v
}

// frameView summarizes a captured frame. Pixel data is included only when
// requested; statistics are always present.
type frameView struct {
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	BitDepth int         `json:"bit_depth"`
	Stats    frame.Stats `json:"stats"`
	Pixels   []uint16    `json:"pixels,omitempty"`
}

func makeFrameView(f *frame.Frame, includePixels bool) frameView {
	view := frameView{
		Width:    f.Width,
		Height:   f.Height,
		BitDepth: f.BitDepth,
		Stats:    f.Summarize(),
	}
	if includePixels {
		view.Pixels = f.Pix
	}
	return view
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	f, ok := s.dev.Read()
	if !ok {
		httputil.InternalServerError(w, "failed to capture frame")
		return
	}

	includePixels := r.URL.Query().Get("pixels") == "1"
	httputil.WriteJSONOK(w, makeFrameView(f, includePixels))
}

type bracketRequest struct {
	Times []float64 `json:"times"`
	// Shutter is an alternative to Times: shutter speeds as strings,
	// e.g. "1/125", "2ms", "500us".
	Shutter       []string `json:"shutter,omitempty"`
	IncludePixels bool     `json:"include_pixels,omitempty"`
	GeneratePlots bool     `json:"generate_plots,omitempty"`
}

type bracketResponse struct {
	RunID     string        `json:"run_id,omitempty"`
	Frames    []bracketStep `json:"frames"`
	PlotDir   string        `json:"plot_dir,omitempty"`
	PlotCount int           `json:"plot_count,omitempty"`
}

type bracketStep struct {
	ExposureTimeUs float64   `json:"exposure_time_us"`
	ExposureLabel  string    `json:"exposure_label"`
	Frame          frameView `json:"frame"`
}

func (s *Server) handleBracket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req bracketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if len(req.Times) == 0 && len(req.Shutter) > 0 {
		req.Times = make([]float64, len(req.Shutter))
		for i, sp := range req.Shutter {
			us, err := exposure.Parse(sp)
			if err != nil {
				httputil.BadRequest(w, fmt.Sprintf("invalid shutter speed %q: %v", sp, err))
				return
			}
			req.Times[i] = us
		}
	}

	samples, err := s.br.ReadBracket(req.Times)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("bracket failed: %v", err))
		return
	}

	resp := bracketResponse{Frames: make([]bracketStep, len(samples))}
	for i, smp := range samples {
		resp.Frames[i] = bracketStep{
			ExposureTimeUs: smp.ExposureTime,
			ExposureLabel:  exposure.FractionLabel(smp.ExposureTime),
			Frame:          makeFrameView(smp.Frame, req.IncludePixels),
		}
	}
	s.recordSteps(samples)

	if req.GeneratePlots && s.plotsDir != "" {
		dir, count, err := s.generatePlots(samples)
		if err != nil {
			diag.Logf("failed to generate bracket plots: %v", err)
		} else {
			resp.PlotDir = dir
			resp.PlotCount = count
		}
	}

	if s.db != nil {
		runID, err := s.db.RecordBracketRun(capturedb.BracketRun{
			CameraSerial: s.cameraSerial(),
			Kind:         "bracket",
		}, samples)
		if err != nil {
			diag.Logf("failed to record bracket run: %v", err)
		} else {
			resp.RunID = runID
		}
	}

	httputil.WriteJSONOK(w, resp)
}

type hdrRequest struct {
	TMin            float64 `json:"t_min"`
	TMax            float64 `json:"t_max"`
	Num             int     `json:"num,omitempty"`
	ReferenceTimeUs float64 `json:"reference_time_us,omitempty"`
	Weighting       string  `json:"weighting,omitempty"`
	IncludePixels   bool    `json:"include_pixels,omitempty"`
}

type hdrResponse struct {
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Stats     frame.Stats `json:"stats"`
	Weighting string      `json:"weighting"`
	Pixels    []float64   `json:"pixels,omitempty"`
}

func (s *Server) handleHDR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req hdrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	scheme, err := hdr.ParseWeighting(req.Weighting)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	out, err := s.br.ReadHDR(bracket.HDRRequest{
		TMin:          req.TMin,
		TMax:          req.TMax,
		Num:           req.Num,
		ReferenceTime: req.ReferenceTimeUs,
		Weighting:     scheme,
	})
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("hdr capture failed: %v", err))
		return
	}

	resp := hdrResponse{
		Width:     out.Width,
		Height:    out.Height,
		Stats:     out.Summarize(),
		Weighting: scheme.String(),
	}
	if req.IncludePixels {
		resp.Pixels = out.Pix
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no capture database configured")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.BracketRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []capturedb.BracketRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) listRunFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no capture database configured")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		httputil.BadRequest(w, "missing 'run_id' parameter")
		return
	}

	frames, err := s.db.RunFrames(runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve frames: %v", err))
		return
	}
	if len(frames) == 0 {
		httputil.NotFound(w, fmt.Sprintf("no frames for run %s", runID))
		return
	}
	httputil.WriteJSONOK(w, frames)
}

// generatePlots writes histogram and exposure-response plots for the
// samples and returns the output directory relative to the plots root.
func (s *Server) generatePlots(samples []bracket.Sample) (string, int, error) {
	serial := s.cameraSerial()
	bp := monitor.NewBracketPlotter(serial)
	dir := monitor.MakePlotOutputDir(s.plotsDir, serial)
	if err := bp.Start(dir); err != nil {
		return "", 0, err
	}
	defer bp.Stop()

	bp.SampleAll(samples)
	count, err := bp.GeneratePlots()
	if err != nil {
		return "", 0, err
	}

	rel, err := filepath.Rel(s.plotsDir, dir)
	if err != nil {
		rel = dir
	}
	return rel, count, nil
}

// servePlotFile serves one generated plot image. The file parameter is a
// path relative to the plots root; anything that escapes it is rejected.
func (s *Server) servePlotFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.plotsDir == "" {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "plot generation is not enabled")
		return
	}

	name := r.URL.Query().Get("file")
	if name == "" {
		httputil.BadRequest(w, "missing 'file' parameter")
		return
	}

	path := filepath.Join(s.plotsDir, name)
	if err := security.ValidatePathWithinDirectory(path, s.plotsDir); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid plot path: %v", err))
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) cameraSerial() string {
	if v, ok := s.dev.Props().Get("DeviceSerialNumber"); ok {
		return v.Str
	}
	return ""
}
