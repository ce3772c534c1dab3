package genicam

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// SimCamera implements Camera with configurable behaviour for testing and
// for running the service without camera hardware (-dev mode). It models the
// parts of a real sensor that the capture stack depends on:
//
//   - a node table with kinds, limits, and live enumeration entries,
//   - trigger semantics: with TriggerMode On and TriggerSource Software a
//     grab only completes after ExecuteSoftwareTrigger,
//   - an exposure pipeline lag of PipelineDepth frames, so a changed
//     ExposureTime shows up in delivered frames only after the in-flight
//     frames drain (warm-up discards exist because of this),
//   - buffer accounting, so tests can assert every grabbed image was
//     released exactly once.
type SimCamera struct {
	mu sync.Mutex

	// Serial identifies the camera within a SimSystem.
	Serial string

	// Scene is the per-pixel relative irradiance, row-major, values
	// around [0,1]. A pixel at irradiance 1.0 saturates at an exposure
	// of FullScaleExposure microseconds.
	Scene  []float64
	width  int
	height int

	// FullScaleExposure is the exposure time in microseconds at which a
	// scene value of 1.0 reaches full scale.
	FullScaleExposure float64

	// BitDepth of produced frames: 8 or 16.
	BitDepth int

	// PipelineDepth is the number of in-flight frames lagging behind an
	// exposure change.
	PipelineDepth int

	// GrabError, when set, is returned by the next GetNextImage call and
	// then cleared.
	GrabError error

	// GrabErrorAt returns an error from the Nth GetNextImage call
	// (1-based, counted across the camera's lifetime).
	GrabErrorAt map[int]error

	// IncompleteNext makes the next delivered image incomplete.
	IncompleteNext bool

	// FailSet maps node names to errors returned by the next Set on that
	// node. Entries are not cleared, so a node can be made persistently
	// unsettable.
	FailSet map[string]error

	// Counters for assertions.
	GrabCalls    int
	TriggerCalls int
	Released     int
	Outstanding  int

	nodes     map[string]*simNode
	nodeOrder []string
	valid     bool
	inited    bool
	streaming bool
	pending   int // queued software triggers
	pipeline  []float64
}

type simNode struct {
	info NodeInfo
	ival int64
	fval float64
	bval bool
	sval string
	eval int64 // current enumeration code
}

// Canonical simulated limits, matching a typical mono machine-vision sensor.
const (
	SimExposureMin = 20.0
	SimExposureMax = 30000000.0
	SimGainMax     = 47.99
)

// NewSimCamera returns a simulated camera with a flat mid-gray scene of the
// given dimensions and the default node table.
func NewSimCamera(serial string, width, height int) *SimCamera {
	scene := make([]float64, width*height)
	for i := range scene {
		scene[i] = 0.5
	}
	c := &SimCamera{
		Serial:            serial,
		Scene:             scene,
		width:             width,
		height:            height,
		FullScaleExposure: 10000,
		BitDepth:          8,
		PipelineDepth:     2,
		FailSet:           make(map[string]error),
		valid:             true,
	}
	c.nodes = make(map[string]*simNode)
	c.installDefaultNodes()
	return c
}

func (c *SimCamera) addNode(n *simNode) {
	c.nodes[n.info.Name] = n
	c.nodeOrder = append(c.nodeOrder, n.info.Name)
}

func intNode(name string, v, min, max int64) *simNode {
	return &simNode{
		info: NodeInfo{Name: name, Kind: KindInteger, Readable: true, Writable: true, IntMin: min, IntMax: max},
		ival: v,
	}
}

func floatNode(name string, v, min, max float64) *simNode {
	return &simNode{
		info: NodeInfo{Name: name, Kind: KindFloat, Readable: true, Writable: true, FloatMin: min, FloatMax: max},
		fval: v,
	}
}

func boolNode(name string, v bool) *simNode {
	return &simNode{
		info: NodeInfo{Name: name, Kind: KindBoolean, Readable: true, Writable: true},
		bval: v,
	}
}

func enumNode(name string, current string, symbols ...string) *simNode {
	entries := make([]EnumEntry, len(symbols))
	cur := int64(0)
	for i, s := range symbols {
		entries[i] = EnumEntry{Symbol: s, Code: int64(i)}
		if s == current {
			cur = int64(i)
		}
	}
	return &simNode{
		info: NodeInfo{Name: name, Kind: KindEnumeration, Readable: true, Writable: true, Entries: entries},
		eval: cur,
	}
}

func (c *SimCamera) installDefaultNodes() {
	c.addNode(floatNode("ExposureTime", 10000, SimExposureMin, SimExposureMax))
	c.addNode(floatNode("Gain", 0, 0, SimGainMax))
	c.addNode(floatNode("Gamma", 1.0, 0.25, 4.0))
	c.addNode(boolNode("GammaEnable", true))
	c.addNode(floatNode("AcquisitionFrameRate", 30, 1, 170))
	c.addNode(boolNode("AcquisitionFrameRateEnable", false))
	c.addNode(floatNode("TriggerDelay", 9, 9, 10000000))
	c.addNode(floatNode("AutoExposureEVCompensation", 0, -3, 3))
	c.addNode(intNode("Width", int64(c.width), 4, int64(c.width)))
	c.addNode(intNode("Height", int64(c.height), 2, int64(c.height)))
	c.addNode(enumNode("ExposureAuto", "Continuous", "Off", "Once", "Continuous"))
	c.addNode(enumNode("GainAuto", "Continuous", "Off", "Once", "Continuous"))
	c.addNode(enumNode("TriggerMode", "Off", "Off", "On"))
	c.addNode(enumNode("TriggerSource", "Line0", "Software", "Line0", "Line3"))
	c.addNode(enumNode("TriggerSelector", "AcquisitionStart", "AcquisitionStart", "FrameStart"))
	c.addNode(enumNode("BalanceWhiteAuto", "Continuous", "Off", "Once", "Continuous"))
	c.addNode(enumNode("DeviceIndicatorMode", "Active", "Inactive", "Active"))
	c.addNode(enumNode("StreamBufferHandlingMode", "OldestFirst", "OldestFirst", "OldestFirstOverwrite", "NewestOnly"))
	c.addNode(enumNode("TriggerOverlap", "Off", "Off", "ReadOut"))
	c.addNode(enumNode("LineSelector", "Line0", "Line0", "Line1", "Line2", "Line3"))
	c.addNode(enumNode("LineMode", "Input", "Input", "Output"))
	c.addNode(boolNode("V3_3Enable", false))

	resulting := floatNode("ResultingFrameRate", 30, 0, 170)
	resulting.info.Writable = false
	c.addNode(resulting)

	temp := floatNode("DeviceTemperature", 42.5, -50, 120)
	temp.info.Writable = false
	c.addNode(temp)

	model := &simNode{
		info: NodeInfo{Name: "DeviceModelName", Kind: KindString, Readable: true},
		sval: "Blackfly S BFS-U3-31S4M",
	}
	c.addNode(model)

	serial := &simNode{
		info: NodeInfo{Name: "DeviceSerialNumber", Kind: KindString, Readable: true},
		sval: c.Serial,
	}
	c.addNode(serial)
}

// SetScene replaces the simulated irradiance field. The slice length must be
// width*height.
func (c *SimCamera) SetScene(scene []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(scene) != c.width*c.height {
		panic(fmt.Sprintf("scene length %d does not match %dx%d", len(scene), c.width, c.height))
	}
	c.Scene = scene
}

// Invalidate simulates a disconnect. All further operations fail.
func (c *SimCamera) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

func (c *SimCamera) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return ErrInvalidCamera
	}
	c.inited = true
	return nil
}

func (c *SimCamera) DeInit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inited = false
	c.streaming = false
	c.pipeline = nil
	c.pending = 0
	return nil
}

func (c *SimCamera) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

func (c *SimCamera) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inited
}

func (c *SimCamera) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

func (c *SimCamera) Nodes() []NodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]NodeInfo, 0, len(c.nodeOrder))
	for _, name := range c.nodeOrder {
		out = append(out, c.nodes[name].info)
	}
	return out
}

func (c *SimCamera) node(name string) (*simNode, error) {
	if !c.valid {
		return nil, ErrInvalidCamera
	}
	n, ok := c.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchNode, name)
	}
	return n, nil
}

func (c *SimCamera) setErr(name string) error {
	if err, ok := c.FailSet[name]; ok {
		return err
	}
	return nil
}

func (c *SimCamera) GetInt(name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.node(name)
	if err != nil {
		return 0, err
	}
	return n.ival, nil
}

func (c *SimCamera) SetInt(name string, v int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.node(name)
	if err != nil {
		return err
	}
	if err := c.setErr(name); err != nil {
		return err
	}
	n.ival = v
	return nil
}

func (c *SimCamera) GetFloat(name string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.node(name)
	if err != nil {
		return 0, err
	}
	return n.fval, nil
}

func (c *SimCamera) SetFloat(name string, v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.node(name)
	if err != nil {
		return err
	}
	if err := c.setErr(name); err != nil {
		return err
	}
	n.fval = v
	return nil
}

func (c *SimCamera) GetBool(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.node(name)
	if err != nil {
		return false, err
	}
	return n.bval, nil
}

func (c *SimCamera) SetBool(name string, v bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.node(name)
	if err != nil {
		return err
	}
	if err := c.setErr(name); err != nil {
		return err
	}
	n.bval = v
	return nil
}

func (c *SimCamera) GetEnum(name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.node(name)
	if err != nil {
		return 0, err
	}
	return n.eval, nil
}

func (c *SimCamera) SetEnum(name string, code int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.node(name)
	if err != nil {
		return err
	}
	if err := c.setErr(name); err != nil {
		return err
	}
	for _, e := range n.info.Entries {
		if e.Code == code {
			n.eval = code
			return nil
		}
	}
	return fmt.Errorf("node %q has no enum entry with code %d", name, code)
}

func (c *SimCamera) GetString(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.node(name)
	if err != nil {
		return "", err
	}
	return n.sval, nil
}

func (c *SimCamera) SetString(name string, v string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.node(name)
	if err != nil {
		return err
	}
	if err := c.setErr(name); err != nil {
		return err
	}
	n.sval = v
	return nil
}

func (c *SimCamera) BeginAcquisition() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return ErrInvalidCamera
	}
	if c.streaming {
		return nil
	}
	c.streaming = true
	// Prime the frame pipeline with the current exposure.
	c.pipeline = c.pipeline[:0]
	cur := c.nodes["ExposureTime"].fval
	for i := 0; i < c.PipelineDepth; i++ {
		c.pipeline = append(c.pipeline, cur)
	}
	return nil
}

func (c *SimCamera) EndAcquisition() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = false
	c.pending = 0
	c.pipeline = nil
	return nil
}

func (c *SimCamera) ExecuteSoftwareTrigger() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return ErrInvalidCamera
	}
	c.TriggerCalls++
	c.pending++
	return nil
}

// triggered reports whether frame delivery is gated on a trigger.
func (c *SimCamera) triggered() bool {
	mode := c.nodes["TriggerMode"]
	for _, e := range mode.info.Entries {
		if e.Code == mode.eval {
			return e.Symbol == "On"
		}
	}
	return false
}

func (c *SimCamera) GetNextImage(timeout time.Duration) (Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.GrabCalls++
	if !c.valid {
		return nil, ErrInvalidCamera
	}
	if !c.streaming {
		return nil, ErrNotStreaming
	}
	if c.GrabError != nil {
		err := c.GrabError
		c.GrabError = nil
		return nil, err
	}
	if err, ok := c.GrabErrorAt[c.GrabCalls]; ok {
		return nil, err
	}
	if c.triggered() {
		if c.pending == 0 {
			// No trigger fired; a real camera would block until the
			// timeout elapses.
			return nil, ErrTimeout
		}
		c.pending--
	}

	// The exposure baked into this frame is the one that entered the
	// pipeline PipelineDepth grabs ago.
	exposure := c.nodes["ExposureTime"].fval
	if len(c.pipeline) > 0 {
		exposure = c.pipeline[0]
		c.pipeline = append(c.pipeline[1:], c.nodes["ExposureTime"].fval)
	}

	incomplete := c.IncompleteNext
	c.IncompleteNext = false

	img := &simImage{
		cam:        c,
		width:      c.width,
		height:     c.height,
		bitDepth:   c.BitDepth,
		incomplete: incomplete,
	}
	if !incomplete {
		img.pix = c.renderLocked(exposure)
	}
	c.Outstanding++
	return img, nil
}

// renderLocked produces pixel samples for the given exposure time.
func (c *SimCamera) renderLocked(exposure float64) []uint16 {
	maxVal := float64(uint64(1)<<uint(c.BitDepth) - 1)
	pix := make([]uint16, len(c.Scene))
	scale := exposure / c.FullScaleExposure
	for i, s := range c.Scene {
		v := math.Min(math.Max(s*scale, 0), 1)
		pix[i] = uint16(math.Round(v * maxVal))
	}
	return pix
}

type simImage struct {
	cam        *SimCamera
	width      int
	height     int
	bitDepth   int
	incomplete bool
	pix        []uint16
	released   bool
}

func (img *simImage) IsIncomplete() bool { return img.incomplete }
func (img *simImage) Width() int         { return img.width }
func (img *simImage) Height() int        { return img.height }
func (img *simImage) BitDepth() int      { return img.bitDepth }

func (img *simImage) Pixels() []uint16 {
	if img.released {
		panic("genicam: Pixels called after Release")
	}
	return img.pix
}

func (img *simImage) Release() {
	if img.released {
		panic("genicam: image released twice")
	}
	img.released = true
	img.cam.mu.Lock()
	img.cam.Released++
	img.cam.Outstanding--
	img.cam.mu.Unlock()
}

// SimSystem implements System over a fixed set of simulated cameras.
type SimSystem struct {
	cams []*SimCamera
}

// NewSimSystem builds a system exposing the given cameras in order.
func NewSimSystem(cams ...*SimCamera) *SimSystem {
	return &SimSystem{cams: cams}
}

func (s *SimSystem) NumCameras() int { return len(s.cams) }

func (s *SimSystem) CameraByIndex(i int) (Camera, error) {
	if i < 0 || i >= len(s.cams) {
		return nil, fmt.Errorf("camera index %d out of range (0-%d)", i, len(s.cams)-1)
	}
	return s.cams[i], nil
}

func (s *SimSystem) CameraBySerial(serial string) (Camera, error) {
	for _, c := range s.cams {
		if c.Serial == serial {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no camera with serial %q", serial)
}

func (s *SimSystem) Release() {}
