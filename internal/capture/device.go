// Package capture owns the per-camera acquisition state machine and the
// property surface built on top of the node map. A Device moves through
// Closed → Idle → Streaming → Triggered; EndAcquisition returns it to Idle
// and Release tears it down from any state, releasing any held frame buffer.
package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/spincam/internal/diag"
	"github.com/banshee-data/spincam/internal/frame"
	"github.com/banshee-data/spincam/internal/genicam"
	"github.com/banshee-data/spincam/internal/nodemap"
)

// State is the acquisition state of a device.
type State int

const (
	Closed State = iota
	Idle
	Streaming
	Triggered
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Triggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// DefaultGrabTimeout bounds a single grab. It detects a hung or untriggered
// sensor, not a slow bracket; bracket-level operations have no overall
// timeout.
const DefaultGrabTimeout = 5 * time.Second

// Device is one opened camera. Calls are serialised by an internal mutex,
// but the snapshot→force→capture→restore sequence of a bracket is a larger
// critical section; see bracket.Bracketer.
type Device struct {
	mu    sync.Mutex
	sys   genicam.System
	cam   genicam.Camera
	props *nodemap.Store
	state State

	// img is the single in-flight frame buffer, exclusively owned
	// between a successful Grab and the matching Retrieve or release.
	img genicam.Image

	// GrabTimeout bounds one GetNextImage call.
	GrabTimeout time.Duration

	// AutoSoftwareTrigger makes Grab fire one software trigger before
	// waiting, when TriggerMode is On with TriggerSource Software.
	AutoSoftwareTrigger bool
}

// NewDevice wraps a camera system. The device starts Closed; call Open or
// OpenSerial.
func NewDevice(sys genicam.System) *Device {
	return &Device{
		sys:         sys,
		state:       Closed,
		GrabTimeout: DefaultGrabTimeout,
	}
}

// Open opens the camera at the given enumeration index. Returns false if no
// camera is available there or initialization fails.
func (d *Device) Open(index int) bool {
	cam, err := d.sys.CameraByIndex(index)
	if err != nil {
		diag.Reportf(diag.Validation, "", "open by index %d: %v", index, err)
		return false
	}
	return d.open(cam)
}

// OpenSerial opens the camera with the given serial number.
func (d *Device) OpenSerial(serial string) bool {
	cam, err := d.sys.CameraBySerial(serial)
	if err != nil {
		diag.Reportf(diag.Validation, "", "open by serial %q: %v", serial, err)
		return false
	}
	return d.open(cam)
}

func (d *Device) open(cam genicam.Camera) bool {
	// Close any previously opened camera first.
	d.Release()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !cam.IsValid() {
		diag.Reportf(diag.Validation, "", "camera is not valid")
		return false
	}
	if !cam.IsInitialized() {
		if err := cam.Init(); err != nil {
			diag.Reportf(diag.Validation, "", "camera init failed: %v", err)
			return false
		}
	}
	d.cam = cam
	d.props = nodemap.NewStore(cam)
	d.state = Idle

	// Deliver the most recent frame rather than queue stale ones, the
	// same behaviour a webcam presents.
	d.props.Set("StreamBufferHandlingMode", "NewestOnly")
	return true
}

// IsOpened reports whether an opened, still-valid camera is attached.
func (d *Device) IsOpened() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isOpenedLocked()
}

func (d *Device) isOpenedLocked() bool {
	return d.cam != nil && d.cam.IsValid()
}

// State returns the current acquisition state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Props exposes the device's property store. Nil until opened.
func (d *Device) Props() *nodemap.Store {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.props
}

// triggerArmedLocked reports whether the camera is in software-triggered
// mode, resolved through the live enum mappings.
func (d *Device) triggerArmedLocked() (mode bool, software bool) {
	v, ok := d.props.Get("TriggerMode")
	if !ok || v.Str != "On" {
		return false, false
	}
	src, ok := d.props.Get("TriggerSource")
	return true, ok && src.Str == "Software"
}

// Grab acquires the next frame buffer, lazily starting acquisition on the
// first call. With TriggerMode On, TriggerSource Software, and
// AutoSoftwareTrigger set, it fires one software trigger before waiting;
// otherwise it waits passively for a hardware-triggered or free-running
// frame. A timeout or incomplete delivery is recoverable: Grab returns
// false and the device stays streaming.
func (d *Device) Grab() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isOpenedLocked() {
		return false
	}

	if !d.cam.IsStreaming() {
		if err := d.cam.BeginAcquisition(); err != nil {
			diag.Reportf(diag.Capture, "", "begin acquisition failed: %v", err)
			return false
		}
	}

	triggered, software := d.triggerArmedLocked()
	if triggered {
		d.state = Triggered
	} else {
		d.state = Streaming
	}

	if triggered && software && d.AutoSoftwareTrigger {
		if err := d.cam.ExecuteSoftwareTrigger(); err != nil {
			diag.Reportf(diag.Capture, "", "software trigger failed: %v", err)
			return false
		}
	}

	// One buffer per grab: a buffer still held from an unretrieved grab
	// is returned to the pool before acquiring the next.
	d.releaseImageLocked()

	img, err := d.cam.GetNextImage(d.GrabTimeout)
	if err != nil {
		if errors.Is(err, genicam.ErrTimeout) {
			diag.Reportf(diag.Capture, "", "grab timed out after %v", d.GrabTimeout)
		} else {
			diag.Reportf(diag.Capture, "", "grab failed: %v", err)
		}
		return false
	}
	if img.IsIncomplete() {
		img.Release()
		diag.Reportf(diag.Capture, "", "incomplete image delivered")
		return false
	}
	d.img = img
	return true
}

// Retrieve decodes the most recently grabbed buffer and releases it. Fails
// if nothing was grabbed since the last retrieve.
func (d *Device) Retrieve() (*frame.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.img == nil {
		diag.Reportf(diag.Capture, "", "no grabbed image to retrieve")
		return nil, false
	}

	f := frame.New(d.img.Width(), d.img.Height(), d.img.BitDepth())
	copy(f.Pix, d.img.Pixels())
	d.releaseImageLocked()
	return f, true
}

// Read combines Grab and Retrieve.
func (d *Device) Read() (*frame.Frame, bool) {
	if !d.Grab() {
		return nil, false
	}
	return d.Retrieve()
}

// ReadAverage captures n frames and returns their per-pixel mean as a float
// plane of raw sample values.
func (d *Device) ReadAverage(n int) (*frame.Float, bool) {
	if n < 1 {
		diag.Reportf(diag.Validation, "", "average count %d must be at least 1", n)
		return nil, false
	}
	frames := make([]*frame.Frame, 0, n)
	for i := 0; i < n; i++ {
		f, ok := d.Read()
		if !ok {
			return nil, false
		}
		frames = append(frames, f)
	}
	avg, err := frame.Mean(frames)
	if err != nil {
		diag.Reportf(diag.Capture, "", "averaging failed: %v", err)
		return nil, false
	}
	return avg, true
}

// EndAcquisition stops streaming and returns the device to Idle, releasing
// any held buffer.
func (d *Device) EndAcquisition() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.releaseImageLocked()
	if d.cam != nil && d.cam.IsStreaming() {
		if err := d.cam.EndAcquisition(); err != nil {
			diag.Reportf(diag.Capture, "", "end acquisition failed: %v", err)
		}
	}
	if d.state != Closed {
		d.state = Idle
	}
}

// Release tears the device down from any state: stops streaming, releases
// any held buffer, and deinitializes the camera. Safe to call repeatedly.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.releaseImageLocked()
	if d.cam != nil {
		if d.cam.IsStreaming() {
			if err := d.cam.EndAcquisition(); err != nil {
				diag.Reportf(diag.Capture, "", "end acquisition failed: %v", err)
			}
		}
		if err := d.cam.DeInit(); err != nil {
			diag.Reportf(diag.Capture, "", "deinit failed: %v", err)
		}
	}
	d.cam = nil
	d.props = nil
	d.state = Closed
}

func (d *Device) releaseImageLocked() {
	if d.img != nil {
		d.img.Release()
		d.img = nil
	}
}
