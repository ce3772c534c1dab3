// Package genicam defines the boundary to the native camera SDK. The rest of
// the codebase talks to cameras exclusively through these interfaces, which
// mirror the primitives every GenICam-style vendor binding provides:
// enumerate/open/init, per-named-node typed get/set with limits and
// readable/writable flags, acquisition start/stop, timed image grab, and
// software trigger execution.
//
// This abstraction enables unit testing without real camera hardware; see
// SimSystem and SimCamera.
package genicam

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by GetNextImage when no frame arrived within
	// the timeout. Recoverable.
	ErrTimeout = errors.New("image grab timed out")
	// ErrNotStreaming is returned when a grab is attempted outside
	// acquisition.
	ErrNotStreaming = errors.New("camera is not streaming")
	// ErrNoSuchNode is returned for node names absent from the camera's
	// capability list.
	ErrNoSuchNode = errors.New("no such node")
	// ErrInvalidCamera is returned for operations on a disconnected or
	// released camera. Fatal to the session.
	ErrInvalidCamera = errors.New("camera is not valid")
)

// NodeKind is the runtime-discovered type tag of a camera setting.
type NodeKind int

const (
	KindInteger NodeKind = iota
	KindFloat
	KindBoolean
	KindEnumeration
	KindString
)

func (k NodeKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindEnumeration:
		return "enumeration"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// EnumEntry is one symbol of an enumeration node, paired with the
// device-native integer code it maps to.
type EnumEntry struct {
	Symbol string
	Code   int64
}

// NodeInfo describes one named setting as discovered at device open. Bounds
// are only meaningful for the numeric kinds; Entries only for enumerations.
type NodeInfo struct {
	Name     string
	Kind     NodeKind
	Readable bool
	Writable bool

	IntMin   int64
	IntMax   int64
	FloatMin float64
	FloatMax float64

	Entries []EnumEntry
}

// Image is one delivered frame buffer. Exactly one Image may be in flight
// per camera; it must be released exactly once, on every exit path, or the
// driver's buffer pool is exhausted.
type Image interface {
	// IsIncomplete reports whether delivery was truncated. Incomplete
	// images carry no usable pixel data.
	IsIncomplete() bool

	// Width and Height are the frame dimensions in pixels.
	Width() int
	Height() int

	// BitDepth is the significant bits per pixel (8 or 16 for the mono
	// formats handled here).
	BitDepth() int

	// Pixels decodes the buffer into row-major samples. Valid until
	// Release.
	Pixels() []uint16

	// Release returns the buffer to the driver pool.
	Release()
}

// Camera is a single opened device. Calls are not safe for concurrent use;
// the owning layer serialises access.
type Camera interface {
	// Init prepares the device for node access and acquisition. DeInit
	// undoes it.
	Init() error
	DeInit() error

	// IsValid reports whether the device is still present and usable.
	// A false result is fatal to the session.
	IsValid() bool
	IsInitialized() bool
	IsStreaming() bool

	// Nodes lists every setting the device exposes, with kinds and
	// bounds, discovered once at init.
	Nodes() []NodeInfo

	// Typed node primitives. Each returns ErrNoSuchNode for unknown
	// names and a driver error when the node rejects the access.
	GetInt(name string) (int64, error)
	SetInt(name string, v int64) error
	GetFloat(name string) (float64, error)
	SetFloat(name string, v float64) error
	GetBool(name string) (bool, error)
	SetBool(name string, v bool) error
	GetEnum(name string) (int64, error)
	SetEnum(name string, code int64) error
	GetString(name string) (string, error)
	SetString(name string, v string) error

	// BeginAcquisition starts streaming; EndAcquisition stops it and
	// discards any queued frames.
	BeginAcquisition() error
	EndAcquisition() error

	// GetNextImage blocks until a frame is delivered or the timeout
	// elapses (ErrTimeout). timeout <= 0 waits forever.
	GetNextImage(timeout time.Duration) (Image, error)

	// ExecuteSoftwareTrigger fires one software trigger. Only
	// meaningful while TriggerMode is On with TriggerSource Software.
	ExecuteSoftwareTrigger() error
}

// System is the entry point of a vendor binding: device enumeration and
// lookup. Release must be called once the system is no longer needed.
type System interface {
	NumCameras() int
	CameraByIndex(i int) (Camera, error)
	CameraBySerial(serial string) (Camera, error)
	Release()
}
