// Package multicam drives several cameras as one group. Every broadcast
// operation returns one result per device, in group order: a device that
// cannot honor a request reports why instead of being skipped.
package multicam

import (
	"fmt"
	"sync"

	"github.com/banshee-data/spincam/internal/capture"
	"github.com/banshee-data/spincam/internal/frame"
	"github.com/banshee-data/spincam/internal/genicam"
	"github.com/banshee-data/spincam/internal/nodemap"
)

// Result is the per-device outcome of one broadcast operation.
type Result struct {
	Device string `json:"device"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// GetResult carries a per-device property read.
type GetResult struct {
	Result
	Value nodemap.Value `json:"value,omitempty"`
}

// ReadResult carries a per-device captured frame.
type ReadResult struct {
	Result
	Frame *frame.Frame `json:"-"`
}

// Group is an ordered set of open devices. Broadcast operations visit the
// devices sequentially except ReadAll, which runs one worker per device so
// the cameras expose concurrently.
type Group struct {
	mu   sync.Mutex
	devs []*capture.Device
	ids  []string
}

// Open opens one device per index on the given system. A device that fails
// to open still occupies its slot in the group with a false result, so
// positions stay aligned with the requested indexes.
func Open(sys genicam.System, indexes ...int) (*Group, []Result) {
	g := &Group{}
	results := make([]Result, len(indexes))
	for i, idx := range indexes {
		id := fmt.Sprintf("index:%d", idx)
		dev := capture.NewDevice(sys)
		ok := dev.Open(idx)
		g.devs = append(g.devs, dev)
		g.ids = append(g.ids, id)
		results[i] = Result{Device: id, OK: ok}
		if !ok {
			results[i].Detail = "failed to open"
		}
	}
	return g, results
}

// OpenSerials opens one device per serial number.
func OpenSerials(sys genicam.System, serials ...string) (*Group, []Result) {
	g := &Group{}
	results := make([]Result, len(serials))
	for i, serial := range serials {
		dev := capture.NewDevice(sys)
		ok := dev.OpenSerial(serial)
		g.devs = append(g.devs, dev)
		g.ids = append(g.ids, serial)
		results[i] = Result{Device: serial, OK: ok}
		if !ok {
			results[i].Detail = "failed to open"
		}
	}
	return g, results
}

// Len returns the number of devices in the group.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.devs)
}

// At returns the i'th device for per-device control, like adjusting one
// camera's exposure after a broadcast set.
func (g *Group) At(i int) *capture.Device {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.devs) {
		return nil
	}
	return g.devs[i]
}

// IsOpened reports per-device open state.
func (g *Group) IsOpened() []Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	results := make([]Result, len(g.devs))
	for i, dev := range g.devs {
		results[i] = Result{Device: g.ids[i], OK: dev.IsOpened()}
		if !results[i].OK {
			results[i].Detail = "not open"
		}
	}
	return results
}

// Set broadcasts a property write. Devices that are closed or do not carry
// the property report a per-device failure with the reason.
func (g *Group) Set(id capture.Property, value interface{}) []Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	results := make([]Result, len(g.devs))
	for i, dev := range g.devs {
		results[i] = Result{Device: g.ids[i]}
		if !dev.IsOpened() {
			results[i].Detail = "not open"
			continue
		}
		if !dev.Set(id, value) {
			results[i].Detail = fmt.Sprintf("set %s rejected", id)
			continue
		}
		results[i].OK = true
	}
	return results
}

// Get broadcasts a property read.
func (g *Group) Get(id capture.Property) []GetResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	results := make([]GetResult, len(g.devs))
	for i, dev := range g.devs {
		results[i] = GetResult{Result: Result{Device: g.ids[i]}}
		if !dev.IsOpened() {
			results[i].Detail = "not open"
			continue
		}
		v, ok := dev.Get(id)
		if !ok {
			results[i].Detail = fmt.Sprintf("get %s failed", id)
			continue
		}
		results[i].OK = true
		results[i].Value = v
	}
	return results
}

// SetNode broadcasts a raw node write by name.
func (g *Group) SetNode(name string, value interface{}) []Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	results := make([]Result, len(g.devs))
	for i, dev := range g.devs {
		results[i] = Result{Device: g.ids[i]}
		if !dev.IsOpened() {
			results[i].Detail = "not open"
			continue
		}
		props := dev.Props()
		if !props.Has(name) {
			results[i].Detail = fmt.Sprintf("no node %s", name)
			continue
		}
		if !props.Set(name, value) {
			results[i].Detail = fmt.Sprintf("set node %s rejected", name)
			continue
		}
		results[i].OK = true
	}
	return results
}

// Grab broadcasts a grab, sequentially and in group order.
func (g *Group) Grab() []Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	results := make([]Result, len(g.devs))
	for i, dev := range g.devs {
		results[i] = Result{Device: g.ids[i], OK: dev.Grab()}
		if !results[i].OK {
			results[i].Detail = "grab failed"
		}
	}
	return results
}

// Retrieve broadcasts a retrieve of the held buffers.
func (g *Group) Retrieve() []ReadResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	results := make([]ReadResult, len(g.devs))
	for i, dev := range g.devs {
		results[i] = ReadResult{Result: Result{Device: g.ids[i]}}
		f, ok := dev.Retrieve()
		if !ok {
			results[i].Detail = "retrieve failed"
			continue
		}
		results[i].OK = true
		results[i].Frame = f
	}
	return results
}

// ReadAll captures one frame from every device concurrently, one worker
// per device, and joins before returning. Results stay in group order.
func (g *Group) ReadAll() []ReadResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	results := make([]ReadResult, len(g.devs))
	var wg sync.WaitGroup
	for i, dev := range g.devs {
		wg.Add(1)
		go func(i int, dev *capture.Device) {
			defer wg.Done()
			results[i] = ReadResult{Result: Result{Device: g.ids[i]}}
			f, ok := dev.Read()
			if !ok {
				results[i].Detail = "read failed"
				return
			}
			results[i].OK = true
			results[i].Frame = f
		}(i, dev)
	}
	wg.Wait()
	return results
}

// Release releases every device. The group can be discarded afterwards.
func (g *Group) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, dev := range g.devs {
		dev.Release()
	}
}
