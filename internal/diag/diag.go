// Package diag is the shared diagnostic channel for non-fatal camera
// failures: validation problems, clipped values, transient capture errors.
// Diagnostics are reported alongside boolean failure returns rather than as
// errors, so callers can filter by category or promote them to hard failures
// in strict mode.
package diag

import (
	"fmt"
	"log"
	"sync"
)

// Category classifies a diagnostic so callers can filter or promote
// selectively.
type Category int

const (
	// Validation covers wrong value kinds, unknown nodes, and
	// unwritable/unreadable node access.
	Validation Category = iota
	// Clipped marks a numeric set whose value was adjusted into the
	// node's reported [min,max].
	Clipped
	// Capture covers transient grab failures: timeouts and incomplete
	// frames.
	Capture
	// Sequence covers exposure-bracketing aborts.
	Sequence
)

func (c Category) String() string {
	switch c {
	case Validation:
		return "validation"
	case Clipped:
		return "clipped"
	case Capture:
		return "capture"
	case Sequence:
		return "sequence"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger. Tests or production code can redirect or
// mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var (
	mu       sync.Mutex
	strict   bool
	handlers []func(Diagnostic)
)

// Diagnostic is one reported non-fatal failure.
type Diagnostic struct {
	Category Category
	Node     string
	Message  string
}

func (d Diagnostic) String() string {
	if d.Node == "" {
		return fmt.Sprintf("[%s] %s", d.Category, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Category, d.Node, d.Message)
}

// SetStrict toggles strict mode. In strict mode every reported diagnostic
// panics, turning silent validation failures into test failures. Intended
// for tests only.
func SetStrict(on bool) {
	mu.Lock()
	defer mu.Unlock()
	strict = on
}

// Subscribe registers a handler invoked for every diagnostic. Handlers run
// synchronously in report order. There is no unsubscribe; subscribers are
// expected to live for the process (tests use Collector with a deferred
// Reset).
func Subscribe(f func(Diagnostic)) {
	mu.Lock()
	defer mu.Unlock()
	handlers = append(handlers, f)
}

// Reset drops all subscribed handlers and leaves strict mode off.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	handlers = nil
	strict = false
}

// Reportf records a diagnostic against a node. node may be empty for
// diagnostics not tied to a single setting.
func Reportf(cat Category, node, format string, v ...interface{}) {
	d := Diagnostic{Category: cat, Node: node, Message: fmt.Sprintf(format, v...)}

	mu.Lock()
	hs := make([]func(Diagnostic), len(handlers))
	copy(hs, handlers)
	isStrict := strict
	mu.Unlock()

	Logf("%s", d)
	for _, h := range hs {
		h(d)
	}
	if isStrict {
		panic("diag: strict mode: " + d.String())
	}
}

// Collector accumulates diagnostics for inspection in tests.
type Collector struct {
	mu   sync.Mutex
	seen []Diagnostic
}

// NewCollector subscribes a fresh collector.
func NewCollector() *Collector {
	c := &Collector{}
	Subscribe(c.add)
	return c
}

func (c *Collector) add(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, d)
}

// All returns a copy of every collected diagnostic.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.seen))
	copy(out, c.seen)
	return out
}

// ByCategory returns collected diagnostics matching cat.
func (c *Collector) ByCategory(cat Category) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Diagnostic
	for _, d := range c.seen {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

// Len reports how many diagnostics were collected.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
