// Package nodemap provides uniform typed access to the heterogeneous node
// set of an opened camera. Node kinds and numeric bounds are discovered once
// at open time from the driver's capability list, never known statically.
// Sets validate the supplied value's kind against the node's kind, clip
// numeric values into the device-reported [min,max], and resolve symbolic
// enumeration names against the live per-device mapping. All validation
// failures are non-fatal: they return false and report through the diag
// channel.
package nodemap

import (
	"github.com/banshee-data/spincam/internal/diag"
	"github.com/banshee-data/spincam/internal/genicam"
)

// Value is the closed tagged variant carried by every node. Exactly the
// field selected by Kind is meaningful; enumeration values carry both the
// native code (Int) and the resolved symbol (Str).
type Value struct {
	Kind  genicam.NodeKind `json:"kind"`
	Int   int64            `json:"int,omitempty"`
	Float float64          `json:"float,omitempty"`
	Bool  bool             `json:"bool,omitempty"`
	Str   string           `json:"str,omitempty"`
}

// IntValue builds an integer Value.
func IntValue(v int64) Value { return Value{Kind: genicam.KindInteger, Int: v} }

// FloatValue builds a float Value.
func FloatValue(v float64) Value { return Value{Kind: genicam.KindFloat, Float: v} }

// BoolValue builds a boolean Value.
func BoolValue(v bool) Value { return Value{Kind: genicam.KindBoolean, Bool: v} }

// StringValue builds a string Value.
func StringValue(v string) Value { return Value{Kind: genicam.KindString, Str: v} }

// EnumValue builds an enumeration Value from a native code and its symbol.
func EnumValue(code int64, symbol string) Value {
	return Value{Kind: genicam.KindEnumeration, Int: code, Str: symbol}
}

// EnumMapping is the symbol↔code table of one enumeration node, built once
// per opened device from its live entry list.
type EnumMapping struct {
	bySymbol map[string]int64
	byCode   map[int64]string
}

func newEnumMapping(entries []genicam.EnumEntry) *EnumMapping {
	m := &EnumMapping{
		bySymbol: make(map[string]int64, len(entries)),
		byCode:   make(map[int64]string, len(entries)),
	}
	for _, e := range entries {
		m.bySymbol[e.Symbol] = e.Code
		m.byCode[e.Code] = e.Symbol
	}
	return m
}

// Resolve maps a symbol to its native code.
func (m *EnumMapping) Resolve(symbol string) (int64, bool) {
	code, ok := m.bySymbol[symbol]
	return code, ok
}

// Symbol maps a native code back to its symbol.
func (m *EnumMapping) Symbol(code int64) (string, bool) {
	s, ok := m.byCode[code]
	return s, ok
}

// Store is the property store of one opened camera. Created at device open,
// discarded at close.
type Store struct {
	cam   genicam.Camera
	nodes map[string]genicam.NodeInfo
	enums map[string]*EnumMapping
}

// NewStore discovers the camera's node set and builds the store.
func NewStore(cam genicam.Camera) *Store {
	s := &Store{
		cam:   cam,
		nodes: make(map[string]genicam.NodeInfo),
		enums: make(map[string]*EnumMapping),
	}
	for _, n := range cam.Nodes() {
		s.nodes[n.Name] = n
		if n.Kind == genicam.KindEnumeration {
			s.enums[n.Name] = newEnumMapping(n.Entries)
		}
	}
	return s
}

// Has reports whether the device exposes the named node.
func (s *Store) Has(name string) bool {
	_, ok := s.nodes[name]
	return ok
}

// Info returns the discovered descriptor for a node.
func (s *Store) Info(name string) (genicam.NodeInfo, bool) {
	n, ok := s.nodes[name]
	return n, ok
}

// Enum returns the live enumeration mapping for a node, or nil for
// non-enumeration nodes.
func (s *Store) Enum(name string) *EnumMapping {
	return s.enums[name]
}

// Set writes a value to the named node. The value's dynamic type must match
// the node's kind: int/int64 for Integer, int or float64 for Float, bool for
// Boolean, string (symbol) or int/int64 (native code) for Enumeration, and
// string for String nodes. Numeric values are clipped into the node's
// [min,max] with a diagnostic when clipping changed the value. Returns false
// with a diagnostic for unknown names, unwritable nodes, kind mismatches,
// and unresolvable enum symbols.
func (s *Store) Set(name string, value interface{}) bool {
	info, ok := s.nodes[name]
	if !ok {
		diag.Reportf(diag.Validation, name, "device has no node %q", name)
		return false
	}
	if !info.Writable {
		diag.Reportf(diag.Validation, name, "node is not writable")
		return false
	}

	var err error
	switch info.Kind {
	case genicam.KindInteger:
		v, ok := asInt(value)
		if !ok {
			diag.Reportf(diag.Validation, name, "value must be an integer, not %T", value)
			return false
		}
		v = clipInt(name, v, info.IntMin, info.IntMax)
		err = s.cam.SetInt(name, v)

	case genicam.KindFloat:
		v, ok := asFloat(value)
		if !ok {
			diag.Reportf(diag.Validation, name, "value must be numeric, not %T", value)
			return false
		}
		v = clipFloat(name, v, info.FloatMin, info.FloatMax)
		err = s.cam.SetFloat(name, v)

	case genicam.KindBoolean:
		v, ok := asBool(value)
		if !ok {
			diag.Reportf(diag.Validation, name, "value must be bool, not %T", value)
			return false
		}
		err = s.cam.SetBool(name, v)

	case genicam.KindEnumeration:
		code, ok := s.resolveEnum(name, value)
		if !ok {
			return false
		}
		err = s.cam.SetEnum(name, code)

	case genicam.KindString:
		v, ok := asString(value)
		if !ok {
			diag.Reportf(diag.Validation, name, "value must be string, not %T", value)
			return false
		}
		err = s.cam.SetString(name, v)
	}

	if err != nil {
		diag.Reportf(diag.Validation, name, "set rejected by device: %v", err)
		return false
	}
	return true
}

// resolveEnum turns a symbol or native code into a validated code.
func (s *Store) resolveEnum(name string, value interface{}) (int64, bool) {
	mapping := s.enums[name]
	switch v := value.(type) {
	case string:
		code, ok := mapping.Resolve(v)
		if !ok {
			diag.Reportf(diag.Validation, name, "enumeration has no entry %q", v)
			return 0, false
		}
		return code, true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case Value:
		if v.Kind != genicam.KindEnumeration {
			diag.Reportf(diag.Validation, name, "value kind %s is not an enumeration", v.Kind)
			return 0, false
		}
		return v.Int, true
	default:
		diag.Reportf(diag.Validation, name, "value must be an enum symbol or code, not %T", value)
		return 0, false
	}
}

// Get reads the named node. Returns false with a diagnostic for unknown
// names, unreadable nodes, and driver read failures.
func (s *Store) Get(name string) (Value, bool) {
	info, ok := s.nodes[name]
	if !ok {
		diag.Reportf(diag.Validation, name, "device has no node %q", name)
		return Value{}, false
	}
	if !info.Readable {
		diag.Reportf(diag.Validation, name, "node is not readable")
		return Value{}, false
	}

	switch info.Kind {
	case genicam.KindInteger:
		v, err := s.cam.GetInt(name)
		if err != nil {
			diag.Reportf(diag.Validation, name, "read failed: %v", err)
			return Value{}, false
		}
		return IntValue(v), true

	case genicam.KindFloat:
		v, err := s.cam.GetFloat(name)
		if err != nil {
			diag.Reportf(diag.Validation, name, "read failed: %v", err)
			return Value{}, false
		}
		return FloatValue(v), true

	case genicam.KindBoolean:
		v, err := s.cam.GetBool(name)
		if err != nil {
			diag.Reportf(diag.Validation, name, "read failed: %v", err)
			return Value{}, false
		}
		return BoolValue(v), true

	case genicam.KindEnumeration:
		code, err := s.cam.GetEnum(name)
		if err != nil {
			diag.Reportf(diag.Validation, name, "read failed: %v", err)
			return Value{}, false
		}
		symbol, _ := s.enums[name].Symbol(code)
		return EnumValue(code, symbol), true

	case genicam.KindString:
		v, err := s.cam.GetString(name)
		if err != nil {
			diag.Reportf(diag.Validation, name, "read failed: %v", err)
			return Value{}, false
		}
		return StringValue(v), true
	}
	return Value{}, false
}

// GetFloat is a convenience accessor for numeric nodes; integers are
// widened.
func (s *Store) GetFloat(name string) (float64, bool) {
	v, ok := s.Get(name)
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case genicam.KindFloat:
		return v.Float, true
	case genicam.KindInteger:
		return float64(v.Int), true
	default:
		diag.Reportf(diag.Validation, name, "node kind %s is not numeric", v.Kind)
		return 0, false
	}
}

func clipInt(name string, v, min, max int64) int64 {
	clipped := v
	if clipped < min {
		clipped = min
	}
	if clipped > max {
		clipped = max
	}
	if clipped != v {
		diag.Reportf(diag.Clipped, name, "value must be in [%d, %d], so %d became %d", min, max, v, clipped)
	}
	return clipped
}

func clipFloat(name string, v, min, max float64) float64 {
	clipped := v
	if clipped < min {
		clipped = min
	}
	if clipped > max {
		clipped = max
	}
	if clipped != v {
		diag.Reportf(diag.Clipped, name, "value must be in [%g, %g], so %g became %g", min, max, v, clipped)
	}
	return clipped
}

func asInt(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case Value:
		if v.Kind == genicam.KindInteger {
			return v.Int, true
		}
	}
	return 0, false
}

func asBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case Value:
		if v.Kind == genicam.KindBoolean {
			return v.Bool, true
		}
	}
	return false, false
}

func asString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case Value:
		if v.Kind == genicam.KindString {
			return v.Str, true
		}
	}
	return "", false
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case Value:
		if v.Kind == genicam.KindFloat {
			return v.Float, true
		}
		if v.Kind == genicam.KindInteger {
			return float64(v.Int), true
		}
	}
	return 0, false
}
