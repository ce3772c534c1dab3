package diag

import (
	"strings"
	"testing"
)

func TestReportfRoutesToSubscribers(t *testing.T) {
	defer Reset()

	c := NewCollector()
	Reportf(Validation, "ExposureTime", "not writable")
	Reportf(Clipped, "Gain", "value 100 became 47.99")

	if c.Len() != 2 {
		t.Fatalf("collected %d diagnostics, want 2", c.Len())
	}
	if got := c.ByCategory(Clipped); len(got) != 1 || got[0].Node != "Gain" {
		t.Errorf("ByCategory(Clipped) = %v, want one Gain entry", got)
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	defer SetLogger(nil)
	defer Reset()

	var logged []string
	SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, format)
	})
	Reportf(Capture, "", "grab timeout")
	if len(logged) != 1 {
		t.Fatalf("logged %d lines, want 1", len(logged))
	}

	SetLogger(nil)
	Reportf(Capture, "", "grab timeout")
	if len(logged) != 1 {
		t.Errorf("nil logger should be a no-op, got %d lines", len(logged))
	}
}

func TestStrictModePanics(t *testing.T) {
	defer Reset()
	SetLogger(func(string, ...interface{}) {})
	defer SetLogger(nil)
	SetStrict(true)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("strict mode should panic on Reportf")
		}
		if !strings.Contains(r.(string), "Width") {
			t.Errorf("panic message %q should name the node", r)
		}
	}()
	Reportf(Validation, "Width", "value must be int")
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Category: Validation, Node: "Gamma", Message: "not writable"}
	if got := d.String(); got != "[validation] Gamma: not writable" {
		t.Errorf("String() = %q", got)
	}
	d = Diagnostic{Category: Capture, Message: "incomplete frame"}
	if got := d.String(); got != "[capture] incomplete frame" {
		t.Errorf("String() = %q", got)
	}
}
