package capture

import (
	"strings"

	"github.com/banshee-data/spincam/internal/diag"
)

// seriesNames are the camera families with known synchronized-capture
// wiring. Detected from the device model string at runtime.
var seriesNames = []string{"BFS", "BFLY", "CM3", "FL3", "GS3", "ORX", "FFY-DL"}

// cameraSeries extracts the family name from the device model node.
func (d *Device) cameraSeries() string {
	v, ok := d.props.Get("DeviceModelName")
	if !ok {
		return ""
	}
	for _, name := range seriesNames {
		if strings.Contains(v.Str, name) {
			return name
		}
	}
	return ""
}

// ConfigureAsPrimary programs the camera's output line so its exposure
// strobe can hardware-trigger secondary cameras. Which line carries the
// strobe differs per camera family. Returns false when the family is
// unknown or a node write fails.
func (d *Device) ConfigureAsPrimary() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isOpenedLocked() {
		diag.Reportf(diag.Validation, "", "camera is not open")
		return false
	}

	ok := true
	switch series := d.cameraSeries(); series {
	case "CM3", "FL3", "GS3", "FFY-DL", "ORX":
		ok = d.props.Set("LineSelector", "Line2") && ok
		ok = d.props.Set("LineMode", "Output") && ok
	case "BFS":
		ok = d.props.Set("LineSelector", "Line1") && ok
		ok = d.props.Set("LineMode", "Output") && ok
		ok = d.props.Set("LineSelector", "Line2") && ok
		ok = d.props.Set("V3_3Enable", true) && ok
	case "BFLY":
		ok = d.props.Set("V3_3Enable", true) && ok
	default:
		diag.Reportf(diag.Validation, "DeviceModelName", "unknown camera series %q", series)
		return false
	}
	return ok
}

// ConfigureAsSecondary arms the camera to start each exposure on the
// hardware trigger line driven by a primary camera.
func (d *Device) ConfigureAsSecondary() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isOpenedLocked() {
		diag.Reportf(diag.Validation, "", "camera is not open")
		return false
	}

	ok := d.props.Set("TriggerMode", "Off")
	ok = d.props.Set("TriggerSelector", "FrameStart") && ok

	switch series := d.cameraSeries(); series {
	case "BFS", "CM3", "FL3", "FFY-DL", "GS3":
		ok = d.props.Set("TriggerSource", "Line3") && ok
	case "ORX":
		ok = d.props.Set("TriggerSource", "Line5") && ok
	default:
		diag.Reportf(diag.Validation, "DeviceModelName", "unknown camera series %q", series)
		return false
	}

	// Overlap readout with the next exposure, then arm the trigger.
	ok = d.props.Set("TriggerOverlap", "ReadOut") && ok
	ok = d.props.Set("TriggerMode", "On") && ok
	return ok
}
