package capture

import (
	"github.com/banshee-data/spincam/internal/diag"
	"github.com/banshee-data/spincam/internal/nodemap"
)

// Set writes a property. Returns false with a diagnostic for unsupported
// identifiers, wrong value kinds, and node-level failures.
//
// Composite mappings are explicit parts of the contract:
//   - PropFrameRate sets AcquisitionFrameRateEnable=true before the rate,
//     since the rate node is ignored while the enable flag is off.
//   - PropGamma sets GammaEnable=true before the value.
//   - PropExposure and PropGain with a non-negative value switch the
//     matching auto mode Off before writing; a negative value selects
//     Continuous auto instead and writes nothing.
//   - PropTrigger, PropBacklight, and PropAutoWB take a bool and map to the
//     device's enum symbols.
func (d *Device) Set(id Property, value interface{}) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isOpenedLocked() {
		diag.Reportf(diag.Validation, "", "camera is not open")
		return false
	}

	switch id {
	case PropExposure:
		v, ok := toFloat(value)
		if !ok {
			diag.Reportf(diag.Validation, "ExposureTime", "exposure must be numeric, not %T", value)
			return false
		}
		if v < 0 {
			return d.props.Set("ExposureAuto", "Continuous")
		}
		return d.props.Set("ExposureAuto", "Off") && d.props.Set("ExposureTime", v)

	case PropGain:
		v, ok := toFloat(value)
		if !ok {
			diag.Reportf(diag.Validation, "Gain", "gain must be numeric, not %T", value)
			return false
		}
		if v < 0 {
			return d.props.Set("GainAuto", "Continuous")
		}
		return d.props.Set("GainAuto", "Off") && d.props.Set("Gain", v)

	case PropGamma:
		ok1 := d.props.Set("GammaEnable", true)
		ok2 := d.props.Set("Gamma", value)
		return ok1 && ok2

	case PropBrightness:
		return d.props.Set("AutoExposureEVCompensation", value)

	case PropFrameRate:
		ok1 := d.props.Set("AcquisitionFrameRateEnable", true)
		ok2 := d.props.Set("AcquisitionFrameRate", value)
		return ok1 && ok2

	case PropWidth:
		return d.props.Set("Width", value)

	case PropHeight:
		return d.props.Set("Height", value)

	case PropTrigger:
		on, ok := value.(bool)
		if !ok {
			diag.Reportf(diag.Validation, "TriggerMode", "trigger must be bool, not %T", value)
			return false
		}
		if on {
			return d.props.Set("TriggerMode", "On")
		}
		return d.props.Set("TriggerMode", "Off")

	case PropTriggerDelay:
		return d.props.Set("TriggerDelay", value)

	case PropBacklight:
		on, ok := value.(bool)
		if !ok {
			diag.Reportf(diag.Validation, "DeviceIndicatorMode", "backlight must be bool, not %T", value)
			return false
		}
		if on {
			return d.props.Set("DeviceIndicatorMode", "Active")
		}
		return d.props.Set("DeviceIndicatorMode", "Inactive")

	case PropAutoWB:
		on, ok := value.(bool)
		if !ok {
			diag.Reportf(diag.Validation, "BalanceWhiteAuto", "auto white balance must be bool, not %T", value)
			return false
		}
		if on {
			return d.props.Set("BalanceWhiteAuto", "Continuous")
		}
		return d.props.Set("BalanceWhiteAuto", "Off")

	default:
		diag.Reportf(diag.Validation, "", "property %s is not supported for set", id)
		return false
	}
}

// Get reads a property. PropFrameRate reads the resulting (achieved) rate,
// which is lower than the programmed rate whenever the exposure time
// exceeds the frame period. Trigger, backlight, and auto-white-balance read
// back as booleans.
func (d *Device) Get(id Property) (nodemap.Value, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isOpenedLocked() {
		diag.Reportf(diag.Validation, "", "camera is not open")
		return nodemap.Value{}, false
	}

	switch id {
	case PropExposure:
		return d.props.Get("ExposureTime")
	case PropGain:
		return d.props.Get("Gain")
	case PropGamma:
		return d.props.Get("Gamma")
	case PropBrightness:
		return d.props.Get("AutoExposureEVCompensation")
	case PropFrameRate:
		return d.props.Get("ResultingFrameRate")
	case PropWidth:
		return d.props.Get("Width")
	case PropHeight:
		return d.props.Get("Height")
	case PropTemperature:
		return d.props.Get("DeviceTemperature")
	case PropTrigger:
		return d.enumAsBool("TriggerMode", "On")
	case PropTriggerDelay:
		return d.props.Get("TriggerDelay")
	case PropBacklight:
		return d.enumAsBool("DeviceIndicatorMode", "Active")
	case PropAutoWB:
		return d.enumAsBool("BalanceWhiteAuto", "Continuous")
	default:
		diag.Reportf(diag.Validation, "", "property %s is not supported for get", id)
		return nodemap.Value{}, false
	}
}

// enumAsBool reads an enumeration node and reports whether it is set to the
// given symbol.
func (d *Device) enumAsBool(node, onSymbol string) (nodemap.Value, bool) {
	v, ok := d.props.Get(node)
	if !ok {
		return nodemap.Value{}, false
	}
	return nodemap.BoolValue(v.Str == onSymbol), true
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
