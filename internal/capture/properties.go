package capture

import "fmt"

// Property is the fixed identifier set exposed to callers, mirroring the
// conventional video-capture property ids. Identifiers map onto one or more
// camera nodes; composite mappings are documented on Set.
type Property int

const (
	PropExposure Property = iota
	PropGain
	PropGamma
	PropBrightness
	PropFrameRate
	PropWidth
	PropHeight
	PropTemperature
	PropTrigger
	PropTriggerDelay
	PropBacklight
	PropAutoWB
)

var propertyNames = map[Property]string{
	PropExposure:     "exposure",
	PropGain:         "gain",
	PropGamma:        "gamma",
	PropBrightness:   "brightness",
	PropFrameRate:    "frame_rate",
	PropWidth:        "width",
	PropHeight:       "height",
	PropTemperature:  "temperature",
	PropTrigger:      "trigger",
	PropTriggerDelay: "trigger_delay",
	PropBacklight:    "backlight",
	PropAutoWB:       "auto_wb",
}

func (p Property) String() string {
	if name, ok := propertyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("property(%d)", int(p))
}

// ParseProperty maps a property name back to its identifier.
func ParseProperty(name string) (Property, error) {
	for p, n := range propertyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unsupported property %q", name)
}

// Properties lists every supported identifier in a stable order.
func Properties() []Property {
	return []Property{
		PropExposure, PropGain, PropGamma, PropBrightness,
		PropFrameRate, PropWidth, PropHeight, PropTemperature,
		PropTrigger, PropTriggerDelay, PropBacklight, PropAutoWB,
	}
}
