// Package exposure converts between the exposure-time representations used
// around the capture pipeline. Device nodes speak microseconds; operators
// speak shutter fractions ("1/125") and EV stops; logs and APIs want a
// readable label either way.
package exposure

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CommonShutterSpeeds is a curated ladder of photographic shutter speeds in
// microseconds, one full stop apart, from 1/8000 s to 1 s. These are the
// values offered by the capture API when a client asks for presets.
var CommonShutterSpeeds = []float64{
	125,     // 1/8000
	250,     // 1/4000
	500,     // 1/2000
	1000,    // 1/1000
	2000,    // 1/500
	4000,    // 1/250
	8000,    // 1/125
	16667,   // 1/60
	33333,   // 1/30
	66667,   // 1/15
	125000,  // 1/8
	250000,  // 1/4
	500000,  // 1/2
	1000000, // 1
}

// Microseconds converts a wall-clock duration to the microsecond float the
// device nodes expect.
func Microseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

// Duration converts a device exposure value in microseconds back to a
// time.Duration.
func Duration(us float64) time.Duration {
	return time.Duration(us * float64(time.Microsecond))
}

// FromFraction converts a shutter fraction denominator to microseconds:
// FromFraction(125) is 1/125 s.
func FromFraction(denom float64) (float64, error) {
	if denom <= 0 {
		return 0, fmt.Errorf("shutter denominator must be positive, got %g", denom)
	}
	return 1e6 / denom, nil
}

// Stops returns the EV difference from a to b: positive when b is the
// longer exposure. Both are microseconds.
func Stops(a, b float64) (float64, error) {
	if a <= 0 || b <= 0 {
		return 0, fmt.Errorf("exposure times must be positive, got %g and %g", a, b)
	}
	return math.Log2(b / a), nil
}

// Step scales an exposure time by a number of EV stops. Fractional stops
// are allowed.
func Step(us, stops float64) float64 {
	return us * math.Exp2(stops)
}

// Parse reads an exposure time from operator input. Accepted forms:
//
//	"2500"     bare number, microseconds
//	"2500us"   microseconds
//	"8ms"      milliseconds
//	"0.5s"     seconds
//	"1/125"    shutter fraction
func Parse(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty exposure time")
	}
	if num, denom, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(denom), 64)
		if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
			return 0, fmt.Errorf("invalid shutter fraction %q", s)
		}
		return n / d * 1e6, nil
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "us"):
		s = strings.TrimSuffix(s, "us")
	case strings.HasSuffix(s, "ms"):
		s, mult = strings.TrimSuffix(s, "ms"), 1e3
	case strings.HasSuffix(s, "s"):
		s, mult = strings.TrimSuffix(s, "s"), 1e6
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid exposure time %q", s)
	}
	return v * mult, nil
}

// Label formats an exposure time for logs and UI: sub-millisecond values in
// microseconds, sub-second in milliseconds, otherwise seconds.
func Label(us float64) string {
	switch {
	case us < 1000:
		return fmt.Sprintf("%gus", us)
	case us < 1e6:
		return fmt.Sprintf("%gms", us/1e3)
	default:
		return fmt.Sprintf("%gs", us/1e6)
	}
}

// FractionLabel formats an exposure time as a conventional shutter fraction
// when it sits within 2% of one of CommonShutterSpeeds, falling back to
// Label.
func FractionLabel(us float64) string {
	if us <= 0 || us >= 1e6 {
		return Label(us)
	}
	for _, speed := range CommonShutterSpeeds {
		if math.Abs(us-speed)/speed < 0.02 {
			return fmt.Sprintf("1/%.0f", math.Round(1e6/speed))
		}
	}
	return Label(us)
}
