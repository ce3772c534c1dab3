package bracket

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// defaultRatio is the target ratio between neighboring exposure times when
// the shot count is chosen automatically.
const defaultRatio = 2.0

// AutoCount picks the number of shots so the ratio of neighboring exposure
// times is approximately defaultRatio.
func AutoCount(tMin, tMax float64) int {
	num := 2
	limit := tMin * defaultRatio * defaultRatio
	for tMax > limit {
		num++
		limit *= defaultRatio
	}
	return num
}

// Series builds the geometric exposure ladder from tMin to tMax inclusive:
// num strictly increasing times with a constant neighbor ratio.
func Series(tMin, tMax float64, num int) ([]float64, error) {
	if tMin <= 0 || tMax <= 0 {
		return nil, fmt.Errorf("exposure bounds must be positive, got [%g, %g]", tMin, tMax)
	}
	if tMax < tMin {
		return nil, fmt.Errorf("exposure bounds inverted: %g > %g", tMin, tMax)
	}
	if num < 1 {
		return nil, fmt.Errorf("shot count %d must be at least 1", num)
	}
	if num == 1 || tMin == tMax {
		return []float64{tMin}, nil
	}
	times := make([]float64, num)
	floats.LogSpan(times, tMin, tMax)
	// LogSpan is exact at the ends only up to rounding; pin them so the
	// ladder honors the requested bounds.
	times[0] = tMin
	times[num-1] = tMax
	return times, nil
}
