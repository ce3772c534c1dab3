package exposure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"2500", 2500},
		{"2500us", 2500},
		{"8ms", 8000},
		{"0.5s", 500000},
		{"1/125", 8000},
		{"1/8000", 125},
		{" 10ms ", 10000},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		require.NoError(t, err, c.in)
		assert.InDelta(t, c.want, got, 1e-9, c.in)
	}

	for _, bad := range []string{"", "abc", "-5", "0", "1/0", "/125", "5xs"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	assert.Equal(t, 2500.0, Microseconds(2500*time.Microsecond))
	assert.Equal(t, 8*time.Millisecond, Duration(8000))
}

func TestStopsAndStep(t *testing.T) {
	s, err := Stops(1000, 4000)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, s, 1e-12)

	s, err = Stops(4000, 1000)
	require.NoError(t, err)
	assert.InDelta(t, -2.0, s, 1e-12)

	_, err = Stops(0, 100)
	assert.Error(t, err)

	assert.InDelta(t, 2000, Step(1000, 1), 1e-9)
	assert.InDelta(t, 500, Step(1000, -1), 1e-9)
}

func TestFromFraction(t *testing.T) {
	us, err := FromFraction(125)
	require.NoError(t, err)
	assert.InDelta(t, 8000, us, 1e-9)

	_, err = FromFraction(0)
	assert.Error(t, err)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "500us", Label(500))
	assert.Equal(t, "2.5ms", Label(2500))
	assert.Equal(t, "1.5s", Label(1.5e6))

	assert.Equal(t, "1/125", FractionLabel(8000))
	assert.Equal(t, "1/8000", FractionLabel(125))
	// Off-ladder values fall back to the plain label.
	assert.Equal(t, "3.21ms", FractionLabel(3210))
	assert.Equal(t, "2s", FractionLabel(2e6))
}

func TestCommonShutterSpeedsIncreasing(t *testing.T) {
	for i := 1; i < len(CommonShutterSpeeds); i++ {
		assert.Greater(t, CommonShutterSpeeds[i], CommonShutterSpeeds[i-1])
	}
}
