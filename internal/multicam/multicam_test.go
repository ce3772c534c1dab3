package multicam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spincam/internal/capture"
	"github.com/banshee-data/spincam/internal/genicam"
	"github.com/banshee-data/spincam/internal/testutil"
)

func newTestGroup(t *testing.T, n int) (*Group, []*genicam.SimCamera) {
	t.Helper()
	testutil.MuteDiagnostics(t)

	cams := make([]*genicam.SimCamera, n)
	indexes := make([]int, n)
	for i := range cams {
		cams[i] = genicam.NewSimCamera(serialFor(i), 4, 2)
		indexes[i] = i
	}
	g, results := Open(genicam.NewSimSystem(cams...), indexes...)
	for i, r := range results {
		require.True(t, r.OK, "device %d failed to open", i)
	}
	t.Cleanup(g.Release)
	for i := 0; i < g.Len(); i++ {
		g.At(i).GrabTimeout = 50 * time.Millisecond
	}
	return g, cams
}

func serialFor(i int) string {
	return string(rune('A'+i)) + "0001"
}

func TestOpenReportsPerDevice(t *testing.T) {
	cam := genicam.NewSimCamera("A0001", 4, 2)
	g, results := Open(genicam.NewSimSystem(cam), 0, 7)
	defer g.Release()

	require.Len(t, results, 2)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK, "index 7 does not exist")
	assert.NotEmpty(t, results[1].Detail)
	assert.Equal(t, 2, g.Len(), "failed device still occupies its slot")
}

func TestOpenSerials(t *testing.T) {
	cams := []*genicam.SimCamera{
		genicam.NewSimCamera("A0001", 4, 2),
		genicam.NewSimCamera("B0001", 4, 2),
	}
	g, results := OpenSerials(genicam.NewSimSystem(cams...), "B0001", "MISSING")
	defer g.Release()

	assert.True(t, results[0].OK)
	assert.Equal(t, "B0001", results[0].Device)
	assert.False(t, results[1].OK)
}

func TestBroadcastSetAndGet(t *testing.T) {
	g, _ := newTestGroup(t, 2)

	for _, r := range g.Set(capture.PropExposure, 2000.0) {
		assert.True(t, r.OK, r.Device)
	}
	for _, r := range g.Get(capture.PropExposure) {
		require.True(t, r.OK, r.Device)
		assert.Equal(t, 2000.0, r.Value.Float)
	}

	// Per-device override leaves the others untouched.
	require.True(t, g.At(0).Set(capture.PropExposure, 4000.0))
	got := g.Get(capture.PropExposure)
	assert.Equal(t, 4000.0, got[0].Value.Float)
	assert.Equal(t, 2000.0, got[1].Value.Float)
}

func TestBroadcastReportsClosedDevice(t *testing.T) {
	g, _ := newTestGroup(t, 2)
	g.At(1).Release()

	results := g.Set(capture.PropExposure, 2000.0)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.Equal(t, "not open", results[1].Detail)

	gets := g.Get(capture.PropExposure)
	assert.True(t, gets[0].OK)
	assert.False(t, gets[1].OK)
}

func TestSetNodeChecksCapability(t *testing.T) {
	g, _ := newTestGroup(t, 2)

	results := g.SetNode("NoSuchNode", 1)
	for _, r := range results {
		assert.False(t, r.OK)
		assert.Contains(t, r.Detail, "NoSuchNode")
	}

	results = g.SetNode("Gain", 5.0)
	for _, r := range results {
		assert.True(t, r.OK, r.Device)
	}
}

func TestReadAllFanOut(t *testing.T) {
	g, cams := newTestGroup(t, 3)

	results := g.ReadAll()
	require.Len(t, results, 3)
	for i, r := range results {
		require.True(t, r.OK, r.Device)
		require.NotNil(t, r.Frame)
		assert.Equal(t, 4, r.Frame.Width)
		assert.Equal(t, 1, cams[i].GrabCalls, "each camera grabbed once")
	}
}

func TestReadAllPartialFailure(t *testing.T) {
	g, cams := newTestGroup(t, 2)
	cams[1].GrabError = genicam.ErrTimeout

	results := g.ReadAll()
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.Nil(t, results[1].Frame)
	assert.Equal(t, "read failed", results[1].Detail)
}

func TestGrabRetrieve(t *testing.T) {
	g, _ := newTestGroup(t, 2)

	for _, r := range g.Grab() {
		require.True(t, r.OK, r.Device)
	}
	for _, r := range g.Retrieve() {
		require.True(t, r.OK, r.Device)
		assert.NotNil(t, r.Frame)
	}
}

func TestReleaseAll(t *testing.T) {
	g, cams := newTestGroup(t, 2)
	g.Release()

	for i, cam := range cams {
		assert.False(t, cam.IsInitialized(), "camera %d still initialized", i)
	}
	for _, r := range g.IsOpened() {
		assert.False(t, r.OK)
	}
}
