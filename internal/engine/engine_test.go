package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurkovic-nikola/OpenLinkHub/internal/eq"
	"github.com/jurkovic-nikola/OpenLinkHub/internal/graph"
)

func newTestEngine(t *testing.T) (*Engine, *fakeCore) {
	t.Helper()
	core := newFakeCore()
	e := New(func() graph.Core { return core })
	require.NoError(t, e.Configure(DefaultConfig()))
	return e, core
}

func sineBuffer(frames, channels uint32, freq, rate, amp float64) *graph.Buffer {
	data := make([]float32, frames*channels)
	for i := uint32(0); i < frames; i++ {
		v := float32(amp * math.Sin(2*math.Pi*freq*float64(i)/rate))
		for c := uint32(0); c < channels; c++ {
			data[i*channels+c] = v
		}
	}
	return &graph.Buffer{Data: data, Stride: channels * 4, Offset: 0, Size: frames, MaxSize: frames}
}

func peakAbs(data []float32) float32 {
	var peak float32
	for _, v := range data {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

func TestUnityGainPassesThroughUnchanged(t *testing.T) {
	e, _ := newTestEngine(t)
	buf := sineBuffer(256, 2, 1000, 48000, 0.3)
	original := append([]float32(nil), buf.Data...)

	e.onCapture(buf)

	for i := range buf.Data {
		assert.InDelta(t, original[i], buf.Data[i], 1e-3, "sample %d", i)
	}
}

func TestMasterGainAttenuates(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetMaster(-20) // -20 dB ~= 0.1x

	buf := sineBuffer(256, 2, 1000, 48000, 0.5)
	e.onCapture(buf)

	assert.Less(t, peakAbs(buf.Data), float32(0.1))
}

func TestMasterGainBoostClipsToLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetMaster(40) // 40 dB ~= 100x, guaranteed to clip

	buf := sineBuffer(256, 2, 1000, 48000, 0.5)
	e.onCapture(buf)

	for _, v := range buf.Data {
		assert.LessOrEqual(t, v, float32(softClipLimit+1e-6))
		assert.GreaterOrEqual(t, v, float32(-softClipLimit-1e-6))
	}
	assert.Greater(t, peakAbs(buf.Data), float32(0.9))
}

func TestBandBoostAmplifiesItsFrequency(t *testing.T) {
	e, _ := newTestEngine(t)
	// band 5 is centered at 1000 Hz (Frequencies[5] == 1000)
	require.NoError(t, e.SetBand(5, 18))

	buf := sineBuffer(1024, 2, 1000, 48000, 0.05)
	e.onCapture(buf)

	assert.Greater(t, peakAbs(buf.Data), float32(0.05))
}

func TestCaptureWritesToRingAndPlaybackReadsBack(t *testing.T) {
	e, _ := newTestEngine(t)

	capBuf := sineBuffer(128, 2, 1000, 48000, 0.2)
	e.onCapture(capBuf)

	out := &graph.Buffer{Data: make([]float32, 128*2), MaxSize: 128}
	e.onPlayback(out)

	assert.EqualValues(t, 128, out.Size)
	assert.Greater(t, peakAbs(out.Data), float32(0))
}

func TestPlaybackUnderrunZeroFillsTail(t *testing.T) {
	e, _ := newTestEngine(t)

	capBuf := sineBuffer(32, 2, 1000, 48000, 0.2)
	e.onCapture(capBuf)

	out := &graph.Buffer{Data: make([]float32, 128*2), MaxSize: 128}
	e.onPlayback(out)

	assert.EqualValues(t, 128, out.Size)
	for i := 32 * 2; i < len(out.Data); i++ {
		assert.Equal(t, float32(0), out.Data[i])
	}
}

func TestTargetSwitchReconnectsToRequestedSink(t *testing.T) {
	e, core := newTestEngine(t)
	e.core = core
	e.state.Store(int32(stateRunning))

	core.addSink(100, "sink-a", "Sink A")
	core.addSink(200, "sink-b", "Sink B")

	e.drainRegistryEvents()
	if e.reconnect.CompareAndSwap(true, false) {
		e.performReconnect(context.Background())
	}
	require.EqualValues(t, 100, e.CurrentSinkSerial())

	e.SetTarget(200)
	require.True(t, e.reconnect.Load())
	e.performReconnect(context.Background())
	assert.EqualValues(t, 200, e.CurrentSinkSerial())
}

func TestSinkVanishFallsBackToCaptureOnly(t *testing.T) {
	e, core := newTestEngine(t)
	e.core = core
	e.state.Store(int32(stateRunning))

	id := core.addSink(300, "sink-only", "Sink Only")
	e.drainRegistryEvents()
	if e.reconnect.CompareAndSwap(true, false) {
		e.performReconnect(context.Background())
	}
	require.EqualValues(t, 300, e.CurrentSinkSerial())

	core.removeSink(id)
	e.drainRegistryEvents()
	require.True(t, e.reconnect.Load())
	e.performReconnect(context.Background())

	assert.EqualValues(t, 0, e.CurrentSinkSerial())
	_, ok := e.CurrentSinkName()
	assert.False(t, ok)
}

func TestConfigureRejectsOutOfRangeRate(t *testing.T) {
	e := New(func() graph.Core { return newFakeCore() })
	cfg := DefaultConfig()
	cfg.Rate = 1000
	err := e.Configure(cfg)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestSetBandRejectsOutOfRangeIndex(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.SetBand(eq.Bands, 0)
	assert.ErrorIs(t, err, ErrBandIndex)
}
