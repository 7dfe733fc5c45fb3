package engine

import (
	"math"

	"github.com/jurkovic-nikola/OpenLinkHub/internal/eq"
	"github.com/jurkovic-nikola/OpenLinkHub/internal/graph"
)

// softClipLimit bounds the post-EQ sample magnitude, matching the original
// engine's fixed output clamp.
const softClipLimit = 0.95

// onCapture is the capture stream's Process callback: it applies the
// master gain and the per-channel ten-band chain in place, clamps, writes
// the result into the ring, and pulses the playback stream if one is
// connected. Runs on the capture audio thread only.
func (e *Engine) onCapture(buf *graph.Buffer) {
	if buf == nil || buf.Size == 0 {
		return
	}

	channels := e.cfg.Channels
	frames := buf.Size
	start := buf.Offset * channels

	master := math.Float32frombits(e.masterGainBits.Load()) // linear multiplier, not dB
	table := e.pub.Load()

	for i := uint32(0); i < frames; i++ {
		for ch := uint32(0); ch < channels; ch++ {
			idx := start + i*channels + ch
			x := buf.Data[idx] * master
			bands := &table[ch]
			state := &e.capState[ch]
			for b := 0; b < eq.Bands; b++ {
				x = eq.Process(&bands[b], &state[b], x)
			}
			buf.Data[idx] = softClip(x)
		}
	}

	e.ring.Write(buf.Data[start:start+frames*channels], frames)

	if box := e.pbBox.Load(); box != nil && box.s != nil && box.s.State() == graph.StreamStateStreaming {
		box.s.TriggerProcess()
	}
}

func softClip(x float32) float32 {
	if x > softClipLimit {
		return softClipLimit
	}
	if x < -softClipLimit {
		return -softClipLimit
	}
	return x
}
