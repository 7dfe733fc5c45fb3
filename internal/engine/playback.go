package engine

import "github.com/jurkovic-nikola/OpenLinkHub/internal/graph"

// fallbackRequestFrames is used when the runtime reports no explicit
// requested-frame count for a playback cycle.
const fallbackRequestFrames = 128

// onPlayback is the playback stream's Process callback: it determines the
// requested frame count (buf.Size if positive, else fallbackRequestFrames,
// clamped to buf.MaxSize), pulls that many frames from the ring, and
// zero-fills any shortfall on underrun rather than ever blocking. Runs on
// the playback audio thread only.
func (e *Engine) onPlayback(buf *graph.Buffer) {
	if buf == nil {
		return
	}
	if buf.MaxSize == 0 {
		buf.Size = 0
		return
	}

	requested := buf.Size
	if requested == 0 {
		requested = fallbackRequestFrames
	}
	if requested > buf.MaxSize {
		requested = buf.MaxSize
	}

	channels := e.cfg.Channels
	need := requested * channels

	read := e.ring.Read(buf.Data[:need], requested)
	if read < requested {
		for i := read * channels; i < need; i++ {
			buf.Data[i] = 0
		}
	}
	buf.Size = requested
}
