// Package ring implements a fixed-capacity single-producer/single-consumer
// interleaved float32 ring buffer for bridging a capture callback and a
// playback callback running on independent audio-thread invocations.
package ring

import "sync/atomic"

// Ring is a lock-free SPSC ring of interleaved audio frames. The writer
// (capture thread) touches only wpos (release store) and reads rpos
// (acquire load); the reader (playback thread) touches only rpos (release
// store) and reads wpos (acquire load). One frame slot is always left
// unused to disambiguate full from empty without a separate count field.
type Ring struct {
	data     []float32 // capacity * channels, interleaved
	capacity uint32    // frame capacity; usable = capacity-1
	channels uint32

	wpos atomic.Uint32 // writer-owned
	rpos atomic.Uint32 // reader-owned

	dropped atomic.Uint64 // frames dropped on overflow, written only by the writer
}

// New allocates a ring able to hold capacity-1 usable frames of the given
// channel count. capacity must be at least 2.
func New(capacity, channels uint32) *Ring {
	if capacity < 2 {
		capacity = 2
	}
	return &Ring{
		data:     make([]float32, uint64(capacity)*uint64(channels)),
		capacity: capacity,
		channels: channels,
	}
}

// Capacity returns the usable frame capacity (capacity-1).
func (r *Ring) Capacity() uint32 {
	return r.capacity - 1
}

// Channels returns the configured interleaved channel count.
func (r *Ring) Channels() uint32 {
	return r.channels
}

// Used returns the number of frames currently readable. Safe to call from
// either thread; the result is only a snapshot.
func (r *Ring) Used() uint32 {
	return r.used(r.rpos.Load(), r.wpos.Load())
}

func (r *Ring) used(rp, wp uint32) uint32 {
	if wp >= rp {
		return wp - rp
	}
	return (r.capacity - rp) + wp
}

// Free returns the number of frames currently writable.
func (r *Ring) Free() uint32 {
	return (r.capacity - 1) - r.used(r.rpos.Load(), r.wpos.Load())
}

// Dropped returns the cumulative number of frames silently dropped because
// the ring was full at write time.
func (r *Ring) Dropped() uint64 {
	return r.dropped.Load()
}

// Write copies up to len(src)/channels frames into the ring. If the ring
// has insufficient free space the tail of src is dropped silently and the
// drop counter is advanced; Write never blocks and never allocates.
// Write must only ever be called from the single producer.
func (r *Ring) Write(src []float32, frames uint32) {
	ch := r.channels
	free := r.Free()
	if free == 0 {
		if frames > 0 {
			r.dropped.Add(uint64(frames))
		}
		return
	}
	if frames > free {
		r.dropped.Add(uint64(frames - free))
		frames = free
	}
	if frames == 0 {
		return
	}

	w := r.wpos.Load()
	first := r.capacity - w
	if frames <= first {
		copy(r.data[uint64(w)*uint64(ch):], src[:uint64(frames)*uint64(ch)])
	} else {
		copy(r.data[uint64(w)*uint64(ch):], src[:uint64(first)*uint64(ch)])
		copy(r.data[0:], src[uint64(first)*uint64(ch):uint64(frames)*uint64(ch)])
	}

	w = (w + frames) % r.capacity
	r.wpos.Store(w)
}

// Read copies up to frames frames out of the ring into dst, which must be
// sized for frames*channels float32s. It returns the number of frames
// actually read; on a short read the caller is responsible for zero-filling
// the remainder. Read must only ever be called from the single consumer.
func (r *Ring) Read(dst []float32, frames uint32) uint32 {
	ch := r.channels
	used := r.used(r.rpos.Load(), r.wpos.Load())
	take := frames
	if take > used {
		take = used
	}
	if take == 0 {
		return 0
	}

	rd := r.rpos.Load()
	first := r.capacity - rd
	if take <= first {
		copy(dst[:uint64(take)*uint64(ch)], r.data[uint64(rd)*uint64(ch):])
	} else {
		copy(dst[:uint64(first)*uint64(ch)], r.data[uint64(rd)*uint64(ch):])
		copy(dst[uint64(first)*uint64(ch):uint64(take)*uint64(ch)], r.data[0:])
	}

	rd = (rd + take) % r.capacity
	r.rpos.Store(rd)
	return take
}
