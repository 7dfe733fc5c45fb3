package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUsedFreeInvariant(t *testing.T) {
	r := New(128, 2)
	assert.Equal(t, uint32(127), r.Capacity())
	assert.Equal(t, uint32(0), r.Used())
	assert.Equal(t, uint32(127), r.Free())

	buf := make([]float32, 200*2)
	r.Write(buf, 50)
	assert.Equal(t, uint32(50), r.Used())
	assert.Equal(t, uint32(77), r.Free())
	assert.Equal(t, r.Capacity(), r.Used()+r.Free())
}

func TestOverflowDropsSilentlyAndCounts(t *testing.T) {
	r := New(8, 2) // 7 usable frames
	src := make([]float32, 20*2)
	r.Write(src, 20)
	assert.Equal(t, uint32(7), r.Used())
	assert.Equal(t, uint64(13), r.Dropped())
}

func TestContiguousPrefixNoTearing(t *testing.T) {
	// Write a recognizable ramp and ensure the reader observes an exact,
	// contiguous prefix even across the wrap boundary.
	r := New(16, 1) // 15 usable frames
	var seq float32
	write := func(n int) {
		buf := make([]float32, n)
		for i := range buf {
			buf[i] = seq
			seq++
		}
		r.Write(buf, uint32(n))
	}
	read := func(n int) []float32 {
		dst := make([]float32, n)
		got := r.Read(dst, uint32(n))
		return dst[:got]
	}

	write(10)
	out := read(10)
	require.Len(t, out, 10)
	for i, v := range out {
		assert.Equal(t, float32(i), v)
	}

	// Force a wrap: write 10 more (total produced 20, consumed 10 so far).
	write(10)
	out = read(10)
	require.Len(t, out, 10)
	for i, v := range out {
		assert.Equal(t, float32(10+i), v)
	}
}

func TestShortReadLeavesCallerToZeroFill(t *testing.T) {
	r := New(8, 1)
	src := []float32{1, 2, 3}
	r.Write(src, 3)

	dst := make([]float32, 5)
	got := r.Read(dst, 5)
	assert.Equal(t, uint32(3), got)
	assert.Equal(t, []float32{1, 2, 3, 0, 0}, dst)
}

// TestInvariantProperty exercises arbitrary interleavings of bounded writes
// and reads and checks that the used+free invariant holds and that Used
// tracks frames produced minus frames consumed for every sequence rapid can
// generate. The contents of the frames read are not inspected here.
func TestInvariantProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := uint32(rapid.IntRange(2, 64).Draw(t, "capacity"))
		channels := uint32(rapid.IntRange(1, 2).Draw(t, "channels"))
		r := New(capacity, channels)

		var produced, consumed uint64
		ops := rapid.IntRange(1, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if rapid.Bool().Draw(t, "isWrite") {
				n := uint32(rapid.IntRange(0, 20).Draw(t, "writeFrames"))
				buf := make([]float32, uint64(n)*uint64(channels))
				for j := range buf {
					buf[j] = float32(produced) + float32(j)
				}
				before := r.Free()
				r.Write(buf, n)
				written := n
				if n > before {
					written = before
				}
				produced += uint64(written)
			} else {
				n := uint32(rapid.IntRange(0, 20).Draw(t, "readFrames"))
				dst := make([]float32, uint64(n)*uint64(channels))
				got := r.Read(dst, n)
				consumed += uint64(got)
			}

			assert.Equal(t, r.Capacity(), r.Used()+r.Free(), "used+free invariant broken")
			assert.LessOrEqual(t, r.Used(), r.Capacity())
			assert.Equal(t, produced-consumed, uint64(r.Used()), "used must track produced-consumed")
		}
	})
}
