package sinkreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDedupeByID(t *testing.T) {
	r := New()
	assert.True(t, r.Add(Sink{ID: 1, Serial: 7, Name: "a", Desc: "A"}))
	assert.False(t, r.Add(Sink{ID: 1, Serial: 9, Name: "a2", Desc: "A2"}), "duplicate id must be rejected")
	assert.Equal(t, 1, r.Count())
}

func TestRemoveClearsTargetViaCaller(t *testing.T) {
	r := New()
	r.Add(Sink{ID: 1, Serial: 7, Name: "a", Desc: "A"})
	r.Add(Sink{ID: 2, Serial: 9, Name: "b", Desc: "B"})

	serial, ok := r.Remove(2)
	require.True(t, ok)
	assert.Equal(t, uint32(9), serial)
	assert.Equal(t, 1, r.Count())

	_, ok = r.Remove(999)
	assert.False(t, ok)
}

func TestByIdentityExactMatchOnly(t *testing.T) {
	r := New()
	r.Add(Sink{ID: 1, Serial: 7, Name: "speakers", Desc: "My Speakers"})

	_, ok := r.ByIdentity("speakers", "Wrong Desc")
	assert.False(t, ok, "partial match must not be used")

	s, ok := r.ByIdentity("speakers", "My Speakers")
	require.True(t, ok)
	assert.Equal(t, uint32(7), s.Serial)
}

func TestMaxSinksBounded(t *testing.T) {
	r := New()
	for i := 0; i < MaxSinks; i++ {
		assert.True(t, r.Add(Sink{ID: uint32(i + 1), Serial: uint32(i + 1)}))
	}
	assert.False(t, r.Add(Sink{ID: uint32(MaxSinks + 1)}), "table must reject inserts beyond MaxSinks")
	assert.Equal(t, MaxSinks, r.Count())
}

func TestDescribeOutOfRange(t *testing.T) {
	r := New()
	r.Add(Sink{ID: 1, Serial: 7})

	_, ok := r.Describe(-1)
	assert.False(t, ok)
	_, ok = r.Describe(1)
	assert.False(t, ok)
	_, ok = r.Describe(0)
	assert.True(t, ok)
}
