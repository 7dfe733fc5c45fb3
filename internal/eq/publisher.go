package eq

import "sync/atomic"

// Table is a full set of per-channel, per-band coefficients for one
// published filter configuration.
type Table [Channels][Bands]Coeff

// Publisher double-buffers two Tables and exposes the live one through an
// atomic pointer. The control thread always rebuilds into the slot that is
// not currently published, then release-publishes it; the audio thread
// acquire-loads the pointer once per processing block and uses that value
// for the whole block, so it never observes a partially written Table and
// never locks.
type Publisher struct {
	slots   [2]Table
	current atomic.Pointer[Table]
	writeAt int // control-thread-only: index of the slot last written
}

// NewPublisher returns a Publisher with both slots initialized to unity
// gain (0 dB) at the given sample rate, slot 0 published.
func NewPublisher(sampleRate float64) *Publisher {
	p := &Publisher{}
	table := buildUnity(sampleRate)
	p.slots[0] = table
	p.slots[1] = table
	p.current.Store(&p.slots[0])
	p.writeAt = 0
	return p
}

func buildUnity(sampleRate float64) Table {
	var t Table
	for ch := 0; ch < Channels; ch++ {
		for b := 0; b < Bands; b++ {
			t[ch][b] = PeakingCoeff(sampleRate, Frequencies[b], Q, 0)
		}
	}
	return t
}

// Load acquire-loads the currently published table. Safe to call from the
// audio thread with no locking.
func (p *Publisher) Load() *Table {
	return p.current.Load()
}

// Rebuild computes a new table via bandGainDB(band) -> gain in dB for each
// band (applied identically to every channel, per spec), writes it into the
// inactive slot, and release-publishes it. Must only be called from the
// control thread; safe to call concurrently with any number of Load calls.
func (p *Publisher) Rebuild(sampleRate float64, bandGainDB func(band int) float64) {
	wi := p.writeAt ^ 1
	dst := &p.slots[wi]

	for ch := 0; ch < Channels; ch++ {
		for b := 0; b < Bands; b++ {
			dst[ch][b] = PeakingCoeff(sampleRate, Frequencies[b], Q, bandGainDB(b))
		}
	}

	p.current.Store(dst)
	p.writeAt = wi
}
