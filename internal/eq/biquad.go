// Package eq implements the ten-band peaking parametric equalizer: the
// per-band coefficient math (RBJ audio-cookbook peaking filter) and the
// transposed-direct-form-II processing state, plus the double-buffered
// coefficient publisher that lets a control thread retune the filter
// without the audio thread ever locking.
package eq

import "math"

// Bands is the fixed number of EQ bands.
const Bands = 10

// Channels is the fixed channel count this engine supports (stereo only).
const Channels = 2

// Q is the fixed per-band quality factor.
const Q = 0.707

// Frequencies holds the fixed center frequency, in Hz, of each band.
var Frequencies = [Bands]float64{32, 64, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

// Coeff holds one band's normalized transposed-direct-form-II coefficients.
type Coeff struct {
	B0, B1, B2, A1, A2 float32
}

// State holds one band's running filter memory. Touched only by the audio
// thread; reset to zero at engine start.
type State struct {
	Z1, Z2 float32
}

// Reset zeroes the filter memory.
func (s *State) Reset() {
	s.Z1, s.Z2 = 0, 0
}

// Process runs one sample through the biquad in transposed-direct-form-II,
// advancing state in place.
func Process(c *Coeff, s *State, x float32) float32 {
	y := c.B0*x + s.Z1
	s.Z1 = c.B1*x - c.A1*y + s.Z2
	s.Z2 = c.B2*x - c.A2*y
	return y
}

// PeakingCoeff computes the normalized peaking-EQ coefficients for the
// given sample rate, center frequency, Q, and gain in dB, following the RBJ
// audio-cookbook formulas. fs, f0, and Q are clamped to safe defaults
// exactly the way the original engine did, so degenerate inputs (fs<=0,
// f0<=0, f0 above Nyquist, Q<=0) never produce a NaN/Inf coefficient.
func PeakingCoeff(fs, f0, q, gainDB float64) Coeff {
	if fs <= 0 {
		fs = 48000
	}
	if f0 <= 0 {
		f0 = 10
	}
	if f0 > fs*0.49 {
		f0 = fs * 0.49
	}
	if q <= 0 {
		q = Q
	}

	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * f0 / fs
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)

	b0 := 1 + alpha*a
	b1 := -2 * cw
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cw
	a2 := 1 - alpha/a

	return Coeff{
		B0: float32(b0 / a0),
		B1: float32(b1 / a0),
		B2: float32(b2 / a0),
		A1: float32(a1 / a0),
		A2: float32(a2 / a0),
	}
}
