package malgoadapter

// resampler does simple linear-interpolation sample-rate conversion on
// interleaved multi-channel frames. Adapted from the teacher's mono
// Resampler: this engine always runs its EQ path at one fixed configured
// rate (spec.md's Non-goals explicitly exclude sample-rate conversion of
// that path), but a physical output device reached through reconnect can
// still negotiate a different native rate than the engine's configured
// rate, so the adapter — not the engine — resamples interleaved frames on
// the way out.
type resampler struct {
	channels   int
	ratio      float64 // toRate/fromRate
	lastFrame  []float32
}

func newResampler(fromRate, toRate int, channels int) *resampler {
	return &resampler{
		channels:  channels,
		ratio:     float64(toRate) / float64(fromRate),
		lastFrame: make([]float32, channels),
	}
}

// resample converts interleaved input frames to the target rate using
// per-channel linear interpolation between frames.
func (r *resampler) resample(input []float32) []float32 {
	if r.ratio == 1.0 {
		return input
	}

	ch := r.channels
	inFrames := len(input) / ch
	if inFrames == 0 {
		return input
	}

	outFrames := int(float64(inFrames) * r.ratio)
	output := make([]float32, outFrames*ch)

	for i := 0; i < outFrames; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		for c := 0; c < ch; c++ {
			s1 := r.lastFrame[c]
			if srcIdx < inFrames {
				s1 = input[srcIdx*ch+c]
			}
			s2 := s1
			if srcIdx+1 < inFrames {
				s2 = input[(srcIdx+1)*ch+c]
			} else if srcIdx < inFrames {
				s2 = input[(inFrames-1)*ch+c]
			}
			output[i*ch+c] = s1 + (s2-s1)*frac
		}
	}

	for c := 0; c < ch; c++ {
		r.lastFrame[c] = input[(inFrames-1)*ch+c]
	}

	return output
}
