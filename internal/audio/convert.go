package audio

// Convert downmixes to the target channel count and resamples with linear
// interpolation. The whisper engine only accepts 16 kHz mono input.
func Convert(b Buffer, target Format) Buffer {
	src := b.Format()
	target = target.withDefaults()
	if src == target || b.Empty() {
		return Buffer{format: target, samples: b.samples, frames: b.frames}
	}

	mono := b.samples
	if src.Channels != 1 {
		mono = downmix(b.samples, src.Channels)
	}

	resampled := mono
	if src.SampleRate != target.SampleRate {
		resampled = resample(mono, src.SampleRate, target.SampleRate)
	}

	out := resampled
	if target.Channels != 1 {
		out = make([]int16, 0, len(resampled)*target.Channels)
		for _, s := range resampled {
			for c := 0; c < target.Channels; c++ {
				out = append(out, s)
			}
		}
	}

	return Buffer{format: target, samples: out, frames: b.frames}
}

func downmix(samples []int16, channels int) []int16 {
	out := make([]int16, len(samples)/channels)
	for i := range out {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

func resample(samples []int16, from, to int) []int16 {
	if len(samples) == 0 {
		return nil
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n == 0 {
		n = 1
	}

	out := make([]int16, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}
