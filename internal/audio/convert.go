package audio

// Convert returns s re-encoded as target. If s already matches target it is
// returned unchanged.
// Conversion order: bit depth, then resample, then channel convert.
func (s Sample) Convert(target Format) (Sample, error) {
	if err := target.validate(); err != nil {
		return Sample{}, err
	}
	if s.format == target {
		return s, nil
	}
	if err := s.format.validate(); err != nil {
		return Sample{}, err
	}

	ints := rescaleBitDepth(s.Ints(), s.format.BitDepth, target.BitDepth)
	channels := s.format.Channels

	if s.format.FrameRate != target.FrameRate {
		ints = resample(ints, channels, s.format.FrameRate, target.FrameRate)
	}

	if channels != target.Channels {
		ints = remixChannels(ints, channels, target.Channels)
	}

	return FromInts(ints, target)
}

func rescaleBitDepth(ints []int, from, to int) []int {
	if from == to {
		return ints
	}
	out := make([]int, len(ints))
	for i, v := range ints {
		if to > from {
			out[i] = v << (to - from)
		} else {
			out[i] = v >> (from - to)
		}
	}
	return out
}

// resample converts interleaved samples from srcRate to dstRate using linear
// interpolation per channel.
func resample(ints []int, channels, srcRate, dstRate int) []int {
	srcFrames := len(ints) / channels
	if srcFrames == 0 {
		return nil
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]int, dstFrames*channels)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)
		next := srcIdx + 1
		if next >= srcFrames {
			next = srcIdx
		}
		for c := range channels {
			s0 := float64(ints[srcIdx*channels+c])
			s1 := float64(ints[next*channels+c])
			out[i*channels+c] = int(s0*(1-frac) + s1*frac)
		}
	}
	return out
}

// remixChannels averages every frame down to mono and, when more than one
// output channel is requested, duplicates the mono value into each.
func remixChannels(ints []int, from, to int) []int {
	frames := len(ints) / from
	out := make([]int, frames*to)
	for i := range frames {
		sum := 0
		for c := range from {
			sum += ints[i*from+c]
		}
		avg := sum / from
		for c := range to {
			out[i*to+c] = avg
		}
	}
	return out
}
