package audio

// AdjustVolume applies a gain step to a linear frame in place. A positive
// adjustment multiplies each sample by the step, a negative one divides by its
// magnitude, and zero leaves the frame untouched. Products saturate.
func AdjustVolume(f *Frame, adjustment int) {
	if adjustment == 0 || f == nil || f.Format != FormatSLinear {
		return
	}

	var tmp Buffer
	samples := tmp[:]
	if len(f.Data) > FrameBytes {
		samples = make([]int16, len(f.Data)/2)
	}
	n := decodeLE(samples, f.Data)
	AdjustSamples(samples[:n], adjustment)
	encodeLE(f.Data, samples[:n])
}

// AdjustSamples applies the same gain step as AdjustVolume to raw samples.
func AdjustSamples(samples []int16, adjustment int) {
	if adjustment == 0 {
		return
	}
	step := int32(adjustment)
	if step < 0 {
		step = -step
	}
	for i, s := range samples {
		if adjustment > 0 {
			samples[i] = saturateInt16(int32(s) * step)
		} else {
			samples[i] = int16(int32(s) / step)
		}
	}
}
