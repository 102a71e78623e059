package audio

// ResampleLength stretches samples to exactly n samples with Catmull-Rom
// interpolation. Edges repeat the first and last sample.
func ResampleLength(samples []float32, n int) []float32 {
	if n <= 0 || len(samples) == 0 {
		return []float32{}
	}
	if n == len(samples) {
		return append([]float32(nil), samples...)
	}
	at := func(i int) float32 {
		return samples[min(max(i, 0), len(samples)-1)]
	}
	step := float64(len(samples)) / float64(n)
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * step
		i1 := int(pos)
		x := float32(pos - float64(i1))
		out[i] = cubic(at(i1-1), at(i1), at(i1+1), at(i1+2), x)
	}
	return out
}

func cubic(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	return ((a0*x+a1)*x+a2)*x + y1
}
