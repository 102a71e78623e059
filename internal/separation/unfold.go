package separation

import "fmt"

// WeightProfile returns the crossfade weights for one frame: a linear ramp
// from 1/overlap up to 1 over the first overlap samples, 1 in the middle, and
// the mirrored ramp over the last overlap samples.
func WeightProfile(chunk, overlap int) []float32 {
	w := make([]float32, chunk)
	for i := range w {
		v := float32(1)
		if i < overlap {
			v = min(v, float32(i+1)/float32(overlap))
		}
		if j := chunk - 1 - i; j < overlap {
			v = min(v, float32(j+1)/float32(overlap))
		}
		w[i] = v
	}
	return w
}

// Unfold overlap-adds frames laid out as by Fold and normalizes every sample
// by the weight accumulated at its position. The result has the padded
// length; trimming back to the source length is up to the caller.
//
// A single frame is returned as is, without copying.
func Unfold(f Frames, overlap int) ([]float32, error) {
	if f.Rows < 1 {
		return nil, fmt.Errorf("%w: no frames to unfold", ErrInvalidConfig)
	}
	if err := checkWindow(f.Cols, overlap); err != nil {
		return nil, err
	}
	if f.Rows == 1 {
		return f.Row(0), nil
	}

	hop := f.Cols - overlap
	n := PaddedLength(f.Rows, f.Cols, overlap)
	weights := WeightProfile(f.Cols, overlap)
	sum := make([]float32, n)
	norm := make([]float32, n)
	for i := range f.Rows {
		off := i * hop
		row := f.Row(i)
		for j, w := range weights {
			sum[off+j] += row[j] * w
			norm[off+j] += w
		}
	}
	for i := range sum {
		sum[i] /= norm[i]
	}
	return sum, nil
}
