package separation

// FrameCount returns how many frames of chunk samples, advancing by
// chunk-overlap, are needed to cover n samples.
func FrameCount(n, chunk, overlap int) int {
	if n < chunk {
		return 1
	}
	hop := chunk - overlap
	return (n-chunk+hop-1)/hop + 1
}

// PaddedLength is the span covered by frames frames.
func PaddedLength(frames, chunk, overlap int) int {
	return (frames-1)*(chunk-overlap) + chunk
}

// Fold splits w into overlapping frames of chunk samples. The waveform is
// zero-padded on the right so the last frame is full; it is never truncated.
func Fold(w []float32, chunk, overlap int) (Frames, error) {
	if err := checkWindow(chunk, overlap); err != nil {
		return Frames{}, err
	}
	hop := chunk - overlap
	out := NewFrames(FrameCount(len(w), chunk, overlap), chunk)
	for i := range out.Rows {
		start := i * hop
		if start >= len(w) {
			break
		}
		copy(out.Row(i), w[start:min(start+chunk, len(w))])
	}
	return out, nil
}
