package separation

import (
	"context"
	"fmt"
	"math"
)

// Params controls how Infer tiles a waveform.
type Params struct {
	// ChunkSize is the model input length. Nil means never chunk: the whole
	// waveform goes to the engine as one frame.
	ChunkSize *int
	// OverlapSize is the number of samples shared by neighbouring frames.
	OverlapSize int
	// CutSize is the margin of zeros added around the waveform before folding
	// and cut off every output frame before unfolding.
	CutSize int
	// BatchSize is the maximum number of frames per engine call.
	BatchSize int
	// Progress, when set, is called after every batch.
	Progress Progress
}

// Validate checks the tiling parameters without touching any audio.
func (p Params) Validate() error {
	if p.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, p.BatchSize)
	}
	if p.ChunkSize == nil {
		return nil
	}
	chunk, overlap, cut := *p.ChunkSize, p.OverlapSize, p.CutSize
	if err := checkWindow(chunk, overlap); err != nil {
		return err
	}
	if cut < 0 {
		return fmt.Errorf("%w: cut_size must not be negative, got %d", ErrInvalidConfig, cut)
	}
	if chunk-2*cut <= 0 || overlap-2*cut <= 0 {
		return fmt.Errorf("%w: cut_size=%d leaves chunk_size=%d overlap_size=%d after trimming",
			ErrInvalidConfig, cut, chunk-2*cut, overlap-2*cut)
	}
	return nil
}

// Infer separates w into harmonic and noise parts of the same length.
//
// Waveforms longer than ChunkSize are padded with CutSize zeros on both sides,
// folded, run through eng batch by batch, trimmed by CutSize per frame and
// crossfaded back together. Shorter ones are sent as a single frame. Either
// both outputs are complete or an error is returned.
func Infer(ctx context.Context, eng Engine, w []float32, p Params) (harmonic, noise []float32, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	for i, v := range w {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, nil, fmt.Errorf("%w: non-finite sample at %d", ErrInvalidWaveform, i)
		}
	}
	if len(w) == 0 {
		return []float32{}, []float32{}, nil
	}

	if p.ChunkSize == nil || len(w) <= *p.ChunkSize {
		frame := Frames{Rows: 1, Cols: len(w), Data: append([]float32(nil), w...)}
		h, n, err := RunBatches(ctx, eng, frame, p.BatchSize, p.Progress)
		if err != nil {
			return nil, nil, err
		}
		return h.Row(0), n.Row(0), nil
	}

	chunk, overlap, cut := *p.ChunkSize, p.OverlapSize, p.CutSize
	padded := make([]float32, len(w)+2*cut)
	copy(padded[cut:], w)
	frames, err := Fold(padded, chunk, overlap)
	if err != nil {
		return nil, nil, err
	}

	hf, nf, err := RunBatches(ctx, eng, frames, p.BatchSize, p.Progress)
	if err != nil {
		return nil, nil, err
	}

	if harmonic, err = Unfold(hf.Trim(cut), overlap-2*cut); err != nil {
		return nil, nil, err
	}
	if noise, err = Unfold(nf.Trim(cut), overlap-2*cut); err != nil {
		return nil, nil, err
	}
	return harmonic[:len(w)], noise[:len(w)], nil
}
