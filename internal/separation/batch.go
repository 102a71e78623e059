package separation

import (
	"context"
	"fmt"
)

// Engine runs the separation model on a batch of frames. Input rows are
// independent; harmonic and noise must come back shaped exactly like batch.
type Engine interface {
	Run(ctx context.Context, batch Frames) (harmonic, noise Frames, err error)
}

// Progress is called after each finished batch.
type Progress func(done, total int)

// RunBatches feeds frames to eng in consecutive groups of at most batchSize
// rows and stitches the outputs back in row order. The batch size affects
// throughput only, never the numbers.
func RunBatches(ctx context.Context, eng Engine, frames Frames, batchSize int, progress Progress) (harmonic, noise Frames, err error) {
	if batchSize <= 0 {
		return Frames{}, Frames{}, fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, batchSize)
	}

	harmonic = NewFrames(frames.Rows, frames.Cols)
	noise = NewFrames(frames.Rows, frames.Cols)
	total := (frames.Rows + batchSize - 1) / batchSize
	for b := range total {
		if err := ctx.Err(); err != nil {
			return Frames{}, Frames{}, err
		}
		start := b * batchSize
		end := min(start+batchSize, frames.Rows)
		in := frames.Slice(start, end)

		h, n, err := eng.Run(ctx, in)
		if err != nil {
			return Frames{}, Frames{}, fmt.Errorf("%w: batch %d/%d: %w", ErrEngine, b+1, total, err)
		}
		if !in.sameShape(h) {
			return Frames{}, Frames{}, fmt.Errorf("%w: harmonic is %v, want %v", ErrShapeMismatch, h, in)
		}
		if !in.sameShape(n) {
			return Frames{}, Frames{}, fmt.Errorf("%w: noise is %v, want %v", ErrShapeMismatch, n, in)
		}
		copy(harmonic.Slice(start, end).Data, h.Data)
		copy(noise.Slice(start, end).Data, n.Data)

		if progress != nil {
			progress(b+1, total)
		}
	}
	return harmonic, noise, nil
}
