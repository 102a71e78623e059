// Package separation runs a fixed-input harmonic/noise model over waveforms of
// any length.
//
// A waveform is folded into overlapping frames of a fixed size, the frames are
// sent to an [Engine] in batches, and the per-frame outputs are crossfaded back
// into one continuous signal:
//
//	harmonic, noise, err := separation.Infer(ctx, eng, waveform, params)
//
// Samples are float32, mono, nominally in [-1, 1]. Nothing in this package
// keeps state between calls.
package separation

import "fmt"

// Frames is a row-major Rows x Cols matrix of samples. Row i is the i-th frame
// in time order; reassembly relies on that order.
type Frames struct {
	Rows int
	Cols int
	Data []float32
}

// NewFrames allocates a zeroed rows x cols matrix.
func NewFrames(rows, cols int) Frames {
	return Frames{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// Row returns frame i. The slice shares the matrix storage.
func (f Frames) Row(i int) []float32 {
	return f.Data[i*f.Cols : (i+1)*f.Cols]
}

// Slice returns rows [start, end) sharing the matrix storage.
func (f Frames) Slice(start, end int) Frames {
	return Frames{Rows: end - start, Cols: f.Cols, Data: f.Data[start*f.Cols : end*f.Cols]}
}

// Trim returns a copy with cut samples removed from both ends of every row.
func (f Frames) Trim(cut int) Frames {
	if cut == 0 {
		return f
	}
	out := NewFrames(f.Rows, f.Cols-2*cut)
	for i := range f.Rows {
		copy(out.Row(i), f.Row(i)[cut:f.Cols-cut])
	}
	return out
}

func (f Frames) String() string {
	return fmt.Sprintf("%dx%d", f.Rows, f.Cols)
}

func (f Frames) sameShape(o Frames) bool {
	return f.Rows == o.Rows && f.Cols == o.Cols && len(o.Data) == o.Rows*o.Cols
}
