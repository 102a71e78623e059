// Package remote runs separation batches on another hnsep server.
//
// The wire format is msgpack. A request carries one batch of frames, the
// response carries both outputs with the same shape, or an error string.
package remote

import "github.com/obiente/hnsep/internal/separation"

const (
	// RunPath is the endpoint Handler is mounted on.
	RunPath     = "/v1/engines/run"
	contentType = "application/msgpack"
)

// Request is one batch for a model.
type Request struct {
	Rows     int       `msgpack:"rows"`
	Cols     int       `msgpack:"cols"`
	Waveform []float32 `msgpack:"waveform"`
}

// Response holds the separated batch, or Error when the run failed.
type Response struct {
	Rows     int       `msgpack:"rows"`
	Cols     int       `msgpack:"cols"`
	Harmonic []float32 `msgpack:"harmonic,omitempty"`
	Noise    []float32 `msgpack:"noise,omitempty"`
	Error    string    `msgpack:"error,omitempty"`
}

// frames checks the shape against data without computing rows*cols, which a
// hostile header can overflow.
func frames(rows, cols int, data []float32) (separation.Frames, bool) {
	if rows <= 0 || cols <= 0 || len(data)%cols != 0 || len(data)/cols != rows {
		return separation.Frames{}, false
	}
	return separation.Frames{Rows: rows, Cols: cols, Data: data}, true
}
