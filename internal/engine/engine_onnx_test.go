//go:build onnxruntime

package engine

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/obiente/hnsep/internal/separation"
)

// Set HNSEP_TEST_MODEL to an exported separation model to run this test.
func TestONNXEngineRun(t *testing.T) {
	path := os.Getenv("HNSEP_TEST_MODEL")
	if path == "" {
		t.Skip("HNSEP_TEST_MODEL not set")
	}
	eng, err := NewEngine(path, Options{LibraryPath: os.Getenv("ONNXRUNTIME_LIB")})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	batch := separation.NewFrames(2, 44100)
	for i := range batch.Data {
		batch.Data[i] = float32(math.Sin(float64(i) * 2 * math.Pi * 220 / 44100))
	}
	h, n, err := eng.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.Rows != 2 || n.Rows != 2 || len(h.Data) != len(batch.Data) || len(n.Data) != len(batch.Data) {
		t.Fatalf("output shapes %v / %v", h, n)
	}
	for i, v := range h.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("harmonic[%d] = %f", i, v)
		}
	}
}
