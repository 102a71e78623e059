// Package engine loads separation models and shares them between requests.
package engine

import (
	"context"
	"io"

	"github.com/obiente/hnsep/internal/separation"
)

// Tensor names the exported models use.
const (
	InputName      = "waveform"
	OutputHarmonic = "harmonic"
	OutputNoise    = "noise"
)

// Engine is a loaded model that can run separation batches.
// Implementations must be safe for concurrent Run calls.
type Engine interface {
	separation.Engine
	io.Closer
}

// Provider hands out engines by model key. *Cache is the production one.
type Provider interface {
	Get(ctx context.Context, key string) (Engine, error)
}

// Options configure native engine construction.
type Options struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default lookup.
	LibraryPath string
}

// Factory builds the engine for a model key.
type Factory func(key string) (Engine, error)

// LocalFactory returns a Factory that resolves keys as model paths relative
// to workDir and loads them with NewEngine.
func LocalFactory(workDir string, opts Options) Factory {
	return func(key string) (Engine, error) {
		path, err := ResolveModel(workDir, key)
		if err != nil {
			return nil, err
		}
		return NewEngine(path, opts)
	}
}
