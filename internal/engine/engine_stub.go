//go:build !onnxruntime

package engine

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by NewEngine in builds without the onnxruntime tag.
var ErrUnavailable = errors.New("engine: built without onnxruntime support (rebuild with -tags onnxruntime)")

// NewEngine always fails in this build. Point HNSEP_REMOTE_ENGINE at a server
// built with the onnxruntime tag instead.
func NewEngine(modelPath string, opts Options) (Engine, error) {
	return nil, fmt.Errorf("load model %s: %w", modelPath, ErrUnavailable)
}
