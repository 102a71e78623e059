//go:build onnxruntime

package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/obiente/hnsep/internal/separation"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// initRuntime loads the shared library once per process.
func initRuntime(libPath string) error {
	runtimeOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		runtimeErr = ort.InitializeEnvironment()
		if runtimeErr == nil {
			log.Info().Str("library", libPath).Msg("onnxruntime: environment initialized")
		}
	})
	return runtimeErr
}

// ONNXEngine runs a separation model through ONNX Runtime.
type ONNXEngine struct {
	path    string
	session *ort.DynamicAdvancedSession
}

// NewEngine loads the .onnx file at modelPath.
func NewEngine(modelPath string, opts Options) (Engine, error) {
	if err := initRuntime(opts.LibraryPath); err != nil {
		return nil, fmt.Errorf("init onnxruntime: %w", err)
	}
	s, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{InputName}, []string{OutputHarmonic, OutputNoise}, nil)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelPath, err)
	}
	log.Info().Str("model", modelPath).Msg("onnxruntime: model loaded")
	return &ONNXEngine{path: modelPath, session: s}, nil
}

// Run implements separation.Engine. Output tensors are preallocated with the
// input shape, so a model producing anything else fails inside Run.
func (e *ONNXEngine) Run(ctx context.Context, batch separation.Frames) (harmonic, noise separation.Frames, err error) {
	if err := ctx.Err(); err != nil {
		return harmonic, noise, err
	}
	shape := ort.NewShape(int64(batch.Rows), int64(batch.Cols))

	in, err := ort.NewTensor(shape, batch.Data)
	if err != nil {
		return harmonic, noise, fmt.Errorf("input tensor: %w", err)
	}
	defer in.Destroy()
	hOut, err := ort.NewEmptyTensor[float32](shape)
	if err != nil {
		return harmonic, noise, fmt.Errorf("harmonic tensor: %w", err)
	}
	defer hOut.Destroy()
	nOut, err := ort.NewEmptyTensor[float32](shape)
	if err != nil {
		return harmonic, noise, fmt.Errorf("noise tensor: %w", err)
	}
	defer nOut.Destroy()

	if err := e.session.Run([]ort.Value{in}, []ort.Value{hOut, nOut}); err != nil {
		return harmonic, noise, fmt.Errorf("run %s: %w", e.path, err)
	}

	harmonic = separation.Frames{Rows: batch.Rows, Cols: batch.Cols, Data: append([]float32(nil), hOut.GetData()...)}
	noise = separation.Frames{Rows: batch.Rows, Cols: batch.Cols, Data: append([]float32(nil), nOut.GetData()...)}
	return harmonic, noise, nil
}

func (e *ONNXEngine) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
