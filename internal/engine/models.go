package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNoModels is returned by Discover when the work dir holds no .onnx file.
	ErrNoModels = errors.New("no models found")
	// ErrUnknownModel is returned for keys that do not name a model file.
	ErrUnknownModel = errors.New("unknown model")
)

const modelExt = ".onnx"

// Discover lists every .onnx file below workDir as a slash-separated path
// relative to workDir, sorted.
func Discover(workDir string) ([]string, error) {
	var models []string
	err := fs.WalkDir(os.DirFS(workDir), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, modelExt) {
			models = append(models, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", workDir, err)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoModels, workDir)
	}
	sort.Strings(models)
	return models, nil
}

// CanonicalModel returns the single spelling of a model key: slash-separated,
// cleaned, relative and ending in .onnx. "./a.onnx" and "sub/../a.onnx" both
// become "a.onnx". Anything else is ErrUnknownModel.
func CanonicalModel(key string) (string, error) {
	clean := path.Clean(filepath.ToSlash(key))
	if !filepath.IsLocal(filepath.FromSlash(clean)) || !strings.HasSuffix(clean, modelExt) {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, key)
	}
	return clean, nil
}

// ResolveModel maps a model key to a file path inside workDir. Keys that
// escape workDir, are not .onnx files or do not exist are ErrUnknownModel.
func ResolveModel(workDir, key string) (string, error) {
	clean, err := CanonicalModel(key)
	if err != nil {
		return "", err
	}
	p := filepath.Join(workDir, filepath.FromSlash(clean))
	st, err := os.Stat(p)
	if err != nil || st.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, key)
	}
	return p, nil
}
