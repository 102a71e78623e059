package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/obiente/hnsep/internal/audio"
	"github.com/obiente/hnsep/internal/separation"
)

// Config is read from an optional YAML file named by HNSEP_CONFIG and then
// from the environment, which wins.
type Config struct {
	Addr           string `yaml:"addr"`
	WorkDir        string `yaml:"work_dir"`
	ORTLibraryPath string `yaml:"onnxruntime_lib"`

	// DefaultModel is used when a request names no model. Empty picks the
	// first discovered one.
	DefaultModel string `yaml:"model"`

	// RemoteEngineURL, when set, runs batches on another hnsep server
	// instead of loading models locally.
	RemoteEngineURL string `yaml:"remote_engine"`

	// ResampleQuality is "fast" (cubic) or "high" (windowed sinc).
	ResampleQuality string `yaml:"resample_quality"`

	SampleRate          int   `yaml:"sample_rate"`
	ChunkSeconds        int   `yaml:"chunk_seconds"`
	BatchSize           int   `yaml:"batch_size"`
	MaxConcurrent       int   `yaml:"max_concurrent"`
	MaxUploadBytes      int64 `yaml:"max_upload_bytes"`
	InferenceTimeoutSec int   `yaml:"inference_timeout_sec"`
}

func Default() Config {
	return Config{
		Addr:                ":7861",
		WorkDir:             "./models",
		ResampleQuality:     string(audio.QualityFast),
		SampleRate:          separation.ModelSampleRate,
		ChunkSeconds:        separation.DefaultChunkSeconds,
		BatchSize:           separation.DefaultBatchSize,
		MaxConcurrent:       10,
		MaxUploadBytes:      200 << 20,
		InferenceTimeoutSec: 600,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current value.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("HNSEP_CONFIG")); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Addr = getenv("HNSEP_ADDR", cfg.Addr)
	cfg.WorkDir = getenv("HNSEP_WORK_DIR", cfg.WorkDir)
	cfg.ORTLibraryPath = getenv("ONNXRUNTIME_LIB", cfg.ORTLibraryPath)
	cfg.DefaultModel = getenv("HNSEP_MODEL", cfg.DefaultModel)
	cfg.RemoteEngineURL = getenv("HNSEP_REMOTE_ENGINE", cfg.RemoteEngineURL)
	cfg.ResampleQuality = getenv("HNSEP_RESAMPLE_QUALITY", cfg.ResampleQuality)
	cfg.SampleRate = getenvInt("HNSEP_SAMPLE_RATE", cfg.SampleRate)
	cfg.ChunkSeconds = getenvInt("HNSEP_CHUNK_SECONDS", cfg.ChunkSeconds)
	cfg.BatchSize = getenvInt("HNSEP_BATCH_SIZE", cfg.BatchSize)
	cfg.MaxConcurrent = getenvInt("HNSEP_MAX_CONCURRENT", cfg.MaxConcurrent)
	cfg.MaxUploadBytes = getenvInt64("HNSEP_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.InferenceTimeoutSec = getenvInt("HNSEP_INFERENCE_TIMEOUT", cfg.InferenceTimeoutSec)

	return cfg, cfg.Validate()
}

// Validate reports every out-of-range field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if c.WorkDir == "" && c.RemoteEngineURL == "" {
		errs = append(errs, errors.New("work_dir is empty"))
	}
	if _, ok := audio.ParseQuality(c.ResampleQuality); !ok {
		errs = append(errs, fmt.Errorf("resample_quality must be fast or high, got %q", c.ResampleQuality))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.ChunkSeconds < separation.MinChunkSeconds || c.ChunkSeconds > separation.MaxChunkSeconds {
		errs = append(errs, fmt.Errorf("chunk_seconds must be within [%d, %d], got %d",
			separation.MinChunkSeconds, separation.MaxChunkSeconds, c.ChunkSeconds))
	}
	if c.BatchSize < separation.MinBatchSize || c.BatchSize > separation.MaxBatchSize {
		errs = append(errs, fmt.Errorf("batch_size must be within [%d, %d], got %d",
			separation.MinBatchSize, separation.MaxBatchSize, c.BatchSize))
	}
	if c.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("max_concurrent must be positive, got %d", c.MaxConcurrent))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if c.InferenceTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("inference_timeout_sec must be positive, got %d", c.InferenceTimeoutSec))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", separation.ErrInvalidConfig, err)
	}
	return nil
}

// Quality is ResampleQuality parsed; Validate has already rejected bad values.
func (c Config) Quality() audio.Quality {
	q, _ := audio.ParseQuality(c.ResampleQuality)
	return q
}
