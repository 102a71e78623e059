package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/obiente/hnsep/internal/audio"
	"github.com/obiente/hnsep/internal/separation"
)

var envVars = []string{
	"HNSEP_CONFIG", "HNSEP_ADDR", "HNSEP_MODEL", "HNSEP_WORK_DIR", "ONNXRUNTIME_LIB",
	"HNSEP_REMOTE_ENGINE", "HNSEP_SAMPLE_RATE", "HNSEP_CHUNK_SECONDS",
	"HNSEP_BATCH_SIZE", "HNSEP_MAX_CONCURRENT", "HNSEP_MAX_UPLOAD_BYTES",
	"HNSEP_INFERENCE_TIMEOUT", "HNSEP_RESAMPLE_QUALITY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":7861" {
		t.Errorf("Addr = %q, want :7861", cfg.Addr)
	}
	if cfg.WorkDir != "./models" {
		t.Errorf("WorkDir = %q, want ./models", cfg.WorkDir)
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.SampleRate)
	}
	if cfg.ChunkSeconds != 10 || cfg.BatchSize != 8 {
		t.Errorf("ChunkSeconds/BatchSize = %d/%d, want 10/8", cfg.ChunkSeconds, cfg.BatchSize)
	}
	if cfg.MaxUploadBytes != 200<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.RemoteEngineURL != "" {
		t.Errorf("RemoteEngineURL = %q, want empty", cfg.RemoteEngineURL)
	}
	if cfg.Quality() != audio.QualityFast {
		t.Errorf("Quality() = %q, want fast", cfg.Quality())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "hnsep.yaml")
	data := "addr: \":9000\"\nwork_dir: /srv/models\nchunk_seconds: 20\nbatch_size: 4\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HNSEP_CONFIG", path)
	t.Setenv("HNSEP_BATCH_SIZE", "16")
	t.Setenv("HNSEP_REMOTE_ENGINE", "http://gpu:7861")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9000" || cfg.WorkDir != "/srv/models" || cfg.ChunkSeconds != 20 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.BatchSize != 16 {
		t.Errorf("BatchSize = %d, env should win over file", cfg.BatchSize)
	}
	if cfg.RemoteEngineURL != "http://gpu:7861" {
		t.Errorf("RemoteEngineURL = %q", cfg.RemoteEngineURL)
	}
	if cfg.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, keys absent from the file keep defaults", cfg.MaxConcurrent)
	}
}

func TestLoadInvalidIntIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("HNSEP_CHUNK_SECONDS", "ten")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChunkSeconds != 10 {
		t.Errorf("ChunkSeconds = %d, want default for unparsable value", cfg.ChunkSeconds)
	}
}

func TestLoadOutOfRange(t *testing.T) {
	clearEnv(t)
	t.Setenv("HNSEP_CHUNK_SECONDS", "90")
	t.Setenv("HNSEP_BATCH_SIZE", "0")
	t.Setenv("HNSEP_RESAMPLE_QUALITY", "best")

	_, err := Load()
	if !errors.Is(err, separation.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	for _, field := range []string{"chunk_seconds", "batch_size", "resample_quality"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("HNSEP_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not exist", err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("batch_size: [1, 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HNSEP_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
