// Package pipeline runs one separation job: resample a clip to the model
// rate, separate it in chunks and bring both parts back to the clip's rate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/obiente/hnsep/internal/audio"
	"github.com/obiente/hnsep/internal/engine"
	"github.com/obiente/hnsep/internal/separation"
)

// Request describes one job. Zero ChunkSeconds or BatchSize use the defaults.
type Request struct {
	// ID names the job in logs and the Result. Empty gets a fresh UUID.
	ID           string
	Model        string
	Clip         audio.Clip
	ChunkSeconds int
	BatchSize    int
	Progress     separation.Progress
}

// Result holds both separated parts at the input clip's rate and length.
type Result struct {
	ID         string
	SampleRate int
	Harmonic   []float32
	Noise      []float32
	Cost       time.Duration
	// RTF is processing time divided by audio duration.
	RTF float64
}

// Message is the one-line summary shown to users.
func (r Result) Message() string {
	return fmt.Sprintf("Cost: %.2fs, RTF: %.2f", r.Cost.Seconds(), r.RTF)
}

// ErrBusy is returned when MaxConcurrent jobs are already running.
var ErrBusy = errors.New("too many concurrent separations")

// Options configure a Runner. Zero values pick the defaults.
type Options struct {
	ModelRate     int
	ChunkSeconds  int
	BatchSize     int
	MaxConcurrent int
	// Quality picks the resampler; empty is audio.QualityFast.
	Quality audio.Quality
	// Timeout bounds a single Separate call.
	Timeout time.Duration
}

type Runner struct {
	engines engine.Provider
	opts    Options
	slots   chan struct{}
}

func New(engines engine.Provider, opts Options) *Runner {
	if opts.ModelRate <= 0 {
		opts.ModelRate = separation.ModelSampleRate
	}
	if opts.ChunkSeconds <= 0 {
		opts.ChunkSeconds = separation.DefaultChunkSeconds
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = separation.DefaultBatchSize
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Runner{engines: engines, opts: opts, slots: make(chan struct{}, opts.MaxConcurrent)}
}

// ModelRate is the rate audio is resampled to before inference.
func (r *Runner) ModelRate() int { return r.opts.ModelRate }

// Params resolves the tiling parameters for a request without running it.
func (r *Runner) Params(chunkSeconds, batchSize int) (separation.Params, error) {
	if chunkSeconds == 0 {
		chunkSeconds = r.opts.ChunkSeconds
	}
	if batchSize == 0 {
		batchSize = r.opts.BatchSize
	}
	return separation.ParamsForChunkSeconds(chunkSeconds, r.opts.ModelRate, batchSize)
}

// Separate runs req to completion. It fails fast with ErrBusy instead of
// queueing when the concurrency limit is reached.
func (r *Runner) Separate(ctx context.Context, req Request) (Result, error) {
	if req.Clip.SampleRate <= 0 {
		return Result{}, fmt.Errorf("%w: sample rate must be positive", separation.ErrInvalidWaveform)
	}
	p, err := r.Params(req.ChunkSeconds, req.BatchSize)
	if err != nil {
		return Result{}, err
	}
	p.Progress = req.Progress

	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	default:
		return Result{}, ErrBusy
	}
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	eng, err := r.engines.Get(ctx, req.Model)
	if err != nil {
		return Result{}, fmt.Errorf("load model: %w", err)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := log.With().Str("job", id).Str("model", req.Model).Logger()
	logger.Info().
		Int("samples", len(req.Clip.Samples)).
		Int("sample_rate", req.Clip.SampleRate).
		Int("chunk", *p.ChunkSize).
		Int("batch", p.BatchSize).
		Msg("separation started")

	start := time.Now()
	inRate, n := req.Clip.SampleRate, len(req.Clip.Samples)
	modelLen := int(int64(n) * int64(r.opts.ModelRate) / int64(inRate))
	if n > 0 {
		// Clips shorter than one model-rate sample still get one.
		modelLen = max(modelLen, 1)
	}
	w, err := audio.ResampleTo(r.opts.Quality, req.Clip.Samples, inRate, r.opts.ModelRate, modelLen)
	if err != nil {
		return Result{}, err
	}
	harmonic, noise, err := separation.Infer(ctx, eng, w, p)
	if err != nil {
		logger.Error().Err(err).Msg("separation failed")
		return Result{}, err
	}
	res := Result{ID: id, SampleRate: inRate}
	if res.Harmonic, err = audio.ResampleTo(r.opts.Quality, harmonic, r.opts.ModelRate, inRate, n); err != nil {
		return Result{}, err
	}
	if res.Noise, err = audio.ResampleTo(r.opts.Quality, noise, r.opts.ModelRate, inRate, n); err != nil {
		return Result{}, err
	}
	res.Cost = time.Since(start)
	if d := req.Clip.Duration(); d > 0 {
		res.RTF = res.Cost.Seconds() / d.Seconds()
	}
	logger.Info().Dur("cost", res.Cost).Float64("rtf", res.RTF).Msg("separation done")
	return res, nil
}

// WAVs encodes both parts as 16-bit mono WAV files.
func (r Result) WAVs() (harmonic, noise []byte, err error) {
	if harmonic, err = audio.WAVBytes(r.SampleRate, r.Harmonic); err != nil {
		return nil, nil, fmt.Errorf("encode harmonic: %w", err)
	}
	if noise, err = audio.WAVBytes(r.SampleRate, r.Noise); err != nil {
		return nil, nil, fmt.Errorf("encode noise: %w", err)
	}
	return harmonic, noise, nil
}
