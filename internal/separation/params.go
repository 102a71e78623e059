package separation

import "fmt"

// Defaults of the bundled models and of the user-facing controls.
const (
	ModelSampleRate = 44100

	MinChunkSeconds     = 2
	MaxChunkSeconds     = 60
	DefaultChunkSeconds = 10

	MinBatchSize     = 1
	MaxBatchSize     = 64
	DefaultBatchSize = 8

	minOverlapSize = 16384
	minCutSize     = 4096
)

// ParamsForChunkSeconds derives frame sizes from a chunk length in seconds:
// overlap is a quarter of the chunk and the cut margin a sixteenth, each with
// a floor so short chunks still crossfade over a usable region.
func ParamsForChunkSeconds(seconds, sampleRate, batchSize int) (Params, error) {
	if seconds < MinChunkSeconds || seconds > MaxChunkSeconds {
		return Params{}, fmt.Errorf("%w: chunk length must be within [%d, %d] seconds, got %d",
			ErrInvalidConfig, MinChunkSeconds, MaxChunkSeconds, seconds)
	}
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return Params{}, fmt.Errorf("%w: batch size must be within [%d, %d], got %d",
			ErrInvalidConfig, MinBatchSize, MaxBatchSize, batchSize)
	}
	if sampleRate <= 0 {
		return Params{}, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, sampleRate)
	}

	chunk := seconds * sampleRate
	p := Params{
		ChunkSize:   &chunk,
		OverlapSize: max(chunk/4, minOverlapSize),
		CutSize:     max(chunk/16, minCutSize),
		BatchSize:   batchSize,
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
