package separation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig reports frame sizes that cannot tile a waveform.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrEngine wraps any failure returned by the inference engine.
	ErrEngine = errors.New("engine failure")
	// ErrShapeMismatch is an ErrEngine raised when outputs are not shaped like inputs.
	ErrShapeMismatch = fmt.Errorf("%w: output shape mismatch", ErrEngine)
	// ErrInvalidWaveform reports NaN or infinite samples.
	ErrInvalidWaveform = errors.New("invalid waveform")
)

func checkWindow(chunk, overlap int) error {
	if overlap <= 0 || chunk <= overlap {
		return fmt.Errorf("%w: need chunk_size > overlap_size > 0, got chunk_size=%d overlap_size=%d",
			ErrInvalidConfig, chunk, overlap)
	}
	return nil
}
