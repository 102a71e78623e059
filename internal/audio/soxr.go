package audio

import (
	"fmt"
	"strings"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Quality selects the resampler used for rate conversion.
type Quality string

const (
	// QualityFast is the Catmull-Rom interpolator; exact for integer ratios.
	QualityFast Quality = "fast"
	// QualityHigh is the windowed-sinc resampler from go-audio-resampling.
	QualityHigh Quality = "high"
)

func ParseQuality(s string) (Quality, bool) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case QualityFast, QualityHigh:
		return q, true
	case "":
		return QualityFast, true
	}
	return "", false
}

// ResampleTo converts samples from inRate to outRate and returns exactly n
// samples.
func ResampleTo(q Quality, samples []float32, inRate, outRate, n int) ([]float32, error) {
	if q != QualityHigh || inRate == outRate || len(samples) == 0 {
		return ResampleLength(samples, n), nil
	}
	out, err := resampleSinc(samples, inRate, outRate)
	if err != nil {
		return nil, err
	}
	return FitLength(out, n), nil
}

func resampleSinc(samples []float32, inRate, outRate int) ([]float32, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	out, err := rs.ProcessFloat32(samples)
	if err != nil {
		return nil, fmt.Errorf("resample %d->%d: %w", inRate, outRate, err)
	}
	tail, err := rs.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush %d->%d: %w", inRate, outRate, err)
	}
	for _, v := range tail {
		out = append(out, float32(v))
	}
	// Output lags input by the filter delay; drop it so sample 0 lines up.
	delay := min(rs.GetLatency(), len(out))
	return out[delay:], nil
}

// FitLength truncates or zero-pads samples to n.
func FitLength(samples []float32, n int) []float32 {
	if n <= 0 {
		return []float32{}
	}
	out := make([]float32, n)
	copy(out, samples)
	return out
}
