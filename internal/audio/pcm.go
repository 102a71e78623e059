package audio

import (
	"errors"
	"math"
)

// DecodePCM16LE converts little-endian PCM16 mono bytes into float32 samples.
func DecodePCM16LE(b []byte, sampleRate int) (Clip, error) {
	if sampleRate <= 0 {
		return Clip{}, errors.New("pcm16: sample rate must be positive")
	}
	if len(b)%2 != 0 {
		return Clip{}, errors.New("pcm16: length must be even")
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return Clip{Samples: out, SampleRate: sampleRate, Channels: 1}, nil
}

// ToInt16 scales a [-1,1] sample to int16, clamping anything outside.
func ToInt16(x float32) int16 {
	v := math.Round(float64(x) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
