package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV decodes a WAV blob and keeps its first channel.
func DecodeWAV(b []byte) (Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(b))
	if !dec.IsValidFile() {
		return Clip{}, fmt.Errorf("%w: invalid wav file", ErrDecode)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return Clip{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if buf == nil || buf.Format == nil {
		return Clip{}, fmt.Errorf("%w: empty wav buffer", ErrDecode)
	}
	// buf.Data is interleaved ints at the source bit depth; normalize to [-1,1]
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int(1) << (bitDepth - 1))
	channels := max(buf.Format.NumChannels, 1)

	out := make([]float32, len(buf.Data)/channels)
	for i := range out {
		out[i] = float32(buf.Data[i*channels]) / scale
	}
	sr := int(dec.SampleRate)
	if sr == 0 {
		sr = buf.Format.SampleRate
	}
	if sr <= 0 {
		return Clip{}, fmt.Errorf("%w: missing sample rate", ErrDecode)
	}
	return Clip{Samples: out, SampleRate: sr, Channels: channels}, nil
}

// EncodeWAV16 writes mono 16-bit PCM WAV.
func EncodeWAV16(w io.WriteSeeker, sampleRate int, samples []float32) error {
	if sampleRate <= 0 {
		return errors.New("wav: sample rate must be positive")
	}
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(ToInt16(v))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav: close: %w", err)
	}
	return nil
}

// WAVBytes is EncodeWAV16 into memory.
func WAVBytes(sampleRate int, samples []float32) ([]byte, error) {
	var sb seekBuffer
	if err := EncodeWAV16(&sb, sampleRate, samples); err != nil {
		return nil, err
	}
	return sb.Bytes(), nil
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.buf) {
		b.buf = append(b.buf, make([]byte, need-len(b.buf))...)
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte { return b.buf }
