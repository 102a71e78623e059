// Package audio decodes uploaded audio into mono float32 samples and encodes
// results back to WAV.
//
// Samples are float32 in [-1, 1]. Multi-channel input keeps only its first
// channel.
package audio

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// ErrDecode wraps every failure to parse input audio.
var ErrDecode = errors.New("decode audio")

// Clip is mono audio at a known rate.
type Clip struct {
	Samples    []float32
	SampleRate int
	// Channels of the source before the first one was picked.
	Channels int
}

// Duration of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Format names an input container.
type Format string

const (
	FormatWAV    Format = "wav"
	FormatMP3    Format = "mp3"
	FormatVorbis Format = "ogg"
)

// FormatFromContentType maps a MIME type to a Format.
func FormatFromContentType(ct string) (Format, bool) {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", false
	}
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return FormatWAV, true
	case "audio/mpeg", "audio/mp3":
		return FormatMP3, true
	case "audio/ogg", "application/ogg", "audio/vorbis":
		return FormatVorbis, true
	}
	return "", false
}

// FormatFromPath maps a file extension to a Format.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV, true
	case ".mp3":
		return FormatMP3, true
	case ".ogg", ".oga":
		return FormatVorbis, true
	}
	return "", false
}

// ParseFormat accepts a bare format name such as "wav".
func ParseFormat(s string) (Format, bool) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatWAV, FormatMP3, FormatVorbis:
		return f, true
	case "vorbis":
		return FormatVorbis, true
	}
	return "", false
}

// Decode reads a whole file of the given format.
func Decode(r io.Reader, f Format) (Clip, error) {
	switch f {
	case FormatWAV:
		b, err := io.ReadAll(r)
		if err != nil {
			return Clip{}, err
		}
		return DecodeWAV(b)
	case FormatMP3:
		return decodeMP3(r)
	case FormatVorbis:
		return decodeVorbis(r)
	}
	return Clip{}, fmt.Errorf("%w: unsupported format %q", ErrDecode, f)
}

// go-mp3 always yields 16-bit little-endian stereo.
func decodeMP3(r io.Reader) (Clip, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	const frameBytes = 4
	out := make([]float32, len(pcm)/frameBytes)
	for i := range out {
		v := int16(uint16(pcm[i*frameBytes]) | uint16(pcm[i*frameBytes+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return Clip{Samples: out, SampleRate: dec.SampleRate(), Channels: 2}, nil
}

func decodeVorbis(r io.Reader) (Clip, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	channels := max(dec.Channels(), 1)
	buf := make([]float32, 4096*channels)
	var out []float32
	for {
		n, err := dec.Read(buf)
		for i := 0; i+channels <= n; i += channels {
			out = append(out, buf[i])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Clip{}, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	}
	return Clip{Samples: out, SampleRate: dec.SampleRate(), Channels: channels}, nil
}
