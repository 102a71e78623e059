package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/obiente/hnsep/internal/audio"
	"github.com/obiente/hnsep/internal/engine"
	"github.com/obiente/hnsep/internal/separation"
)

// halfEngine splits every sample evenly between harmonic and noise.
type halfEngine struct{ calls atomic.Int32 }

func (e *halfEngine) Run(_ context.Context, b separation.Frames) (separation.Frames, separation.Frames, error) {
	e.calls.Add(1)
	h := separation.NewFrames(b.Rows, b.Cols)
	n := separation.NewFrames(b.Rows, b.Cols)
	for i, v := range b.Data {
		h.Data[i] = v / 2
		n.Data[i] = v / 2
	}
	return h, n, nil
}

func (e *halfEngine) Close() error { return nil }

type provider struct{ eng engine.Engine }

func (p provider) Get(_ context.Context, key string) (engine.Engine, error) {
	if key != "hnsep.onnx" {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownModel, key)
	}
	return p.eng, nil
}

func tone(n, rate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.4 * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
	}
	return out
}

func TestSeparateKeepsRateAndLength(t *testing.T) {
	t.Parallel()
	eng := &halfEngine{}
	r := New(provider{eng}, Options{})

	clip := audio.Clip{Samples: tone(3*22050, 22050), SampleRate: 22050, Channels: 1}
	var batches []int
	res, err := r.Separate(context.Background(), Request{
		Model:        "hnsep.onnx",
		Clip:         clip,
		ChunkSeconds: 2,
		BatchSize:    1,
		Progress:     func(done, total int) { batches = append(batches, done) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ID == "" {
		t.Error("missing job id")
	}
	if res.SampleRate != 22050 {
		t.Errorf("sample rate = %d", res.SampleRate)
	}
	if len(res.Harmonic) != len(clip.Samples) || len(res.Noise) != len(clip.Samples) {
		t.Fatalf("lengths %d/%d, want %d", len(res.Harmonic), len(res.Noise), len(clip.Samples))
	}
	// 3 s at 44.1 kHz with 2 s chunks needs two frames.
	if got := eng.calls.Load(); got != 2 {
		t.Errorf("engine calls = %d, want 2", got)
	}
	if len(batches) != 2 || batches[1] != 2 {
		t.Errorf("progress = %v", batches)
	}
	for i := 10; i < len(clip.Samples)-10; i++ {
		if d := math.Abs(float64(res.Harmonic[i] + res.Noise[i] - clip.Samples[i])); d > 2e-3 {
			t.Fatalf("sample %d: %f + %f != %f", i, res.Harmonic[i], res.Noise[i], clip.Samples[i])
		}
	}
}

func TestSeparateErrors(t *testing.T) {
	t.Parallel()
	r := New(provider{&halfEngine{}}, Options{})
	clip := audio.Clip{Samples: tone(1000, 44100), SampleRate: 44100, Channels: 1}

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown model", Request{Model: "nope.onnx", Clip: clip}, engine.ErrUnknownModel},
		{"chunk too short", Request{Model: "hnsep.onnx", Clip: clip, ChunkSeconds: 1}, separation.ErrInvalidConfig},
		{"batch too large", Request{Model: "hnsep.onnx", Clip: clip, BatchSize: 65}, separation.ErrInvalidConfig},
		{"no rate", Request{Model: "hnsep.onnx", Clip: audio.Clip{Samples: clip.Samples}}, separation.ErrInvalidWaveform},
		{"nan", Request{Model: "hnsep.onnx", Clip: audio.Clip{Samples: []float32{0, float32(math.NaN())}, SampleRate: 44100}}, separation.ErrInvalidWaveform},
	}
	for _, tt := range tests {
		if _, err := r.Separate(context.Background(), tt.req); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestResultMessage(t *testing.T) {
	t.Parallel()
	res := Result{Cost: 1500 * time.Millisecond, RTF: 0.123}
	if got, want := res.Message(), "Cost: 1.50s, RTF: 0.12"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestParamsDefaults(t *testing.T) {
	t.Parallel()
	p, err := New(provider{}, Options{ChunkSeconds: 4, BatchSize: 16}).Params(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if *p.ChunkSize != 4*44100 || p.BatchSize != 16 {
		t.Errorf("chunk %d batch %d", *p.ChunkSize, p.BatchSize)
	}
}

// gateEngine blocks in Run until release is closed.
type gateEngine struct {
	entered chan struct{}
	release chan struct{}
}

func (e *gateEngine) Run(ctx context.Context, b separation.Frames) (separation.Frames, separation.Frames, error) {
	e.entered <- struct{}{}
	select {
	case <-e.release:
	case <-ctx.Done():
		return separation.Frames{}, separation.Frames{}, ctx.Err()
	}
	return separation.NewFrames(b.Rows, b.Cols), separation.NewFrames(b.Rows, b.Cols), nil
}

func (e *gateEngine) Close() error { return nil }

func TestSeparateBusy(t *testing.T) {
	t.Parallel()
	eng := &gateEngine{entered: make(chan struct{}, 1), release: make(chan struct{})}
	r := New(provider{eng}, Options{MaxConcurrent: 1})
	req := Request{Model: "hnsep.onnx", Clip: audio.Clip{Samples: tone(100, 44100), SampleRate: 44100}}

	done := make(chan error, 1)
	go func() {
		_, err := r.Separate(context.Background(), req)
		done <- err
	}()
	<-eng.entered

	if _, err := r.Separate(context.Background(), req); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	close(eng.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	// The slot is free again.
	eng.release = make(chan struct{})
	close(eng.release)
	go func() { <-eng.entered }()
	if _, err := r.Separate(context.Background(), req); err != nil {
		t.Fatal(err)
	}
}

func TestSeparateTimeout(t *testing.T) {
	t.Parallel()
	eng := &gateEngine{entered: make(chan struct{}, 1), release: make(chan struct{})}
	r := New(provider{eng}, Options{Timeout: 20 * time.Millisecond})
	req := Request{ID: "job-1", Model: "hnsep.onnx", Clip: audio.Clip{Samples: tone(100, 44100), SampleRate: 44100}}
	if _, err := r.Separate(context.Background(), req); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestResultWAVs(t *testing.T) {
	t.Parallel()
	res := Result{SampleRate: 16000, Harmonic: tone(160, 16000), Noise: make([]float32, 160)}
	h, n, err := res.WAVs()
	if err != nil {
		t.Fatal(err)
	}
	clip, err := audio.DecodeWAV(h)
	if err != nil {
		t.Fatal(err)
	}
	if clip.SampleRate != 16000 || len(clip.Samples) != 160 {
		t.Errorf("harmonic wav: rate %d len %d", clip.SampleRate, len(clip.Samples))
	}
	if len(n) == 0 {
		t.Error("empty noise wav")
	}
}

func TestSeparateHighQualityResampler(t *testing.T) {
	t.Parallel()
	r := New(provider{&halfEngine{}}, Options{Quality: audio.QualityHigh})
	clip := audio.Clip{Samples: tone(16000, 16000), SampleRate: 16000, Channels: 1}
	res, err := r.Separate(context.Background(), Request{Model: "hnsep.onnx", Clip: clip})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Harmonic) != 16000 || len(res.Noise) != 16000 || res.SampleRate != 16000 {
		t.Fatalf("rate %d lengths %d/%d", res.SampleRate, len(res.Harmonic), len(res.Noise))
	}
}

func TestSeparateHighQualityRoundTripAligned(t *testing.T) {
	t.Parallel()
	r := New(provider{&halfEngine{}}, Options{Quality: audio.QualityHigh})
	in := tone(48000, 48000)
	clip := audio.Clip{Samples: in, SampleRate: 48000, Channels: 1}
	res, err := r.Separate(context.Background(), Request{Model: "hnsep.onnx", Clip: clip})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Harmonic) != len(in) {
		t.Fatalf("len = %d, want %d", len(res.Harmonic), len(in))
	}
	for i := 4800; i < len(in)-4800; i++ {
		if d := math.Abs(float64(res.Harmonic[i] - in[i]/2)); d > 0.03 {
			t.Fatalf("sample %d: harmonic %f, want %f", i, res.Harmonic[i], in[i]/2)
		}
	}
	var rms float64
	tail := res.Harmonic[len(in)-2400 : len(in)-480]
	for _, v := range tail {
		rms += float64(v) * float64(v)
	}
	// in/2 is a 0.2 amplitude sine with an RMS of about 0.141.
	if rms = math.Sqrt(rms / float64(len(tail))); rms < 0.1 {
		t.Errorf("tail rms = %f, want the signal to reach the end", rms)
	}
}

func TestSeparateSubSampleClip(t *testing.T) {
	t.Parallel()
	r := New(provider{&halfEngine{}}, Options{})
	clip := audio.Clip{Samples: []float32{0.5}, SampleRate: 96000, Channels: 1}
	res, err := r.Separate(context.Background(), Request{Model: "hnsep.onnx", Clip: clip})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Harmonic) != 1 || len(res.Noise) != 1 {
		t.Fatalf("lengths %d/%d, want 1", len(res.Harmonic), len(res.Noise))
	}
	if res.Harmonic[0] != 0.25 || res.Noise[0] != 0.25 {
		t.Errorf("got %f/%f, want 0.25/0.25", res.Harmonic[0], res.Noise[0])
	}
}
