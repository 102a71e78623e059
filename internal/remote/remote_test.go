package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/obiente/hnsep/internal/engine"
	"github.com/obiente/hnsep/internal/separation"
)

// splitEngine returns 0.25*x as harmonic and 0.75*x as noise.
type splitEngine struct{}

func (splitEngine) Run(_ context.Context, b separation.Frames) (separation.Frames, separation.Frames, error) {
	h := separation.NewFrames(b.Rows, b.Cols)
	n := separation.NewFrames(b.Rows, b.Cols)
	for i, v := range b.Data {
		h.Data[i] = 0.25 * v
		n.Data[i] = 0.75 * v
	}
	return h, n, nil
}

func (splitEngine) Close() error { return nil }

type brokenEngine struct{}

func (brokenEngine) Run(context.Context, separation.Frames) (separation.Frames, separation.Frames, error) {
	return separation.Frames{}, separation.Frames{}, errors.New("device lost")
}

func (brokenEngine) Close() error { return nil }

type provider map[string]engine.Engine

func (p provider) Get(_ context.Context, key string) (engine.Engine, error) {
	if e, ok := p[key]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q", engine.ErrUnknownModel, key)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(RunPath, Handler(provider{
		"vr/hnsep.onnx": splitEngine{},
		"broken.onnx":   brokenEngine{},
	}, 1<<20))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRun(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	c := New(srv.URL+"/", "vr/hnsep.onnx", 5*time.Second)

	batch := separation.NewFrames(2, 3)
	for i := range batch.Data {
		batch.Data[i] = float32(i + 1)
	}
	h, n, err := c.Run(context.Background(), batch)
	if err != nil {
		t.Fatal(err)
	}
	if h.Rows != 2 || h.Cols != 3 || n.Rows != 2 || n.Cols != 3 {
		t.Fatalf("shapes %v %v", h, n)
	}
	for i, v := range batch.Data {
		if h.Data[i] != 0.25*v || n.Data[i] != 0.75*v {
			t.Fatalf("index %d: harmonic %f noise %f for %f", i, h.Data[i], n.Data[i], v)
		}
	}
}

func TestClientDrivesInfer(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	eng, err := Factory(srv.URL, 5*time.Second)("vr/hnsep.onnx")
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	chunk := 1024
	w := make([]float32, 5000)
	for i := range w {
		w[i] = float32(i%100) / 100
	}
	h, n, err := separation.Infer(context.Background(), eng, w, separation.Params{
		ChunkSize: &chunk, OverlapSize: 256, CutSize: 32, BatchSize: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != len(w) || len(n) != len(w) {
		t.Fatalf("lengths %d %d, want %d", len(h), len(n), len(w))
	}
	for i, v := range w {
		if d := h[i] + n[i] - v; d > 1e-5 || d < -1e-5 {
			t.Fatalf("index %d: %f + %f != %f", i, h[i], n[i], v)
		}
	}
}

func TestClientUnknownModel(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	_, _, err := New(srv.URL, "missing.onnx", time.Second).Run(context.Background(), separation.NewFrames(1, 4))
	if !errors.Is(err, engine.ErrUnknownModel) {
		t.Fatalf("err = %v, want ErrUnknownModel", err)
	}
}

func TestClientEngineFailure(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	_, _, err := New(srv.URL, "broken.onnx", time.Second).Run(context.Background(), separation.NewFrames(1, 4))
	if err == nil {
		t.Fatal("expected error")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("device lost")) {
		t.Errorf("err = %v, want remote detail", err)
	}
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	post := func(query string, body []byte) *http.Response {
		t.Helper()
		resp, err := http.Post(srv.URL+RunPath+query, contentType, bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}
	good, _ := msgpack.Marshal(&Request{Rows: 1, Cols: 2, Waveform: []float32{1, 2}})
	misshaped, _ := msgpack.Marshal(&Request{Rows: 2, Cols: 2, Waveform: []float32{1, 2}})
	// 1<<62 * 4 wraps to 0 in int64.
	overflow, _ := msgpack.Marshal(&Request{Rows: 1 << 62, Cols: 4})

	tests := []struct {
		name   string
		query  string
		body   []byte
		status int
	}{
		{"missing model", "", good, http.StatusBadRequest},
		{"garbage body", "?model=vr/hnsep.onnx", []byte{0xc1}, http.StatusBadRequest},
		{"misshaped", "?model=vr/hnsep.onnx", misshaped, http.StatusBadRequest},
		{"overflowing shape", "?model=vr/hnsep.onnx", overflow, http.StatusBadRequest},
		{"too large", "?model=vr/hnsep.onnx", make([]byte, 2<<20), http.StatusRequestEntityTooLarge},
		{"ok", "?model=vr/hnsep.onnx", good, http.StatusOK},
	}
	for _, tt := range tests {
		resp := post(tt.query, tt.body)
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.status)
		}
		var out Response
		if err := msgpack.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Errorf("%s: decode: %v", tt.name, err)
			continue
		}
		if (tt.status == http.StatusOK) != (out.Error == "") {
			t.Errorf("%s: error field %q", tt.name, out.Error)
		}
	}
}

func TestFramesShape(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		rows, cols int
		n          int
		ok         bool
	}{
		{"exact", 2, 3, 6, true},
		{"short", 2, 3, 5, false},
		{"long", 2, 3, 7, false},
		{"empty", 0, 0, 0, false},
		{"zero rows", 0, 3, 0, false},
		{"negative", -1, -3, 3, false},
		{"overflow to zero", 1 << 62, 4, 0, false},
		{"overflow to data", 1<<62 + 1, 4, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := frames(tt.rows, tt.cols, make([]float32, tt.n))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (f.Rows != tt.rows || f.Cols != tt.cols) {
				t.Errorf("shape %dx%d", f.Rows, f.Cols)
			}
		})
	}
}

func TestFactoryRequiresBase(t *testing.T) {
	t.Parallel()
	if _, err := Factory(" ", time.Second)("m.onnx"); err == nil {
		t.Fatal("expected error")
	}
}
