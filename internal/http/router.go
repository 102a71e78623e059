package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/obiente/hnsep/internal/audio"
	"github.com/obiente/hnsep/internal/config"
	"github.com/obiente/hnsep/internal/engine"
	"github.com/obiente/hnsep/internal/pipeline"
	"github.com/obiente/hnsep/internal/remote"
	"github.com/obiente/hnsep/internal/separation"
	"github.com/obiente/hnsep/internal/ws"
)

func NewRouter(cfg config.Config, runner *pipeline.Runner, engines engine.Provider) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		models, err := engine.Discover(cfg.WorkDir)
		if err != nil && !errors.Is(err, engine.ErrNoModels) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if models == nil {
			models = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"models": models, "default": cfg.DefaultModel})
	})
	mux.Handle("POST /v1/separate", &separateHandler{cfg: cfg, runner: runner})
	mux.Handle(remote.RunPath, remote.Handler(engines, cfg.MaxUploadBytes))

	wss := ws.NewServer(runner, ws.Options{DefaultModel: cfg.DefaultModel, Quality: cfg.Quality()})
	mux.HandleFunc("/ws/separate", wss.Handle)
	return mux
}

type separateHandler struct {
	cfg    config.Config
	runner *pipeline.Runner
}

func (h *separateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	model := q.Get("model")
	if model == "" {
		model = h.cfg.DefaultModel
	}
	if model == "" {
		writeError(w, http.StatusBadRequest, "missing model")
		return
	}
	chunkSeconds, err := queryInt(q.Get("chunk_seconds"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "chunk_seconds: "+err.Error())
		return
	}
	batchSize, err := queryInt(q.Get("batch_size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "batch_size: "+err.Error())
		return
	}

	format, ok := audio.ParseFormat(q.Get("format"))
	if !ok {
		format, ok = audio.FormatFromContentType(r.Header.Get("Content-Type"))
	}
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "unknown audio format; set Content-Type or ?format=wav|mp3|ogg")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clip, err := audio.Decode(bytes.NewReader(body), format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.runner.Separate(r.Context(), pipeline.Request{
		Model:        model,
		Clip:         clip,
		ChunkSeconds: chunkSeconds,
		BatchSize:    batchSize,
	})
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			log.Error().Err(err).Str("model", model).Msg("separate failed")
		}
		writeError(w, status, err.Error())
		return
	}
	harmonic, noise, err := res.WAVs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          res.ID,
		"sample_rate": res.SampleRate,
		"harmonic":    base64.StdEncoding.EncodeToString(harmonic),
		"noise":       base64.StdEncoding.EncodeToString(noise),
		"cost_sec":    res.Cost.Seconds(),
		"rtf":         res.RTF,
		"message":     res.Message(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, separation.ErrInvalidConfig),
		errors.Is(err, separation.ErrInvalidWaveform),
		errors.Is(err, audio.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnknownModel):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"error": detail})
}
