package remote

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/obiente/hnsep/internal/engine"
	"github.com/obiente/hnsep/internal/separation"
)

// Handler serves RunPath: it decodes a Request, runs it on the engine for
// the "model" query parameter and answers with a Response.
func Handler(engines engine.Provider, maxBodyBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeResponse(w, http.StatusMethodNotAllowed, &Response{Error: "method not allowed"})
			return
		}
		model := r.URL.Query().Get("model")
		if model == "" {
			writeResponse(w, http.StatusBadRequest, &Response{Error: "missing model"})
			return
		}
		if maxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			status := http.StatusBadRequest
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				status = http.StatusRequestEntityTooLarge
			}
			writeResponse(w, status, &Response{Error: fmt.Sprintf("read request: %v", err)})
			return
		}
		var req Request
		if err := msgpack.Unmarshal(body, &req); err != nil {
			writeResponse(w, http.StatusBadRequest, &Response{Error: fmt.Sprintf("decode request: %v", err)})
			return
		}
		batch, ok := frames(req.Rows, req.Cols, req.Waveform)
		if !ok {
			writeResponse(w, http.StatusBadRequest, &Response{
				Error: fmt.Sprintf("waveform has %d samples, want rows*cols=%dx%d", len(req.Waveform), req.Rows, req.Cols),
			})
			return
		}

		eng, err := engines.Get(r.Context(), model)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, engine.ErrUnknownModel) {
				status = http.StatusNotFound
			}
			writeResponse(w, status, &Response{Error: err.Error()})
			return
		}

		start := time.Now()
		h, n, err := eng.Run(r.Context(), batch)
		if err != nil {
			log.Error().Err(err).Str("model", model).Stringer("batch", batch).Msg("remote: run failed")
			writeResponse(w, http.StatusInternalServerError, &Response{Error: err.Error()})
			return
		}
		if h.Rows != batch.Rows || h.Cols != batch.Cols || n.Rows != batch.Rows || n.Cols != batch.Cols {
			writeResponse(w, http.StatusInternalServerError, &Response{
				Error: fmt.Sprintf("%v: got %v and %v for %v", separation.ErrShapeMismatch, h, n, batch),
			})
			return
		}
		log.Debug().Str("model", model).Stringer("batch", batch).Dur("took", time.Since(start)).Msg("remote: batch done")
		writeResponse(w, http.StatusOK, &Response{Rows: h.Rows, Cols: h.Cols, Harmonic: h.Data, Noise: n.Data})
	})
}

func writeResponse(w http.ResponseWriter, status int, resp *Response) {
	b, err := msgpack.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
