package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/obiente/hnsep/internal/audio"
	"github.com/obiente/hnsep/internal/pipeline"
)

const readTimeout = 60 * time.Second

// Options configure a Server.
type Options struct {
	// DefaultModel is used when start names no model.
	DefaultModel string
	// MaxBufferSeconds caps the audio a session may collect before separate.
	MaxBufferSeconds int
	// Quality picks the resampler for chunks not already at the model rate.
	Quality audio.Quality
}

type Server struct {
	runner   *pipeline.Runner
	opts     Options
	upgrader websocket.Upgrader
}

func NewServer(runner *pipeline.Runner, opts Options) *Server {
	if opts.MaxBufferSeconds <= 0 {
		opts.MaxBufferSeconds = 600
	}
	return &Server{
		runner: runner,
		opts:   opts,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
	}
}

// session is the per-connection state. Writes go through send so the
// separation goroutine and the read loop never write concurrently.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	id           string
	model        string
	chunkSeconds int
	batchSize    int

	mu      sync.Mutex
	samples []float32
	running bool
}

func (s *session) send(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		log.Debug().Err(err).Str("session", s.id).Msg("ws write failed")
	}
}

func (s *session) fail(detail string) {
	s.send(map[string]any{"type": "error", "detail": detail})
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(readTimeout)); return nil })

	sess := &session{conn: conn, id: uuid.NewString(), model: s.opts.DefaultModel}
	maxSamples := s.opts.MaxBufferSeconds * s.runner.ModelRate()

	// Jobs outlive a single message but not the connection.
	ctx, cancel := context.WithCancel(r.Context())
	var jobs sync.WaitGroup
	defer func() {
		cancel()
		jobs.Wait()
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("session", sess.id).Msg("ws read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.fail("invalid json")
			continue
		}
		switch msg["type"] {
		case "ping":
			sess.send(map[string]any{"type": "pong", "ts": msg["ts"]})
		case "start":
			sess.mu.Lock()
			if sess.running {
				sess.mu.Unlock()
				sess.fail("separation already running")
				continue
			}
			sess.id = uuid.NewString()
			if v, ok := msg["model"].(string); ok && v != "" {
				sess.model = v
			}
			sess.chunkSeconds = int(asFloat(msg["chunk_seconds"]))
			sess.batchSize = int(asFloat(msg["batch_size"]))
			sess.samples = nil
			sess.mu.Unlock()

			if _, err := s.runner.Params(sess.chunkSeconds, sess.batchSize); err != nil {
				sess.fail(err.Error())
				continue
			}
			log.Info().
				Str("session", sess.id).
				Str("model", sess.model).
				Int("chunk_seconds", sess.chunkSeconds).
				Int("batch_size", sess.batchSize).
				Msg("session started")
			sess.send(map[string]any{"type": "started", "id": sess.id})
		case "chunk":
			b64, _ := msg["data"].(string)
			if b64 == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				sess.fail("invalid base64 audio")
				continue
			}

			var clip audio.Clip
			if mt, _ := msg["mime_type"].(string); mt == "audio/pcm" || mt == "audio/L16" || mt == "audio/pcm16" {
				clip, err = audio.DecodePCM16LE(raw, int(asFloat(msg["sample_rate"])))
			} else {
				clip, err = audio.DecodeWAV(raw)
			}
			if err != nil {
				log.Warn().Err(err).Str("session", sess.id).Msg("audio decode failed")
				sess.fail("decode audio failed")
				continue
			}
			rate := s.runner.ModelRate()
			n := int(int64(len(clip.Samples)) * int64(rate) / int64(clip.SampleRate))
			pcm, err := audio.ResampleTo(s.opts.Quality, clip.Samples, clip.SampleRate, rate, n)
			if err != nil {
				log.Warn().Err(err).Str("session", sess.id).Msg("resample failed")
				sess.fail("resample audio failed")
				continue
			}

			sess.mu.Lock()
			if len(sess.samples)+len(pcm) > maxSamples {
				sess.mu.Unlock()
				sess.fail("session buffer full")
				continue
			}
			sess.samples = append(sess.samples, pcm...)
			total := len(sess.samples)
			sess.mu.Unlock()

			log.Debug().Int("chunk_samples", len(pcm)).Int("total_samples", total).Msg("audio chunk received")
		case "separate":
			sess.mu.Lock()
			if sess.running {
				sess.mu.Unlock()
				sess.fail("separation already running")
				continue
			}
			if len(sess.samples) == 0 {
				sess.mu.Unlock()
				sess.fail("no audio buffered")
				continue
			}
			req := pipeline.Request{
				ID:           sess.id,
				Model:        sess.model,
				Clip:         audio.Clip{Samples: sess.samples, SampleRate: s.runner.ModelRate(), Channels: 1},
				ChunkSeconds: sess.chunkSeconds,
				BatchSize:    sess.batchSize,
				Progress: func(done, total int) {
					sess.send(map[string]any{"type": "progress", "done": done, "total": total})
				},
			}
			sess.samples = nil
			sess.running = true
			sess.mu.Unlock()

			if req.Model == "" {
				sess.finish()
				sess.fail("no model selected")
				continue
			}
			jobs.Add(1)
			go func() {
				defer jobs.Done()
				defer sess.finish()
				s.separate(ctx, sess, req)
			}()
		case "stop":
			sess.send(map[string]any{"type": "stopped"})
			return
		default:
			sess.fail("unknown message type")
		}
	}
}

func (s *session) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Server) separate(ctx context.Context, sess *session, req pipeline.Request) {
	res, err := s.runner.Separate(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, pipeline.ErrBusy) {
			sess.fail("server busy")
			return
		}
		sess.fail(err.Error())
		return
	}
	h, n, err := res.WAVs()
	if err != nil {
		log.Error().Err(err).Str("session", sess.id).Msg("encode result failed")
		sess.fail("encode result failed")
		return
	}
	sess.send(map[string]any{
		"type":        "result",
		"id":          res.ID,
		"sample_rate": res.SampleRate,
		"harmonic":    base64.StdEncoding.EncodeToString(h),
		"noise":       base64.StdEncoding.EncodeToString(n),
		"cost_sec":    res.Cost.Seconds(),
		"rtf":         res.RTF,
		"message":     res.Message(),
	})
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	default:
		return 0
	}
}
