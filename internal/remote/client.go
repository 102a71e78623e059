package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/obiente/hnsep/internal/engine"
	"github.com/obiente/hnsep/internal/separation"
)

// maxResponseBytes caps a decoded response; two outputs of a 64-frame batch
// of 60 s chunks stay well below it.
const maxResponseBytes = 1 << 30

// Client is an engine.Engine backed by a remote server's RunPath.
type Client struct {
	base  string
	model string
	http  *http.Client
}

var _ engine.Engine = (*Client)(nil)

func New(base, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		model: model,
		http:  &http.Client{Timeout: timeout},
	}
}

// Factory builds a Client per model key, for use with engine.NewCache.
func Factory(base string, timeout time.Duration) engine.Factory {
	return func(key string) (engine.Engine, error) {
		if strings.TrimSpace(base) == "" {
			return nil, errors.New("remote: empty base url")
		}
		return New(base, key, timeout), nil
	}
}

// Run sends batch to the remote server and returns its outputs.
func (c *Client) Run(ctx context.Context, batch separation.Frames) (harmonic, noise separation.Frames, err error) {
	body, err := msgpack.Marshal(&Request{Rows: batch.Rows, Cols: batch.Cols, Waveform: batch.Data})
	if err != nil {
		return harmonic, noise, fmt.Errorf("remote: encode: %w", err)
	}
	u := c.base + RunPath + "?model=" + url.QueryEscape(c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return harmonic, noise, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return harmonic, noise, fmt.Errorf("remote: %w", err)
	}
	defer resp.Body.Close()

	var out Response
	decErr := msgpack.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := out.Error
		if decErr != nil || detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			return harmonic, noise, fmt.Errorf("remote: %w: %s", engine.ErrUnknownModel, detail)
		}
		return harmonic, noise, fmt.Errorf("remote http %d: %s", resp.StatusCode, detail)
	}
	if decErr != nil {
		return harmonic, noise, fmt.Errorf("remote: decode: %w", decErr)
	}

	h, okH := frames(out.Rows, out.Cols, out.Harmonic)
	n, okN := frames(out.Rows, out.Cols, out.Noise)
	if !okH || !okN {
		return harmonic, noise, fmt.Errorf("remote: malformed response %dx%d with %d/%d samples",
			out.Rows, out.Cols, len(out.Harmonic), len(out.Noise))
	}
	return h, n, nil
}

// Close is a no-op; the underlying transport is shared.
func (c *Client) Close() error { return nil }
