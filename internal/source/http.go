package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-content-sync/internal/syncerr"
)

const maxDocumentBytes = 4 << 20

// HTTP fetches raw file contents from a URL template such as
// https://raw.githubusercontent.com/org/repo/{revision}/{path}.
type HTTP struct {
	template string
	token    string
	client   *http.Client
}

// HTTPOption configures an HTTP source.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the client used for requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		if client != nil {
			h.client = client
		}
	}
}

// WithToken sends a bearer token on every request.
func WithToken(token string) HTTPOption {
	return func(h *HTTP) {
		h.token = strings.TrimSpace(token)
	}
}

// NewHTTP creates a raw-content source.
func NewHTTP(template string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		template: template,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetFileAt issues one GET. 404 maps to NotFound, 429 and 5xx to transient
// failures carrying any Retry-After hint.
func (h *HTTP) GetFileAt(ctx context.Context, p, revision string) ([]byte, error) {
	target := h.resolve(p, revision)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &syncerr.Transient{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
		if err != nil {
			return nil, &syncerr.Transient{Err: err}
		}
		if len(data) > maxDocumentBytes {
			return nil, syncerr.Newf(syncerr.KindMalformed, p, "document exceeds %d bytes", maxDocumentBytes)
		}
		return data, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, syncerr.New(syncerr.KindNotFound, p, fmt.Errorf("http %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &syncerr.Transient{
			Err:        fmt.Errorf("http %d fetching %s", resp.StatusCode, p),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("http %d fetching %s: %s", resp.StatusCode, p, strings.TrimSpace(string(body)))
	}
}

func (h *HTTP) resolve(p, revision string) string {
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	out := strings.ReplaceAll(h.template, "{revision}", url.PathEscape(revisionOrHead(revision)))
	return strings.ReplaceAll(out, "{path}", strings.Join(segments, "/"))
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}
