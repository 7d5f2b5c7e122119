// Package transport issues timed, cancellable HTTP requests against the
// backend REST API with a uniform failure classification. It never retries;
// retry policy belongs to callers.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"questline/internal/models"
	"questline/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 8 * 1024 * 1024

// Kind is the weight class of a request. It selects the default timeout.
type Kind string

const (
	KindRead   Kind = "read"
	KindWrite  Kind = "write"
	KindUpload Kind = "upload"
)

// Timeouts holds the default bound per request kind.
type Timeouts struct {
	Read   time.Duration
	Write  time.Duration
	Upload time.Duration
}

// DefaultTimeouts returns the bounds used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Read:   10 * time.Second,
		Write:  10 * time.Second,
		Upload: 15 * time.Second,
	}
}

func (t Timeouts) forKind(k Kind) time.Duration {
	switch k {
	case KindWrite:
		return t.Write
	case KindUpload:
		return t.Upload
	default:
		return t.Read
	}
}

// TokenSource supplies the bearer token for authenticated requests.
// Acquiring and refreshing the token is the caller's concern.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
// An empty StaticToken sends no Authorization header.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(_ context.Context) (string, error) {
	return string(t), nil
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body any
	Kind Kind
	// Timeout overrides the kind's default bound when positive.
	Timeout time.Duration
}

// Response is a successful (2xx) backend response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Client is the backend HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	timeouts   Timeouts
	logger     *observability.ClientLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. Its own Timeout should be zero or
// larger than every per-request bound.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource sets the bearer token source.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithTimeouts sets the per-kind default bounds. Non-positive values keep the default.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) {
		def := DefaultTimeouts()
		if t.Read <= 0 {
			t.Read = def.Read
		}
		if t.Write <= 0 {
			t.Write = def.Write
		}
		if t.Upload <= 0 {
			t.Upload = def.Upload
		}
		c.timeouts = t
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     StaticToken(""),
		timeouts:   DefaultTimeouts(),
		logger:     observability.NewClientLogger("transport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs the request. Every call is bounded by a timeout; exceeding it
// cancels the in-flight request. Errors are *models.AppError with code
// TIMEOUT, NETWORK_ERROR, SERVER_ERROR, NOT_FOUND, UNAUTHORIZED or HTTP_ERROR.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Kind == "" {
		req.Kind = KindRead
	}
	op := req.Method + " " + req.Path

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeouts.forKind(req.Kind)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	span, ctx := observability.StartSpan(ctx, "http."+strings.ToLower(req.Method),
		attribute.String("http.method", req.Method),
		attribute.String("http.route", req.Path),
		attribute.String("request.kind", string(req.Kind)),
	)
	defer span.End()
	done := observability.TrackRequest(req.Method, string(req.Kind))

	resp, err := c.do(ctx, req, op)
	if err != nil {
		done(models.ErrorCode(err))
		span.SetError(err)
		c.logger.Warn(ctx, "backend request failed", map[string]interface{}{
			"method":     req.Method,
			"path":       req.Path,
			"timeout_ms": timeout.Milliseconds(),
			"error":      err.Error(),
		})
		return nil, err
	}
	done("ok")
	span.AddAttributes(attribute.Int("http.status_code", resp.Status))
	c.logger.LogRequest(ctx, req.Method, req.Path, resp.Status, nil)
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request, op string) (*Response, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, models.NewInternalError(fmt.Errorf("encode %s body: %w", op, err))
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("build %s: %w", op, err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	requestID := observability.ExtractCorrelationID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &models.AppError{Code: models.CodeUnauthorized, Message: "bearer token unavailable", Err: err}
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, op, err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, classify(ctx, op, err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, models.NewHTTPError(op, httpResp.StatusCode, snippet(payload))
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   payload,
	}, nil
}

// classify maps a transport-level failure to TIMEOUT or NETWORK_ERROR.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeoutError(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.NewTimeoutError(op, err)
	}
	return models.NewNetworkError(op, err)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
