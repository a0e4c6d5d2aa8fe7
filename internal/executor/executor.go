// Package executor sends resolved requests to the live API and turns the
// responses into displayable outcomes.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/metrics"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/ratelimit"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/render"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/request"
)

// DefaultMaxBody caps how much of a response body is read.
const DefaultMaxBody int64 = 10 << 20

// Executor performs playground requests. It never retries.
type Executor struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	metrics   *metrics.Collector
	log       *logger.Logger
	userAgent string
	maxBody   int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithLimiter sets the client-side rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(e *Executor) {
		e.limiter = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(e *Executor) {
		e.userAgent = ua
	}
}

// WithMaxBody caps the number of response bytes read.
func WithMaxBody(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxBody = n
		}
	}
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		client:    NewHTTPClient(DefaultClientConfig()),
		metrics:   metrics.New(),
		log:       logger.Nop(),
		userAgent: "pincodedocs-playground/1.0",
		maxBody:   DefaultMaxBody,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithComponent("executor")
	return e
}

// Metrics returns the collector the executor records into.
func (e *Executor) Metrics() *metrics.Collector {
	return e.metrics
}

// Execute sends r and waits for the full response. Every failure is
// reported through the returned Outcome.
func (e *Executor) Execute(ctx context.Context, r *request.Resolved) *Outcome {
	out := &Outcome{Endpoint: r.Endpoint, Method: r.Method, URL: r.URL}

	if e.limiter != nil {
		host := ""
		if u, err := url.Parse(r.URL); err == nil {
			host = u.Host
		}
		if err := e.limiter.WaitHost(ctx, host); err != nil {
			if ctx.Err() != nil {
				return e.fail(out, perrors.NewCancelledError(r.URL, "rate_limit"))
			}
			return e.fail(out, perrors.NewRateLimitedError(r.URL, err))
		}
	}

	var body io.Reader
	if r.HasBody() {
		data, err := encodeBody(r.Body)
		if err != nil {
			return e.fail(out, perrors.NewParseError(r.URL, "encode_body", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return e.fail(out, perrors.NewParseError(r.URL, "request_creation", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	e.metrics.RecordRequest()
	start := time.Now()

	resp, err := e.client.Do(req)
	if err != nil {
		return e.fail(out, perrors.Categorize(err, r.URL))
	}
	defer resp.Body.Close()

	out.StatusCode = resp.StatusCode
	out.StatusText = statusText(resp)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody))
	out.Elapsed = time.Since(start)
	out.Body = raw
	e.metrics.RecordStatusCode(resp.StatusCode)
	if err != nil {
		return e.truncated(out, perrors.Categorize(err, r.URL))
	}

	out.Kind = HTTPError
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		out.Kind = Success
	}

	if v, ok := decodeJSON(raw); ok {
		out.JSON = v
		out.Markup = render.Highlight(v)
	} else {
		out.Markup = render.Highlight(string(raw))
	}

	e.metrics.RecordResponseTime(out.Elapsed)
	e.metrics.RecordBytes(int64(len(raw)))
	e.log.RequestEvent(r.Method, r.URL, resp.StatusCode, out.Elapsed)

	return out
}

func (e *Executor) fail(out *Outcome, err *perrors.PlaygroundError) *Outcome {
	err.Endpoint = out.Endpoint
	out.Kind = NetworkError
	out.Err = err
	out.Message = messageOf(err)
	out.Markup = html.EscapeString(out.Message)

	e.metrics.RecordError(err.Kind.String())
	e.log.WithEndpoint(out.Endpoint).WithError(err).Warn("playground request failed")
	return out
}

// truncated reports a response whose body broke off. The status stays
// visible, and the outcome is never a success.
func (e *Executor) truncated(out *Outcome, err *perrors.PlaygroundError) *Outcome {
	err.Endpoint = out.Endpoint
	out.Kind = HTTPError
	out.Err = err
	out.Message = messageOf(err)
	out.Markup = html.EscapeString(out.Message)

	e.metrics.RecordError(err.Kind.String())
	e.log.WithEndpoint(out.Endpoint).WithError(err).Warn("response body read failed")
	return out
}

// messageOf prefers the underlying transport error text.
func messageOf(err *perrors.PlaygroundError) string {
	if err.Cause != nil {
		return err.Cause.Error()
	}
	return err.Error()
}

// statusText returns the server's reason phrase, falling back to the
// standard text for the code.
func statusText(resp *http.Response) string {
	prefix := strconv.Itoa(resp.StatusCode) + " "
	if text := strings.TrimPrefix(resp.Status, prefix); text != resp.Status && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func encodeBody(v map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// decodeJSON keeps numbers as json.Number so they render as received.
func decodeJSON(raw []byte) (any, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return v, true
}
