// Package hal implements engine.Transport over HTTP for a HAL+JSON API.
package hal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/normalize"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

const (
	mediaTypeHAL  = "application/hal+json"
	mediaTypeJSON = "application/json"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 1 << 20
)

// Client is an HTTP implementation of engine.Transport.
type Client struct {
	config  Config
	base    *url.URL
	http    *http.Client
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  trace.TracerProvider
	rt      http.RoundTripper
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *telemetry.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.NewComponentLogger("transport")
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// WithTracerProvider sets the provider used for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp }
}

// WithRoundTripper replaces the base round tripper.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) { c.rt = rt }
}

// NewClient creates a client for the API at cfg.BaseURL.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transport config: %w", err)
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	c := &Client{
		config: cfg,
		base:   base,
		logger: telemetry.NewNopLogger(),
		rt:     http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}

	otelOpts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
	}
	if c.tracer != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(c.tracer))
	}

	c.http = &http.Client{
		Transport: otelhttp.NewTransport(c.rt, otelOpts...),
		Timeout:   cfg.Timeout,
	}

	return c, nil
}

// Do sends req and decodes a successful response body into out. out may be
// nil. Failures are returned as *engine.RequestError.
func (c *Client) Do(ctx context.Context, req engine.Request, out any) error {
	op := req.Method + " " + req.Path

	target, err := c.resolve(req)
	if err != nil {
		return err
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return engine.NewPermanentError("failed to encode request body", err).
				WithCode(engine.ErrCodeValidation).
				WithOperation(op)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return engine.NewPermanentError("failed to build request", err).
			WithCode(engine.ErrCodeValidation).
			WithOperation(op)
	}
	httpReq.Header.Set("Accept", mediaTypeHAL)
	if body != nil {
		httpReq.Header.Set("Content-Type", mediaTypeJSON)
	}
	if c.config.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	timer := telemetry.NewTimer()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.RecordTransportRequest(req.Method, 0, timer.Duration())
		reqErr := engine.NewTransientError(fmt.Sprintf("request failed: %v", err), err).
			WithCode(engine.ErrCodeNetwork).
			WithOperation(op)
		c.metrics.RecordError(string(reqErr.Class), reqErr.Code)
		return reqErr
	}
	defer resp.Body.Close()
	c.metrics.RecordTransportRequest(req.Method, resp.StatusCode, timer.Duration())

	c.logger.WithFields(map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
		"status": resp.StatusCode,
	}).Trace("api request")

	if resp.StatusCode >= http.StatusBadRequest {
		reqErr := decodeError(resp).WithOperation(op)
		c.metrics.RecordError(string(reqErr.Class), reqErr.Code)
		return reqErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.NewTransientError("failed to read response body", err).
			WithCode(engine.ErrCodeNetwork).
			WithStatusCode(resp.StatusCode).
			WithOperation(op)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return engine.NewPermanentError("failed to decode response", err).
			WithCode(engine.ErrCodeDecode).
			WithStatusCode(resp.StatusCode).
			WithOperation(op)
	}

	return nil
}

// resolve expands placeholders and joins the path onto the base URL.
// Absolute hrefs taken from _links are used as they are.
func (c *Client) resolve(req engine.Request) (string, error) {
	path, err := req.ExpandPath()
	if err != nil {
		return "", err
	}

	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.base.String() + "/" + strings.TrimLeft(path, "/")
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", engine.NewValidationError(fmt.Sprintf("invalid request URL %q", target))
	}

	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// errorPayload is the backend error body.
type errorPayload struct {
	Code             normalize.FlexString   `json:"code"`
	Error            string                 `json:"error"`
	Message          string                 `json:"message"`
	ExceptionContext map[string]interface{} `json:"exception_context"`
}

func decodeError(resp *http.Response) *engine.RequestError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload errorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		payload = errorPayload{}
	}

	code := payload.Error
	if code == "" {
		code = string(payload.Code)
	}

	reqErr := engine.NewHTTPError(resp.StatusCode, code, payload.Message)
	if len(payload.ExceptionContext) > 0 {
		reqErr.ExceptionContext = payload.ExceptionContext
	}
	return reqErr
}
