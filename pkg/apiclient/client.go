package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/guard"
	"github.com/mpapenbr/docflow-session-go/pkg/tokenstore"
)

const (
	HeaderRequestID = "X-Request-ID"
	// DefaultMaxBodySize limits how much of a response is read into memory
	DefaultMaxBodySize = 32 << 20
)

type (
	Option func(*Client)

	RequestOption  func(*requestConfig)
	requestConfig struct {
		header http.Header
	}

	// Client sends requests to the document API on behalf of the current
	// session. Every request carries the live access token.
	Client struct {
		baseURL       string
		tokens        *tokenstore.Store
		guard         *guard.Guard
		nav           guard.Navigator
		httpClient    *http.Client
		tracer        trace.Tracer
		meterProvider metric.MeterProvider
		requests      metric.Int64Counter
		maxBodySize   int64
		log           *log.Logger
	}
)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithMaxBodySize sets the largest accepted response body. Larger responses
// fail with ErrRequestFailed.
func WithMaxBodySize(n int64) Option {
	return func(cl *Client) {
		cl.maxBodySize = n
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(cl *Client) {
		cl.tracer = t
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cl *Client) {
		cl.meterProvider = mp
	}
}

func WithHeader(key, value string) RequestOption {
	return func(c *requestConfig) {
		c.header.Set(key, value)
	}
}

func WithContentType(ct string) RequestOption {
	return WithHeader("Content-Type", ct)
}

// New creates a client. nav receives the login navigation when the session
// is missing or rejected by the API.
//
//nolint:whitespace // editor/linter issue
func New(
	baseURL string,
	tokens *tokenstore.Store,
	g *guard.Guard,
	nav guard.Navigator,
	opts ...Option,
) *Client {
	ret := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		tokens:      tokens,
		guard:       g,
		nav:         nav,
		maxBodySize: DefaultMaxBodySize,
		log:         log.Default().Named("apiclient"),
	}
	for _, o := range opts {
		o(ret)
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("dfs")
	}
	if ret.meterProvider == nil {
		ret.meterProvider = otel.GetMeterProvider()
	}
	var err error
	ret.requests, err = ret.meterProvider.Meter("dfs").Int64Counter("dfs.api.requests",
		metric.WithDescription("API requests by outcome"))
	if err != nil {
		ret.log.Warn("could not create request counter", log.ErrorField(err))
	}
	return ret
}

//nolint:whitespace // editor/linter issue
func (c *Client) Get(
	ctx context.Context, path string, opts ...RequestOption,
) (any, error) {
	return c.Do(ctx, http.MethodGet, path, NoBody{}, opts...)
}

//nolint:whitespace // editor/linter issue
func (c *Client) Post(
	ctx context.Context, path string, body Body, opts ...RequestOption,
) (any, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

//nolint:whitespace // editor/linter issue
func (c *Client) Put(
	ctx context.Context, path string, body Body, opts ...RequestOption,
) (any, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

//nolint:whitespace // editor/linter issue
func (c *Client) Delete(
	ctx context.Context, path string, opts ...RequestOption,
) (any, error) {
	return c.Do(ctx, http.MethodDelete, path, NoBody{}, opts...)
}

// Do sends the request and returns the parsed JSON response, the raw text
// if the response is not JSON, or nil for an empty response. Failures are
// returned as *RequestError. Nothing is retried.
//
//nolint:whitespace,funlen // editor/linter issue
func (c *Client) Do(
	ctx context.Context,
	method, path string,
	body Body,
	opts ...RequestOption,
) (any, error) {
	ctx, span := c.tracer.Start(ctx, "apiclient.Do",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("dfs.path", path)))
	defer span.End()

	ret, err := c.do(ctx, method, path, body, opts...)
	outcome := "ok"
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome = "error"
		if status := StatusOf(err); status >= 0 {
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
	if c.requests != nil {
		c.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("outcome", outcome)))
	}
	return ret, err
}

//nolint:whitespace,funlen,cyclop // by design
func (c *Client) do(
	ctx context.Context,
	method, path string,
	body Body,
	opts ...RequestOption,
) (any, error) {
	if !c.tokens.Available() {
		return nil, &RequestError{Status: 0, Err: ErrUnavailable}
	}
	returnTo := c.currentLocation()
	if !c.guard.RequireAuthOrRedirect(ctx, c.nav, returnTo) {
		return nil, &RequestError{Status: http.StatusUnauthorized, Err: ErrAuthRequired}
	}
	at := c.tokens.AccessToken(ctx)
	if at.Token == "" {
		c.log.Debug("no live access token",
			log.Bool("sessionCleared", at.SessionCleared),
			log.String("path", path))
		c.redirectToLogin(ctx, returnTo)
		return nil, &RequestError{Status: http.StatusUnauthorized, Err: ErrAuthRequired}
	}

	cfg := &requestConfig{header: http.Header{}}
	for _, o := range opts {
		o(cfg)
	}
	if body == nil {
		body = NoBody{}
	}
	reader, contentType, err := body.encode()
	if err != nil {
		return nil, &RequestError{Status: 0, Message: err.Error(), Err: ErrRequestFailed}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return nil, &RequestError{Status: 0, Message: err.Error(), Err: ErrRequestFailed}
	}
	for k, v := range cfg.header {
		req.Header[k] = v
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", contentTypeJSON)
	}
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}
	req.Header.Set("Authorization", "Bearer "+at.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed",
			log.String("method", method),
			log.String("path", path),
			log.ErrorField(err))
		return nil, &RequestError{Status: 0, Message: err.Error(), Err: ErrTransport}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, &RequestError{Status: 0, Message: err.Error(), Err: ErrTransport}
	}
	if int64(len(data)) > c.maxBodySize {
		c.log.Warn("response body too large",
			log.String("path", path),
			log.Int("status", resp.StatusCode))
		return nil, &RequestError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("response body exceeds %d bytes", c.maxBodySize),
			Err:     ErrRequestFailed,
		}
	}
	parsed := parseBody(data)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.log.Info("API rejected credentials, clearing session",
			log.String("path", path))
		c.tokens.ClearWithReason(ctx, tokenstore.ClearReasonRejected)
		c.redirectToLogin(ctx, returnTo)
		return nil, &RequestError{
			Status:  resp.StatusCode,
			Message: messageOf(parsed),
			Details: parsed,
			Err:     ErrAuthRejected,
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg := messageOf(parsed)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &RequestError{
			Status:  resp.StatusCode,
			Message: msg,
			Details: parsed,
			Err:     ErrRequestFailed,
		}
	}
	return parsed, nil
}

// redirectToLogin navigates to login unless the current location already
// is part of the login flow.
func (c *Client) redirectToLogin(ctx context.Context, returnTo string) {
	if c.guard.InLoginFlow(returnTo) {
		c.log.Debug("login redirect skipped, already in login flow",
			log.String("location", returnTo))
		return
	}
	c.guard.RedirectToLogin(ctx, c.nav, returnTo)
}

func (c *Client) currentLocation() string {
	if c.nav == nil {
		return "/"
	}
	return c.nav.Location()
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// parseBody returns the JSON value of data, the text if data is not JSON,
// or nil if data is empty.
func parseBody(data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err == nil {
		return v
	}
	return string(data)
}
