// Package rest is the JSON transport shared by every collaborator client.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/obs"
)

const (
	// FunctionsKeyHeader is the platform key each collaborator expects.
	FunctionsKeyHeader = "x-functions-key"
	RequestIDHeader    = "X-Request-ID"

	maxResponseBytes = 8 << 20
)

var tracer = otel.Tracer("merchantapi/collab")

// ErrNotFound is matched by StatusError values carrying a 404.
var ErrNotFound = errors.New("collaborator: not found")

// StatusError is a non-2xx collaborator response.
type StatusError struct {
	Service string
	Method  string
	Path    string
	Status  int
	Body    []byte

	envelope *apierr.Error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s %s: status %d", e.Service, e.Method, e.Path, e.Status)
}

// StatusCode implements apierr.StatusCoder.
func (e *StatusError) StatusCode() int { return e.Status }

// Unwrap exposes the collaborator's own envelope so apierr.From passes it
// through unchanged.
func (e *StatusError) Unwrap() error {
	if e.envelope == nil {
		return nil
	}
	return e.envelope
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Doc is implemented by domain documents that keep their raw body.
type Doc interface {
	SetRaw(json.RawMessage)
}

// Client talks to one collaborator service.
type Client struct {
	service string
	base    *url.URL
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-call timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// New builds a client for service rooted at baseURL.
func New(service, baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("%s: base url is required", service)
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", service, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s: base url must be http(s): %q", service, baseURL)
	}
	c := &Client{
		service: service,
		base:    u,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, in, out)
}

func (c *Client) Patch(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPatch, path, nil, in, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// GetRaw returns the body untouched.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Do performs one call. in is JSON encoded when non-nil; out receives the
// decoded 2xx body when non-nil. No retries: a failure aborts the caller's
// sequence.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	ctx, span := tracer.Start(ctx, c.service+" "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("collab.service", c.service),
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	req, err := c.newRequest(ctx, method, path, query, in)
	if err != nil {
		span.RecordError(err)
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		obs.ObserveCollaboratorCall(c.service, method, "error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return fmt.Errorf("%s %s %s: %w", c.service, method, path, err)
	}
	defer resp.Body.Close()
	obs.ObserveCollaboratorCall(c.service, method, strconv.Itoa(resp.StatusCode), time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s %s: read body: %w", c.service, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{
			Service:  c.service,
			Method:   method,
			Path:     path,
			Status:   resp.StatusCode,
			Body:     body,
			envelope: parseEnvelope(body),
		}
		span.SetStatus(codes.Error, se.Error())
		return se
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s %s: decode: %w", c.service, method, path, err)
	}
	if d, ok := out.(Doc); ok {
		d.SetRaw(json.RawMessage(body))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, in any) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s %s %s: encode: %w", c.service, method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(FunctionsKeyHeader, c.apiKey)
	}
	if rid := obs.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set(RequestIDHeader, rid)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

// parseEnvelope recognises a collaborator error already shaped as
// {code, description, reasonPhrase}.
func parseEnvelope(body []byte) *apierr.Error {
	var env apierr.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	if env.Code < 400 || env.Code > 599 || env.ReasonPhrase == "" {
		return nil
	}
	return apierr.New(env.Code, env.ReasonPhrase, env.Description)
}

// PathID escapes a single path segment.
func PathID(id string) string { return url.PathEscape(id) }
