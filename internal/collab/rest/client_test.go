package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/obs"
)

type doc struct {
	ID  string `json:"_id"`
	raw json.RawMessage
}

func (d *doc) SetRaw(raw json.RawMessage) { d.raw = raw }

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New("merchant", srv.URL+"/api/v1/", "key-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestDoSendsHeadersAndKeepsRaw(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/merchants/m-1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get(FunctionsKeyHeader) != "key-1" {
			t.Errorf("missing functions key")
		}
		if r.Header.Get(RequestIDHeader) != "req-9" {
			t.Errorf("missing request id")
		}
		_, _ = w.Write([]byte(`{"_id":"m-1","extra":true}`))
	})

	ctx := obs.WithRequestID(context.Background(), "req-9")
	var d doc
	if err := c.Get(ctx, "/merchants/"+PathID("m-1"), nil, &d); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.ID != "m-1" {
		t.Fatalf("unexpected id %q", d.ID)
	}
	if string(d.raw) != `{"_id":"m-1","extra":true}` {
		t.Fatalf("raw body not kept: %s", d.raw)
	}
}

func TestDoEncodesBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing content type")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"isEnabled":false}` {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusOK)
	})
	if err := c.Patch(context.Background(), "/merchants/m-1", map[string]any{"isEnabled": false}, nil); err != nil {
		t.Fatalf("Patch: %v", err)
	}
}

func TestDoNotFound(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := c.Get(context.Background(), "/merchants/x", nil, &doc{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	mapped := apierr.From(err)
	if mapped.Code != http.StatusNotFound || mapped.Reason != apierr.ReasonDownstream {
		t.Fatalf("unexpected mapping %+v", mapped)
	}
}

func TestDoPassesEnvelopeThrough(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":403,"description":"Plan locked","reasonPhrase":"PricePlanLockedError"}`))
	})
	err := c.Post(context.Background(), "/merchant-billing", map[string]any{}, nil)
	mapped := apierr.From(err)
	if mapped.Code != http.StatusForbidden || mapped.Reason != "PricePlanLockedError" || mapped.Description != "Plan locked" {
		t.Fatalf("envelope not passed through: %+v", mapped)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusForbidden {
		t.Fatalf("expected StatusError, got %v", err)
	}
}

func TestGetRaw(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("merchantID") != "m-1" {
			t.Errorf("query not sent")
		}
		_, _ = w.Write([]byte(`[{"a":1}]`))
	})
	raw, err := c.GetRaw(context.Background(), "/business-units", map[string][]string{"merchantID": {"m-1"}})
	if err != nil {
		t.Fatalf("GetRaw: %v", err)
	}
	if string(raw) != `[{"a":1}]` {
		t.Fatalf("unexpected raw %s", raw)
	}
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, base := range []string{"", "ftp://x", "::"} {
		if _, err := New("merchant", base, ""); err == nil {
			t.Fatalf("New(%q) should fail", base)
		}
	}
}

func TestTransportErrorMapsToInternal(t *testing.T) {
	c, err := New("merchant", "http://127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Get(context.Background(), "/merchants/x", nil, nil)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if got := apierr.From(err); got.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected mapping %+v", got)
	}
}
