package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveCode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("code"); got != "login-code" {
			t.Fatalf("code = %q, want %q", got, "login-code")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"openid":"oid-123"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	openid, err := c.ResolveCode(context.Background(), "login-code")
	if err != nil {
		t.Fatalf("ResolveCode error: %v", err)
	}
	if openid != "oid-123" {
		t.Fatalf("openid = %q, want %q", openid, "oid-123")
	}
}

func TestResolveCode_EmptyOpenID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	if _, err := c.ResolveCode(context.Background(), "code"); err == nil {
		t.Fatalf("expected error for empty openid")
	}
}

func TestResolveCode_NotConfigured(t *testing.T) {
	var c *Client

	if _, err := c.ResolveCode(context.Background(), "code"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestResolveCode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	if _, err := c.ResolveCode(context.Background(), "code"); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}
