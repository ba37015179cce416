package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientOptions{})
	if c.Timeout != defaultTimeout {
		t.Errorf("expected timeout %v, got %v", defaultTimeout, c.Timeout)
	}
	ua, ok := c.Transport.(*userAgent)
	if !ok {
		t.Fatalf("expected user agent transport, got %T", c.Transport)
	}
	base := ua.next.(*http.Transport)
	if base.MaxConnsPerHost != 10 || base.MaxIdleConnsPerHost != 10 {
		t.Errorf("expected 10 connections per host, got %d/%d", base.MaxConnsPerHost, base.MaxIdleConnsPerHost)
	}
	if base.Proxy == nil || !base.ForceAttemptHTTP2 {
		t.Error("expected proxy from environment and HTTP/2")
	}
	if base.ResponseHeaderTimeout != defaultTimeout {
		t.Errorf("expected header timeout %v, got %v", defaultTimeout, base.ResponseHeaderTimeout)
	}
}

func TestNewClient_PerHostLimit(t *testing.T) {
	c := NewClient(ClientOptions{MaxConnsPerHost: 2})
	base := c.Transport.(*userAgent).next.(*http.Transport)
	if base.MaxConnsPerHost != 2 || base.MaxIdleConns != 8 {
		t.Errorf("expected 2 per host and 8 idle, got %d/%d", base.MaxConnsPerHost, base.MaxIdleConns)
	}
}

func TestNewClient_UserAgent(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{UserAgent: "router-test/1.0"})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if req.Header.Get("User-Agent") != "" {
		t.Error("expected caller's request to be left untouched")
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom")
	resp, err = c.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(got) != 2 || got[0] != "router-test/1.0" || got[1] != "custom" {
		t.Errorf("expected [router-test/1.0 custom], got %v", got)
	}
}
