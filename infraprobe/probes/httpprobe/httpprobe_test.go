package httpprobe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BigKAA/infraprobe/infraprobe"
)

func targetFor(t *testing.T, srv *httptest.Server, path string) infraprobe.Target {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split test server address: %v", err)
	}
	return infraprobe.Target{Name: "web", Kind: infraprobe.KindHTTP, Scheme: "http", Host: host, Port: port, Path: path}
}

func TestProber_Probe_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	res, err := New().Probe(context.Background(), targetFor(t, srv, "/"))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, expected 200", res.StatusCode)
	}
	if res.Payload != nil {
		t.Errorf("expected no payload for HTML body, got %v", res.Payload)
	}
}

func TestProber_Probe_Non2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res, err := New().Probe(context.Background(), targetFor(t, srv, "/"))
	if err != nil {
		t.Fatalf("expected a response, got error: %v", err)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, expected 503", res.StatusCode)
	}
}

func TestProber_Probe_RedirectNotFollowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/other" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/other", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	res, err := New().Probe(context.Background(), targetFor(t, srv, "/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusMovedPermanently {
		t.Errorf("StatusCode = %d, expected 301", res.StatusCode)
	}
}

func TestProber_Probe_DecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"up","ready":true}`))
	}))
	defer srv.Close()

	res, err := New().Probe(context.Background(), targetFor(t, srv, "/health"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := res.Lookup("status"); v != "up" {
		t.Errorf("status = %v, expected up", v)
	}
	if v, _ := res.Lookup("ready"); v != true {
		t.Errorf("ready = %v, expected true", v)
	}
}

func TestProber_Probe_JSONStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"standby":true}`))
	}))
	defer srv.Close()

	res, err := New(WithJSONStatuses(http.StatusTooManyRequests)).Probe(context.Background(), targetFor(t, srv, "/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := res.Lookup("standby"); v != true {
		t.Errorf("standby = %v, expected true", v)
	}
}

func TestProber_Probe_UserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, _ = New().Probe(context.Background(), targetFor(t, srv, "/"))
	if gotUA != infraprobe.UserAgent {
		t.Errorf("User-Agent = %q, expected %q", gotUA, infraprobe.UserAgent)
	}
}

func TestProber_Probe_Path(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, _ = New().Probe(context.Background(), targetFor(t, srv, "/status"))
	if gotPath != "/status" {
		t.Errorf("path = %q, expected /status", gotPath)
	}
}

func TestProber_Probe_ConnectionRefused(t *testing.T) {
	target := infraprobe.Target{Name: "web", Kind: infraprobe.KindHTTP, Scheme: "http", Host: "127.0.0.1", Port: "1", Path: "/"}

	if _, err := New().Probe(context.Background(), target); err == nil {
		t.Error("expected error for closed port, got nil")
	}
}

func TestProber_Kind(t *testing.T) {
	if got := New().Kind(); got != infraprobe.KindHTTP {
		t.Errorf("Kind() = %q, expected %q", got, infraprobe.KindHTTP)
	}
}

func TestProber_TLSSkipVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target := targetFor(t, srv, "/")
	target.Scheme = "https"

	if _, err := New().Probe(context.Background(), target); err == nil {
		t.Fatal("expected a certificate error against a self-signed server")
	}
	res, err := New(WithTLSSkipVerify(true)).Probe(context.Background(), target)
	if err != nil {
		t.Fatalf("expected success with verification skipped, got %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, expected 200", res.StatusCode)
	}
}
