package vaultprobe

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/BigKAA/infraprobe/infraprobe"
)

func targetFor(t *testing.T, srv *httptest.Server, kind infraprobe.ServiceKind) infraprobe.Target {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split test server address: %v", err)
	}
	return infraprobe.Target{Name: "vault", Kind: kind, Scheme: "http", Host: host, Port: port}
}

func healthServer(t *testing.T, code int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != HealthPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthProber_ValidStatusCodes(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		body        string
		initialized any
		sealed      any
	}{
		{"active", http.StatusOK, `{"initialized":true,"sealed":false,"standby":false}`, true, false},
		{"standby", http.StatusTooManyRequests, `{"initialized":true,"sealed":false,"standby":true}`, true, false},
		{"not initialized", http.StatusNotImplemented, ``, false, nil},
		{"sealed", http.StatusServiceUnavailable, `{"initialized":true,"sealed":true}`, true, true},
		{"sealed without body", http.StatusServiceUnavailable, ``, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := healthServer(t, tt.code, tt.body)

			res, err := NewHealth().Probe(context.Background(), targetFor(t, srv, infraprobe.KindVaultHealth))
			if err != nil {
				t.Fatalf("expected success for %d, got error: %v", tt.code, err)
			}
			if res.StatusCode != tt.code {
				t.Errorf("StatusCode = %d, expected %d", res.StatusCode, tt.code)
			}
			if v, _ := res.Lookup("initialized"); v != tt.initialized {
				t.Errorf("initialized = %v, expected %v", v, tt.initialized)
			}
			if v, _ := res.Lookup("sealed"); v != tt.sealed {
				t.Errorf("sealed = %v, expected %v", v, tt.sealed)
			}
		})
	}
}

func TestHealthProber_UnexpectedStatus(t *testing.T) {
	srv := healthServer(t, http.StatusInternalServerError, `{"errors":["boom"]}`)

	res, err := NewHealth().Probe(context.Background(), targetFor(t, srv, infraprobe.KindVaultHealth))
	var ce *infraprobe.ClassifiedCheckError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClassifiedCheckError, got %v", err)
	}
	if ce.Category != infraprobe.StatusUnhealthy || ce.Detail != "http_500" {
		t.Errorf("got %s/%s, expected unhealthy/http_500", ce.Category, ce.Detail)
	}
	if res.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, expected 500", res.StatusCode)
	}
}

func TestHealthProber_NonJSONBody(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `not json`)

	res, err := NewHealth().Probe(context.Background(), targetFor(t, srv, infraprobe.KindVaultHealth))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if _, ok := res.Lookup("initialized"); ok {
		t.Error("expected no initialized field for a non-JSON body")
	}
}

func TestHealthProber_ConnectionRefused(t *testing.T) {
	target := infraprobe.Target{Name: "vault", Kind: infraprobe.KindVaultHealth, Scheme: "http", Host: "127.0.0.1", Port: "1"}

	if _, err := NewHealth().Probe(context.Background(), target); err == nil {
		t.Error("expected error for closed port, got nil")
	}
}

const testToken = "hvs.root"

func authServer(t *testing.T) *httptest.Server {
	t.Helper()
	write := func(w http.ResponseWriter, data map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != testToken {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		switch r.URL.Path {
		case "/v1/auth/token/lookup-self":
			write(w, map[string]any{"policies": []string{"root"}, "id": testToken})
		case "/v1/sys/mounts":
			write(w, map[string]any{
				"database/":  map[string]any{"type": "database"},
				"secret/":    map[string]any{"type": "kv"},
				"sys/":       map[string]any{"type": "system"},
				"cubbyhole/": map[string]any{"type": "cubbyhole"},
			})
		case "/v1/sys/auth":
			write(w, map[string]any{"token/": map[string]any{"type": "token"}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthProber_Success(t *testing.T) {
	srv := authServer(t)
	target := targetFor(t, srv, infraprobe.KindVaultAuth)
	target.Token = testToken

	res, err := NewAuth().Probe(context.Background(), target)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	mounts, _ := res.Lookup("mounts")
	if !slices.Contains(mounts.([]string), "database/") {
		t.Errorf("mounts = %v, expected database/", mounts)
	}
	auths, _ := res.Lookup("auth_methods")
	if !slices.Equal(auths.([]string), []string{"token/"}) {
		t.Errorf("auth_methods = %v, expected [token/]", auths)
	}
	policies, _ := res.Lookup("policies")
	if !slices.Contains(policies.([]string), "root") {
		t.Errorf("policies = %v, expected root", policies)
	}
	if err := infraprobe.Evaluate(res.Succeed(), infraprobe.Contains("mounts", "database")); err != nil {
		t.Errorf("mount check failed: %v", err)
	}
}

func TestAuthProber_BadToken(t *testing.T) {
	srv := authServer(t)
	target := targetFor(t, srv, infraprobe.KindVaultAuth)
	target.Token = "hvs.wrong"

	_, err := NewAuth().Probe(context.Background(), target)
	var ce *infraprobe.ClassifiedCheckError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClassifiedCheckError, got %v", err)
	}
	if ce.Category != infraprobe.StatusAuthError {
		t.Errorf("Category = %q, expected %q", ce.Category, infraprobe.StatusAuthError)
	}
}

func TestAuthProber_MissingToken(t *testing.T) {
	srv := authServer(t)

	_, err := NewAuth().Probe(context.Background(), targetFor(t, srv, infraprobe.KindVaultAuth))
	var ce *infraprobe.ClassifiedCheckError
	if !errors.As(err, &ce) || ce.Detail != "missing_token" {
		t.Fatalf("expected missing_token error, got %v", err)
	}
}

func TestKinds(t *testing.T) {
	if got := NewHealth().Kind(); got != infraprobe.KindVaultHealth {
		t.Errorf("NewHealth().Kind() = %q", got)
	}
	if got := NewAuth().Kind(); got != infraprobe.KindVaultAuth {
		t.Errorf("NewAuth().Kind() = %q", got)
	}
}
