package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BigKAA/infraprobe/infraprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/httpprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/pgprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/redisprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/vaultprobe"
)

const sampleYAML = `
checks:
  - name: web
    kind: http
    address_env: FRONT_HOST
    default: http://localhost:8080
    path: /healthz
    expect:
      status_in: [200, 204]
  - name: vault
    kind: vault
    expect:
      flags:
        sealed: false
        initialized: true
  - kind: tcp
    address: vault.internal
    port: "8200"
  - name: cache
    kind: redis
    round_trip:
      key: probe_key
    expect:
      values:
        value: hello
  - name: vault-mounts
    kind: vault-auth
    expect:
      contains:
        mounts: [database, secret/]
  - name: closed
    kind: http
    address: http://localhost:9999
    expect:
      fails_to_connect: true
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleYAML), "checks.yaml")
	require.NoError(t, err)
	require.Len(t, f.Checks, 6)

	assert.Equal(t, "vault_health", f.Checks[1].Kind)
	assert.Equal(t, "tcp_socket", f.Checks[2].Name, "name defaults to kind")
	assert.Equal(t, "vault_auth", f.Checks[4].Kind)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"invalid yaml", "checks: [", "config file"},
		{"empty", "checks: []", "checks"},
		{"unknown kind", "checks:\n  - kind: mysql", "kind"},
		{"duplicate", "checks:\n  - kind: redis\n  - kind: redis", "name"},
		{"round trip on http", "checks:\n  - kind: http\n    round_trip: {}", "round_trip"},
		{"query on redis", "checks:\n  - kind: redis\n    query: SELECT 2", "query"},
		{"dsn on http", "checks:\n  - kind: http\n    dsn: postgres://db", "query"},
		{"insecure on redis", "checks:\n  - kind: redis\n    insecure: true", "insecure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "checks.yaml")
			var cfgErr *infraprobe.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Checks, 6)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var cfgErr *infraprobe.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestCheckSpec_OverridesBuiltin(t *testing.T) {
	f, err := Parse([]byte(sampleYAML), "checks.yaml")
	require.NoError(t, err)

	web := f.Checks[0].Spec()
	assert.Equal(t, infraprobe.KindHTTP, web.Kind)
	assert.Equal(t, "FRONT_HOST", web.Address.Env)
	assert.Equal(t, "http://localhost:8080", web.Address.Default)
	assert.Equal(t, "/healthz", web.Path)

	tcp := f.Checks[2].Spec()
	assert.Equal(t, "vault.internal", tcp.Address.Literal)
	assert.Equal(t, "8200", tcp.DefaultPort)

	vault := f.Checks[1].Spec()
	assert.Equal(t, infraprobe.VaultSpec().Address, vault.Address)
}

func TestCheckSpec_Resolves(t *testing.T) {
	env := map[string]string{"FRONT_HOST": "web.internal:8443"}
	r := infraprobe.NewResolver(infraprobe.WithLookupEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	f, err := Parse([]byte(sampleYAML), "checks.yaml")
	require.NoError(t, err)

	target, err := r.Resolve(f.Checks[0].Spec())
	require.NoError(t, err)
	assert.Equal(t, "web.internal", target.Host)
	assert.Equal(t, "8443", target.Port)
	assert.Equal(t, "/healthz", target.Path)
}

func TestCheckSpec_RequireCredentialsOverride(t *testing.T) {
	off := false
	c := Check{Kind: "postgres", RequireCredentials: &off, UserEnv: "PGUSER"}
	s := c.Spec()
	assert.False(t, s.RequireCredentials)
	assert.Equal(t, "PGUSER", s.User.Env)

	assert.True(t, Check{Kind: "postgres"}.Spec().RequireCredentials)
}

func TestCheckProber(t *testing.T) {
	assert.Nil(t, Check{Kind: "http"}.Prober())

	rt := Check{Kind: "redis", RoundTrip: &RoundTrip{}}.Prober()
	assert.IsType(t, &redisprobe.Prober{}, rt)

	q := Check{Kind: "postgres", Query: "SELECT 2", QueryResult: "2"}.Prober()
	assert.IsType(t, &pgprobe.Prober{}, q)

	dsn := Check{Kind: "postgres", DSN: "postgres://app@db.local/app"}.Prober()
	assert.IsType(t, &pgprobe.Prober{}, dsn)

	assert.IsType(t, &httpprobe.Prober{}, Check{Kind: "http", Insecure: true}.Prober())
	assert.IsType(t, &vaultprobe.HealthProber{}, Check{Kind: "vault_health", Insecure: true}.Prober())
}

func TestCheckProber_InsecureReachesTLSServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, err := infraprobe.New(infraprobe.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	check := Check{Name: "web", Kind: "http", Address: srv.URL, Insecure: true}
	target, err := h.Resolve(check.Spec())
	require.NoError(t, err)

	res := h.ProbeWith(context.Background(), check.Prober(), target)
	require.NoError(t, infraprobe.Evaluate(res, check.Expectations()...))
	assert.Equal(t, http.StatusOK, res.StatusCode)

	strict := h.Probe(context.Background(), target)
	assert.Equal(t, infraprobe.StatusTLSError, strict.Status)
}

func TestCheckExpectations(t *testing.T) {
	f, err := Parse([]byte(sampleYAML), "checks.yaml")
	require.NoError(t, err)

	names := func(c Check) []string {
		var out []string
		for _, e := range c.Expectations() {
			out = append(out, e.String())
		}
		return out
	}

	assert.Equal(t, []string{"probe succeeds", "status code in [200, 204]"}, names(f.Checks[0]))
	assert.Equal(t, []string{"probe succeeds", "initialized is true", "sealed is false"}, names(f.Checks[1]))
	assert.Equal(t, []string{"probe succeeds"}, names(f.Checks[2]))
	assert.Equal(t, []string{"probe succeeds", `value equals "hello"`}, names(f.Checks[3]))
	assert.Equal(t, []string{"probe succeeds", `mounts contains "database"`, `mounts contains "secret/"`}, names(f.Checks[4]))
	assert.Equal(t, []string{"connection fails"}, names(f.Checks[5]))
}

func TestDefaultChecks(t *testing.T) {
	checks := DefaultChecks()
	require.Len(t, checks, 4)

	kinds := make([]string, 0, len(checks))
	for _, c := range checks {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []string{"http", "vault_health", "postgres", "redis"}, kinds)
	assert.NotNil(t, checks[3].Prober())
}
