// Package infraprobe verifies a provisioned infrastructure stack from the
// outside. A Target is resolved from scenario text, the environment, a
// credentials file or a default; a Prober performs exactly one call against
// it and reports a Result; expectations are evaluated against that Result.
package infraprobe

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ServiceKind identifies how a target is probed.
type ServiceKind string

const (
	KindHTTP        ServiceKind = "http"
	KindTCP         ServiceKind = "tcp_socket"
	KindPostgres    ServiceKind = "postgres"
	KindRedis       ServiceKind = "redis"
	KindVaultHealth ServiceKind = "vault_health"
	KindVaultAuth   ServiceKind = "vault_auth"
)

// ValidKinds contains all valid service kinds.
var ValidKinds = map[ServiceKind]bool{
	KindHTTP:        true,
	KindTCP:         true,
	KindPostgres:    true,
	KindRedis:       true,
	KindVaultHealth: true,
	KindVaultAuth:   true,
}

// ParseKind converts a user supplied kind name. Dashes and case are ignored,
// "tcp" and "vault" are accepted as shorthands.
func ParseKind(s string) (ServiceKind, error) {
	k := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch k {
	case "tcp":
		k = string(KindTCP)
	case "vault":
		k = string(KindVaultHealth)
	case "postgresql":
		k = string(KindPostgres)
	}
	if !ValidKinds[ServiceKind(k)] {
		return "", fmt.Errorf("unknown service kind %q", s)
	}
	return ServiceKind(k), nil
}

// Timeout bounds.
const (
	DefaultTimeout = 5 * time.Second
	MinTimeout     = 100 * time.Millisecond
	MaxTimeout     = 30 * time.Second
)

// Credentials holds a user/password pair.
type Credentials struct {
	User     string
	Password string
}

// String never prints the password.
func (c Credentials) String() string {
	if c.Password == "" {
		return c.User
	}
	return c.User + ":***"
}

// Target describes one service instance to probe.
// It is built once per scenario by a Resolver and not modified afterwards.
type Target struct {
	Name        string
	Kind        ServiceKind
	Scheme      string // http, https; empty for non-HTTP kinds
	Host        string
	Port        string
	Path        string // HTTP path, including the leading slash
	Database    string
	Credentials *Credentials
	Token       string
}

// Address returns host:port.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, t.Port)
}

// BaseURL returns scheme://host:port without a path.
func (t Target) BaseURL() string {
	scheme := t.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + t.Address()
}

// URL returns the full URL for HTTP-like targets.
func (t Target) URL() string {
	return t.BaseURL() + t.Path
}

// String returns the address used in diagnostics.
func (t Target) String() string {
	switch t.Kind {
	case KindHTTP, KindVaultHealth, KindVaultAuth:
		return t.URL()
	default:
		return t.Address()
	}
}

// Validate checks that the target can be probed.
func (t Target) Validate() error {
	if !ValidKinds[t.Kind] {
		return fmt.Errorf("unknown service kind %q", t.Kind)
	}
	if t.Host == "" {
		return fmt.Errorf("target %q: missing host", t.Name)
	}
	if t.Port == "" {
		return fmt.Errorf("target %q: missing port", t.Name)
	}
	if err := validatePort(t.Port); err != nil {
		return fmt.Errorf("target %q: %w", t.Name, err)
	}
	if t.Path != "" && !strings.HasPrefix(t.Path, "/") {
		return fmt.Errorf("target %q: path %q must start with /", t.Name, t.Path)
	}
	return nil
}
