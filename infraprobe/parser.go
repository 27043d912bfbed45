package infraprobe

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPorts per URL scheme and service kind.
var DefaultPorts = map[string]string{
	"http":       "80",
	"https":      "443",
	"vault":      "8200",
	"postgres":   "5432",
	"postgresql": "5432",
	"redis":      "6379",
	"rediss":     "6379",

	string(KindVaultHealth): "8200",
	string(KindVaultAuth):   "8200",
}

// schemeKinds maps URL schemes to the kinds they may address.
var schemeKinds = map[string][]ServiceKind{
	"http":       {KindHTTP, KindVaultHealth, KindVaultAuth, KindTCP},
	"https":      {KindHTTP, KindVaultHealth, KindVaultAuth, KindTCP},
	"vault":      {KindVaultHealth, KindVaultAuth, KindTCP},
	"postgres":   {KindPostgres, KindTCP},
	"postgresql": {KindPostgres, KindTCP},
	"redis":      {KindRedis, KindTCP},
	"rediss":     {KindRedis, KindTCP},
	"tcp":        {KindTCP, KindPostgres, KindRedis},
}

// ParsedAddress holds the result of parsing an address.
type ParsedAddress struct {
	Scheme   string
	Host     string
	Port     string
	Path     string
	User     string
	Password string
	HasUser  bool
}

// ParseURL parses a full URL and extracts scheme, host, port, path and
// userinfo. The port defaults per scheme. The vault:// scheme is an alias
// for http://.
func ParseURL(rawURL string) (ParsedAddress, error) {
	if rawURL == "" {
		return ParsedAddress{}, fmt.Errorf("empty URL")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ParsedAddress{}, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return ParsedAddress{}, fmt.Errorf("missing scheme in URL %q", rawURL)
	}
	if _, ok := schemeKinds[scheme]; !ok {
		return ParsedAddress{}, fmt.Errorf("unsupported URL scheme %q", scheme)
	}

	host, port, err := extractHostPort(u.Host, DefaultPorts[scheme])
	if err != nil {
		return ParsedAddress{}, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	p := ParsedAddress{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   u.Path,
	}
	if scheme == "vault" {
		p.Scheme = "http"
	}
	if u.User != nil {
		p.HasUser = true
		p.User = u.User.Username()
		p.Password, _ = u.User.Password()
	}
	return p, nil
}

// ParseAddress accepts either a URL or a bare host[:port]. Bare hosts get
// defaultPort.
func ParseAddress(raw, defaultPort string) (ParsedAddress, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		return ParseURL(raw)
	}
	host, port, err := extractHostPort(raw, defaultPort)
	if err != nil {
		return ParsedAddress{}, fmt.Errorf("invalid address %q: %w", raw, err)
	}
	return ParsedAddress{Host: host, Port: port}, nil
}

// SchemeAllowed reports whether a URL scheme can address kind.
func SchemeAllowed(scheme string, kind ServiceKind) bool {
	if scheme == "" {
		return true
	}
	for _, k := range schemeKinds[scheme] {
		if k == kind {
			return true
		}
	}
	return false
}

// extractHostPort splits a host:port string, applying default port if missing.
// Handles IPv6 addresses in brackets: [::1]:5432 → host=::1, port=5432.
func extractHostPort(hostPort, defaultPort string) (string, string, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		host = hostPort
		port = defaultPort

		if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
			host = host[1 : len(host)-1]
		}
	}

	if host == "" {
		return "", "", fmt.Errorf("empty host")
	}

	if port == "" {
		port = defaultPort
	}
	if port == "" {
		return "", "", fmt.Errorf("missing port for host %q", host)
	}

	if err := validatePort(port); err != nil {
		return "", "", err
	}

	return host, port, nil
}

// validatePort checks that port is a valid number in 1-65535.
func validatePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", port, err)
	}
	if p < 1 || p > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", p)
	}
	return nil
}
