package infraprobe

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Environment variables read by the built-in target specs.
const (
	EnvVaultAddr       = "VAULT_ADDR"
	EnvDBHost          = "DB_HOST"
	EnvDBUser          = "DB_USER"
	EnvDBPass          = "DB_PASS"
	EnvDBName          = "DB_NAME"
	EnvRedisHost       = "REDIS_HOST"
	EnvRedisUser       = "REDIS_USER"
	EnvRedisPass       = "REDIS_PASS"
	EnvWebHost         = "WEB_HOST"
	EnvCredentialsFile = "INFRAPROBE_CREDENTIALS_FILE"
)

// Origin tells which source a resolved value came from.
type Origin string

const (
	OriginNone    Origin = ""
	OriginLiteral Origin = "literal"
	OriginEnv     Origin = "env"
	OriginFile    Origin = "file"
	OriginURL     Origin = "url"
	OriginDefault Origin = "default"
)

// Source lists the places a value may come from. Lookup order is
// Literal, Env, FileKey, Default; empty strings count as absent.
type Source struct {
	Literal string
	Env     string
	FileKey string
	Default string
}

// Env returns a Source reading only the named variable.
func Env(name string) Source {
	return Source{Env: name}
}

// describe lists the consulted places for diagnostics.
func (s Source) describe(credentialsPath string) []string {
	var out []string
	if s.Literal != "" {
		out = append(out, "scenario value")
	}
	if s.Env != "" {
		out = append(out, "env "+s.Env)
	}
	if s.FileKey != "" {
		if credentialsPath != "" {
			out = append(out, fmt.Sprintf("%s in %s", s.FileKey, credentialsPath))
		} else {
			out = append(out, s.FileKey+" in credentials file (none configured)")
		}
	}
	if s.Default != "" {
		out = append(out, "default")
	}
	return out
}

// TargetSpec declares how to build a Target.
type TargetSpec struct {
	Name        string
	Kind        ServiceKind
	Address     Source
	DefaultPort string // used for bare hosts; falls back to DefaultPorts
	Path        string // HTTP path when the address carries none
	User        Source
	Password    Source
	Database    Source
	Token       Source

	// RequireCredentials makes a missing user or password a ConfigurationError.
	RequireCredentials bool
	// RequireToken makes a missing token a ConfigurationError.
	RequireToken bool
}

// WithAddress returns a copy of the spec whose address literal is addr.
func (s TargetSpec) WithAddress(addr string) TargetSpec {
	s.Address.Literal = addr
	return s
}

// WebSpec describes the web server, reachable over HTTP.
func WebSpec() TargetSpec {
	return TargetSpec{
		Name:    "web",
		Kind:    KindHTTP,
		Address: Source{Env: EnvWebHost, Default: "http://localhost"},
		Path:    "/",
	}
}

// VaultSpec describes the Vault health endpoint.
func VaultSpec() TargetSpec {
	return TargetSpec{
		Name:    "vault",
		Kind:    KindVaultHealth,
		Address: Source{Env: EnvVaultAddr, Default: "http://localhost:8200"},
	}
}

// VaultAuthSpec describes an authenticated Vault client using the root
// token written by initialization.
func VaultAuthSpec() TargetSpec {
	return TargetSpec{
		Name:         "vault-auth",
		Kind:         KindVaultAuth,
		Address:      Source{Env: EnvVaultAddr, Default: "http://localhost:8200"},
		Token:        Source{FileKey: FileKeyRootToken},
		RequireToken: true,
	}
}

// PostgresSpec describes the database. User and password are mandatory.
func PostgresSpec() TargetSpec {
	return TargetSpec{
		Name:               "postgres",
		Kind:               KindPostgres,
		Address:            Source{Env: EnvDBHost, Default: "localhost"},
		User:               Source{Env: EnvDBUser, FileKey: FileKeyDBUser},
		Password:           Source{Env: EnvDBPass, FileKey: FileKeyDBPassword},
		Database:           Source{Env: EnvDBName, FileKey: FileKeyDBName, Default: "postgres"},
		RequireCredentials: true,
	}
}

// RedisSpec describes the cache. Username and password are optional (ACL mode).
func RedisSpec() TargetSpec {
	return TargetSpec{
		Name:     "redis",
		Kind:     KindRedis,
		Address:  Source{Env: EnvRedisHost, Default: "localhost"},
		User:     Source{Env: EnvRedisUser, FileKey: FileKeyRedisUser},
		Password: Source{Env: EnvRedisPass, FileKey: FileKeyRedisPassword},
	}
}

// TCPSpec describes a plain TCP socket check.
func TCPSpec(name, address, port string) TargetSpec {
	return TargetSpec{
		Name:        name,
		Kind:        KindTCP,
		Address:     Source{Literal: address},
		DefaultPort: port,
	}
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLookupEnv replaces os.LookupEnv, mostly for tests.
func WithLookupEnv(fn func(string) (string, bool)) ResolverOption {
	return func(r *Resolver) {
		r.lookupEnv = fn
	}
}

// WithCredentialsPath sets the credentials file. An INFRAPROBE_CREDENTIALS_FILE
// value takes precedence over it.
func WithCredentialsPath(path string) ResolverOption {
	return func(r *Resolver) {
		r.credentialsPath = path
	}
}

// Resolver turns TargetSpecs into Targets. It reads environment variables
// and at most one credentials file, both read-only; the file is loaded on
// first use and cached.
type Resolver struct {
	lookupEnv       func(string) (string, bool)
	credentialsPath string

	once    sync.Once
	file    *CredentialsFile
	fileErr error
}

// NewResolver creates a Resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{lookupEnv: os.LookupEnv}
	for _, o := range opts {
		o(r)
	}
	if p, ok := r.env(EnvCredentialsFile); ok {
		r.credentialsPath = p
	}
	return r
}

// CredentialsPath returns the credentials file in use, or "".
func (r *Resolver) CredentialsPath() string {
	return r.credentialsPath
}

func (r *Resolver) env(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	v, ok := r.lookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *Resolver) credentials() (*CredentialsFile, error) {
	r.once.Do(func() {
		if r.credentialsPath == "" {
			return
		}
		r.file, r.fileErr = LoadCredentialsFile(r.credentialsPath)
	})
	return r.file, r.fileErr
}

// Lookup returns the first non-empty value of src and where it came from.
func (r *Resolver) Lookup(src Source) (string, Origin) {
	if src.Literal != "" {
		return src.Literal, OriginLiteral
	}
	if v, ok := r.env(src.Env); ok {
		return v, OriginEnv
	}
	if src.FileKey != "" {
		if f, err := r.credentials(); err == nil {
			if v, ok := f.Get(src.FileKey); ok {
				return v, OriginFile
			}
		}
	}
	if src.Default != "" {
		return src.Default, OriginDefault
	}
	return "", OriginNone
}

// Resolve builds the Target described by spec. Missing required values are
// reported as *ConfigurationError without touching the network.
func (r *Resolver) Resolve(spec TargetSpec) (Target, error) {
	name := spec.Name
	if name == "" {
		name = string(spec.Kind)
	}
	if !ValidKinds[spec.Kind] {
		return Target{}, &ConfigurationError{Target: name, Field: "kind", Cause: fmt.Errorf("unknown service kind %q", spec.Kind)}
	}

	raw, _ := r.Lookup(spec.Address)
	if raw == "" {
		return Target{}, &ConfigurationError{Target: name, Field: "address", Sources: spec.Address.describe(r.credentialsPath)}
	}

	defaultPort := spec.DefaultPort
	if defaultPort == "" {
		defaultPort = DefaultPorts[string(spec.Kind)]
	}
	addr, err := ParseAddress(raw, defaultPort)
	if err != nil {
		return Target{}, &ConfigurationError{Target: name, Field: "address", Cause: err}
	}
	if !SchemeAllowed(addr.Scheme, spec.Kind) {
		return Target{}, &ConfigurationError{Target: name, Field: "address", Cause: fmt.Errorf("scheme %q cannot address a %s target", addr.Scheme, spec.Kind)}
	}

	t := Target{
		Name: name,
		Kind: spec.Kind,
		Host: addr.Host,
		Port: addr.Port,
	}

	switch spec.Kind {
	case KindHTTP:
		t.Scheme = schemeOrHTTP(addr.Scheme)
		t.Path = addr.Path
		if t.Path == "" {
			t.Path = spec.Path
		}
	case KindVaultHealth, KindVaultAuth:
		t.Scheme = schemeOrHTTP(addr.Scheme)
		t.Path = strings.TrimSuffix(addr.Path, "/")
	}

	creds, err := r.resolveCredentials(name, spec, addr)
	if err != nil {
		return Target{}, err
	}
	t.Credentials = creds

	if spec.Kind == KindPostgres {
		db, origin := r.Lookup(spec.Database)
		if (origin == OriginDefault || origin == OriginNone) && strings.Trim(addr.Path, "/") != "" {
			db = strings.Trim(addr.Path, "/")
		}
		t.Database = db
	}

	if tok, _ := r.Lookup(spec.Token); tok != "" {
		t.Token = tok
	} else if spec.RequireToken {
		_, fileErr := r.credentials()
		return Target{}, &ConfigurationError{
			Target:  name,
			Field:   "token",
			Sources: spec.Token.describe(r.credentialsPath),
			Cause:   fileErr,
		}
	}

	if err := t.Validate(); err != nil {
		return Target{}, &ConfigurationError{Target: name, Field: "target", Cause: err}
	}
	return t, nil
}

func (r *Resolver) resolveCredentials(name string, spec TargetSpec, addr ParsedAddress) (*Credentials, error) {
	user, _ := r.Lookup(spec.User)
	password, _ := r.Lookup(spec.Password)
	if user == "" && addr.HasUser {
		user = addr.User
	}
	if password == "" && addr.HasUser {
		password = addr.Password
	}

	if spec.RequireCredentials {
		var missing []string
		var sources []string
		if user == "" {
			missing = append(missing, "user")
			sources = append(sources, spec.User.describe(r.credentialsPath)...)
		}
		if password == "" {
			missing = append(missing, "password")
			sources = append(sources, spec.Password.describe(r.credentialsPath)...)
		}
		if len(missing) > 0 {
			_, fileErr := r.credentials()
			return nil, &ConfigurationError{
				Target:  name,
				Field:   strings.Join(missing, " and "),
				Sources: sources,
				Cause:   fileErr,
			}
		}
	}

	if user == "" && password == "" {
		return nil, nil
	}
	return &Credentials{User: user, Password: password}, nil
}

func schemeOrHTTP(s string) string {
	if s == "" {
		return "http"
	}
	return s
}
