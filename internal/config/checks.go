package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/BigKAA/infraprobe/infraprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/httpprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/pgprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/redisprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/vaultprobe"
)

// File is a YAML check list.
//
//	checks:
//	  - name: web
//	    kind: http
//	    address_env: WEB_HOST
//	    default: http://localhost
//	    expect:
//	      status_in: [200]
type File struct {
	Checks []Check `yaml:"checks"`
}

// Check declares one target and what its probe must return. Unset fields
// fall back to the built-in spec of the kind, so a check only needs a kind.
type Check struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	Address     string `yaml:"address"`
	AddressEnv  string `yaml:"address_env"`
	Default     string `yaml:"default"`
	Port        string `yaml:"port"`
	Path        string `yaml:"path"`
	UserEnv     string `yaml:"user_env"`
	PasswordEnv string `yaml:"password_env"`
	DatabaseEnv string `yaml:"database_env"`

	// RequireCredentials overrides the kind's default when set.
	RequireCredentials *bool `yaml:"require_credentials"`

	// HTTP and Vault health only: skip TLS certificate verification.
	Insecure bool `yaml:"insecure"`

	// Postgres only. DSN replaces the resolved host, credentials and database.
	DSN         string `yaml:"dsn"`
	Query       string `yaml:"query"`
	QueryResult string `yaml:"query_result"`

	// Redis only: SET/GET instead of PING.
	RoundTrip *RoundTrip `yaml:"round_trip"`

	Expect Expect `yaml:"expect"`
}

// RoundTrip names the key and value of a cache round trip. Empty fields
// use the prober defaults.
type RoundTrip struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Expect lists the expectations evaluated against the probe result.
type Expect struct {
	FailsToConnect bool                `yaml:"fails_to_connect"`
	StatusIn       []int               `yaml:"status_in"`
	Flags          map[string]bool     `yaml:"flags"`
	Values         map[string]string   `yaml:"values"`
	Contains       map[string][]string `yaml:"contains"`
}

// Load reads and validates a check list.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &infraprobe.ConfigurationError{Target: path, Field: "config file", Cause: err}
	}
	return Parse(data, path)
}

// Parse decodes and validates a check list; name is used in errors.
func Parse(data []byte, name string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &infraprobe.ConfigurationError{Target: name, Field: "config file", Cause: err}
	}
	if len(f.Checks) == 0 {
		return nil, &infraprobe.ConfigurationError{Target: name, Field: "checks", Cause: fmt.Errorf("no checks declared")}
	}
	seen := make(map[string]bool, len(f.Checks))
	for i := range f.Checks {
		c := &f.Checks[i]
		kind, err := infraprobe.ParseKind(c.Kind)
		if err != nil {
			return nil, &infraprobe.ConfigurationError{Target: checkLabel(c, i), Field: "kind", Cause: err}
		}
		c.Kind = string(kind)
		if c.Name == "" {
			c.Name = c.Kind
		}
		if seen[c.Name] {
			return nil, &infraprobe.ConfigurationError{Target: c.Name, Field: "name", Cause: fmt.Errorf("duplicate check name %q", c.Name)}
		}
		seen[c.Name] = true
		if c.RoundTrip != nil && kind != infraprobe.KindRedis {
			return nil, &infraprobe.ConfigurationError{Target: c.Name, Field: "round_trip", Cause: fmt.Errorf("only valid for redis checks")}
		}
		if (c.Query != "" || c.DSN != "") && kind != infraprobe.KindPostgres {
			return nil, &infraprobe.ConfigurationError{Target: c.Name, Field: "query", Cause: fmt.Errorf("query and dsn are only valid for postgres checks")}
		}
		if c.Insecure && kind != infraprobe.KindHTTP && kind != infraprobe.KindVaultHealth {
			return nil, &infraprobe.ConfigurationError{Target: c.Name, Field: "insecure", Cause: fmt.Errorf("only valid for http and vault_health checks")}
		}
	}
	return &f, nil
}

func checkLabel(c *Check, i int) string {
	if c.Name != "" {
		return c.Name
	}
	return "checks[" + strconv.Itoa(i) + "]"
}

// DefaultChecks returns the checks run when no file is given: the web
// server, Vault health, the database and the cache round trip.
func DefaultChecks() []Check {
	return []Check{
		{Name: "web", Kind: string(infraprobe.KindHTTP), Expect: Expect{StatusIn: []int{200}}},
		{Name: "vault", Kind: string(infraprobe.KindVaultHealth), Expect: Expect{StatusIn: vaultprobe.ValidStatusCodes}},
		{Name: "postgres", Kind: string(infraprobe.KindPostgres), Expect: Expect{Values: map[string]string{"result": "1"}}},
		{Name: "redis", Kind: string(infraprobe.KindRedis), RoundTrip: &RoundTrip{}, Expect: Expect{Values: map[string]string{"value": redisprobe.DefaultValue}}},
	}
}

// Spec converts the check into a TargetSpec, starting from the built-in
// spec of its kind.
func (c Check) Spec() infraprobe.TargetSpec {
	kind := infraprobe.ServiceKind(c.Kind)
	var s infraprobe.TargetSpec
	switch kind {
	case infraprobe.KindHTTP:
		s = infraprobe.WebSpec()
	case infraprobe.KindVaultHealth:
		s = infraprobe.VaultSpec()
	case infraprobe.KindVaultAuth:
		s = infraprobe.VaultAuthSpec()
	case infraprobe.KindPostgres:
		s = infraprobe.PostgresSpec()
	case infraprobe.KindRedis:
		s = infraprobe.RedisSpec()
	default:
		s = infraprobe.TCPSpec("", "", "")
	}
	s.Kind = kind
	if c.Name != "" {
		s.Name = c.Name
	}
	if c.Address != "" {
		s.Address.Literal = c.Address
	}
	if c.AddressEnv != "" {
		s.Address.Env = c.AddressEnv
	}
	if c.Default != "" {
		s.Address.Default = c.Default
	}
	if c.Port != "" {
		s.DefaultPort = c.Port
	}
	if c.Path != "" {
		s.Path = c.Path
	}
	if c.UserEnv != "" {
		s.User.Env = c.UserEnv
	}
	if c.PasswordEnv != "" {
		s.Password.Env = c.PasswordEnv
	}
	if c.DatabaseEnv != "" {
		s.Database.Env = c.DatabaseEnv
	}
	if c.RequireCredentials != nil {
		s.RequireCredentials = *c.RequireCredentials
	}
	return s
}

// Prober returns the prober the check needs, or nil when the registered
// prober of the kind is enough.
func (c Check) Prober() infraprobe.Prober {
	switch {
	case c.RoundTrip != nil:
		return redisprobe.New(redisprobe.WithRoundTrip(c.RoundTrip.Key, c.RoundTrip.Value))
	case c.Query != "" || c.DSN != "":
		var opts []pgprobe.Option
		if c.Query != "" {
			opts = append(opts, pgprobe.WithQuery(c.Query, c.QueryResult))
		}
		if c.DSN != "" {
			opts = append(opts, pgprobe.WithDSN(c.DSN))
		}
		return pgprobe.New(opts...)
	case c.Insecure && c.Kind == string(infraprobe.KindVaultHealth):
		return vaultprobe.NewHealth(httpprobe.WithTLSSkipVerify(true))
	case c.Insecure:
		return httpprobe.New(httpprobe.WithTLSSkipVerify(true))
	}
	return nil
}

// Expectations converts the expect block. FailsToConnect excludes every
// other expectation; otherwise the probe must succeed first.
func (c Check) Expectations() []infraprobe.Expectation {
	e := c.Expect
	if e.FailsToConnect {
		return []infraprobe.Expectation{infraprobe.FailsToConnect()}
	}
	exps := []infraprobe.Expectation{infraprobe.Succeeds()}
	if len(e.StatusIn) > 0 {
		exps = append(exps, infraprobe.StatusIn(e.StatusIn...))
	}
	for _, k := range sortedKeys(e.Flags) {
		exps = append(exps, infraprobe.Flag(k, e.Flags[k]))
	}
	for _, k := range sortedKeys(e.Values) {
		exps = append(exps, infraprobe.Value(k, e.Values[k]))
	}
	for _, k := range sortedKeys(e.Contains) {
		for _, item := range e.Contains[k] {
			exps = append(exps, infraprobe.Contains(k, item))
		}
	}
	return exps
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
