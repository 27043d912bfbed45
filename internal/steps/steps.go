// Package steps binds the acceptance features to the probe harness.
// Each scenario gets a fresh infraprobe.ScenarioContext; steps resolve a
// target, probe it once and evaluate the result.
package steps

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/BigKAA/infraprobe/infraprobe"
	_ "github.com/BigKAA/infraprobe/infraprobe/probes" // all service kinds
	"github.com/BigKAA/infraprobe/infraprobe/probes/redisprobe"
)

// Features holds the embedded feature files under features/.
//
//go:embed features/*.feature
var Features embed.FS

// Scenario keys used by the steps in addition to the infraprobe ones.
const (
	keyResolver     = "resolver"
	keyResolveError = "resolve_error"
	keyWritten      = "written"
)

const services = `(web server|Vault|Vault API|database|cache)`

var specs = map[string]func() infraprobe.TargetSpec{
	"web server": infraprobe.WebSpec,
	"Vault":      infraprobe.VaultSpec,
	"Vault API":  infraprobe.VaultAuthSpec,
	"database":   infraprobe.PostgresSpec,
	"cache":      infraprobe.RedisSpec,
}

// DefaultCredentialsPath is where provisioning writes the Vault
// initialization output, files/vault_init_output.json at the repository root.
var DefaultCredentialsPath = infraprobe.CallerRelativePath("../../files/" + infraprobe.DefaultCredentialsFile)

// NewResolver returns a resolver reading DefaultCredentialsPath unless
// INFRAPROBE_CREDENTIALS_FILE names another file.
func NewResolver(opts ...infraprobe.ResolverOption) *infraprobe.Resolver {
	return infraprobe.NewResolver(append([]infraprobe.ResolverOption{infraprobe.WithCredentialsPath(DefaultCredentialsPath)}, opts...)...)
}

// Suite holds what the steps share across scenarios.
type Suite struct {
	harness   *infraprobe.Harness
	lookupEnv func(string) (string, bool)
}

// NewSuite creates a Suite probing through h.
func NewSuite(h *infraprobe.Harness) *Suite {
	return &Suite{harness: h, lookupEnv: os.LookupEnv}
}

// Options returns the godog options for the embedded features. Scenarios
// run one at a time.
func Options(format, tags string) *godog.Options {
	if format == "" {
		format = "pretty"
	}
	return &godog.Options{
		Format:      format,
		Paths:       []string{"features"},
		FS:          Features,
		Tags:        tags,
		Strict:      true,
		Concurrency: 0,
	}
}

// Run runs the suite with opts and returns the godog exit status.
func (s *Suite) Run(opts *godog.Options) int {
	return godog.TestSuite{
		Name:                "infraprobe",
		ScenarioInitializer: s.InitializeScenario,
		Options:             opts,
	}.Run()
}

// InitializeScenario registers hooks and steps.
func (s *Suite) InitializeScenario(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return infraprobe.WithScenario(ctx, infraprobe.NewScenarioContext()), nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		return infraprobe.WithScenario(ctx, nil), nil
	})

	sc.Step(`^the `+services+` address$`, s.theAddress)
	sc.Step(`^the `+services+` at "([^"]*)"$`, s.theAddressAt)
	sc.Step(`^no database credentials are configured$`, s.noDatabaseCredentials)
	sc.Step(`^I resolve the `+services+` address$`, s.iResolve)
	sc.Step(`^resolving fails with a configuration error naming "([^"]*)"$`, s.resolvingFailsNaming)

	sc.Step(`^I probe it$`, s.iProbeIt)
	sc.Step(`^I open a TCP connection to it$`, s.iOpenTCP)
	sc.Step(`^I write "([^"]*)" under "([^"]*)" and read it back$`, s.iWriteAndReadBack)
	sc.Step(`^I write the test value and read it back$`, s.iWriteTestValue)

	sc.Step(`^the probe succeeds$`, s.expect(infraprobe.Succeeds))
	sc.Step(`^the connection fails$`, s.expect(infraprobe.FailsToConnect))
	sc.Step(`^the connection fails naming "([^"]*)"$`, s.connectionFailsNaming)
	sc.Step(`^the status code is (\d+)$`, s.statusIs)
	sc.Step(`^the status code is one of ([\d, ]+)$`, s.statusIn)
	sc.Step(`^"([^"]*)" is (true|false)$`, s.flagIs)
	sc.Step(`^"([^"]*)" equals "([^"]*)"$`, s.valueEquals)
	sc.Step(`^"([^"]*)" contains "([^"]*)"$`, s.contains)
	sc.Step(`^the value read back equals the value written$`, s.readBackEqualsWritten)
}

func scenario(ctx context.Context) (*infraprobe.ScenarioContext, error) {
	sc := infraprobe.ScenarioFrom(ctx)
	if sc == nil {
		return nil, errors.New("no scenario context; the Before hook did not run")
	}
	return sc, nil
}

func (s *Suite) resolver(sc *infraprobe.ScenarioContext) *infraprobe.Resolver {
	if v, err := sc.Get(keyResolver); err == nil {
		if r, ok := v.(*infraprobe.Resolver); ok {
			return r
		}
	}
	return s.harness.Resolver()
}

func (s *Suite) resolve(ctx context.Context, service, literal string) (*infraprobe.ScenarioContext, error) {
	sc, err := scenario(ctx)
	if err != nil {
		return nil, err
	}
	spec := specs[service]()
	if literal != "" {
		spec = spec.WithAddress(literal)
	}
	target, err := s.resolver(sc).Resolve(spec)
	if err != nil {
		return sc, err
	}
	sc.Set(infraprobe.KeyTarget, target)
	if target.Credentials != nil {
		sc.Set(infraprobe.KeyCredentials, *target.Credentials)
	}
	return sc, nil
}

func (s *Suite) theAddress(ctx context.Context, service string) error {
	_, err := s.resolve(ctx, service, "")
	return err
}

func (s *Suite) theAddressAt(ctx context.Context, service, literal string) error {
	_, err := s.resolve(ctx, service, literal)
	return err
}

// noDatabaseCredentials swaps in a resolver that sees neither the database
// credential variables nor a credentials file.
func (s *Suite) noDatabaseCredentials(ctx context.Context) error {
	sc, err := scenario(ctx)
	if err != nil {
		return err
	}
	hidden := map[string]bool{
		infraprobe.EnvDBUser:          true,
		infraprobe.EnvDBPass:          true,
		infraprobe.EnvCredentialsFile: true,
	}
	lookup := s.lookupEnv
	sc.Set(keyResolver, infraprobe.NewResolver(infraprobe.WithLookupEnv(func(k string) (string, bool) {
		if hidden[k] {
			return "", false
		}
		return lookup(k)
	})))
	return nil
}

func (s *Suite) iResolve(ctx context.Context, service string) error {
	sc, err := s.resolve(ctx, service, "")
	if sc == nil {
		return err
	}
	sc.Set(keyResolveError, err)
	return nil
}

func (s *Suite) resolvingFailsNaming(ctx context.Context, name string) error {
	sc, err := scenario(ctx)
	if err != nil {
		return err
	}
	v, err := sc.Get(keyResolveError)
	if err != nil {
		return err
	}
	resolveErr, _ := v.(error)
	var cfgErr *infraprobe.ConfigurationError
	if !errors.As(resolveErr, &cfgErr) {
		return fmt.Errorf("expected a configuration error, got %v", resolveErr)
	}
	if !strings.Contains(cfgErr.Error(), name) {
		return fmt.Errorf("configuration error %q does not name %s", cfgErr, name)
	}
	if sc.Has(infraprobe.KeyResult) {
		return errors.New("a probe ran although resolving failed")
	}
	return nil
}

func (s *Suite) probe(ctx context.Context, p infraprobe.Prober, convert func(infraprobe.Target) infraprobe.Target) error {
	sc, err := scenario(ctx)
	if err != nil {
		return err
	}
	target, err := sc.Target()
	if err != nil {
		return err
	}
	if convert != nil {
		target = convert(target)
	}
	var res infraprobe.Result
	if p != nil {
		res = s.harness.ProbeWith(ctx, p, target)
	} else {
		res = s.harness.Probe(ctx, target)
	}
	sc.Set(infraprobe.KeyResult, res)
	return nil
}

func (s *Suite) iProbeIt(ctx context.Context) error {
	return s.probe(ctx, nil, nil)
}

func (s *Suite) iOpenTCP(ctx context.Context) error {
	return s.probe(ctx, nil, func(t infraprobe.Target) infraprobe.Target {
		return infraprobe.Target{Name: t.Name + "-port", Kind: infraprobe.KindTCP, Host: t.Host, Port: t.Port}
	})
}

func (s *Suite) iWriteAndReadBack(ctx context.Context, value, key string) error {
	sc, err := scenario(ctx)
	if err != nil {
		return err
	}
	sc.Set(keyWritten, value)
	return s.probe(ctx, redisprobe.New(redisprobe.WithRoundTrip(key, value)), nil)
}

func (s *Suite) iWriteTestValue(ctx context.Context) error {
	return s.iWriteAndReadBack(ctx, redisprobe.DefaultValue, redisprobe.DefaultKey)
}

func (s *Suite) evaluate(ctx context.Context, exps ...infraprobe.Expectation) error {
	sc, err := scenario(ctx)
	if err != nil {
		return err
	}
	res, err := sc.Result()
	if err != nil {
		return err
	}
	return infraprobe.Evaluate(res, exps...)
}

func (s *Suite) expect(e func() infraprobe.Expectation) func(context.Context) error {
	return func(ctx context.Context) error {
		return s.evaluate(ctx, e())
	}
}

func (s *Suite) connectionFailsNaming(ctx context.Context, name string) error {
	err := s.evaluate(ctx, infraprobe.Succeeds())
	var connErr *infraprobe.ConnectionError
	if !errors.As(err, &connErr) {
		return fmt.Errorf("expected a connection error, got %v", err)
	}
	if !strings.Contains(connErr.Error(), name) {
		return fmt.Errorf("connection error %q does not name %s", connErr, name)
	}
	return nil
}

func (s *Suite) statusIs(ctx context.Context, code int) error {
	return s.evaluate(ctx, infraprobe.StatusIn(code))
}

func (s *Suite) statusIn(ctx context.Context, list string) error {
	var codes []int
	for _, f := range strings.Split(list, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		c, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("status code %q: %w", f, err)
		}
		codes = append(codes, c)
	}
	return s.evaluate(ctx, infraprobe.StatusIn(codes...))
}

func (s *Suite) flagIs(ctx context.Context, key, want string) error {
	return s.evaluate(ctx, infraprobe.Flag(key, want == "true"))
}

func (s *Suite) valueEquals(ctx context.Context, key, want string) error {
	return s.evaluate(ctx, infraprobe.Value(key, want))
}

func (s *Suite) contains(ctx context.Context, key, item string) error {
	return s.evaluate(ctx, infraprobe.Contains(key, item))
}

func (s *Suite) readBackEqualsWritten(ctx context.Context) error {
	sc, err := scenario(ctx)
	if err != nil {
		return err
	}
	written, err := sc.Get(keyWritten)
	if err != nil {
		return err
	}
	return s.evaluate(ctx, infraprobe.Succeeds(), infraprobe.Value("value", written.(string)))
}
