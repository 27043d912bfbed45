package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BigKAA/infraprobe/infraprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/httpprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/vaultprobe"
	"github.com/BigKAA/infraprobe/internal/config"
	"github.com/BigKAA/infraprobe/internal/logging"
	"github.com/BigKAA/infraprobe/internal/steps"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

// exitError carries an exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var cfgErr *infraprobe.ConfigurationError
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	return exitFailed
}

type globalFlags struct {
	timeout     time.Duration
	logDir      string
	logLevel    string
	verbose     bool
	credentials string
	insecure    bool
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	env := config.FromEnv()

	cmd := &cobra.Command{
		Use:   "infraprobe",
		Short: "Check a provisioned Vault, Nginx, PostgreSQL and Redis stack",
		Long: `infraprobe resolves where each service lives from the environment and the
Vault initialization output, probes it once and checks what came back.

No command retries; every probe is bounded by --timeout.`,
		Version:       infraprobe.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.DurationVar(&g.timeout, "timeout", env.Timeout, "timeout of a single probe (INFRAPROBE_TIMEOUT)")
	pf.StringVar(&g.logDir, "log-dir", env.LogDir, "directory for infraprobe.log (INFRAPROBE_LOG_DIR)")
	pf.StringVar(&g.logLevel, "log-level", env.LogLevel, "log level: debug, info, warn, error (INFRAPROBE_LOG_LEVEL)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "also log to stderr")
	pf.StringVar(&g.credentials, "credentials", steps.DefaultCredentialsPath, "Vault initialization output ("+infraprobe.EnvCredentialsFile+" wins)")
	pf.BoolVar(&g.insecure, "insecure", false, "skip TLS certificate verification for web and Vault health probes")

	cmd.AddCommand(newCheckCmd(g))
	cmd.AddCommand(newFeaturesCmd(g))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// newHarness builds the logger and the harness. The returned func flushes
// the logger.
func (g *globalFlags) newHarness(reg prometheus.Registerer) (*infraprobe.Harness, func(), error) {
	zl, err := logging.NewLogger(logging.Options{Dir: g.logDir, Level: g.logLevel, Console: g.verbose})
	if err != nil {
		return nil, nil, &exitError{code: exitConfig, err: fmt.Errorf("logger: %w", err)}
	}
	flush := func() { _ = zl.Sync() }

	opts := []infraprobe.Option{
		infraprobe.WithTimeout(g.timeout),
		infraprobe.WithLogger(logging.Slog(zl.With(zap.String("component", "infraprobe")))),
		infraprobe.WithResolver(infraprobe.NewResolver(infraprobe.WithCredentialsPath(g.credentials))),
	}
	if g.insecure {
		opts = append(opts,
			infraprobe.WithProber(httpprobe.New(httpprobe.WithTLSSkipVerify(true))),
			infraprobe.WithProber(vaultprobe.NewHealth(httpprobe.WithTLSSkipVerify(true))),
		)
	}
	if reg != nil {
		opts = append(opts, infraprobe.WithRegisterer(reg))
	}
	h, err := infraprobe.New(opts...)
	if err != nil {
		flush()
		return nil, nil, &exitError{code: exitConfig, err: err}
	}
	return h, flush, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "infraprobe %s\n", infraprobe.Version)
			kinds := infraprobe.RegisteredKinds()
			names := make([]string, len(kinds))
			for i, k := range kinds {
				names[i] = string(k)
			}
			fmt.Fprintf(out, "probers: %s\n", strings.Join(names, ", "))
			return nil
		},
	}
}
