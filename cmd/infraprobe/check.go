package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/BigKAA/infraprobe/infraprobe"
	_ "github.com/BigKAA/infraprobe/infraprobe/probes" // all service kinds
	"github.com/BigKAA/infraprobe/internal/config"
)

type checkFlags struct {
	config   string
	output   string
	textfile string
}

// checkReport is one line of the json output.
type checkReport struct {
	Check  string            `json:"check"`
	Passed bool              `json:"passed"`
	Result infraprobe.Result `json:"result"`
	Error  string            `json:"error,omitempty"`
}

func newCheckCmd(g *globalFlags) *cobra.Command {
	f := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe every declared service once",
		Long: `Resolve every check first; a missing address or credential stops the run
with exit code 2 before any connection is made. Then probe each service
once, in order, and evaluate its expectations.

Without --config the built-in checks run: web server, Vault health,
database and cache round trip.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, g, f)
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "YAML check list")
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "output format: text or json")
	cmd.Flags().StringVar(&f.textfile, "textfile", "", "write probe metrics to this file in the node exporter textfile format")
	return cmd
}

func runCheck(cmd *cobra.Command, g *globalFlags, f *checkFlags) error {
	if f.output != "text" && f.output != "json" {
		return &exitError{code: exitConfig, err: fmt.Errorf("unknown output format %q", f.output)}
	}

	checks := config.DefaultChecks()
	if f.config != "" {
		file, err := config.Load(f.config)
		if err != nil {
			return err
		}
		checks = file.Checks
	}

	var reg *prometheus.Registry
	var registerer prometheus.Registerer
	if f.textfile != "" {
		reg = prometheus.NewRegistry()
		registerer = reg
	}
	h, flush, err := g.newHarness(registerer)
	if err != nil {
		return err
	}
	defer flush()

	targets := make([]infraprobe.Target, len(checks))
	for i, c := range checks {
		t, err := h.Resolve(c.Spec())
		if err != nil {
			return err
		}
		targets[i] = t
	}

	ctx := cmd.Context()
	reports := make([]checkReport, 0, len(checks))
	failed := 0
	for i, c := range checks {
		var res infraprobe.Result
		var verr error
		if p := c.Prober(); p != nil {
			res = h.ProbeWith(ctx, p, targets[i])
			verr = infraprobe.Evaluate(res, c.Expectations()...)
		} else {
			res, verr = h.Verify(ctx, targets[i], c.Expectations()...)
		}
		r := checkReport{Check: c.Name, Passed: verr == nil, Result: res}
		if verr != nil {
			r.Error = verr.Error()
			failed++
		}
		reports = append(reports, r)
	}

	out := cmd.OutOrStdout()
	if f.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		writeText(out, reports)
	}

	if reg != nil {
		if err := prometheus.WriteToTextfile(f.textfile, reg); err != nil {
			return fmt.Errorf("write textfile: %w", err)
		}
	}

	if failed > 0 {
		return &exitError{code: exitFailed, err: fmt.Errorf("%d of %d checks failed", failed, len(checks))}
	}
	return nil
}

func writeText(w io.Writer, reports []checkReport) {
	for _, r := range reports {
		if r.Passed {
			fmt.Fprintf(w, "PASS %-12s %s\n", r.Check, r.Result.Summary())
			continue
		}
		fmt.Fprintf(w, "FAIL %-12s %s\n", r.Check, r.Error)
	}
}
