package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BigKAA/infraprobe/internal/steps"
)

func newFeaturesCmd(g *globalFlags) *cobra.Command {
	var format, tags string
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Run the embedded acceptance features against the live stack",
		Long: `Run the web, vault, database, cache and ports features, one scenario at
a time. Use --tags to select scenarios, e.g. --tags '~@auth' to skip the
ones that need the Vault root token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, flush, err := g.newHarness(nil)
			if err != nil {
				return err
			}
			defer flush()

			opts := steps.Options(format, tags)
			opts.Output = cmd.OutOrStdout()
			if status := steps.NewSuite(h).Run(opts); status != 0 {
				return &exitError{code: exitFailed, err: fmt.Errorf("feature suite failed (status %d)", status)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "pretty", "godog formatter: pretty, progress, cucumber, junit")
	cmd.Flags().StringVar(&tags, "tags", "", "tag expression selecting scenarios")
	return cmd
}
