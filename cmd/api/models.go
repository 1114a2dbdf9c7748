package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brody/brody-back/internal/config"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print the model resolved for every task",
		Long: `models loads the active configuration and prints, per task, the
configured model, the model actually used after the free-tier policy is
applied, and the full attempt order of the gateway.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg := config.Load()
			return printModels(cmd, cfg)
		},
	}
}

func printModels(cmd *cobra.Command, cfg config.Config) error {
	models := cfg.ModelConfig()
	policy := cfg.FreeTierPolicy()
	gateway := newGateway(cfg, nil, nil)
	selector := gateway.Selector()

	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(out, "only_free=%t\tavailable=%t\n\n", policy.OnlyFree(), gateway.Available())
	fmt.Fprintln(out, "TASK\tCONFIGURED\tRESOLVED\tSUBSTITUTED\tPLAN")
	for _, task := range models.Tasks() {
		configured := models.ModelFor(task)
		resolved, ok := selector.Resolve(task, "")
		if !ok {
			resolved = "-"
		}
		substituted := ok && resolved != configured
		fmt.Fprintf(out, "%s\t%s\t%s\t%t\t%v\n", task, configured, resolved, substituted, gateway.Plan(task, ""))
	}
	return out.Flush()
}
