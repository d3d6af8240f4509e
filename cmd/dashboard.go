package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shelfscan/shelfscan/internal/api"
	"github.com/shelfscan/shelfscan/internal/report"
	"github.com/spf13/cobra"
)

func newDashboardCmd(a *app) *cobra.Command {
	var output, export string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show your upload statistics",
		Example: `  shelfscan dashboard
  shelfscan dashboard --output yaml
  shelfscan dashboard --export monthly.parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.SignedIn(ctx)
			if err != nil {
				return err
			}
			user, _ := s.User()

			d, err := a.Client().Dashboard(ctx, s.Token(), user.ID)
			if err != nil {
				if api.IsUnauthorized(err) {
					return fmt.Errorf("%w: session rejected, run `shelfscan login` again", err)
				}
				return fmt.Errorf("failed to fetch dashboard: %w", err)
			}

			out := cmd.OutOrStdout()
			now := time.Now()
			switch output {
			case "yaml":
				err = report.WriteYAML(out, now, user, d)
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				err = enc.Encode(d)
			default:
				err = report.WriteText(out, now, user, d)
			}
			if err != nil {
				return err
			}

			if export != "" {
				n, err := report.ExportParquet(export, d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d rows to %s\n", n, export)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, yaml or json")
	cmd.Flags().StringVar(&export, "export", "", "Write the monthly series to this parquet file")

	return cmd
}
