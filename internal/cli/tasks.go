package cli

import (
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/trafficgen/internal/output"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the recurring traffic tasks and their cadences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			noColor, _ := cmd.Flags().GetBool("no-color")

			format, err := output.ParseFormat(formatName)
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			return output.NewPrinter(cmd.OutOrStdout(), format, noColor).Tasks(a.scheduler.Tasks())
		},
	}

	cmd.Flags().StringP("format", "f", "table", "Output format (table, json, yaml)")
	return cmd
}
