package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "trafficgen",
		Short:   "Synthetic traffic generator for the pet clinic sample application",
		Version: version,
		Long: `trafficgen drives the pet clinic sample application with a mix of
recurring traffic: steady low-volume requests, periodic high-volume bursts,
deliberately invalid requests, diagnostic calls and owner, pet, visit and
payment writes.

Run without a subcommand it stays in the foreground until interrupted.
Settings come from the environment (URL, LOW_LOAD_MIN, ...) or a YAML
file given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runDaemon,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML)")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	cmd.AddCommand(newTasksCmd())
	cmd.AddCommand(newFireCmd())
	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
