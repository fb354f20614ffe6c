package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a scenario script against a fresh controller",
	Long: `Run executes a scenario script line by line and stops at the first
failing command or expectation. The clock is manual unless --realtime is
given, so "tick" advances the controller deterministically.

Use "-" to read the script from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

var runRealtime bool

func init() {
	runCmd.Flags().BoolVar(&runRealtime, "realtime", false, "drive ticks from the wall clock instead of the script")
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	cfg := LoadConfig()
	cfg.Manual = !runRealtime || viper.GetBool("manual")

	in := cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		in = f
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	st, err := startStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	st.runner.Out = cmd.OutOrStdout()
	if err := st.runner.Run(ctx, in); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "PASS")
	return nil
}
