package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"signalcode-go/x/logx"
)

var rootCmd = &cobra.Command{
	Use:   "signalsim",
	Short: "Two-street traffic signal simulator",
	Long: `signalsim runs the signal controller against simulated sensors and lamps.

Scenarios can be scripted (run), driven by hand (tui) and reviewed later
from the transition journal (journal).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := LoadConfig()
		logx.Configure(os.Stderr, cfg.Log.Level, cfg.Log.JSON)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default ./signalsim.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "DEBUG, INFO, WARN or ERROR")
	rootCmd.PersistentFlags().String("journal", "", "SQLite journal path (empty disables)")
}

func initConfig() {
	SetDefaults()
	bindFlags()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("signalsim")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/signalsim")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SIGNALSIM")
	// SIGNALSIM_TIMING_MIN_GREEN for timing.min_green
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}

// bindFlags ties persistent flags to their keys; only flags given on the
// command line override file and env values.
func bindFlags() {
	pf := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("config", pf.Lookup("config"))
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("journal.path", pf.Lookup("journal"))
}
