package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "blockless",
	Short: "Sandboxed WebAssembly runtime with capability-gated resource access",
	Long: `Blockless runs WebAssembly guests in a sandbox where every resource the
guest touches (network, files, environment, subprocesses) is reached through
drivers and gated by an explicit permission grant. Nothing is reachable by
default.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		initLogger(verbose)
	},
	SilenceUsage: true,
}

// Execute dispatches to the subcommands. Cobra already printed the error,
// so only the exit code is left to set.
func Execute() {
	if rootCmd.Execute() != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $HOME/.blockless.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")
}

// loadConfig merges the optional config file with the process environment.
// A missing file is not an error; every setting has a flag default.
func loadConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot locate home directory", "error", err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".blockless")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("config file loaded", "file", viper.ConfigFileUsed())
	}
}

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
