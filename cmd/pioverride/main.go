package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // set via ldflags during build

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "pioverride",
		Short:         "Game mode property overrides for Insurgency: Sandstorm servers",
		Long:          "pioverride pushes configured gamemodeproperty overrides and enemy-count bounds to a game server over RCON as lifecycle events arrive.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/pioverride.yaml", "path to configuration file")

	rootCmd.AddCommand(
		newRunCmd(&configPath),
		newFireCmd(&configPath),
		newRulesCmd(&configPath),
		newHistoryCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pioverride: %v\n", err)
		os.Exit(1)
	}
}
