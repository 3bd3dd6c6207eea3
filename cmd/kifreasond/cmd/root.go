// Package cmd implements the kifreasond command-line surface (spec §6).
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "kifreasond",
	Short:        "kifreasond",
	SilenceUsage: true,
	Long:         `Incremental first-order reasoning daemon: forward/backward chaining, rewriting, and universal instantiation over a KIF-like term language.`,
}

var configFile string

// Execute runs the root command.
func Execute() error {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
