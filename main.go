package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dcwms",
	Short: "On demand composited WMS tile server",
	Long: `dcwms serves archived satellite datasets as WMS map tiles.

Each tile is composited on request from the datasets of a layer's product
that cover it: either the most recent acquisitions of a day or a cloud free
mosaic over a time window.

Configuration can be set via environment variables or command-line flags.
Flags take precedence over environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("layers", "layers.json", "Layer catalog file (JSON or YAML)")
	rootCmd.PersistentFlags().String("index", "index.json", "Dataset index file (JSON or YAML)")
	rootCmd.PersistentFlags().String("bucket", "", "GCS bucket holding dataset objects")
	rootCmd.PersistentFlags().String("data-dir", "./data", "Local directory holding dataset objects, used when no bucket is set")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or console")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
