// Package commands implements the CLI commands for optiscope.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/optiscope/internal/logger"
	"github.com/jmylchreest/optiscope/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "optiscope",
	Short: "Inspect the experimentation and tracking setup of web pages",
	Long: `Optiscope reports what a web page runs: the Optimizely project
configuration (experiments, variations, audiences, pages, events), Shopify
storefront state and GA4 / Tag Manager identifiers.

Configuration is assembled from every source available: the in-page
runtime, the management REST API, the CDN snippet and public datafiles.

Examples:
  # Inspect a page using static fetching
  optiscope inspect -u "https://shop.example.com/"

  # Render the page in Chrome to read runtime state
  optiscope inspect -u "https://shop.example.com/" --fetch-mode dynamic

  # Resolve a project without visiting a page
  optiscope resolve --project 30018331732 --format text

  # Serve the HTTP API
  optiscope serve --addr :8080`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pflags := rootCmd.PersistentFlags()
	pflags.String("config", "", "config file (default $HOME/.optiscope.yaml)")
	pflags.Bool("debug", false, "enable debug logging")
	pflags.BoolP("quiet", "q", false, "suppress progress output")
	pflags.Bool("log-json", false, "emit logs as JSON")
	pflags.String("api-token", "", "Optimizely REST API token (or OPTIMIZELY_API_TOKEN)")
	pflags.String("known-identifier", "", "project identifier always probed (empty keeps the default)")

	_ = viper.BindPFlag("config", pflags.Lookup("config"))
	_ = viper.BindPFlag("debug", pflags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", pflags.Lookup("quiet"))
	_ = viper.BindPFlag("log_json", pflags.Lookup("log-json"))
	_ = viper.BindPFlag("api_token", pflags.Lookup("api-token"))
	_ = viper.BindPFlag("known_identifier", pflags.Lookup("known-identifier"))

	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".optiscope")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("OPTISCOPE")
	viper.AutomaticEnv()

	// The management API token is commonly exported under its own name
	_ = viper.BindEnv("api_token", "OPTISCOPE_API_TOKEN", "OPTIMIZELY_API_TOKEN")

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// initLogger configures logging from the global flags.
func initLogger() {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logError("%v", err)
	}
	return err
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
