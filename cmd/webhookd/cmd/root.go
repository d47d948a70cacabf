// Package cmd holds the webhookd CLI surface: serve and validate-config.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configPath string

// Version information (set by build).
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "webhookd",
	Short: "HTTP-triggered command dispatcher",
	Long: `webhookd listens for inbound webhook requests, renders each
webhook's command template against the request parameters, and runs it
through a bounded worker pool according to the webhook's admission mode
(single, deploy or parallel).`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to webhook_server.yml (defaults to the platform search path)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}
