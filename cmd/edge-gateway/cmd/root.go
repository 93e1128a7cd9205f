// Package cmd provides the CLI commands for edge-gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridianmesh/edge-gateway/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "edge-gateway",
	Short: "EdgeGateway - service mesh ingress, S2S signing, and audit",
	Long: `edge-gateway terminates external traffic, verifies user assertions and
routes policy via the Service Configuration Facilitator, signs/verifies
service-to-service tokens against a KMS-backed key, and append-only logs
every proxied call to a write-ahead audit log.

Quick start:
  1. Create a config file: edge-gateway.yaml
  2. Run: edge-gateway serve

Configuration:
  Config is loaded from edge-gateway.yaml in the current directory,
  $HOME/.edge-gateway/, or /etc/edge-gateway/.

  Environment variables can override config values with the EDGE_GATEWAY_
  prefix (e.g. EDGE_GATEWAY_SERVER_HTTP_ADDR=:9090), or with the
  conventional unprefixed names (e.g. KMS_PROJECT_ID, S2S_JWT_ISSUER).

Commands:
  serve       Start EdgeGateway and the internal control-plane listener
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./edge-gateway.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
