// Arrayacq-server serves ultrasound array acquisitions over TCP.
//
// The server exposes a simulated acquisition device, backed by a stored or
// synthetic dataset, to one client at a time using the array acquisition
// protocol. It can run headless, under an interactive control panel, or be
// exercised from the same binary with the probe command.
//
// Usage:
//
//	arrayacq-server [command] [flags]
//
// See 'arrayacq-server --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/arrayacq/internal/config"
	"github.com/muurk/arrayacq/internal/protocol"
	"github.com/muurk/arrayacq/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "arrayacq-server",
	Short: "Array acquisition server",
	Long: `A single-connection TCP server for ultrasound array acquisition.

Clients connect, configure the (simulated) acquisition device and pull
signals using the array acquisition protocol. Only one client is served at
a time; after a session ends the server accepts the next one.

Configuration is read from config.yaml in the user configuration directory
unless --config is given.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (.yaml or .toml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(panelCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("arrayacq-server %s (protocol %d)\n", version.Full(), protocol.Version)
	},
}
