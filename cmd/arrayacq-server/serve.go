package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/arrayacq/internal/config"
	"github.com/muurk/arrayacq/internal/logging"
	"github.com/muurk/arrayacq/internal/panel"
	"github.com/muurk/arrayacq/internal/protocol"
	"github.com/muurk/arrayacq/internal/version"
)

// Flags shared by serve and panel. Zero values leave the configuration
// untouched.
var (
	flagPort        int
	flagHost        string
	flagLogLevel    string
	flagAdminAddr   string
	flagNoAdmin     bool
	flagNoMDNS      bool
	flagDataFile    string
	flagDatasetName string
	flagKeepEnabled bool
)

func addServerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&flagPort, "port", 0, fmt.Sprintf("Listening port (%d-%d)", config.MinPort, config.MaxPort))
	f.StringVar(&flagHost, "host", "", "Interface to listen on (empty = all interfaces)")
	f.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warning, error)")
	f.StringVar(&flagAdminAddr, "admin-addr", "", "Admin API address")
	f.BoolVar(&flagNoAdmin, "no-admin", false, "Disable the admin API")
	f.BoolVar(&flagNoMDNS, "no-mdns", false, "Do not advertise the server over mDNS")
	f.StringVar(&flagDataFile, "data-file", "", "Dataset database file")
	f.StringVar(&flagDatasetName, "dataset", "", "Dataset name in the data file")
	f.BoolVar(&flagKeepEnabled, "keep-enabled", false, "Keep listening after a session fails or a client drops without DISCONNECT")
}

// serverConfig loads the configuration and applies command-line overrides.
func serverConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if flagHost != "" {
		cfg.Host = flagHost
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagAdminAddr != "" {
		cfg.AdminAddr = flagAdminAddr
	}
	if flagNoAdmin {
		cfg.AdminAddr = ""
	}
	if flagNoMDNS {
		cfg.MDNS = false
	}
	if flagDataFile != "" {
		cfg.DataFile = flagDataFile
	}
	if flagDatasetName != "" {
		cfg.DatasetName = flagDatasetName
	}
	if flagKeepEnabled {
		cfg.KeepEnabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the server without a user interface",
	Long: `Run the acquisition server headless.

The server is enabled on the configured port at start-up and keeps
accepting one client at a time until interrupted. A session that ends
without DISCONNECT disables the server unless --keep-enabled (keep_enabled in
the configuration file) is set. This includes a client that simply drops the
connection. A disabled server can be re-enabled through the admin API.`,
	Example: `  # Serve a synthetic dataset on the default port
  arrayacq-server serve

  # Serve a stored dataset with debug logging
  arrayacq-server serve --data-file sets.db --dataset phantom --log-level debug

  # Custom port, no mDNS, no admin API
  arrayacq-server serve --port 50000 --no-mdns --no-admin`,
	RunE: runServe,
}

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Run the server under the interactive control panel",
	Long: `Run the acquisition server with a terminal control panel.

The server starts disabled. Enter a port and press enter to enable it;
press enter again to disable it. Tab cycles the log level shown in the log
pane.`,
	RunE: runPanel,
}

func init() {
	addServerFlags(serveCmd)
	addServerFlags(panelCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := serverConfig()
	if err != nil {
		return err
	}
	if err := logging.InitializeWith(logging.Options{Level: cfg.LogLevel}); err != nil {
		return err
	}
	defer logging.Sync()

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}

	logging.Info("Starting array acquisition server",
		zap.String("version", version.Full()),
		zap.Uint32("protocol", protocol.Version),
		zap.Int("port", cfg.Port),
	)

	ctx, cancel := signalContext()
	defer cancel()
	return st.run(ctx, cfg.Port)
}

func runPanel(cmd *cobra.Command, args []string) error {
	if !panel.IsTerminal() {
		return fmt.Errorf("the panel needs an interactive terminal; use 'serve' instead")
	}

	cfg, err := serverConfig()
	if err != nil {
		return err
	}

	tail := logging.NewTail(500)
	if err := logging.InitializeWith(logging.Options{Level: cfg.LogLevel, Quiet: true, Tail: tail}); err != nil {
		return err
	}
	defer logging.Sync()

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- st.run(ctx, 0) }()

	err = panel.Run(st.ctrl, panel.Options{
		Port:  cfg.Port,
		Level: cfg.LogLevel,
		Tail:  tail,
	})
	st.ctrl.Exit()
	if rerr := <-runErr; err == nil {
		err = rerr
	}
	return err
}
