// Troubleshootd suggests fixes for captured errors.
//
// It ranks knowledge-base articles and previously resolved errors against a
// captured error, adds diagnostic steps, and learns from helpful/not-helpful
// feedback.
//
// Usage:
//
//	# Serve the HTTP API
//	troubleshootd serve
//
//	# Suggestions for one error
//	troubleshootd suggest 3f1c9a0e-...
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9292 SUGGESTIONS_TIER_TIMEOUT=500ms troubleshootd serve
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/troubleshootd/internal/config"
	"github.com/fyrsmithlabs/troubleshootd/internal/logging"
	"github.com/fyrsmithlabs/troubleshootd/internal/services"
	"github.com/fyrsmithlabs/troubleshootd/internal/storage"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
	dataDir    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "troubleshootd",
		Short: "Troubleshooting suggestion engine",
		Long: `troubleshootd ranks knowledge-base articles, similar resolved errors and
diagnostic steps for a captured error, and adjusts the ranking from user
feedback.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/troubleshootd/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "override storage.data_dir")

	cmd.AddCommand(
		newServeCmd(opts),
		newSuggestCmd(opts),
		newFeedbackCmd(opts),
		newRecordCmd(opts),
		newResolveCmd(opts),
		newSeedCmd(opts),
		newReweightCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the dotenv file, then the config file and environment.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", o.envFile, err)
		}
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if o.dataDir != "" {
		dir, err := config.ExpandHome(o.dataDir)
		if err != nil {
			return nil, err
		}
		cfg.Storage.DataDir = dir
	}
	return cfg, nil
}

// app is what the one-shot commands run against.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    *storage.Store
	services services.Registry
}

// openApp loads the config and wires storage and services. Logs go to the
// command's stderr so stdout stays machine-readable.
func (o *rootOptions) openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, nil, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir, logger.Underlying().Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	reg, err := services.New(services.Options{
		Store:  store,
		Config: cfg,
		Logger: logger.Underlying(),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: store, services: reg}, nil
}

func (a *app) Close() error {
	_ = a.logger.Sync()
	return a.store.Close()
}

// newLogger builds the logger from cfg. provider may be nil.
func newLogger(cfg *config.Config, provider log.LoggerProvider, w io.Writer) (*logging.Logger, error) {
	lc, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	return logging.NewLogger(lc, provider, logging.WithStdout(zapcore.AddSync(w)))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "troubleshootd %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", gitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildDate)
		},
	}
}
