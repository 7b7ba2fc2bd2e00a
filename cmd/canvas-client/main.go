package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rickgao/canvas-sync/internal/config"
)

var (
	configPath string
	serverAddr string
	logLevel   string
	logFormat  string

	cfg    *config.ClientConfig
	logger *slog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "canvas-client",
	Short: "Keep a shared pixel canvas in sync with its server",
	Long: `canvas-client connects to a canvas server over TCP, loads the chunks
around a viewport on demand and streams pixel edits in batches.

Available subcommands:
  run     - Mirror the configured viewport and serve status endpoints
  paint   - Send a single pixel edit
  probe   - Check that the server answers the handshake
  version - Print build information`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadAndValidate(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("validate flags: %w", err)
		}
		cfg = loaded

		logger = newLogger(cmd.ErrOrStderr(), cfg.Log).With("instance", cfg.Instance.ID)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "Canvas server host:port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(paintCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command, c *config.ClientConfig) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		c.Server.Addr = serverAddr
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		c.Log.Format = logFormat
	}
}

// newLogger builds the process logger from the log section.
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(lc.Level)}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
