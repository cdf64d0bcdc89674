package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/stagepipe/internal/config"
)

// version is set with -ldflags at build time.
var version = "dev"

var (
	configDir string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "stagepipe",
	Short: "Four-stage travel planning pipeline over A2A",
	Long: `stagepipe runs a request through four independently hosted stages:
a planner that splits it into sub-tasks, an orchestrator that runs them
in order, a tool stage that calls MCP capability servers, and a reflector
that writes the final answer.

Stages and capability servers read their settings from stagepipe.yml in
the config directory.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding stagepipe.yml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(allCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file, fills defaults and validates it.
func loadConfig() (config.Config, error) {
	loaded, err := config.Load(configDir)
	if err != nil {
		return config.Config{}, err
	}
	cfg := loaded.WithDefaults()
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stagepipe version %s\n", version)
	},
}
