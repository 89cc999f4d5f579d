// Package main is the entry point for the superlists server and its
// maintenance commands.
//
//	superlists serve                  run the HTTP server
//	superlists login-link <email>     print a login link without sending mail
//	superlists purge-tokens           delete spent and expired login tokens
//
// main stays minimal: load configuration, build a logger, and hand off to
// internal/server or the services. All logic lives in internal packages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/superlists/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "superlists",
	Short: "To-do lists with passwordless email login",
	Long: `Superlists serves a JSON API for to-do lists.

Anyone can start a list; users who log in through an emailed link own the
lists they create and can see them all in one place.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml); env vars take precedence")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginLinkCmd)
	rootCmd.AddCommand(purgeTokensCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger every command uses.
func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newLogger creates a text logger on stdout at the named level.
//
// Log levels (from least to most severe): debug → info → warn → error.
// Unknown names fall back to info.
func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}
