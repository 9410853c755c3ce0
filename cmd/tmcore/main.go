// Command tmcore runs completions against the configured AI provider.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/martinemde/tmcore/adapters"
	"github.com/martinemde/tmcore/config"
	"github.com/martinemde/tmcore/failure"
	"github.com/martinemde/tmcore/provider"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "tmcore",
	Short:         "Provider-agnostic AI completions with retries",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: search for tmcore.yaml)")
	rootCmd.AddCommand(generateCmd, modelsCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, errorText(err))
		os.Exit(1)
	}
}

// errorText shows taxonomy failures by their user message and anything
// else verbatim.
func errorText(err error) string {
	if _, ok := failure.As(err); ok {
		return failure.UserFacing(err)
	}
	return err.Error()
}

// app is the wiring shared by subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	engine *provider.Engine
}

// newApp loads configuration and builds the engine for providerName, or the
// configured provider when empty.
func newApp(providerName, model string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	if providerName == "" {
		providerName = cfg.AIProvider
	}
	if model == "" {
		model = adapters.ModelFor(providerName, cfg.Models.Main)
	}

	p, err := adapters.New(providerName, cfg.APIKey(providerName), model)
	if err != nil {
		return nil, err
	}

	engine, err := provider.NewEngine(p,
		provider.WithRetryConfig(cfg.Retry),
		provider.WithLogger(logger),
		provider.WithMetrics(provider.NewMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("engine ready",
		zap.String("provider", providerName),
		zap.String("model", engine.Model()),
	)
	return &app{cfg: cfg, logger: logger, engine: engine}, nil
}

func (a *app) Close() {
	_ = a.engine.Close()
	_ = a.logger.Sync()
}
