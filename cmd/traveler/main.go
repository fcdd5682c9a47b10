package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"traveler/traveler/internal/config"
	importfeeds "traveler/traveler/internal/import"
)

var (
	configPath  string
	logLevelStr string
)

var rootCmd = &cobra.Command{
	Use:           "traveler",
	Short:         "Collects feeds and webhooks, keeps what matters, writes it to Rote",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.GetEnvString("TRAVELER_CONFIG", config.DefaultConfigPath),
		"Path to the YAML config file (env: TRAVELER_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevelStr, "log-level", "",
		"Log level: debug, info, warn, error (env: TRAVELER_LOG_LEVEL)")
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("traveler failed")
		os.Exit(1)
	}
}

// loadConfig reads the config file, merges the CSV source list and applies the log level.
func loadConfig() (*config.Config, error) {
	// .env is loaded after flag defaults are set.
	if !rootCmd.PersistentFlags().Changed("config") {
		configPath = config.GetEnvString("TRAVELER_CONFIG", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if logLevelStr != "" {
		if level, err := zerolog.ParseLevel(logLevelStr); err == nil {
			cfg.LogLevel = level
		}
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	if cfg.SourcesCSV != "" {
		extra, err := importfeeds.ReadSources(cfg.SourcesCSV)
		if err != nil {
			return nil, err
		}
		cfg = cfg.WithSources(extra)
	}

	log.Debug().
		Str("config", configPath).
		Int("sources", len(cfg.Sources)).
		Str("state_backend", cfg.State.Backend).
		Msg("Configuration loaded")
	return cfg, nil
}
