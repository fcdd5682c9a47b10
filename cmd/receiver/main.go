package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"traveler/traveler/internal/config"
	"traveler/traveler/internal/gateway"
	"traveler/traveler/internal/metrics"
	"traveler/traveler/internal/server"
	"traveler/traveler/internal/server/receiver"
	"traveler/traveler/internal/verify"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := config.LoadReceiver()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid receiver configuration")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	deps := receiver.Deps{
		Path:         cfg.Path,
		MaxBody:      cfg.MaxBodyBytes(),
		AllowSources: cfg.AllowSources,
		SessionKey:   cfg.SessionKey,
		Metrics:      metrics.Handler(),
	}

	deps.Verifier, err = verify.New(verify.Config{
		Mode:             cfg.AuthMode,
		Secret:           cfg.SharedSecret,
		SignatureHeaders: []string{receiver.SignatureHeader},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure signature verification")
	}
	if cfg.AuthMode == verify.Open {
		log.Warn().Msg("Receiver auth mode is open, accepting unsigned events")
	}

	if cfg.GatewayEnabled() {
		deps.Gateway = gateway.NewClient(cfg.GatewayURL, cfg.GatewayToken)
	} else {
		log.Warn().Msg("Gateway URL or token missing, events will be accepted but not forwarded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("address", cfg.ListenAddr()).
		Str("path", cfg.Path).
		Strs("allow_sources", cfg.AllowSources).
		Stringer("auth_mode", cfg.AuthMode).
		Bool("forwarding", deps.Gateway != nil).
		Msg("Receiver listening")

	err = server.Run(ctx, server.Options{
		Addr:    cfg.ListenAddr(),
		Service: receiver.ServiceName,
		Handler: receiver.NewHandler(deps),
		Logger:  log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Receiver failed")
	}
	log.Info().Msg("Receiver stopped")
}
