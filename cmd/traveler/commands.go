package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"traveler/traveler/internal/collect"
	"traveler/traveler/internal/config"
	"traveler/traveler/internal/database"
	"traveler/traveler/internal/dedupe"
	"traveler/traveler/internal/metrics"
	"traveler/traveler/internal/pipeline"
	"traveler/traveler/internal/rote"
	"traveler/traveler/internal/scheduler"
	"traveler/traveler/internal/server"
	"traveler/traveler/internal/server/webhook"
	"traveler/traveler/internal/verify"
)

const runTimeout = 30 * time.Minute

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect sources, pick the best items and write them as notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		schedule, _ := cmd.Flags().GetString("schedule")
		if !cmd.Flags().Changed("schedule") {
			schedule = config.GetEnvString("TRAVELER_SCHEDULE", schedule)
		}
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		if !cmd.Flags().Changed("metrics-addr") {
			metricsAddr = config.GetEnvString("TRAVELER_METRICS_ADDR", metricsAddr)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var notes pipeline.NoteCreator
		if cfg.Output.Rote.Enabled {
			if err := cfg.RequireRote(); err != nil {
				return err
			}
			notes = rote.NewClient(cfg.Rote.APIBase, cfg.Rote.OpenKey)
		}

		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		collector := collect.New(collect.NewFeedFetcher(cfg.Fetch), collect.Options{
			Workers:      cfg.Fetch.Workers,
			HostInterval: cfg.Fetch.HostInterval,
		})
		runner := pipeline.NewRunner(cfg, collector, store, notes)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if schedule == "" {
			log.Info().Msg("Running in one-shot mode")
			return runCycle(ctx, runner)
		}

		if cfg.Webhook.Enabled {
			if err := cfg.RequireWebhookAuth(); err != nil {
				return err
			}
			if err := cfg.RequireRote(); err != nil {
				return err
			}
			opts, err := webhookServer(cfg)
			if err != nil {
				return err
			}
			go func() {
				if err := server.Run(ctx, opts); err != nil {
					log.Error().Err(err).Msg("Webhook server failed")
				}
			}()
		}

		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			go func() {
				err := server.Run(ctx, server.Options{
					Addr:    metricsAddr,
					Service: "traveler-metrics",
					Handler: mux,
					Logger:  log.Logger,
				})
				if err != nil {
					log.Error().Err(err).Msg("Metrics server failed")
				}
			}()
		}

		sched, err := scheduler.New(ctx, schedule, func(ctx context.Context) {
			if err := runCycle(ctx, runner); err != nil {
				log.Error().Err(err).Msg("Processing cycle failed")
			}
		})
		if err != nil {
			return err
		}
		log.Info().Str("schedule", schedule).Msg("Running in scheduled mode")
		sched.Run(ctx)
		return nil
	},
}

func runCycle(ctx context.Context, runner *pipeline.Runner) error {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	res, err := runner.RunOnce(runCtx)

	log.Info().
		Dur("duration", time.Since(start)).
		Int("collected", res.Collected).
		Int("sources_failed", res.SourcesFailed).
		Int("selected", res.Selected).
		Int("created", res.Created).
		Int("failed", res.Failed).
		Msg("Processing cycle finished")

	if err != nil && errors.Is(err, context.Canceled) {
		log.Info().Msg("Processing cycle canceled by shutdown signal")
		return nil
	}
	return err
}

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Serve the webhook-to-notes endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RequireWebhookAuth(); err != nil {
			return err
		}
		if err := cfg.RequireRote(); err != nil {
			return err
		}

		opts, err := webhookServer(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return server.Run(ctx, opts)
	},
}

// webhookServer builds the webhook-to-notes listener. The caller has checked
// the webhook and Rote credentials.
func webhookServer(cfg *config.Config) (server.Options, error) {
	verifier, err := verify.New(cfg.Webhook.VerifyConfig())
	if err != nil {
		return server.Options{}, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	handler := webhook.NewHandler(webhook.Deps{
		Path:        cfg.Webhook.Path,
		MaxBody:     cfg.Webhook.MaxBodyBytes(),
		Persona:     cfg.Persona.Name,
		DefaultTags: cfg.NoteTags(),
		Verifier:    verifier,
		Notes:       rote.NewClient(cfg.Rote.APIBase, cfg.Rote.OpenKey),
	})

	log.Info().
		Str("address", cfg.Webhook.ListenAddr()).
		Str("path", cfg.Webhook.Path).
		Stringer("auth_mode", verifier.Mode()).
		Msg("Webhook server listening")
	return server.Options{
		Addr:    cfg.Webhook.ListenAddr(),
		Service: "traveler-webhook",
		Handler: handler,
		Logger:  log.Logger,
	}, nil
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the effective feed sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tNAME\tURL")
		for _, src := range cfg.Sources {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", src.Type, src.DisplayName(), src.URL)
		}
		return tw.Flush()
	},
}

func init() {
	runCmd.Flags().String("schedule", config.GetEnvString("TRAVELER_SCHEDULE", ""),
		"Cron expression to repeat the run on; empty runs once (env: TRAVELER_SCHEDULE)")
	runCmd.Flags().String("metrics-addr", config.GetEnvString("TRAVELER_METRICS_ADDR", ""),
		"Address to serve /metrics on in scheduled mode (env: TRAVELER_METRICS_ADDR)")

	rootCmd.AddCommand(runCmd, webhookCmd, sourcesCmd)
}

// openStore opens the configured dedupe backend.
func openStore(cfg *config.Config) (dedupe.Store, func(), error) {
	switch cfg.State.Backend {
	case config.BackendSQLite:
		db, err := database.NewDB(database.NewConfig(cfg.State.SeenDBPath()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return dedupe.NewSQLiteStore(db), func() { db.Close() }, nil
	default:
		store := dedupe.NewFileStore(cfg.State.SeenFilePath())
		log.Debug().Str("path", store.Path()).Msg("Using file dedupe store")
		return store, func() {}, nil
	}
}
