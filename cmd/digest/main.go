// Package main provides the entry point for the literature digest service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/literature-digest-service/internal/config"
	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/mail"
	"github.com/helixir/literature-digest-service/internal/observability"
)

type options struct {
	configFile  string
	forceRun    bool
	clearMarker bool
	once        bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "literature-digest",
		Short: "Daily PubMed literature digests reviewed by an LLM and delivered by email",
		Long: `literature-digest searches PubMed once a day for every subscribed keyword,
has an LLM write a cited review of the new articles, translates the cited
abstracts and mails an HTML report to the keyword's subscribers.

Without flags it runs as a daemon: it catches up a missed run at startup,
fires at scheduler.run_time every day and serves the ops HTTP endpoints.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default searches ./config.yaml, ./config, /etc/literature-digest-service)")
	flags.BoolVar(&opts.forceRun, "force-run", false, "run now even if today already ran, then exit")
	flags.BoolVar(&opts.clearMarker, "clear-marker", false, "remove the daily run marker and exit")
	flags.BoolVar(&opts.once, "once", false, "run now unless today already ran, then exit")
	cmd.MarkFlagsMutuallyExclusive("force-run", "clear-marker", "once")

	return cmd
}

func run(parent context.Context, opts options) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "digest").Logger()

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.clearMarker {
		return clearMarker(cfg, logger)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.WithLevel(zerolog.FatalLevel).Err(err).Msg("service setup failed")
		reportSetupFailure(ctx, cfg, mail.NewSMTPTransport(cfg.SMTP.Timeout, cfg.SMTP.InsecureSkipVerify), logger, err)
		return err
	}
	defer a.close()

	switch {
	case opts.forceRun, opts.once:
		logger.Info().Bool("force", opts.forceRun).Msg("running once")
		summary, err := a.runner.Run(ctx, opts.forceRun)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyRunning) {
				return err
			}
			return fmt.Errorf("daily run: %w", err)
		}
		logger.Info().
			Str("run_id", summary.RunID.String()).
			Str("status", string(summary.Status)).
			Int("failed_keywords", summary.FailedKeywords()).
			Msg("single run finished")
		return nil

	default:
		return a.serve(ctx)
	}
}
