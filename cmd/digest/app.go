package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/config"
	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/enrich"
	"github.com/helixir/literature-digest-service/internal/events"
	"github.com/helixir/literature-digest-service/internal/llm"
	"github.com/helixir/literature-digest-service/internal/mail"
	"github.com/helixir/literature-digest-service/internal/observability"
	"github.com/helixir/literature-digest-service/internal/papersources/pubmed"
	"github.com/helixir/literature-digest-service/internal/review"
	"github.com/helixir/literature-digest-service/internal/schedule"
	httpserver "github.com/helixir/literature-digest-service/internal/server/http"
	"github.com/helixir/literature-digest-service/internal/translate"
)

// app holds the wired components of the service.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	loc     *time.Location
	guard   *schedule.Guard
	runner  *schedule.Runner
	closers []func() error
}

// newApp builds every component from cfg. Nothing is started.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Metrics.Enabled {
		a.metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve scheduler timezone: %w", err)
	}
	a.loc = loc
	a.guard = schedule.NewGuard(cfg.Scheduler.MarkerPath, loc, logger)

	queryGen, err := a.generator(ctx, config.TaskQueryGenerator)
	if err != nil {
		return nil, err
	}
	summarizer, err := a.generator(ctx, config.TaskSummarizer)
	if err != nil {
		return nil, err
	}
	translatorGen, err := a.generator(ctx, config.TaskAbstractTranslator)
	if err != nil {
		return nil, err
	}

	source := pubmed.New(pubmed.Config{
		BaseURL:    cfg.PubMed.BaseURL,
		APIKey:     cfg.PubMed.APIKey,
		Email:      cfg.PubMed.Email,
		Tool:       cfg.PubMed.Tool,
		Timeout:    cfg.PubMed.Timeout,
		RateLimit:  cfg.PubMed.RateLimit,
		MaxRetries: cfg.PubMed.MaxRetries,
		MaxResults: cfg.PubMed.MaxArticles,
	}, logger)

	catalog := enrich.LoadCatalog(cfg.DataFiles.ZKYPath, cfg.DataFiles.JCRPath, logger)

	translator := translate.New(translatorGen, translate.Config{
		Template:   cfg.Prompts.TranslateAbstract,
		BatchSize:  cfg.Translation.BatchSize,
		BatchDelay: cfg.Translation.BatchDelay(),
	}, logger, translate.WithMetrics(a.metrics))

	dispatcher, err := newDispatcher(cfg, mail.NewSMTPTransport(cfg.SMTP.Timeout, cfg.SMTP.InsecureSkipVerify), logger, mail.WithMetrics(a.metrics))
	if err != nil {
		return nil, err
	}

	renderer, err := mail.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create report renderer: %w", err)
	}

	var debugDir string
	if cfg.Debug.Enabled {
		debugDir = cfg.Debug.OutputDir
	}

	orchestrator, err := review.New(review.Config{
		QueryPrompt:      cfg.Prompts.GenerateQuery,
		ReviewPrompt:     cfg.Prompts.GenerateReview,
		MaxArticles:      cfg.PubMed.MaxArticles,
		SearchWindowDays: cfg.PubMed.SearchWindowDays,
		KeywordDelay:     cfg.Scheduler.KeywordDelay(),
		AdminEmail:       cfg.SMTP.AdminEmail,
		DebugDir:         debugDir,
	}, review.Dependencies{
		Subscriptions:  cfg.Subscriptions,
		QueryGenerator: queryGen,
		Summarizer:     summarizer,
		Source:         source,
		Enricher:       catalog,
		Translator:     translator,
		Mailer:         dispatcher,
		Renderer:       renderer,
	}, logger, review.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	opts := []schedule.RunnerOption{schedule.WithRunnerMetrics(a.metrics)}
	if cfg.Kafka.Enabled {
		pub := events.NewKafkaPublisher(events.PublisherConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, logger)
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, schedule.WithPublisher(pub))
	}
	a.runner = schedule.NewRunner(a.guard, orchestrator, logger, opts...)

	logger.Info().
		Int("keywords", len(cfg.Subscriptions)).
		Int("smtp_accounts", dispatcher.AccountCount()).
		Bool("metrics", cfg.Metrics.Enabled).
		Bool("kafka", cfg.Kafka.Enabled).
		Bool("debug", cfg.Debug.Enabled).
		Msg("literature digest service configured")

	return a, nil
}

// mailAccounts converts the configured SMTP accounts.
func mailAccounts(cfg *config.Config) []mail.Account {
	accounts := make([]mail.Account, 0, len(cfg.SMTP.Accounts))
	for _, acc := range cfg.SMTP.Accounts {
		accounts = append(accounts, mail.Account{
			Server:     acc.Server,
			Port:       acc.Port,
			Username:   acc.Username,
			Password:   acc.Password,
			SenderName: acc.SenderName,
		})
	}
	return accounts
}

func newDispatcher(cfg *config.Config, transport mail.Transport, logger zerolog.Logger, opts ...mail.Option) (*mail.Dispatcher, error) {
	dispatcher, err := mail.NewDispatcher(mail.DispatcherConfig{
		Accounts:            mailAccounts(cfg),
		MaxRetries:          cfg.SMTP.MaxRetries,
		RetryDelay:          cfg.SMTP.RetryDelay(),
		BaseIntervalMinutes: cfg.SMTP.BaseIntervalMinutes,
	}, transport, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail dispatcher: %w", err)
	}
	return dispatcher, nil
}

// reportSetupFailure mails the admin a failed run summary carrying setupErr.
// It only needs the SMTP section of cfg, so it works when the rest of the
// service could not be built.
func reportSetupFailure(ctx context.Context, cfg *config.Config, transport mail.Transport, logger zerolog.Logger, setupErr error) {
	if cfg.SMTP.AdminEmail == "" {
		return
	}

	dispatcher, err := newDispatcher(cfg, transport, logger)
	if err != nil {
		logger.Error().Err(err).Msg("cannot report setup failure")
		return
	}
	renderer, err := mail.NewRenderer()
	if err != nil {
		logger.Error().Err(err).Msg("cannot report setup failure")
		return
	}

	now := time.Now()
	summary := domain.NewRunSummary(now)
	summary.Finish(now, setupErr)

	body, err := renderer.RenderAdminSummary(summary)
	if err != nil {
		logger.Error().Err(err).Msg("failed to render setup failure summary")
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	res := dispatcher.Send(sendCtx, cfg.SMTP.AdminEmail, mail.AdminSubject(summary.Status), body)
	if !res.Delivered {
		logger.Error().Err(res.Err).Str("recipient", cfg.SMTP.AdminEmail).Msg("failed to send setup failure summary")
		return
	}
	logger.Info().Str("recipient", cfg.SMTP.AdminEmail).Msg("setup failure summary sent")
}

// clearMarker removes the daily run marker without building the service.
func clearMarker(cfg *config.Config, logger zerolog.Logger) error {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return fmt.Errorf("resolve scheduler timezone: %w", err)
	}
	guard := schedule.NewGuard(cfg.Scheduler.MarkerPath, loc, logger)
	removed, err := guard.Clear()
	if err != nil {
		return fmt.Errorf("clear marker: %w", err)
	}
	logger.Info().Str("path", guard.Path()).Bool("removed", removed).Msg("daily run marker cleared")
	return nil
}

// generator creates the instrumented LLM generator bound to task.
func (a *app) generator(ctx context.Context, task string) (llm.Generator, error) {
	tm, ok := a.cfg.TaskModelMapping.ForTask(task)
	if !ok {
		return nil, fmt.Errorf("unknown LLM task %q", task)
	}
	for _, p := range a.cfg.LLMProviders {
		if p.Name != tm.ProviderName {
			continue
		}
		g, err := llm.NewGenerator(ctx, llm.ProviderSpec{
			Kind:     p.Provider,
			APIKey:   p.APIKey,
			Endpoint: p.APIEndpoint,
			Model:    tm.ModelName,
		}, llm.Options{
			Temperature: a.cfg.LLM.Temperature,
			Timeout:     a.cfg.LLM.Timeout,
			MaxRetries:  a.cfg.LLM.MaxRetries,
			RetryDelay:  a.cfg.LLM.RetryDelay,
			MaxTokens:   a.cfg.LLM.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s generator: %w", task, err)
		}
		return llm.Instrument(task, g, a.metrics, a.logger), nil
	}
	return nil, fmt.Errorf("create %s generator: unknown provider %q", task, tm.ProviderName)
}

// serve runs the daemon until ctx is cancelled: the daily trigger, the
// optional HTTP server and the optional Kafka run request listener.
func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	daemon, err := schedule.NewDaemon(a.runner, schedule.DaemonConfig{
		RunTime:  a.cfg.Scheduler.RunTime,
		Location: a.loc,
		CatchUp:  a.cfg.Scheduler.CatchUp,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	// Channel to collect component errors.
	errCh := make(chan error, 3)

	var httpSrv *httpserver.Server
	if a.cfg.Server.Enabled {
		metricsPath := ""
		if a.cfg.Metrics.Enabled {
			metricsPath = a.cfg.Metrics.Path
		}
		httpSrv = httpserver.NewServer(ctx, httpserver.Config{
			Address:         a.cfg.Server.HTTPAddress(),
			ReadTimeout:     a.cfg.Server.ReadTimeout,
			WriteTimeout:    a.cfg.Server.WriteTimeout,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
			MetricsPath:     metricsPath,
		}, a.runner, a.logger)

		go func() {
			if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
	}

	if a.cfg.Kafka.Enabled && a.cfg.Kafka.TriggerTopic != "" {
		listener := events.NewListener(events.ListenerConfig{
			Brokers: a.cfg.Kafka.Brokers,
			Topic:   a.cfg.Kafka.TriggerTopic,
			GroupID: a.cfg.Kafka.GroupID,
		}, a.runner, a.logger)
		a.closers = append(a.closers, listener.Close)

		go func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("run request listener error: %w", err)
			}
		}()
	}

	daemonDone := make(chan error, 1)
	go func() { daemonDone <- daemon.Run(ctx) }()

	a.logger.Info().
		Str("run_time", a.cfg.Scheduler.RunTime).
		Bool("http", httpSrv != nil).
		Msg("literature digest service is ready")

	var runErr error
	daemonStopped := false
	select {
	case <-ctx.Done():
		a.logger.Info().Msg("received shutdown signal")
	case runErr = <-errCh:
		a.logger.Error().Err(runErr).Msg("component error")
	case runErr = <-daemonDone:
		daemonStopped = true
	}

	a.logger.Info().Msg("shutting down literature digest service")
	cancel()

	if httpSrv != nil {
		if err := httpSrv.Shutdown(context.Background()); err != nil {
			a.logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	// The daemon returns once an in-flight run has stopped.
	if !daemonStopped {
		if err := <-daemonDone; err != nil && runErr == nil {
			runErr = err
		}
	}

	a.logger.Info().Msg("literature digest service shutdown complete")
	return runErr
}

// close releases Kafka clients.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error().Err(err).Msg("close error")
		}
	}
}
