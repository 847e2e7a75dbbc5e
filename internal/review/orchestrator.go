// Package review runs the daily literature pipeline.
//
// For every subscribed keyword the orchestrator asks the query model for a
// PubMed search term, searches, attaches journal metrics, asks the summary
// model for a review, reconciles the review's citation markers with the
// article list, translates the abstracts of cited articles, renders one
// report and mails it to each recipient. Keywords are processed strictly in
// order; a failure inside one keyword is recorded and the run moves on.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/citation"
	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/llm"
	"github.com/helixir/literature-digest-service/internal/mail"
	"github.com/helixir/literature-digest-service/internal/observability"
	"github.com/helixir/literature-digest-service/internal/papersources"
	"github.com/helixir/literature-digest-service/internal/translate"
)

// adminSendTimeout bounds delivery of the admin summary, which is sent even
// after the run context is cancelled.
const adminSendTimeout = 2 * time.Minute

// Enricher attaches journal metrics to articles.
type Enricher interface {
	Enrich(articles []domain.Article) []domain.Article
}

// Translator translates article abstracts.
type Translator interface {
	Translate(ctx context.Context, articles []domain.Article) *translate.Result
}

// Mailer delivers HTML mail. Send never fails outright; the result says
// whether the message was delivered.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) mail.SendResult
	SendDelay() time.Duration
}

// Renderer produces the report and admin summary bodies.
type Renderer interface {
	RenderReport(data mail.ReportData) (string, error)
	RenderAdminSummary(summary *domain.RunSummary) (string, error)
}

// Config holds the orchestrator settings.
type Config struct {
	// QueryPrompt is the generate_query template.
	QueryPrompt string
	// ReviewPrompt is the generate_review template.
	ReviewPrompt string
	// MaxArticles caps the articles fetched per keyword.
	MaxArticles int
	// SearchWindowDays selects the publication day searched.
	SearchWindowDays int
	// KeywordDelay is the pause between two keywords.
	KeywordDelay time.Duration
	// AdminEmail receives the run summary; empty disables it.
	AdminEmail string
	// DebugDir enables debug dumps when non-empty.
	DebugDir string
}

// Dependencies are the collaborators of the orchestrator. All are required.
type Dependencies struct {
	Subscriptions  []domain.Subscription
	QueryGenerator llm.Generator
	Summarizer     llm.Generator
	Source         papersources.ArticleSource
	Enricher       Enricher
	Translator     Translator
	Mailer         Mailer
	Renderer       Renderer
}

func (d Dependencies) validate() error {
	switch {
	case len(d.Subscriptions) == 0:
		return domain.NewConfigError("subscriptions", "no keyword subscriptions configured")
	case d.QueryGenerator == nil:
		return domain.NewConfigError("query_generator", "generator is required")
	case d.Summarizer == nil:
		return domain.NewConfigError("summarizer", "generator is required")
	case d.Source == nil:
		return domain.NewConfigError("source", "article source is required")
	case d.Enricher == nil:
		return domain.NewConfigError("enricher", "enricher is required")
	case d.Translator == nil:
		return domain.NewConfigError("translator", "translator is required")
	case d.Mailer == nil:
		return domain.NewConfigError("mailer", "mailer is required")
	case d.Renderer == nil:
		return domain.NewConfigError("renderer", "renderer is required")
	}
	return nil
}

// Orchestrator runs the pipeline for every subscription. It implements
// schedule.Job.
type Orchestrator struct {
	cfg     Config
	deps    Dependencies
	debug   *DebugDumper
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSleep replaces the function used to wait between keywords and recipients.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithMetrics records keyword, search and citation metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator. Missing dependencies are configuration errors.
func New(cfg Config, deps Dependencies, logger zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.KeywordDelay < 0 {
		cfg.KeywordDelay = 0
	}

	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		sleep:  translate.Sleep,
		now:    time.Now,
		logger: logger.With().Str("component", "orchestrator").Logger(),
	}
	if cfg.DebugDir != "" {
		o.debug = NewDebugDumper(cfg.DebugDir)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run processes every subscription in order and then mails the admin
// summary. The returned error is set only when the run could not complete
// the keyword loop; keyword failures are recorded in the summary.
func (o *Orchestrator) Run(ctx context.Context) (*domain.RunSummary, error) {
	summary := domain.NewRunSummary(o.now())
	runID := summary.RunID.String()
	ctx = observability.WithRunID(ctx, runID)
	log := observability.WithRunContext(o.logger, runID)

	log.Info().
		Int("keywords", len(o.deps.Subscriptions)).
		Msg("daily run started")

	err := o.processAll(ctx, log, summary)
	summary.Finish(o.now(), err)

	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.
		Str("status", string(summary.Status)).
		Dur("duration", summary.Duration()).
		Int("failed_keywords", summary.FailedKeywords()).
		Msg("daily run finished")

	o.sendAdminSummary(ctx, log, summary)
	return summary, err
}

func (o *Orchestrator) processAll(ctx context.Context, log zerolog.Logger, summary *domain.RunSummary) error {
	subs := o.deps.Subscriptions
	for i, sub := range subs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted before keyword %q: %w", sub.Keyword, err)
		}

		outcome := o.processKeyword(ctx, log, sub)
		summary.Add(outcome)
		o.metrics.RecordKeyword(string(outcome.Status))

		if i < len(subs)-1 && o.cfg.KeywordDelay > 0 {
			log.Info().
				Str("keyword", sub.Keyword).
				Dur("delay", o.cfg.KeywordDelay).
				Msg("keyword done, waiting before next keyword")
			if err := o.sleep(ctx, o.cfg.KeywordDelay); err != nil {
				return fmt.Errorf("run interrupted after keyword %q: %w", sub.Keyword, err)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

// processKeyword runs the pipeline for one subscription. It never fails;
// errors and panics become a failed outcome.
func (o *Orchestrator) processKeyword(ctx context.Context, runLog zerolog.Logger, sub domain.Subscription) (outcome domain.KeywordOutcome) {
	ctx = observability.WithKeyword(ctx, sub.Keyword)
	log := observability.WithKeywordContext(runLog, sub.Keyword, len(sub.Emails))
	started := o.now()

	outcome = domain.KeywordOutcome{
		Keyword:    sub.Keyword,
		Recipients: len(sub.Emails),
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = domain.KeywordStatusFailed
			outcome.Error = fmt.Sprintf("panic: %v", r)
			log.Error().Str("panic", fmt.Sprint(r)).Msg("keyword pipeline panicked")
		}
	}()

	log.Info().Msg("processing keyword")

	rep, err := o.buildReport(ctx, log, sub.Keyword)
	if err != nil {
		outcome.Status = domain.KeywordStatusFailed
		outcome.Error = err.Error()
		log.Error().Err(err).Msg("keyword pipeline failed")
		return outcome
	}
	if rep == nil {
		outcome.Status = domain.KeywordStatusNoArticles
		log.Info().Msg("no new articles for keyword")
		return outcome
	}

	outcome.ArticlesFound = rep.found
	outcome.CitedArticles = len(rep.data.Articles)
	outcome.DeliveredEmails = o.deliver(ctx, log, sub.Emails, rep)
	outcome.Status = domain.KeywordStatusDelivered

	log.Info().
		Int("articles", outcome.ArticlesFound).
		Int("cited", outcome.CitedArticles).
		Int("delivered", outcome.DeliveredEmails).
		Dur("duration", o.now().Sub(started)).
		Msg("keyword processed")
	return outcome
}

// report is a rendered keyword report ready for delivery.
type report struct {
	found   int
	subject string
	html    string
	data    mail.ReportData
}

// buildReport runs every stage before delivery. It returns nil without an
// error when the search found nothing.
func (o *Orchestrator) buildReport(ctx context.Context, log zerolog.Logger, keyword string) (*report, error) {
	query, err := o.generateQuery(ctx, keyword)
	if err != nil {
		return nil, err
	}
	log.Info().Str("query", query).Msg("search term generated")

	articles, err := o.search(ctx, log, query)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, nil
	}

	articles = o.deps.Enricher.Enrich(articles)

	raw, err := o.generateReview(ctx, keyword, articles)
	if err != nil {
		return nil, err
	}
	o.dumpRawReview(log, keyword, articles, raw)

	rev := citation.Process(raw, articles, log)
	res := rev.Result
	o.metrics.RecordCitations(string(res.Outcome), res.Stats.Rate, len(res.Skipped))

	cited := res.Articles
	if res.Outcome == citation.OutcomeCited {
		cited = citation.UniqueByPMID(cited)
		tr := o.deps.Translator.Translate(ctx, cited)
		cited = translate.Merge(cited, tr.Translations)
		articles = translate.Merge(articles, tr.Translations)
		log.Info().
			Int("translated", len(tr.Translations)).
			Int("batches", len(tr.Batches)).
			Int("failed_batches", len(tr.Batches)-tr.Count(translate.OutcomeMatched)).
			Msg("cited abstracts translated")
	} else {
		log.Warn().Msg("review cites no articles, skipping translation")
	}
	rev.Result.Articles = cited
	o.dumpCitationAnalysis(log, keyword, articles, rev)

	data := mail.ReportData{
		Keyword:  keyword,
		Date:     o.now(),
		Review:   rev.Body,
		Articles: cited,
	}
	html, err := o.deps.Renderer.RenderReport(data)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	return &report{
		found:   len(articles),
		subject: mail.ReportSubject(keyword, data.Date),
		html:    html,
		data:    data,
	}, nil
}

func (o *Orchestrator) generateQuery(ctx context.Context, keyword string) (string, error) {
	prompt, err := QueryPrompt(o.cfg.QueryPrompt, keyword, o.now(), o.cfg.SearchWindowDays)
	if err != nil {
		return "", fmt.Errorf("build query prompt: %w", err)
	}
	completion, err := o.deps.QueryGenerator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate search term: %w", err)
	}
	query := strings.TrimSpace(completion.Text)
	if query == "" {
		return "", fmt.Errorf("generate search term: %w", llm.ErrEmptyResponse)
	}
	return query, nil
}

func (o *Orchestrator) search(ctx context.Context, log zerolog.Logger, query string) ([]domain.Article, error) {
	source := o.deps.Source.Name()
	started := o.now()

	result, err := o.deps.Source.Search(ctx, papersources.SearchParams{
		Query:      query,
		MaxResults: o.cfg.MaxArticles,
	})
	elapsed := o.now().Sub(started)
	if err != nil {
		o.metrics.RecordSearchFailed(source, elapsed.Seconds())
		return nil, fmt.Errorf("search %s: %w", source, err)
	}

	var articles []domain.Article
	total := 0
	if result != nil {
		articles = result.Articles
		total = result.TotalResults
		if result.SearchDuration > 0 {
			elapsed = result.SearchDuration
		}
	}
	o.metrics.RecordSearchCompleted(source, len(articles), elapsed.Seconds())
	log.Info().
		Str("source", source).
		Int("articles", len(articles)).
		Int("total_results", total).
		Dur("duration", elapsed).
		Strs("pmids", domain.PMIDs(articles)).
		Msg("search completed")
	return articles, nil
}

func (o *Orchestrator) generateReview(ctx context.Context, keyword string, articles []domain.Article) (string, error) {
	prompt, err := ReviewPrompt(o.cfg.ReviewPrompt, keyword, articles)
	if err != nil {
		return "", fmt.Errorf("build review prompt: %w", err)
	}
	completion, err := o.deps.Summarizer.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate review: %w", err)
	}
	return completion.Text, nil
}

// deliver sends the report to each recipient, pausing between recipients,
// and returns the number delivered. Cancellation stops the remaining sends.
func (o *Orchestrator) deliver(ctx context.Context, log zerolog.Logger, recipients []string, rep *report) int {
	delay := o.deps.Mailer.SendDelay()
	delivered := 0
	for i, recipient := range recipients {
		res := o.deps.Mailer.Send(ctx, recipient, rep.subject, rep.html)
		if res.Delivered {
			delivered++
		}

		if i < len(recipients)-1 {
			log.Info().Dur("delay", delay).Msg("waiting before next recipient")
			if err := o.sleep(ctx, delay); err != nil {
				log.Warn().
					Err(err).
					Int("remaining", len(recipients)-i-1).
					Msg("delivery interrupted")
				break
			}
		}
	}
	return delivered
}

// sendAdminSummary mails the run summary to the admin address. Failures
// are logged only.
func (o *Orchestrator) sendAdminSummary(ctx context.Context, log zerolog.Logger, summary *domain.RunSummary) {
	if o.cfg.AdminEmail == "" {
		return
	}

	body, err := o.deps.Renderer.RenderAdminSummary(summary)
	if err != nil {
		log.Error().Err(err).Msg("failed to render admin summary")
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), adminSendTimeout)
	defer cancel()

	res := o.deps.Mailer.Send(sendCtx, o.cfg.AdminEmail, mail.AdminSubject(summary.Status), body)
	if !res.Delivered {
		log.Error().Err(res.Err).Str("admin", o.cfg.AdminEmail).Msg("failed to send admin summary")
		return
	}
	log.Info().Str("admin", o.cfg.AdminEmail).Msg("admin summary sent")
}

func (o *Orchestrator) dumpRawReview(log zerolog.Logger, keyword string, articles []domain.Article, raw string) {
	if o.debug == nil {
		return
	}
	path, err := o.debug.WriteRawReview(keyword, articles, raw, o.now())
	if err != nil {
		log.Warn().Err(err).Msg("failed to write raw review dump")
		return
	}
	log.Debug().Str("path", path).Msg("raw review saved")
}

func (o *Orchestrator) dumpCitationAnalysis(log zerolog.Logger, keyword string, articles []domain.Article, rev citation.Review) {
	if o.debug == nil {
		return
	}
	path, err := o.debug.WriteCitationAnalysis(keyword, articles, rev, o.now())
	if err != nil {
		log.Warn().Err(err).Msg("failed to write citation analysis dump")
		return
	}
	log.Debug().Str("path", path).Msg("citation analysis saved")
}

// IsInterrupted reports whether err stems from cancellation of the run.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
