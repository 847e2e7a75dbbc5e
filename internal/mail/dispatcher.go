// Package mail delivers rendered reports through a rotating set of SMTP
// accounts.
//
// A Dispatcher owns the rotation cursor: each send without an explicit
// account takes the next account round-robin. Only the SMTP 451 reply is
// retried, with the same account, after a fixed delay. Delivery never
// returns an error; the outcome is reported in a SendResult.
package mail

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/observability"
)

// MinSendDelay is the floor of the pause between two recipients.
const MinSendDelay = 60 * time.Second

// ComputeSendDelay spreads baseIntervalMinutes across the account pool:
// max(60s, floor(baseIntervalMinutes*60/accountCount) seconds). A pool size
// below one counts as one.
func ComputeSendDelay(baseIntervalMinutes, accountCount int) time.Duration {
	if accountCount < 1 {
		accountCount = 1
	}
	seconds := baseIntervalMinutes * 60 / accountCount
	return max(time.Duration(seconds)*time.Second, MinSendDelay)
}

// SendResult describes the outcome of one delivery.
type SendResult struct {
	Recipient    string
	Account      string
	AccountIndex int
	Attempts     int
	Delivered    bool
	// Err is the last error seen; nil when Delivered.
	Err error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Accounts []Account
	// MaxRetries is the total number of attempts per message; values below
	// one mean a single attempt.
	MaxRetries int
	RetryDelay time.Duration
	// BaseIntervalMinutes feeds ComputeSendDelay.
	BaseIntervalMinutes int
}

// Dispatcher sends messages, rotating across accounts.
type Dispatcher struct {
	accounts     []Account
	maxAttempts  int
	retryDelay   time.Duration
	baseInterval int
	transport    Transport
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
	metrics      *observability.Metrics
	logger       zerolog.Logger

	mu     sync.Mutex
	cursor int
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithSleep replaces the wait used between retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = sleep }
}

// WithClock replaces the clock used for message dates.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithMetrics records send outcomes and retries.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a Dispatcher. It fails with domain.ErrNoAccounts
// when no account is configured.
func NewDispatcher(cfg DispatcherConfig, transport Transport, logger zerolog.Logger, opts ...Option) (*Dispatcher, error) {
	if len(cfg.Accounts) == 0 {
		return nil, domain.ErrNoAccounts
	}

	accounts := make([]Account, len(cfg.Accounts))
	copy(accounts, cfg.Accounts)

	d := &Dispatcher{
		accounts:     accounts,
		maxAttempts:  max(cfg.MaxRetries, 1),
		retryDelay:   max(cfg.RetryDelay, 0),
		baseInterval: cfg.BaseIntervalMinutes,
		transport:    transport,
		sleep:        sleepContext,
		now:          time.Now,
		logger:       logger.With().Str("component", "mail_dispatcher").Logger(),
	}
	// The first rotation lands on account 0.
	d.cursor = len(accounts) - 1
	for _, opt := range opts {
		opt(d)
	}

	d.logger.Info().Int("accounts", len(accounts)).Msg("mail dispatcher ready")
	return d, nil
}

// AccountCount returns the size of the account pool.
func (d *Dispatcher) AccountCount() int {
	return len(d.accounts)
}

// SendDelay returns the pause to keep between two recipients.
func (d *Dispatcher) SendDelay() time.Duration {
	return ComputeSendDelay(d.baseInterval, len(d.accounts))
}

// Send delivers an HTML message using the next account in rotation.
func (d *Dispatcher) Send(ctx context.Context, recipient, subject, htmlBody string) SendResult {
	return d.SendUsing(ctx, -1, recipient, subject, htmlBody)
}

// SendUsing delivers with the account at index when it is valid and falls
// back to rotation otherwise. The rotation cursor only moves in the
// fallback case.
func (d *Dispatcher) SendUsing(ctx context.Context, index int, recipient, subject, htmlBody string) SendResult {
	if index < 0 || index >= len(d.accounts) {
		index = d.next()
	}
	account := d.accounts[index]
	msg := NewMessage(account, recipient, subject, htmlBody, d.now())
	log := observability.WithMailContext(d.logger, account.Username, recipient)

	result := SendResult{
		Recipient:    recipient,
		Account:      account.Username,
		AccountIndex: index,
	}

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		result.Attempts = attempt
		log.Info().
			Int("attempt", attempt).
			Int("max_attempts", d.maxAttempts).
			Str("subject", subject).
			Msg("sending mail")

		err := d.transport.Send(ctx, account, msg)
		if err == nil {
			result.Delivered = true
			result.Err = nil
			d.metrics.RecordMailSend("delivered")
			log.Info().Int("attempt", attempt).Msg("mail delivered")
			return result
		}
		result.Err = err

		if !IsTransient(err) {
			log.Error().Err(err).Int("attempt", attempt).Msg("mail delivery failed")
			break
		}
		if attempt == d.maxAttempts {
			log.Error().Err(err).Int("attempt", attempt).Msg("mail delivery failed, retries exhausted")
			break
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", d.retryDelay).
			Msg("smtp server temporarily unavailable, retrying")
		d.metrics.RecordMailRetry()

		if err := d.sleep(ctx, d.retryDelay); err != nil {
			result.Err = err
			log.Error().Err(err).Msg("mail delivery abandoned while waiting to retry")
			break
		}
	}

	d.metrics.RecordMailSend("failed")
	return result
}

// next advances the rotation cursor and returns the selected index.
func (d *Dispatcher) next() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = (d.cursor + 1) % len(d.accounts)
	return d.cursor
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
