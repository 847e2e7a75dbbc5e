package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-digest-service/internal/domain"
)

type sentMail struct {
	account Account
	msg     *Message
}

// fakeTransport returns scripted errors in order, then succeeds.
type fakeTransport struct {
	mu   sync.Mutex
	errs []error
	sent []sentMail
}

func (f *fakeTransport) Send(_ context.Context, account Account, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{account: account, msg: msg})
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeSleeper struct {
	calls []time.Duration
	err   error
}

func (s *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return s.err
}

func testAccounts(n int) []Account {
	out := make([]Account, n)
	for i := range out {
		out[i] = Account{
			Server:     "smtp.example.com",
			Port:       587,
			Username:   fmt.Sprintf("sender%d@example.com", i),
			Password:   "secret",
			SenderName: "Literature Digest",
		}
	}
	return out
}

func tempUnavailable() error {
	return fmt.Errorf("greeting from smtp.example.com:587: %w",
		&textproto.Error{Code: 451, Msg: "4.7.1 Service temporarily unavailable"})
}

func newTestDispatcher(t *testing.T, accounts int, maxRetries int, transport Transport, sleeper *fakeSleeper, logger zerolog.Logger) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherConfig{
		Accounts:            testAccounts(accounts),
		MaxRetries:          maxRetries,
		RetryDelay:          300 * time.Second,
		BaseIntervalMinutes: 10,
	}, transport, logger, WithSleep(sleeper.sleep))
	require.NoError(t, err)
	return d
}

func TestDispatcher_RoundRobin(t *testing.T) {
	transport := &fakeTransport{}
	d := newTestDispatcher(t, 3, 3, transport, &fakeSleeper{}, zerolog.Nop())

	var used []int
	for i := 0; i < 5; i++ {
		res := d.Send(context.Background(), "reader@example.org", "subject", "<p>body</p>")
		require.True(t, res.Delivered)
		used = append(used, res.AccountIndex)
	}

	assert.Equal(t, []int{0, 1, 2, 0, 1}, used)
	assert.Equal(t, "sender0@example.com", transport.sent[0].account.Username)
	assert.Equal(t, "sender2@example.com", transport.sent[2].account.Username)
}

func TestDispatcher_ExplicitIndex(t *testing.T) {
	transport := &fakeTransport{}
	d := newTestDispatcher(t, 3, 3, transport, &fakeSleeper{}, zerolog.Nop())

	res := d.SendUsing(context.Background(), 2, "a@example.org", "s", "b")
	assert.Equal(t, 2, res.AccountIndex)
	assert.Equal(t, "sender2@example.com", res.Account)

	// An explicit index does not move the cursor.
	res = d.Send(context.Background(), "a@example.org", "s", "b")
	assert.Equal(t, 0, res.AccountIndex)

	t.Run("out of range falls back to rotation", func(t *testing.T) {
		res := d.SendUsing(context.Background(), 7, "a@example.org", "s", "b")
		assert.Equal(t, 1, res.AccountIndex)
		res = d.SendUsing(context.Background(), -3, "a@example.org", "s", "b")
		assert.Equal(t, 2, res.AccountIndex)
	})
}

func TestDispatcher_RetriesTransientWithSameAccount(t *testing.T) {
	var buf bytes.Buffer
	transport := &fakeTransport{errs: []error{tempUnavailable()}}
	sleeper := &fakeSleeper{}
	d := newTestDispatcher(t, 2, 3, transport, sleeper, zerolog.New(&buf))

	res := d.Send(context.Background(), "reader@example.org", "subject", "<p>body</p>")

	assert.True(t, res.Delivered)
	assert.NoError(t, res.Err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []time.Duration{300 * time.Second}, sleeper.calls)
	require.Len(t, transport.sent, 2)
	assert.Equal(t, transport.sent[0].account, transport.sent[1].account)
	assert.Contains(t, buf.String(), "smtp server temporarily unavailable, retrying")
	assert.Contains(t, buf.String(), `"account":"sender0@example.com"`)
	assert.Contains(t, buf.String(), `"recipient":"reader@example.org"`)
}

func TestDispatcher_TransientExhaustsAttempts(t *testing.T) {
	var buf bytes.Buffer
	transport := &fakeTransport{errs: []error{tempUnavailable(), tempUnavailable(), tempUnavailable(), tempUnavailable()}}
	sleeper := &fakeSleeper{}
	d := newTestDispatcher(t, 1, 3, transport, sleeper, zerolog.New(&buf))

	res := d.Send(context.Background(), "reader@example.org", "subject", "body")

	assert.False(t, res.Delivered)
	assert.Equal(t, 3, res.Attempts)
	assert.True(t, IsTransient(res.Err))
	assert.Len(t, sleeper.calls, 2)
	assert.Contains(t, buf.String(), "retries exhausted")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestDispatcher_PermanentErrorAborts(t *testing.T) {
	transport := &fakeTransport{errs: []error{&textproto.Error{Code: 535, Msg: "5.7.8 authentication failed"}}}
	sleeper := &fakeSleeper{}
	d := newTestDispatcher(t, 2, 3, transport, sleeper, zerolog.Nop())

	res := d.Send(context.Background(), "reader@example.org", "subject", "body")

	assert.False(t, res.Delivered)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, sleeper.calls)
	assert.Len(t, transport.sent, 1)
	assert.Error(t, res.Err)
}

func TestDispatcher_CancelledRetryWait(t *testing.T) {
	transport := &fakeTransport{errs: []error{tempUnavailable()}}
	sleeper := &fakeSleeper{err: context.Canceled}
	d := newTestDispatcher(t, 1, 3, transport, sleeper, zerolog.Nop())

	res := d.Send(context.Background(), "reader@example.org", "subject", "body")

	assert.False(t, res.Delivered)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestDispatcher_SingleAttemptWhenRetriesUnset(t *testing.T) {
	transport := &fakeTransport{errs: []error{tempUnavailable()}}
	sleeper := &fakeSleeper{}
	d := newTestDispatcher(t, 1, 0, transport, sleeper, zerolog.Nop())

	res := d.Send(context.Background(), "reader@example.org", "subject", "body")

	assert.False(t, res.Delivered)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, sleeper.calls)
}

func TestDispatcher_ConcurrentRotation(t *testing.T) {
	transport := &fakeTransport{}
	d := newTestDispatcher(t, 4, 1, transport, &fakeSleeper{}, zerolog.Nop())

	var wg sync.WaitGroup
	counts := make([]int, 4)
	var mu sync.Mutex
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := d.Send(context.Background(), "r@example.org", "s", "b")
			mu.Lock()
			counts[res.AccountIndex]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, []int{10, 10, 10, 10}, counts)
}

func TestNewDispatcher_NoAccounts(t *testing.T) {
	_, err := NewDispatcher(DispatcherConfig{}, &fakeTransport{}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrNoAccounts)
}

func TestComputeSendDelay(t *testing.T) {
	tests := []struct {
		base     int
		accounts int
		want     time.Duration
	}{
		{base: 10, accounts: 1, want: 600 * time.Second},
		{base: 10, accounts: 7, want: 85 * time.Second},
		{base: 10, accounts: 20, want: 60 * time.Second},
		{base: 10, accounts: 0, want: 600 * time.Second},
		{base: 10, accounts: -2, want: 600 * time.Second},
		{base: 0, accounts: 3, want: 60 * time.Second},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%dmin/%d", tc.base, tc.accounts), func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeSendDelay(tc.base, tc.accounts))
		})
	}

	d := newTestDispatcher(t, 2, 1, &fakeTransport{}, &fakeSleeper{}, zerolog.Nop())
	assert.Equal(t, 300*time.Second, d.SendDelay())
	assert.Equal(t, 2, d.AccountCount())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(tempUnavailable()))
	assert.True(t, IsTransient(&textproto.Error{Code: 451}))
	assert.False(t, IsTransient(&textproto.Error{Code: 450}))
	assert.False(t, IsTransient(&textproto.Error{Code: 550}))
	assert.False(t, IsTransient(errors.New("451 looks transient but is not a reply")))
	assert.False(t, IsTransient(nil))
}
