package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-digest-service/internal/config"
	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/mail"
)

const testConfigYAML = `
user_groups:
  - group_name: oncology
    emails: ["a@example.org"]
    keywords: ["glioma"]
llm_providers:
  - name: main
    provider: openai
    api_key: sk-test
task_model_mapping:
  query_generator: {provider_name: main, model_name: gpt-4o-mini}
  summarizer: {provider_name: main, model_name: gpt-4o}
  abstract_translator: {provider_name: main, model_name: gpt-4o-mini}
prompts:
  generate_query: "Build a query for {keyword} {date_query}"
  generate_review: "Review {keyword}: {articles_text}"
  translate_abstract: "Translate: {abstracts_batch}"
smtp:
  accounts:
    - server: smtp.example.org
      port: 465
      username: alerts@example.org
      password: secret
scheduler:
  marker_path: %q
data_files:
  zky_path: %q
  jcr_path: %q
metrics:
  enabled: false
logging:
  level: error
  output: stderr
`

func writeTestConfig(t *testing.T) (configPath, markerPath string) {
	t.Helper()
	dir := t.TempDir()
	markerPath = filepath.Join(dir, "marker.json")
	content := fmt.Sprintf(testConfigYAML, markerPath, filepath.Join(dir, "zky.csv"), filepath.Join(dir, "jcr.csv"))
	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath, markerPath
}

func TestRootCmd_ClearMarker(t *testing.T) {
	configPath, markerPath := writeTestConfig(t)
	require.NoError(t, os.WriteFile(markerPath, []byte(`{"last_run_date":"2026-03-04"}`), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", configPath, "--clear-marker"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	_, err := os.Stat(markerPath)
	assert.True(t, os.IsNotExist(err), "marker should be removed")
}

func TestRootCmd_ClearMarkerWithoutMarker(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", configPath, "--clear-marker"})
	assert.NoError(t, cmd.ExecuteContext(context.Background()))
}

func TestRootCmd_ExclusiveFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--once", "--force-run"})
	cmd.SetOut(new(nopWriter))
	cmd.SetErr(new(nopWriter))
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestRootCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--once"})
	cmd.SetErr(new(nopWriter))
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestNewApp_Wiring(t *testing.T) {
	configPath, markerPath := writeTestConfig(t)
	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.close()

	assert.Nil(t, a.metrics)
	assert.Empty(t, a.closers)
	assert.Equal(t, markerPath, a.guard.Path())
	require.NotNil(t, a.runner)
	assert.False(t, a.runner.Status().HasRunToday)

	g, err := a.generator(context.Background(), config.TaskSummarizer)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", g.Model())

	_, err = a.generator(context.Background(), "unknown_task")
	assert.Error(t, err)
}

func TestClearMarker_SkipsServiceSetup(t *testing.T) {
	configPath, markerPath := writeTestConfig(t)
	require.NoError(t, os.WriteFile(markerPath, []byte(`{"last_run_date":"2026-03-04"}`), 0o600))
	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	// Without providers the service cannot be built, but the marker can
	// still be cleared.
	cfg.LLMProviders = nil
	_, err = newApp(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, clearMarker(cfg, zerolog.New(&buf)))

	_, err = os.Stat(markerPath)
	assert.True(t, os.IsNotExist(err), "marker should be removed")
	assert.Contains(t, buf.String(), "daily run marker cleared")
	assert.NotContains(t, buf.String(), "literature digest service configured")
}

func TestReportSetupFailure_MailsAdmin(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	cfg.SMTP.AdminEmail = "admin@example.org"
	cfg.LLMProviders = nil

	_, setupErr := newApp(context.Background(), cfg, zerolog.Nop())
	require.Error(t, setupErr)

	transport := &recordingTransport{}
	reportSetupFailure(context.Background(), cfg, transport, zerolog.Nop(), setupErr)

	require.Len(t, transport.sent, 1)
	msg := transport.sent[0].msg
	assert.Equal(t, "admin@example.org", msg.To)
	assert.Equal(t, mail.AdminSubject(domain.RunStatusFailed), msg.Subject)
	assert.Contains(t, msg.HTMLBody, "unknown provider")
	assert.Equal(t, "alerts@example.org", transport.sent[0].account.Username)
}

func TestReportSetupFailure_NoAdminEmail(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	cfg.SMTP.AdminEmail = ""

	transport := &recordingTransport{}
	reportSetupFailure(context.Background(), cfg, transport, zerolog.Nop(), assert.AnError)

	assert.Empty(t, transport.sent)
}

type sentMail struct {
	account mail.Account
	msg     *mail.Message
}

// recordingTransport records every message instead of dialing SMTP.
type recordingTransport struct {
	mu   sync.Mutex
	sent []sentMail
}

func (r *recordingTransport) Send(_ context.Context, account mail.Account, msg *mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{account: account, msg: msg})
	return nil
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }
