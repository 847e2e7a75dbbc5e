package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-digest-service/internal/domain"
)

const baseYAML = `
user_groups:
  - group_name: oncology
    emails: ["a@example.org", "B@example.org"]
    keywords: ["Glioma", "immunotherapy"]
  - group_name: neuro
    emails: ["b@example.org", "c@example.org"]
    keywords: ["glioma ", "Alzheimer  disease"]
llm_providers:
  - name: main
    provider: openai
    api_key: sk-file
  - name: proxy
    provider: custom
    api_key: sk-proxy
    api_endpoint: https://llm.example.org/v1
task_model_mapping:
  query_generator: {provider_name: main, model_name: gpt-4o-mini}
  summarizer: {provider_name: proxy, model_name: deepseek-chat}
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
    - server: smtp.example.org
      port: 587
      username: alerts2@example.org
      password: secret2
      sender_name: Digest
  admin_email: admin@example.org
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load(writeConfig(t, baseYAML))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Scheduler defaults
	assert.Equal(t, "08:00", cfg.Scheduler.RunTime)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.KeywordDelay())
	assert.Equal(t, ".daily_run_marker.json", cfg.Scheduler.MarkerPath)
	assert.True(t, cfg.Scheduler.CatchUp)

	// PubMed defaults
	assert.Equal(t, 20, cfg.PubMed.MaxArticles)
	assert.Equal(t, 3, cfg.PubMed.SearchWindowDays)
	assert.Equal(t, "alerts@example.org", cfg.PubMed.Email)

	// Translation defaults
	assert.Equal(t, 5, cfg.Translation.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Translation.BatchDelay())

	// SMTP defaults
	assert.Equal(t, 3, cfg.SMTP.MaxRetries)
	assert.Equal(t, 300*time.Second, cfg.SMTP.RetryDelay())
	assert.Equal(t, 10, cfg.SMTP.BaseIntervalMinutes)
	assert.Equal(t, DefaultSenderName, cfg.SMTP.Accounts[0].SenderName)
	assert.Equal(t, "Digest", cfg.SMTP.Accounts[1].SenderName)

	// Data files and debug
	assert.Equal(t, "zky.csv", cfg.DataFiles.ZKYPath)
	assert.Equal(t, "jcr.csv", cfg.DataFiles.JCRPath)
	assert.False(t, cfg.Debug.Enabled)
	assert.Equal(t, "debug_output", cfg.Debug.OutputDir)

	// Logging and metrics defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "literature_digest", cfg.Metrics.Namespace)

	// Server and Kafka defaults
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddress())
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoad_Subscriptions(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load(writeConfig(t, baseYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Subscriptions, 3)
	assert.Equal(t, domain.Subscription{
		Keyword: "Glioma",
		Emails:  []string{"a@example.org", "B@example.org", "c@example.org"},
	}, cfg.Subscriptions[0])
	assert.Equal(t, "immunotherapy", cfg.Subscriptions[1].Keyword)
	assert.Equal(t, []string{"a@example.org", "B@example.org"}, cfg.Subscriptions[1].Emails)
	assert.Equal(t, "Alzheimer disease", cfg.Subscriptions[2].Keyword)
	assert.Equal(t, []string{"b@example.org", "c@example.org"}, cfg.Subscriptions[2].Emails)
}

func TestLoad_LegacyUsersAndSMTP(t *testing.T) {
	clearEnvVars(t)

	yaml := strings.Replace(baseYAML, baseYAML[:strings.Index(baseYAML, "llm_providers:")], `
users:
  - email: solo@example.org
    keywords: [sepsis, "Sepsis"]
  - email: duo@example.org
    keywords: [sepsis]
`, 1)
	yaml = yaml[:strings.Index(yaml, "smtp:")] + `
smtp:
  server: mail.example.org
  username: legacy@example.org
  password: pw
`

	cfg, err := Load(writeConfig(t, yaml))
	require.NoError(t, err)

	require.Len(t, cfg.Subscriptions, 1)
	assert.Equal(t, "sepsis", cfg.Subscriptions[0].Keyword)
	assert.Equal(t, []string{"solo@example.org", "duo@example.org"}, cfg.Subscriptions[0].Emails)

	require.Len(t, cfg.SMTP.Accounts, 1)
	assert.Equal(t, SMTPAccount{
		Server:     "mail.example.org",
		Port:       587,
		Username:   "legacy@example.org",
		Password:   "pw",
		SenderName: DefaultSenderName,
	}, cfg.SMTP.Accounts[0])
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("DIGEST_SCHEDULER_RUN_TIME", "06:30")
	t.Setenv("DIGEST_LOGGING_LEVEL", "debug")
	t.Setenv("DIGEST_PUBMED_MAX_ARTICLES", "40")
	t.Setenv("DIGEST_SMTP_ADMIN_EMAIL", "ops@example.org")

	cfg, err := Load(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "06:30", cfg.Scheduler.RunTime)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 40, cfg.PubMed.MaxArticles)
	assert.Equal(t, "ops@example.org", cfg.SMTP.AdminEmail)
}

func TestLoad_SecretsFromEnv(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("DIGEST_LLM_MAIN_API_KEY", "sk-env")
	t.Setenv("DIGEST_SMTP_ACCOUNT_1_PASSWORD", "env-pass")
	t.Setenv("DIGEST_PUBMED_API_KEY", "ncbi-key")

	cfg, err := Load(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.LLMProviders[0].APIKey)
	assert.Equal(t, "sk-proxy", cfg.LLMProviders[1].APIKey)
	assert.Equal(t, "secret", cfg.SMTP.Accounts[0].Password)
	assert.Equal(t, "env-pass", cfg.SMTP.Accounts[1].Password)
	assert.Equal(t, "ncbi-key", cfg.PubMed.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnvVars(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantKey string
	}{
		{
			name:    "invalid recipient email",
			mutate:  func(s string) string { return strings.Replace(s, "a@example.org", "not-an-email", 1) },
			wantKey: "Emails",
		},
		{
			name:    "unknown provider kind",
			mutate:  func(s string) string { return strings.Replace(s, "provider: openai", "provider: cohere", 1) },
			wantKey: "Provider",
		},
		{
			name: "custom provider without endpoint",
			mutate: func(s string) string {
				return strings.Replace(s, "    api_endpoint: https://llm.example.org/v1\n", "", 1)
			},
			wantKey: "llm_providers",
		},
		{
			name:    "task mapped to unknown provider",
			mutate:  func(s string) string { return strings.Replace(s, "{provider_name: proxy,", "{provider_name: ghost,", 1) },
			wantKey: "task_model_mapping.summarizer",
		},
		{
			name:    "missing prompt",
			mutate:  func(s string) string { return strings.Replace(s, "  translate_abstract: \"Translate: {abstracts_batch}\"\n", "", 1) },
			wantKey: "TranslateAbstract",
		},
		{
			name:    "bad run time",
			mutate:  func(s string) string { return s + "scheduler:\n  run_time: \"25:00\"\n" },
			wantKey: "RunTime",
		},
		{
			name:    "bad smtp port",
			mutate:  func(s string) string { return strings.Replace(s, "port: 465", "port: 70000", 1) },
			wantKey: "Port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)

			_, err := Load(writeConfig(t, tt.mutate(baseYAML)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}
}

func TestValidate_RequiresSubscriptionsAndAccounts(t *testing.T) {
	cfg := validConfig()
	cfg.Subscriptions = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription")

	cfg = validConfig()
	cfg.SMTP.Accounts = nil
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp.accounts")
}

func TestValidate_Kafka(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.Enabled = true
	cfg.Kafka.Topic = ""
	assert.Error(t, cfg.Validate())

	cfg.Kafka.Topic = "runs"
	cfg.Kafka.Brokers = []string{"kafka:9092"}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Timezone(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.Timezone = "Mars/Olympus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.timezone")

	cfg.Scheduler.Timezone = "Asia/Shanghai"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_SecretRedacted(t *testing.T) {
	cfg := validConfig()
	cfg.SMTP.Accounts[0].Username = "bad address"
	cfg.SMTP.Accounts[0].Password = "hunter2"
	err := cfg.Validate()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestTaskModelMapping_ForTask(t *testing.T) {
	m := TaskModelMapping{
		QueryGenerator:     TaskModel{ProviderName: "a", ModelName: "m1"},
		Summarizer:         TaskModel{ProviderName: "b", ModelName: "m2"},
		AbstractTranslator: TaskModel{ProviderName: "c", ModelName: "m3"},
	}
	tm, ok := m.ForTask(TaskSummarizer)
	assert.True(t, ok)
	assert.Equal(t, "b", tm.ProviderName)

	_, ok = m.ForTask("unknown")
	assert.False(t, ok)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "MY_PROXY", envName("my-proxy"))
	assert.Equal(t, "OPENAI", envName(" openai "))
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, EnvPrefix+"_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

// validConfig returns a valid configuration for testing
func validConfig() *Config {
	return &Config{
		LLMProviders: []LLMProviderConfig{{Name: "main", Provider: ProviderOpenAI, APIKey: "sk"}},
		TaskModelMapping: TaskModelMapping{
			QueryGenerator:     TaskModel{ProviderName: "main", ModelName: "m"},
			Summarizer:         TaskModel{ProviderName: "main", ModelName: "m"},
			AbstractTranslator: TaskModel{ProviderName: "main", ModelName: "m"},
		},
		Prompts: PromptsConfig{GenerateQuery: "q", GenerateReview: "r", TranslateAbstract: "t"},
		LLM:     LLMConfig{Temperature: 0.3, MaxRetries: 1},
		SMTP: SMTPConfig{
			Accounts:            []SMTPAccount{{Server: "smtp.example.org", Port: 465, Username: "a@example.org", Password: "p"}},
			MaxRetries:          3,
			BaseIntervalMinutes: 10,
		},
		Scheduler:     SchedulerConfig{RunTime: "08:00", MarkerPath: ".marker"},
		PubMed:        PubMedConfig{MaxArticles: 20, RateLimit: 3},
		Translation:   TranslationConfig{BatchSize: 5},
		Server:        ServerConfig{Host: "0.0.0.0", HTTPPort: 8080},
		Logging:       LoggingConfig{Level: "info", Format: "json"},
		Subscriptions: []domain.Subscription{{Keyword: "glioma", Emails: []string{"r@example.org"}}},
	}
}
