// Package config provides configuration management for the literature digest service.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/helixir/literature-digest-service/internal/domain"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "DIGEST"

// Task names used as keys of the task model mapping.
const (
	TaskQueryGenerator     = "query_generator"
	TaskSummarizer         = "summarizer"
	TaskAbstractTranslator = "abstract_translator"
)

// Provider kinds accepted in llm_providers.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderCustom    = "custom"
	ProviderAnthropic = "anthropic"
)

// DefaultSenderName is used when a mail account has no display name.
const DefaultSenderName = "PubMed Literature Push"

// Config holds all configuration for the literature digest service.
type Config struct {
	// UserGroups maps groups of recipients to the keywords they follow.
	UserGroups []UserGroup `mapstructure:"user_groups" validate:"dive"`
	// Users is the legacy per-address subscription list, used only when
	// UserGroups is empty.
	Users []LegacyUser `mapstructure:"users" validate:"dive"`
	// LLMProviders lists the named LLM endpoints available to tasks.
	LLMProviders []LLMProviderConfig `mapstructure:"llm_providers" validate:"required,min=1,dive"`
	// TaskModelMapping binds each pipeline task to a provider and model.
	TaskModelMapping TaskModelMapping `mapstructure:"task_model_mapping"`
	// Prompts holds the prompt templates for each task.
	Prompts PromptsConfig `mapstructure:"prompts"`
	// LLM contains request and retry settings shared by all providers.
	LLM LLMConfig `mapstructure:"llm"`
	// SMTP contains outbound mail settings.
	SMTP SMTPConfig `mapstructure:"smtp"`
	// Scheduler contains daily trigger settings.
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	// PubMed contains article search settings.
	PubMed PubMedConfig `mapstructure:"pubmed"`
	// Translation contains abstract translation batching settings.
	Translation TranslationConfig `mapstructure:"translation_settings"`
	// DataFiles locates the journal metric tables.
	DataFiles DataFilesConfig `mapstructure:"data_files"`
	// Debug controls debug artifact output.
	Debug DebugConfig `mapstructure:"debug"`
	// Server contains the operational HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Kafka contains run event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`

	// Subscriptions is the normalized keyword to recipients list, in
	// first-seen keyword order. It is derived during Load.
	Subscriptions []domain.Subscription `mapstructure:"-"`
}

// UserGroup is a named set of recipients sharing keywords.
type UserGroup struct {
	// GroupName is a label used only in logs.
	GroupName string `mapstructure:"group_name"`
	// Emails are the recipients of every keyword in the group.
	Emails []string `mapstructure:"emails" validate:"required,min=1,dive,email"`
	// Keywords are the search keywords of the group.
	Keywords []string `mapstructure:"keywords" validate:"required,min=1,dive,required"`
}

// LegacyUser is the older single-recipient subscription format.
type LegacyUser struct {
	Email    string   `mapstructure:"email" validate:"required,email"`
	Keywords []string `mapstructure:"keywords" validate:"required,min=1,dive,required"`
}

// LLMProviderConfig describes one named LLM endpoint.
type LLMProviderConfig struct {
	// Name is referenced from the task model mapping.
	Name string `mapstructure:"name" validate:"required"`
	// Provider is the provider kind (openai, gemini, custom, anthropic).
	Provider string `mapstructure:"provider" validate:"required,oneof=openai gemini custom anthropic"`
	// APIKey authenticates requests. May be supplied via DIGEST_LLM_<NAME>_API_KEY.
	APIKey string `mapstructure:"api_key" validate:"required"`
	// APIEndpoint is the base URL of an OpenAI-compatible endpoint; required for custom.
	APIEndpoint string `mapstructure:"api_endpoint" validate:"omitempty,url"`
}

// TaskModel selects the provider and model for one task.
type TaskModel struct {
	ProviderName string `mapstructure:"provider_name"`
	ModelName    string `mapstructure:"model_name"`
}

// TaskModelMapping binds each of the three pipeline tasks to a model.
type TaskModelMapping struct {
	QueryGenerator     TaskModel `mapstructure:"query_generator"`
	Summarizer         TaskModel `mapstructure:"summarizer"`
	AbstractTranslator TaskModel `mapstructure:"abstract_translator"`
}

// ForTask returns the mapping for a task name.
func (m TaskModelMapping) ForTask(task string) (TaskModel, bool) {
	switch task {
	case TaskQueryGenerator:
		return m.QueryGenerator, true
	case TaskSummarizer:
		return m.Summarizer, true
	case TaskAbstractTranslator:
		return m.AbstractTranslator, true
	default:
		return TaskModel{}, false
	}
}

// PromptsConfig holds the prompt templates. Templates use {name}
// placeholders; {{ and }} produce literal braces.
type PromptsConfig struct {
	// GenerateQuery accepts {keyword} and {date_query}.
	GenerateQuery string `mapstructure:"generate_query" validate:"required"`
	// GenerateReview accepts {keyword} and {articles_text}.
	GenerateReview string `mapstructure:"generate_review" validate:"required"`
	// TranslateAbstract accepts {abstracts_batch}.
	TranslateAbstract string `mapstructure:"translate_abstract" validate:"required"`
}

// LLMConfig holds request settings shared by every provider.
type LLMConfig struct {
	// Temperature controls randomness (0.0 to 2.0).
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the number of retries on transient provider errors.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
	// RetryDelay is the base delay between retries; it grows linearly.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// MaxTokens caps generated tokens for providers that require a limit.
	MaxTokens int `mapstructure:"max_tokens" validate:"gte=0"`
}

// SMTPAccount is one outbound mail account.
type SMTPAccount struct {
	Server     string `mapstructure:"server" validate:"required"`
	Port       int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Username   string `mapstructure:"username" validate:"required,email"`
	Password   string `mapstructure:"password" validate:"required"`
	SenderName string `mapstructure:"sender_name"`
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	// Accounts are rotated round-robin for report delivery.
	Accounts []SMTPAccount `mapstructure:"accounts" validate:"dive"`

	// Server, Port, Username, Password and SenderName describe the legacy
	// single account; they are folded into Accounts when Accounts is empty.
	Server     string `mapstructure:"server"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	SenderName string `mapstructure:"sender_name"`

	// MaxRetries bounds delivery attempts per message.
	MaxRetries int `mapstructure:"max_retries" validate:"min=1"`
	// RetryDelaySec is the wait before retrying a transient failure.
	RetryDelaySec int `mapstructure:"retry_delay_sec" validate:"gte=0"`
	// BaseIntervalMinutes drives the per-recipient delay computation.
	BaseIntervalMinutes int `mapstructure:"base_interval_minutes" validate:"min=1"`
	// AdminEmail receives the per-run summary when set.
	AdminEmail string `mapstructure:"admin_email" validate:"omitempty,email"`
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
	// Timeout bounds connection setup.
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetryDelay returns RetryDelaySec as a duration.
func (c SMTPConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySec) * time.Second
}

// SchedulerConfig holds daily trigger settings.
type SchedulerConfig struct {
	// RunTime is the local time of day (HH:MM) at which the job fires.
	RunTime string `mapstructure:"run_time" validate:"required,hhmm"`
	// Timezone is an IANA zone name for RunTime; empty means the host zone.
	Timezone string `mapstructure:"timezone"`
	// DelayBetweenKeywordsSec is the pause between keyword pipelines.
	DelayBetweenKeywordsSec int `mapstructure:"delay_between_keywords_sec" validate:"gte=0"`
	// MarkerPath is the daily run marker file.
	MarkerPath string `mapstructure:"marker_path" validate:"required"`
	// CatchUp runs the job at startup if today's run time has passed unrun.
	CatchUp bool `mapstructure:"catch_up"`
}

// KeywordDelay returns DelayBetweenKeywordsSec as a duration.
func (c SchedulerConfig) KeywordDelay() time.Duration {
	return time.Duration(c.DelayBetweenKeywordsSec) * time.Second
}

// Location resolves Timezone, defaulting to time.Local.
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// PubMedConfig holds article search settings.
type PubMedConfig struct {
	// BaseURL is the E-utilities base URL.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	// APIKey raises the NCBI rate limit. Loaded from DIGEST_PUBMED_API_KEY.
	APIKey string `mapstructure:"api_key"`
	// Email identifies the caller to NCBI. Defaults to the first mail account.
	Email string `mapstructure:"email" validate:"omitempty,email"`
	// Tool identifies the calling application to NCBI.
	Tool string `mapstructure:"tool"`
	// MaxArticles caps articles fetched per keyword.
	MaxArticles int `mapstructure:"max_articles" validate:"min=1,max=10000"`
	// SearchWindowDays selects the publication date searched (today minus N days, UTC).
	SearchWindowDays int `mapstructure:"search_window_days" validate:"gte=0"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the number of retries on 429 and 5xx responses.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
}

// TranslationConfig holds abstract translation batching settings.
type TranslationConfig struct {
	BatchSize              int `mapstructure:"batch_size" validate:"min=1"`
	DelayBetweenBatchesSec int `mapstructure:"delay_between_batches_sec" validate:"gte=0"`
}

// BatchDelay returns DelayBetweenBatchesSec as a duration.
func (c TranslationConfig) BatchDelay() time.Duration {
	return time.Duration(c.DelayBetweenBatchesSec) * time.Second
}

// DataFilesConfig locates the journal metric CSV tables.
type DataFilesConfig struct {
	// ZKYPath is the CAS journal partition table.
	ZKYPath string `mapstructure:"zky_path"`
	// JCRPath is the JCR impact factor table.
	JCRPath string `mapstructure:"jcr_path"`
}

// DebugConfig controls debug artifact output.
type DebugConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	OutputDir string `mapstructure:"output_dir"`
}

// ServerConfig holds the operational HTTP server configuration.
type ServerConfig struct {
	// Enabled starts the HTTP server in daemon mode.
	Enabled bool `mapstructure:"enabled"`
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port" validate:"min=1,max=65535"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HTTPAddress returns the host:port the HTTP server binds to.
func (c *ServerConfig) HTTPAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HTTPPort))
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// KafkaConfig holds run event publisher settings.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic run events are published to.
	Topic string `mapstructure:"topic"`
	// TriggerTopic carries run requests; empty disables the listener.
	TriggerTopic string `mapstructure:"trigger_topic"`
	// GroupID is the consumer group of the run request listener.
	GroupID string `mapstructure:"group_id"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// WriteTimeout bounds a single publish.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load reads configuration from an optional .env file, the YAML config file
// and DIGEST_* environment variables, normalizes subscriptions and mail
// accounts, and validates the result.
//
// When configFile is empty the file is searched for as config.yaml in the
// working directory, ./config and /etc/literature-digest-service; a missing
// file is tolerated. An explicit configFile must exist.
func Load(configFile string) (*Config, error) {
	// A missing .env file is expected outside development.
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/literature-digest-service")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found is OK, we'll use env vars and defaults
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()

	// Secrets may be overridden from the environment after normalization so
	// that legacy single-account settings receive them too.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets overrides credentials from the environment.
func loadSecrets(cfg *Config) {
	for i := range cfg.LLMProviders {
		key := fmt.Sprintf("%s_LLM_%s_API_KEY", EnvPrefix, envName(cfg.LLMProviders[i].Name))
		if val := os.Getenv(key); val != "" {
			cfg.LLMProviders[i].APIKey = val
		}
	}
	for i := range cfg.SMTP.Accounts {
		key := fmt.Sprintf("%s_SMTP_ACCOUNT_%d_PASSWORD", EnvPrefix, i)
		if val := os.Getenv(key); val != "" {
			cfg.SMTP.Accounts[i].Password = val
		}
	}
	if val := os.Getenv(EnvPrefix + "_PUBMED_API_KEY"); val != "" {
		cfg.PubMed.APIKey = val
	}
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// envName converts a provider name to its environment variable fragment.
func envName(name string) string {
	return strings.Trim(strings.ToUpper(nonAlnum.ReplaceAllString(name, "_")), "_")
}

// normalize folds legacy settings into their current form and derives
// the subscription list.
func (c *Config) normalize() {
	if len(c.SMTP.Accounts) == 0 && c.SMTP.Server != "" && c.SMTP.Username != "" && c.SMTP.Password != "" {
		port := c.SMTP.Port
		if port == 0 {
			port = 587
		}
		c.SMTP.Accounts = []SMTPAccount{{
			Server:     c.SMTP.Server,
			Port:       port,
			Username:   c.SMTP.Username,
			Password:   c.SMTP.Password,
			SenderName: c.SMTP.SenderName,
		}}
	}
	for i := range c.SMTP.Accounts {
		if c.SMTP.Accounts[i].SenderName == "" {
			c.SMTP.Accounts[i].SenderName = DefaultSenderName
		}
	}

	if c.PubMed.Email == "" {
		switch {
		case len(c.SMTP.Accounts) > 0:
			c.PubMed.Email = c.SMTP.Accounts[0].Username
		case c.SMTP.AdminEmail != "":
			c.PubMed.Email = c.SMTP.AdminEmail
		}
	}

	c.Subscriptions = buildSubscriptions(c.UserGroups, c.Users)
}

// buildSubscriptions merges groups (or, when no groups exist, legacy users)
// into an ordered keyword list. Keywords are merged case-insensitively and
// recipients are deduplicated per keyword.
func buildSubscriptions(groups []UserGroup, users []LegacyUser) []domain.Subscription {
	type entry struct {
		keyword string
		emails  []string
		seen    map[string]struct{}
	}
	var order []string
	byKey := make(map[string]*entry)

	add := func(keyword string, emails []string) {
		key := domain.NormalizeKeyword(keyword)
		if key == "" {
			return
		}
		e, ok := byKey[key]
		if !ok {
			e = &entry{keyword: domain.CleanKeyword(keyword), seen: make(map[string]struct{})}
			byKey[key] = e
			order = append(order, key)
		}
		for _, addr := range emails {
			norm := domain.NormalizeEmail(addr)
			if norm == "" {
				continue
			}
			if _, dup := e.seen[norm]; dup {
				continue
			}
			e.seen[norm] = struct{}{}
			e.emails = append(e.emails, strings.TrimSpace(addr))
		}
	}

	if len(groups) > 0 {
		for _, g := range groups {
			for _, kw := range g.Keywords {
				add(kw, g.Emails)
			}
		}
	} else {
		for _, u := range users {
			for _, kw := range u.Keywords {
				add(kw, []string{u.Email})
			}
		}
	}

	subs := make([]domain.Subscription, 0, len(order))
	for _, key := range order {
		e := byKey[key]
		subs = append(subs, domain.Subscription{Keyword: e.keyword, Emails: e.emails})
	}
	return subs
}

func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", "180s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "2s")
	v.SetDefault("llm.max_tokens", 8192)

	// SMTP defaults
	v.SetDefault("smtp.max_retries", 3)
	v.SetDefault("smtp.retry_delay_sec", 300)
	v.SetDefault("smtp.base_interval_minutes", 10)
	v.SetDefault("smtp.admin_email", "")
	v.SetDefault("smtp.insecure_skip_verify", false)
	v.SetDefault("smtp.timeout", "30s")

	// Scheduler defaults
	v.SetDefault("scheduler.run_time", "08:00")
	v.SetDefault("scheduler.timezone", "")
	v.SetDefault("scheduler.delay_between_keywords_sec", 60)
	v.SetDefault("scheduler.marker_path", ".daily_run_marker.json")
	v.SetDefault("scheduler.catch_up", true)

	// PubMed defaults
	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.email", "")
	v.SetDefault("pubmed.tool", "literature-digest-service")
	v.SetDefault("pubmed.max_articles", 20)
	v.SetDefault("pubmed.search_window_days", 3)
	v.SetDefault("pubmed.rate_limit", 3.0)
	v.SetDefault("pubmed.timeout", "30s")
	v.SetDefault("pubmed.max_retries", 3)

	// Translation defaults
	v.SetDefault("translation_settings.batch_size", 5)
	v.SetDefault("translation_settings.delay_between_batches_sec", 5)

	// Data file defaults
	v.SetDefault("data_files.zky_path", "zky.csv")
	v.SetDefault("data_files.jcr_path", "jcr.csv")

	// Debug defaults
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.output_dir", "debug_output")

	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "literature_digest")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "literature-digest.runs")
	v.SetDefault("kafka.trigger_topic", "")
	v.SetDefault("kafka.group_id", "literature-digest-service")
	v.SetDefault("kafka.batch_timeout", "1s")
	v.SetDefault("kafka.write_timeout", "10s")
}

var hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
	return validate
}

// Validate validates the configuration. Errors are *domain.ConfigError and
// match domain.ErrConfiguration.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return domain.NewConfigError(fe.Namespace(), fmt.Sprintf("failed %q check (value %q)", fe.Tag(), redact(fe)))
		}
		return domain.NewConfigError("", err.Error())
	}

	if len(c.Subscriptions) == 0 {
		return domain.NewConfigError("user_groups", "at least one keyword subscription is required")
	}
	if len(c.SMTP.Accounts) == 0 {
		return domain.NewConfigError("smtp.accounts", "at least one outbound mail account is required")
	}

	providers := make(map[string]LLMProviderConfig, len(c.LLMProviders))
	for _, p := range c.LLMProviders {
		if _, dup := providers[p.Name]; dup {
			return domain.NewConfigError("llm_providers", fmt.Sprintf("duplicate provider name %q", p.Name))
		}
		if p.Provider == ProviderCustom && p.APIEndpoint == "" {
			return domain.NewConfigError("llm_providers", fmt.Sprintf("custom provider %q requires api_endpoint", p.Name))
		}
		providers[p.Name] = p
	}

	for _, task := range []string{TaskQueryGenerator, TaskSummarizer, TaskAbstractTranslator} {
		tm, _ := c.TaskModelMapping.ForTask(task)
		if tm.ProviderName == "" || tm.ModelName == "" {
			return domain.NewConfigError("task_model_mapping."+task, "provider_name and model_name are required")
		}
		if _, ok := providers[tm.ProviderName]; !ok {
			return domain.NewConfigError("task_model_mapping."+task, fmt.Sprintf("unknown provider %q", tm.ProviderName))
		}
	}

	if _, err := c.Scheduler.Location(); err != nil {
		return domain.NewConfigError("scheduler.timezone", err.Error())
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return domain.NewConfigError("kafka", "brokers and topic are required when kafka is enabled")
	}

	return nil
}

// redact hides secret values from validation messages.
func redact(fe validator.FieldError) string {
	switch fe.Field() {
	case "Password", "APIKey":
		return "***"
	}
	return fmt.Sprint(fe.Value())
}
