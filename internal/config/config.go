package config

import (
	"errors"
	"fmt"
	"meetscribe/pkg/logger"
	"meetscribe/pkg/model"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultPath is where the optional yaml config lives
const DefaultPath = "configs/config.yaml"

type Config struct {
	Debug    bool   `yaml:"debug" env:"DEBUG" env-default:"false"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	Pipeline struct {
		SourceDir          string   `yaml:"source_dir" env:"PIPELINE_SOURCE_DIR" env-default:"inbox"`
		OutputDir          string   `yaml:"output_dir" env:"PIPELINE_OUTPUT_DIR" env-default:"meeting_outputs"`
		Extensions         []string `yaml:"extensions" env:"PIPELINE_EXTENSIONS" env-separator:"," env-default:"webm"`
		PromptTemplatePath string   `yaml:"prompt_template" env:"PROMPT_TEMPLATE_PATH" env-default:"prompt_template.txt"`
	} `yaml:"pipeline"`

	SpeechText struct {
		APIKey         string        `yaml:"api_key" env:"SPEECHTEXT_API_KEY"`
		BaseURL        string        `yaml:"base_url" env:"SPEECHTEXT_BASE_URL" env-default:"https://api.speechtext.ai"`
		Language       string        `yaml:"language" env:"SPEECHTEXT_LANGUAGE" env-default:"en-US"`
		Punctuation    bool          `yaml:"punctuation" env:"SPEECHTEXT_PUNCTUATION" env-default:"true"`
		Speakers       bool          `yaml:"speakers" env:"SPEECHTEXT_SPEAKERS" env-default:"true"`
		Summary        bool          `yaml:"summary" env:"SPEECHTEXT_SUMMARY" env-default:"false"`
		SummarySize    int           `yaml:"summary_size" env:"SPEECHTEXT_SUMMARY_SIZE" env-default:"15"`
		PollInterval   time.Duration `yaml:"poll_interval" env:"SPEECHTEXT_POLL_INTERVAL" env-default:"15s"`
		Timeout        time.Duration `yaml:"timeout" env:"SPEECHTEXT_TIMEOUT" env-default:"2h"`
		MaxUploadMB    int64         `yaml:"max_upload_mb" env:"SPEECHTEXT_MAX_UPLOAD_MB" env-default:"500"`
		RetryAttempts  int           `yaml:"retry_attempts" env:"SPEECHTEXT_RETRY_ATTEMPTS" env-default:"1"`
		RetryBackoff   time.Duration `yaml:"retry_backoff" env:"SPEECHTEXT_RETRY_BACKOFF" env-default:"5s"`
		UploadInterval time.Duration `yaml:"upload_interval" env:"SPEECHTEXT_UPLOAD_INTERVAL" env-default:"1s"`
	} `yaml:"speechtext"`

	Summary struct {
		Provider           string        `yaml:"provider" env:"SUMMARY_PROVIDER" env-default:"anthropic"`
		MaxTranscriptChars int           `yaml:"max_transcript_chars" env:"SUMMARY_MAX_TRANSCRIPT_CHARS" env-default:"150000"`
		Timeout            time.Duration `yaml:"timeout" env:"SUMMARY_TIMEOUT" env-default:"5m"`
		BreakerFailures    uint32        `yaml:"breaker_failures" env:"SUMMARY_BREAKER_FAILURES" env-default:"3"`
		BreakerCooldown    time.Duration `yaml:"breaker_cooldown" env:"SUMMARY_BREAKER_COOLDOWN" env-default:"1m"`
	} `yaml:"summary"`

	Anthropic struct {
		APIKey    string `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
		BaseURL   string `yaml:"base_url" env:"ANTHROPIC_BASE_URL" env-default:"https://api.anthropic.com"`
		Model     string `yaml:"model" env:"ANTHROPIC_MODEL" env-default:"claude-3-haiku-20240307"`
		MaxTokens int    `yaml:"max_tokens" env:"ANTHROPIC_MAX_TOKENS" env-default:"4000"`
	} `yaml:"anthropic"`

	Gemini struct {
		APIKey  string `yaml:"api_key" env:"GEMINI_API_KEY"`
		Model   string `yaml:"model" env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
		BaseURL string `yaml:"base_url" env:"GEMINI_BASE_URL"`
	} `yaml:"gemini"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
	} `yaml:"postgres"`

	S3 struct {
		Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
		Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
		AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
		Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
		Prefix    string `yaml:"prefix" env:"S3_PREFIX" env-default:"meetings"`
	} `yaml:"s3"`

	Redis struct {
		Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
		Password string        `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
		DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
		Prefix   string        `yaml:"prefix" env:"REDIS_PREFIX" env-default:"meetscribe"`
		TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"720h"`
	} `yaml:"redis"`

	RabbitMQ struct {
		URL        string `yaml:"url" env:"RABBITMQ_URL"`
		Exchange   string `yaml:"exchange" env:"RABBITMQ_EXCHANGE" env-default:"meetscribe"`
		RoutingKey string `yaml:"routing_key" env:"RABBITMQ_ROUTING_KEY" env-default:"meeting.outcome"`
		Queue      string `yaml:"queue" env:"RABBITMQ_QUEUE" env-default:"meetscribe.events"`
	} `yaml:"rabbitmq"`

	Telegram struct {
		Token  string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
		ChatID int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	} `yaml:"telegram"`

	Metrics struct {
		PushgatewayURL string `yaml:"pushgateway_url" env:"PUSHGATEWAY_URL"`
		Job            string `yaml:"job" env:"METRICS_JOB" env-default:"meetscribe"`
		Instance       string `yaml:"instance" env:"METRICS_INSTANCE"`
	} `yaml:"metrics"`

	Watch struct {
		Debounce time.Duration `yaml:"debounce" env:"WATCH_DEBOUNCE" env-default:"5s"`
	} `yaml:"watch"`
}

// LoadConfig reads the configuration and checks everything a batch run needs
func LoadConfig(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads .env, the optional yaml file at path and the environment
// without validating secrets. Environment variables override yaml values.
func Read(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" && fileExists(path) {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, model.NewConfigError("read "+path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, model.NewConfigError("read env", err)
		}
	}

	cfg.normalize()

	return &cfg, nil
}

func (c *Config) normalize() {
	exts := make([]string, 0, len(c.Pipeline.Extensions))
	seen := make(map[string]bool)
	for _, ext := range c.Pipeline.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		exts = append(exts, ext)
	}
	c.Pipeline.Extensions = exts
	c.Summary.Provider = strings.ToLower(strings.TrimSpace(c.Summary.Provider))
	c.SpeechText.BaseURL = strings.TrimRight(c.SpeechText.BaseURL, "/")
	c.Anthropic.BaseURL = strings.TrimRight(c.Anthropic.BaseURL, "/")
}

// Validate checks that the secrets and paths needed for a run are present
func (c *Config) Validate() error {
	var missing []string

	if c.SpeechText.APIKey == "" {
		missing = append(missing, "SPEECHTEXT_API_KEY")
	}

	switch c.Summary.Provider {
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	default:
		return model.NewConfigError("validate", fmt.Errorf("unknown summary provider %q", c.Summary.Provider))
	}

	if len(missing) > 0 {
		return model.NewConfigError("validate", fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", ")))
	}

	if c.Pipeline.SourceDir == "" || c.Pipeline.OutputDir == "" {
		return model.NewConfigError("validate", errors.New("pipeline source and output directories are required"))
	}
	if len(c.Pipeline.Extensions) == 0 {
		return model.NewConfigError("validate", errors.New("at least one input extension is required"))
	}
	if c.Summary.MaxTranscriptChars <= 0 {
		return model.NewConfigError("validate", errors.New("summary.max_transcript_chars must be positive"))
	}
	if c.SpeechText.PollInterval <= 0 || c.SpeechText.Timeout <= 0 {
		return model.NewConfigError("validate", errors.New("speechtext poll interval and timeout must be positive"))
	}

	return nil
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.SpeechText.MaxUploadMB * 1024 * 1024
}

// LogFields describes the config for logs without leaking secrets
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("source_dir", c.Pipeline.SourceDir),
		zap.String("output_dir", c.Pipeline.OutputDir),
		zap.Strings("extensions", c.Pipeline.Extensions),
		zap.String("summary_provider", c.Summary.Provider),
		zap.Int("max_transcript_chars", c.Summary.MaxTranscriptChars),
		logger.Secret("speechtext_api_key", c.SpeechText.APIKey),
		logger.Secret("anthropic_api_key", c.Anthropic.APIKey),
		logger.Secret("gemini_api_key", c.Gemini.APIKey),
		zap.Bool("postgres", c.Postgres.DSN != ""),
		zap.Bool("s3", c.S3.Bucket != ""),
		zap.Bool("redis", c.Redis.Addr != ""),
		zap.Bool("rabbitmq", c.RabbitMQ.URL != ""),
		zap.Bool("telegram", c.Telegram.Token != "" && c.Telegram.ChatID != 0),
		zap.Bool("pushgateway", c.Metrics.PushgatewayURL != ""),
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
