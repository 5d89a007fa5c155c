package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	DrugLabel  DrugLabelConfig  `mapstructure:"drug_label"`
	LocalModel LocalModelConfig `mapstructure:"local_model"`
	CloudModel CloudModelConfig `mapstructure:"cloud_model"`
	Prefs      PrefsConfig      `mapstructure:"prefs"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DrugLabelConfig represents the drug-label lookup API configuration
// (openFDA drug/label endpoint by default).
type DrugLabelConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"`
}

// LocalModelConfig represents the on-device model runtime configuration.
// The runtime is any loopback server speaking the OpenAI chat-completions
// protocol (Ollama, llamafile, LM Studio).
type LocalModelConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CloudModelConfig represents the cloud generative endpoint configuration.
type CloudModelConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	TextModel   string        `mapstructure:"text_model"`
	VisionModel string        `mapstructure:"vision_model"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PrefsConfig represents the preference store configuration. Backend is
// "sqlite" or "redis"; sqlite is the default local store.
type PrefsConfig struct {
	Backend     string        `mapstructure:"backend"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	RedisURL    string        `mapstructure:"redis_url"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// AnalysisConfig bounds the cascade. Each adapter attempt is given its own
// timeout so a stalled model or network call degrades to the next cascade
// step instead of hanging the analysis.
type AnalysisConfig struct {
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`
	BaseLanguage   string        `mapstructure:"base_language"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
