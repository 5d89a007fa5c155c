package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mediguard-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/mediguard-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("MEDIGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Drug-label lookup defaults (openFDA drug/label endpoint)
	viper.SetDefault("drug_label.base_url", "https://api.fda.gov/drug/label.json")
	viper.SetDefault("drug_label.timeout", "15s")
	viper.SetDefault("drug_label.rate_limit", 4)

	// On-device model runtime defaults (OpenAI-compatible loopback server)
	viper.SetDefault("local_model.base_url", "http://127.0.0.1:11434/v1")
	viper.SetDefault("local_model.model", "llama3.2:3b")
	viper.SetDefault("local_model.timeout", "45s")

	// Cloud generative endpoint defaults
	viper.SetDefault("cloud_model.base_url", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("cloud_model.text_model", "gemini-pro")
	viper.SetDefault("cloud_model.vision_model", "gemini-1.5-flash")
	viper.SetDefault("cloud_model.timeout", "30s")

	// Preference store defaults
	viper.SetDefault("prefs.backend", "sqlite")
	viper.SetDefault("prefs.sqlite_path", "./data/prefs.db")
	viper.SetDefault("prefs.redis_url", "redis://localhost:6379")
	viper.SetDefault("prefs.pool_size", 10)
	viper.SetDefault("prefs.pool_timeout", "4s")
	viper.SetDefault("prefs.max_retries", 3)

	// Cascade defaults
	viper.SetDefault("analysis.adapter_timeout", "60s")
	viper.SetDefault("analysis.base_language", "en")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate external endpoints
	if config.DrugLabel.BaseURL == "" {
		return fmt.Errorf("drug-label base URL is required")
	}
	if config.CloudModel.BaseURL == "" {
		return fmt.Errorf("cloud model base URL is required")
	}
	if config.LocalModel.BaseURL == "" {
		return fmt.Errorf("local model base URL is required")
	}

	// Validate preference store configuration
	switch strings.ToLower(config.Prefs.Backend) {
	case "sqlite":
		if config.Prefs.SQLitePath == "" {
			return fmt.Errorf("sqlite preference store path is required")
		}
	case "redis":
		if config.Prefs.RedisURL == "" {
			return fmt.Errorf("redis URL is required")
		}
	default:
		return fmt.Errorf("invalid preference store backend: %s", config.Prefs.Backend)
	}

	if config.Analysis.AdapterTimeout <= 0 {
		return fmt.Errorf("adapter timeout must be positive")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
