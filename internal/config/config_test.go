package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediguard-server/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.fda.gov/drug/label.json", cfg.DrugLabel.BaseURL)
	assert.Equal(t, 4, cfg.DrugLabel.RateLimit)
	assert.Equal(t, "http://127.0.0.1:11434/v1", cfg.LocalModel.BaseURL)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", cfg.CloudModel.BaseURL)
	assert.Equal(t, "sqlite", cfg.Prefs.Backend)
	assert.Equal(t, 60*time.Second, cfg.Analysis.AdapterTimeout)
	assert.Equal(t, "en", cfg.Analysis.BaseLanguage)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestManager_EnvOverride(t *testing.T) {
	t.Setenv("MEDIGUARD_SERVER_PORT", "9090")
	t.Setenv("MEDIGUARD_LOGGING_LEVEL", "debug")

	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *domain.Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *domain.Config) { c.Server.Port = -1 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing drug-label URL",
			mutate:  func(c *domain.Config) { c.DrugLabel.BaseURL = "" },
			wantErr: "drug-label base URL",
		},
		{
			name:    "missing local model URL",
			mutate:  func(c *domain.Config) { c.LocalModel.BaseURL = "" },
			wantErr: "local model base URL",
		},
		{
			name:    "unknown prefs backend",
			mutate:  func(c *domain.Config) { c.Prefs.Backend = "etcd" },
			wantErr: "invalid preference store backend",
		},
		{
			name:    "redis backend without URL",
			mutate:  func(c *domain.Config) { c.Prefs.Backend = "redis"; c.Prefs.RedisURL = "" },
			wantErr: "redis URL is required",
		},
		{
			name:    "non-positive adapter timeout",
			mutate:  func(c *domain.Config) { c.Analysis.AdapterTimeout = 0 },
			wantErr: "adapter timeout",
		},
		{
			name:    "bad log level",
			mutate:  func(c *domain.Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewManager()
			require.NoError(t, err)

			tt.mutate(manager.GetConfig())

			err = manager.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
