// Package prefs persists the user preference record across restarts. Two
// backends are provided: an embedded SQLite file (the default) and Redis for
// deployments that already run one.
package prefs

import (
	"fmt"

	"github.com/mediguard-server/internal/domain"
)

// Defaults returns the preference record used before the user has saved
// anything: hybrid mode on, English, no cloud key.
func Defaults() *domain.Preferences {
	return &domain.Preferences{
		HybridEnabled:     true,
		PreferredLanguage: "en",
	}
}

// New builds the configured preference store.
func New(cfg domain.PrefsConfig) (domain.PreferenceStore, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		return NewRedisStore(cfg)
	default:
		return nil, fmt.Errorf("unknown preference backend %q", cfg.Backend)
	}
}
