package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/brightclass/voicesession/internal/config"
	"github.com/samber/do/v2"
)

const preferencesLoadTimeout = 5 * time.Second

// RegisterDI provides the resolved per-account preferences. A missing row or
// a read failure falls back to defaults so the daemon can still start.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*VoicePreferences, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[PreferencesRepository](i)

		ctx, cancel := context.WithTimeout(context.Background(), preferencesLoadTimeout)
		defer cancel()

		prefs, err := repo.GetVoicePreferences(ctx, cfg.AccountID)
		if err != nil {
			slog.Warn("failed to load voice preferences; using defaults", "error", err, "account_id", cfg.AccountID)
			return DefaultVoicePreferences(cfg.AccountID), nil
		}
		if prefs == nil {
			return DefaultVoicePreferences(cfg.AccountID), nil
		}
		return prefs, nil
	})
}
