package repository

import "context"

// PreferencesRepository reads persisted voice preferences. Returns nil when
// the account has no stored preferences; callers fall back to defaults.
type PreferencesRepository interface {
	GetVoicePreferences(ctx context.Context, accountID string) (*VoicePreferences, error)
}
