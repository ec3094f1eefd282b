package repository

import "time"

// VoicePreferences are the persisted per-account knobs the core reads at
// construction. The core never writes them.
type VoicePreferences struct {
	AccountID        string
	AutoSilence      time.Duration
	HardCap          time.Duration
	DefaultLocked    bool
	StreamingEnabled bool
	UpdatedAt        time.Time
}

// DefaultVoicePreferences apply when an account has no stored row.
func DefaultVoicePreferences(accountID string) *VoicePreferences {
	return &VoicePreferences{
		AccountID:        accountID,
		AutoSilence:      2 * time.Second,
		HardCap:          60 * time.Second,
		DefaultLocked:    false,
		StreamingEnabled: true,
	}
}
