package controller

import (
	"github.com/brightclass/voicesession/internal/assistant"
	"github.com/brightclass/voicesession/internal/capability"
	"github.com/brightclass/voicesession/internal/config"
	"github.com/brightclass/voicesession/internal/playback"
	"github.com/brightclass/voicesession/internal/provider"
	"github.com/brightclass/voicesession/internal/repository"
	"github.com/brightclass/voicesession/internal/stream"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Controller, error) {
		cfg := do.MustInvoke[*config.Config](i)
		prefs := do.MustInvoke[*repository.VoicePreferences](i)
		session := do.MustInvoke[*stream.Session](i)
		asst := do.MustInvoke[assistant.Assistant](i)
		player := do.MustInvoke[playback.Player](i)
		events := do.MustInvoke[EventSink](i)

		return NewController(session, asst, player, events, Config{
			Language:          cfg.Language,
			Tier:              capability.Tier(cfg.SubscriptionTier),
			RequestedProvider: provider.ID(cfg.RequestedProvider),
			AutoSilence:       prefs.AutoSilence,
			HardCap:           prefs.HardCap,
			DefaultLocked:     prefs.DefaultLocked,
			TranscriptWait:    cfg.TranscriptWait,
		}), nil
	})
}
