package capability

import (
	"github.com/brightclass/voicesession/internal/capability"
	"github.com/brightclass/voicesession/internal/config"
	"github.com/brightclass/voicesession/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (capability.Probe, error) {
		cfg := do.MustInvoke[*config.Config](i)
		prefs := do.MustInvoke[*repository.VoicePreferences](i)
		enabled := cfg.StreamingEnabled && prefs.StreamingEnabled
		return NewStaticProbe(enabled, "ffmpeg"), nil
	})
	do.Provide(injector, func(i do.Injector) (capability.PermissionGate, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewMicPermissionGate("ffmpeg", cfg.AudioInputFormat, cfg.AudioInputDevice), nil
	})
}
