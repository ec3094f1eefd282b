package stream

import (
	"github.com/brightclass/voicesession/internal/audio"
	"github.com/brightclass/voicesession/internal/capability"
	"github.com/brightclass/voicesession/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Session, error) {
		cfg := do.MustInvoke[*config.Config](i)
		probe := do.MustInvoke[capability.Probe](i)
		permissions := do.MustInvoke[capability.PermissionGate](i)
		registry := do.MustInvoke[Registry](i)
		capture := do.MustInvoke[audio.Capture](i)
		newEncoder := do.MustInvoke[audio.EncoderFactory](i)
		return NewSession(probe, permissions, registry, capture, newEncoder, Config{
			Audio: audio.CaptureConfig{
				SampleRate:  cfg.AudioSampleRate,
				Channels:    cfg.AudioChannels,
				InputFormat: cfg.AudioInputFormat,
				InputDevice: cfg.AudioInputDevice,
			},
			Encoding:            cfg.AudioEncoding,
			ChunkSize:           cfg.AudioChunkSize,
			EndpointingMs:       cfg.EndpointingMs,
			ProviderStopTimeout: cfg.ProviderStopTimeout,
			// SettleDelay stays on the NewSession default; it is UI pacing,
			// not account policy.
		}), nil
	})
}
