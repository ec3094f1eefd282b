package playback

import (
	"github.com/brightclass/voicesession/internal/config"
	"github.com/brightclass/voicesession/internal/playback"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (playback.Player, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewFFplayPlayer("ffplay", c.AudioSampleRate, c.AudioChannels), nil
	})
}
