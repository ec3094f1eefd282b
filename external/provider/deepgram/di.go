package deepgram

import (
	"github.com/brightclass/voicesession/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Provider, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return New(Config{
			APIKey:      cfg.DeepgramAPIKey,
			APIBaseURL:  cfg.DeepgramAPIBaseURL,
			Model:       cfg.DeepgramModel,
			SmartFormat: true,
		}), nil
	})
}
