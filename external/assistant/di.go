package assistant

import (
	"github.com/brightclass/voicesession/internal/assistant"
	"github.com/brightclass/voicesession/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (assistant.Assistant, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPAssistant(c.AssistantURL, c.AccountID, c.Language), nil
	})
}
