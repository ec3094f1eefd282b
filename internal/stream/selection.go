package stream

import (
	"github.com/brightclass/voicesession/internal/capability"
	"github.com/brightclass/voicesession/internal/provider"
)

// selectionOrder returns the providers to attempt, in order, for one start.
// The rules are deterministic and evaluated once per start:
//
//  1. Low-resource languages are served by the specialist provider only,
//     regardless of the requested provider or tier.
//  2. Otherwise: the explicitly requested provider first (if allowed), then
//     the default low-latency provider, then the specialist provider on
//     platforms with native PCM capture, then the premium fallback provider
//     for premium-tier accounts only.
func selectionOrder(req Request, caps capability.Capabilities) []provider.ID {
	if capability.IsLowResourceLanguage(req.Language) {
		return []provider.ID{provider.IDGoogleSpeech}
	}

	order := make([]provider.ID, 0, 4)
	seen := make(map[provider.ID]struct{}, 4)
	add := func(id provider.ID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}

	if req.RequestedProvider != "" && requestAllowed(req, caps) {
		add(req.RequestedProvider)
	}
	add(provider.IDDeepgram)
	if caps.NativePCMCapture {
		add(provider.IDGoogleSpeech)
	}
	if capability.IsPremiumTier(req.Tier) {
		add(provider.IDAssemblyAI)
	}
	return order
}

// requestAllowed applies the same platform and tier gates to an explicitly
// requested provider that the fallback chain applies; a caller request never
// widens eligibility.
func requestAllowed(req Request, caps capability.Capabilities) bool {
	switch req.RequestedProvider {
	case provider.IDAssemblyAI:
		return capability.IsPremiumTier(req.Tier)
	case provider.IDGoogleSpeech:
		return caps.NativePCMCapture
	default:
		return true
	}
}
