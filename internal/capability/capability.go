package capability

import (
	"context"
	"strings"
)

// Tier is the subscription tier of the account a session runs under.
type Tier string

const (
	TierFree       Tier = "free"
	TierStandard   Tier = "standard"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// IsPremiumTier reports whether the tier may reach the premium fallback provider.
func IsPremiumTier(t Tier) bool {
	switch t {
	case TierPremium, TierEnterprise:
		return true
	default:
		return false
	}
}

// lowResourceLanguages is the fixed set of indigenous/low-resource languages
// that must be routed to the specialist provider. Keys are base language
// subtags; region variants (e.g. "mi-NZ") match their base.
var lowResourceLanguages = map[string]struct{}{
	"mi":  {}, // Māori
	"haw": {}, // Hawaiian
	"sm":  {}, // Samoan
	"to":  {}, // Tongan
	"qu":  {}, // Quechua
	"gn":  {}, // Guaraní
	"nv":  {}, // Navajo
	"chr": {}, // Cherokee
}

// IsLowResourceLanguage reports whether the language tag belongs to the
// specialist-only set.
func IsLowResourceLanguage(language string) bool {
	base := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(base, "-_"); i > 0 {
		base = base[:i]
	}
	_, ok := lowResourceLanguages[base]
	return ok
}

// Capabilities is the result of the preflight check run once per start.
type Capabilities struct {
	StreamingAvailable bool
	Reasons            []string

	// RequiresMicPermission is set on platforms where an explicit microphone
	// permission must be requested before capture.
	RequiresMicPermission bool

	// NativePCMCapture reports whether the platform exposes the raw PCM
	// capture primitives the specialist provider requires.
	NativePCMCapture bool
}

// Probe answers whether streaming is available for a language and tier.
type Probe interface {
	GetCapabilities(ctx context.Context, language string, tier Tier) (Capabilities, error)
}

// PermissionGate models the platform microphone permission.
type PermissionGate interface {
	Check(ctx context.Context) bool
	Request(ctx context.Context) (bool, error)
}
