package capability

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/brightclass/voicesession/internal/capability"
)

// StaticProbe answers the capability preflight from static platform and
// account facts. It is consulted once per start.
type StaticProbe struct {
	streamingEnabled bool
	captureCommand   string
}

func NewStaticProbe(streamingEnabled bool, captureCommand string) capability.Probe {
	if captureCommand == "" {
		captureCommand = "ffmpeg"
	}
	return &StaticProbe{
		streamingEnabled: streamingEnabled,
		captureCommand:   captureCommand,
	}
}

func (p *StaticProbe) GetCapabilities(_ context.Context, language string, tier capability.Tier) (capability.Capabilities, error) {
	caps := capability.Capabilities{
		RequiresMicPermission: requiresMicPermission(),
		NativePCMCapture:      p.hasCaptureBinary(),
	}

	if !p.streamingEnabled {
		caps.Reasons = append(caps.Reasons, "streaming disabled by preferences")
	}
	if language == "" {
		caps.Reasons = append(caps.Reasons, "no language configured")
	}
	if !knownTier(tier) {
		caps.Reasons = append(caps.Reasons, fmt.Sprintf("unknown subscription tier %q", tier))
	}
	if !caps.NativePCMCapture {
		caps.Reasons = append(caps.Reasons, fmt.Sprintf("capture command %q not found", p.captureCommand))
	}

	caps.StreamingAvailable = len(caps.Reasons) == 0
	return caps, nil
}

func (p *StaticProbe) hasCaptureBinary() bool {
	_, err := exec.LookPath(p.captureCommand)
	return err == nil
}

func requiresMicPermission() bool {
	switch runtime.GOOS {
	case "darwin", "linux":
		return true
	default:
		return false
	}
}

func knownTier(tier capability.Tier) bool {
	switch tier {
	case capability.TierFree, capability.TierStandard, capability.TierPremium, capability.TierEnterprise:
		return true
	default:
		return false
	}
}
