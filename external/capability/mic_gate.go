package capability

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/brightclass/voicesession/internal/capability"
)

const permissionProbeTimeout = 2 * time.Second

// MicPermissionGate verifies microphone access by opening the capture device
// for a fraction of a second. A successful probe is cached for the process
// lifetime; a denial is reported to the caller, never retried here.
type MicPermissionGate struct {
	command     string
	inputFormat string
	inputDevice string

	mu      sync.Mutex
	granted bool
}

func NewMicPermissionGate(command, inputFormat, inputDevice string) capability.PermissionGate {
	if command == "" {
		command = "ffmpeg"
	}
	return &MicPermissionGate{
		command:     command,
		inputFormat: inputFormat,
		inputDevice: inputDevice,
	}
}

func (g *MicPermissionGate) Check(_ context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

func (g *MicPermissionGate) Request(ctx context.Context) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, permissionProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, g.command,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-f", g.inputFormat,
		"-i", g.inputDevice,
		"-t", "0.1",
		"-f", "null",
		"-",
	)
	if err := cmd.Run(); err != nil {
		slog.Warn("microphone permission probe failed", "error", err, "device", g.inputDevice)
		return false, nil
	}

	g.mu.Lock()
	g.granted = true
	g.mu.Unlock()
	return true, nil
}
