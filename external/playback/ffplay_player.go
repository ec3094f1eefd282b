package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"

	"github.com/brightclass/voicesession/internal/playback"
)

// FFplayPlayer plays raw 16-bit PCM through an ffplay subprocess.
type FFplayPlayer struct {
	command    string
	sampleRate int
	channels   int

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewFFplayPlayer(command string, sampleRate, channels int) playback.Player {
	if command == "" {
		command = "ffplay"
	}
	return &FFplayPlayer{
		command:    command,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Play blocks until playback completes, the context is canceled, or Stop is
// called. Stopping is not an error.
func (p *FFplayPlayer) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	p.mu.Lock()
	if p.cmd != nil {
		p.mu.Unlock()
		return errors.New("playback already in progress")
	}

	cmd := exec.CommandContext(ctx, p.command,
		"-autoexit",
		"-nodisp",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", p.sampleRate),
		"-ch_layout", layoutForChannels(p.channels),
		"-i", "pipe:0",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("open %s stdin: %w", p.command, err)
	}
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("start %s: %w", p.command, err)
	}
	p.cmd = cmd
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.cmd = nil
		p.mu.Unlock()
	}()

	if _, err := stdin.Write(pcm); err != nil {
		_ = stdin.Close()
		_ = cmd.Wait()
		// An interrupted pipe means playback was stopped mid-clip.
		if errors.Is(err, syscall.EPIPE) {
			return nil
		}
		return fmt.Errorf("write audio to %s: %w", p.command, err)
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Killed by Stop or context cancellation.
			return nil
		}
		return fmt.Errorf("wait for %s: %w", p.command, err)
	}
	return nil
}

// Stop kills any in-flight playback. Safe to call when idle.
func (p *FFplayPlayer) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil {
		slog.Debug("failed to kill playback process", "error", err)
	}
}

func layoutForChannels(channels int) string {
	if channels >= 2 {
		return "stereo"
	}
	return "mono"
}
