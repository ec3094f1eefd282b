package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brightclass/voicesession/internal/assistant"
	"github.com/brightclass/voicesession/internal/capability"
	"github.com/brightclass/voicesession/internal/playback"
	"github.com/brightclass/voicesession/internal/provider"
	"github.com/brightclass/voicesession/internal/stream"
)

// State is the controller's gesture lifecycle. Exactly one state is active
// at a time and it is owned exclusively by the Controller.
type State string

const (
	StateIdle         State = "idle"
	StatePrewarm      State = "prewarm"
	StateListening    State = "listening"
	StateTranscribing State = "transcribing"
	StateThinking     State = "thinking"
	StateSpeaking     State = "speaking"
	StateError        State = "error"
)

// StreamSession is what the controller needs from the voice stream layer.
type StreamSession interface {
	Start(ctx context.Context, req stream.Request, cb stream.Callbacks) error
	Stop(ctx context.Context) error
	Cancel()
	SetMuted(muted bool)
	Status() stream.Status
}

// EventSink receives the controller's observable outputs. Implementations
// must not call back into the controller.
type EventSink interface {
	StateChanged(state State)
	PartialTranscript(text string)
	AssistantReply(text string)
	Tick(elapsed time.Duration)
}

// Config carries the timing policy and the routing inputs for every gesture
// cycle. AutoSilence, HardCap and DefaultLocked come from persisted user
// preferences, read once at construction.
type Config struct {
	Language          string
	Tier              capability.Tier
	RequestedProvider provider.ID

	AutoSilence   time.Duration
	HardCap       time.Duration
	DefaultLocked bool

	// TranscriptWait bounds how long a release waits for a usable transcript
	// after the stream has stopped.
	TranscriptWait time.Duration
	TickInterval   time.Duration
}

// Controller translates discrete user gestures into a single linear state
// progression and delivers exactly one finalized transcript (or none) per
// gesture cycle to the downstream assistant. Gesture operations never return
// errors to the UI; they resolve into State. The one exception is the
// downstream assistant failure, which Release propagates from that single
// call site.
type Controller struct {
	session   StreamSession
	assistant assistant.Assistant
	player    playback.Player
	events    EventSink
	cfg       Config

	mu           sync.Mutex
	state        State
	locked       bool
	startedAt    time.Time
	generation   int
	transcript   transcriptAccumulator
	finalReady   chan struct{}
	silenceTimer *time.Timer
	hardCapTimer *time.Timer
	tickStop     chan struct{}
}

func NewController(
	session StreamSession,
	asst assistant.Assistant,
	player playback.Player,
	events EventSink,
	cfg Config,
) *Controller {
	if cfg.AutoSilence <= 0 {
		cfg.AutoSilence = 2 * time.Second
	}
	if cfg.HardCap <= 0 {
		cfg.HardCap = 60 * time.Second
	}
	if cfg.TranscriptWait <= 0 {
		cfg.TranscriptWait = 5 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 250 * time.Millisecond
	}
	return &Controller{
		session:   session,
		assistant: asst,
		player:    player,
		events:    events,
		cfg:       cfg,
		state:     StateIdle,
	}
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Locked reports whether the current session is user-locked.
func (c *Controller) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// Elapsed returns the recording time of the current session, zero when idle.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt.IsZero() {
		return 0
	}
	switch c.state {
	case StateListening, StateTranscribing:
		return time.Since(c.startedAt)
	}
	return 0
}

// StartPress begins a new gesture cycle. It is a no-op while a prior cycle
// is anywhere between prewarm and thinking; from speaking it first stops
// playback. On stream-start failure it resolves to StateError and performs
// no further action.
func (c *Controller) StartPress(ctx context.Context) {
	c.mu.Lock()
	switch c.state {
	case StatePrewarm, StateListening, StateTranscribing, StateThinking:
		c.mu.Unlock()
		return
	case StateSpeaking:
		if c.player != nil {
			c.player.Stop()
		}
	}
	c.generation++
	gen := c.generation
	c.transcript.Reset()
	c.finalReady = make(chan struct{}, 1)
	c.locked = false
	c.setStateLocked(StatePrewarm)
	c.mu.Unlock()

	req := stream.Request{
		Language:          c.cfg.Language,
		Tier:              c.cfg.Tier,
		RequestedProvider: c.cfg.RequestedProvider,
	}
	err := c.session.Start(ctx, req, stream.Callbacks{
		OnPartialTranscript: func(text string) { c.onTranscript(gen, text, false) },
		OnFinalTranscript:   func(text string) { c.onTranscript(gen, text, true) },
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || c.state != StatePrewarm {
		// Released or canceled while connecting; that path already settled
		// the state.
		return
	}
	if err != nil {
		if errors.Is(err, stream.ErrStartCanceled) {
			c.setStateLocked(StateIdle)
			return
		}
		slog.Error("voice stream start failed", "error", err)
		c.setStateLocked(StateError)
		return
	}

	c.setStateLocked(StateListening)
	c.startedAt = time.Now()
	c.startTickLocked()
	// Exactly one disengagement timer per session: the hard cap when the
	// session starts locked, auto-silence otherwise.
	if c.cfg.DefaultLocked {
		c.locked = true
		c.armHardCapLocked(gen)
	} else {
		c.armSilenceLocked(gen)
	}
}

// Lock marks the session user-locked: auto-silence is disabled and the hard
// cap is re-armed from the lock moment.
func (c *Controller) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateListening {
		return
	}
	c.locked = true
	if c.silenceTimer != nil {
		c.silenceTimer.Stop()
		c.silenceTimer = nil
	}
	c.armHardCapLocked(c.generation)
}

// Release ends recording. Releasing while the stream is still connecting is
// a normal outcome and resolves to idle via the cancel path, never to error.
// Otherwise the stream is stopped and Release waits, bounded by
// TranscriptWait, for a usable transcript; absent one it resolves to
// StateError and the assistant is never called. The returned error is
// non-nil only when the downstream assistant call fails; the controller
// still returns to idle in that case.
func (c *Controller) Release(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateListening && c.state != StatePrewarm {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	c.clearTimersLocked()

	if c.session.Status() == stream.StatusConnecting {
		c.mu.Unlock()
		c.session.Cancel()
		c.mu.Lock()
		if c.generation == gen {
			c.setStateLocked(StateIdle)
		}
		c.mu.Unlock()
		return nil
	}

	c.setStateLocked(StateTranscribing)
	finalReady := c.finalReady
	c.mu.Unlock()

	if err := c.session.Stop(ctx); err != nil {
		slog.Warn("stream stop reported an error", "error", err)
	}

	text := c.waitForTranscript(ctx, finalReady)
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return nil
	}
	if text == "" {
		// An empty transcript after the stop sequence is a hard error, never
		// an empty success.
		c.setStateLocked(StateError)
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateThinking)
	c.mu.Unlock()

	reply, err := c.assistant.SendMessage(ctx, text)

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.setStateLocked(StateIdle)
		c.mu.Unlock()
		return fmt.Errorf("assistant call failed: %w", err)
	}
	if c.player != nil && len(reply.Audio) > 0 {
		c.setStateLocked(StateSpeaking)
		c.mu.Unlock()
		if c.events != nil {
			c.events.AssistantReply(reply.Text)
		}
		go c.playReply(gen, reply.Audio)
		return nil
	}
	c.setStateLocked(StateIdle)
	c.mu.Unlock()
	if c.events != nil {
		c.events.AssistantReply(reply.Text)
	}
	return nil
}

// Cancel tears down unconditionally from any state and is always safe to
// call; the controller ends idle with all timers cleared.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.generation++
	c.clearTimersLocked()
	c.locked = false
	c.startedAt = time.Time{}
	c.mu.Unlock()

	c.session.Cancel()
	if c.player != nil {
		c.player.Stop()
	}

	c.mu.Lock()
	c.setStateLocked(StateIdle)
	c.mu.Unlock()
}

// Interrupt stops concurrent audio playback only; the capture path is never
// touched.
func (c *Controller) Interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSpeaking {
		return
	}
	if c.player != nil {
		c.player.Stop()
	}
	c.setStateLocked(StateIdle)
}

// Close releases timers and the stream on unmount.
func (c *Controller) Close() {
	c.Cancel()
}

func (c *Controller) playReply(gen int, pcm []byte) {
	if err := c.player.Play(context.Background(), pcm); err != nil {
		slog.Warn("assistant playback failed", "error", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen && c.state == StateSpeaking {
		c.setStateLocked(StateIdle)
	}
}

func (c *Controller) onTranscript(gen int, text string, final bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	if final {
		c.transcript.AddFinal(trimmed)
		select {
		case c.finalReady <- struct{}{}:
		default:
		}
	} else {
		c.transcript.AddPartial(trimmed)
	}
	// Speech activity re-arms auto-silence for unlocked sessions.
	if c.state == StateListening && !c.locked {
		c.armSilenceLocked(gen)
	}
	c.mu.Unlock()

	if !final && c.events != nil {
		c.events.PartialTranscript(trimmed)
	}
}

func (c *Controller) waitForTranscript(ctx context.Context, ready <-chan struct{}) string {
	deadline := time.NewTimer(c.cfg.TranscriptWait)
	defer deadline.Stop()

	for {
		if text := c.transcript.Text(); text != "" {
			return text
		}
		select {
		case <-ready:
		case <-deadline.C:
			return c.transcript.Text()
		case <-ctx.Done():
			return c.transcript.Text()
		}
	}
}

func (c *Controller) timerFired(gen int) {
	c.mu.Lock()
	stale := c.generation != gen || c.state != StateListening
	c.mu.Unlock()
	if stale {
		return
	}
	// Both disengagement timers take the same path as a manual release.
	if err := c.Release(context.Background()); err != nil {
		slog.Warn("auto-release assistant call failed", "error", err)
	}
}

func (c *Controller) armSilenceLocked(gen int) {
	if c.silenceTimer != nil {
		c.silenceTimer.Stop()
	}
	c.silenceTimer = time.AfterFunc(c.cfg.AutoSilence, func() { c.timerFired(gen) })
}

func (c *Controller) armHardCapLocked(gen int) {
	if c.hardCapTimer != nil {
		c.hardCapTimer.Stop()
	}
	c.hardCapTimer = time.AfterFunc(c.cfg.HardCap, func() { c.timerFired(gen) })
}

// clearTimersLocked clears every owned timer; it runs on all exit paths so
// no orphaned callback can fire into a stale session.
func (c *Controller) clearTimersLocked() {
	if c.silenceTimer != nil {
		c.silenceTimer.Stop()
		c.silenceTimer = nil
	}
	if c.hardCapTimer != nil {
		c.hardCapTimer.Stop()
		c.hardCapTimer = nil
	}
	c.stopTickLocked()
}

func (c *Controller) startTickLocked() {
	stop := make(chan struct{})
	c.tickStop = stop
	startedAt := c.startedAt
	go func() {
		ticker := time.NewTicker(c.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if c.events != nil {
					c.events.Tick(time.Since(startedAt))
				}
			}
		}
	}()
}

func (c *Controller) stopTickLocked() {
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
}

func (c *Controller) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	if c.events != nil {
		c.events.StateChanged(state)
	}
}
