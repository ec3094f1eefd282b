package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brightclass/voicesession/internal/audio"
	"github.com/brightclass/voicesession/internal/capability"
	"github.com/brightclass/voicesession/internal/config"
	"github.com/brightclass/voicesession/internal/provider"
)

var (
	ErrSessionActive        = errors.New("a voice stream is already active")
	ErrStreamingUnavailable = errors.New("streaming is unavailable for this account")
	ErrPermissionDenied     = errors.New("microphone permission denied")
	ErrStartCanceled        = errors.New("stream start canceled")
)

// ExhaustedError aggregates the per-provider failures of one start after the
// whole fallback chain has been attempted.
type ExhaustedError struct {
	Errors []error
}

func (e *ExhaustedError) Error() string {
	if len(e.Errors) == 0 {
		return "no eligible streaming provider"
	}
	return fmt.Sprintf("all %d eligible providers failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

func (e *ExhaustedError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// Registry maps provider identifiers to their implementations.
type Registry map[provider.ID]provider.Provider

// Request describes one recording attempt.
type Request struct {
	Language          string
	Tier              capability.Tier
	RequestedProvider provider.ID
	Muted             bool
}

// Callbacks carry transcripts and status changes up to the controller. They
// are invoked from provider read loops and must not block.
type Callbacks struct {
	OnPartialTranscript func(text string)
	OnFinalTranscript   func(text string)
	OnAssistantToken    func(token string)
	OnStatusChange      func(status Status)
}

// Config controls capture and teardown behavior.
type Config struct {
	Audio               audio.CaptureConfig
	Encoding            string
	ChunkSize           int
	EndpointingMs       int
	ProviderStopTimeout time.Duration
	SettleDelay         time.Duration
}

// Session hides the interchangeable streaming backends behind one
// start/stop/cancel/mute contract. At most one provider is active at a time;
// provider identity is immutable once streaming has started.
type Session struct {
	probe       capability.Probe
	permissions capability.PermissionGate
	registry    Registry
	capture     audio.Capture
	newEncoder  audio.EncoderFactory
	cfg         Config

	mu          sync.Mutex
	status      Status
	cb          Callbacks
	active      provider.Provider
	capSession  audio.CaptureSession
	encoder     audio.Encoder
	pumpDone    chan struct{}
	cancelStart context.CancelFunc
	stopDone    chan struct{}
	stopErr     error
}

func NewSession(
	probe capability.Probe,
	permissions capability.PermissionGate,
	registry Registry,
	capture audio.Capture,
	newEncoder audio.EncoderFactory,
	cfg Config,
) *Session {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.ProviderStopTimeout <= 0 {
		cfg.ProviderStopTimeout = 3 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 150 * time.Millisecond
	}
	return &Session{
		probe:       probe,
		permissions: permissions,
		registry:    registry,
		capture:     capture,
		newEncoder:  newEncoder,
		cfg:         cfg,
		status:      StatusDisconnected,
	}
}

// Status is the synchronous status mirror.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start runs the capability preflight, the permission gate, and the provider
// fallback chain, strictly in sequence. It resolves fully (success or
// failure) before any Stop or Cancel on the same session is processed by the
// controller. A failed start leaves the session in StatusError; a canceled
// one in StatusDisconnected.
func (s *Session) Start(ctx context.Context, req Request, cb Callbacks) error {
	s.mu.Lock()
	switch s.status {
	case StatusConnecting, StatusStreaming, StatusStopping:
		s.mu.Unlock()
		return ErrSessionActive
	}
	startCtx, cancel := context.WithCancel(ctx)
	s.cancelStart = cancel
	s.cb = cb
	s.stopDone = nil
	s.stopErr = nil
	s.status = StatusConnecting
	s.mu.Unlock()
	s.emit(StatusConnecting)

	caps, err := s.probe.GetCapabilities(startCtx, req.Language, req.Tier)
	if err != nil {
		return s.failStart(startCtx, fmt.Errorf("capability preflight: %w", err))
	}
	if !caps.StreamingAvailable {
		slog.Warn("streaming unavailable", "language", req.Language, "tier", req.Tier, "reasons", strings.Join(caps.Reasons, "; "))
		return s.failStart(startCtx, fmt.Errorf("%w: %s", ErrStreamingUnavailable, strings.Join(caps.Reasons, "; ")))
	}

	if caps.RequiresMicPermission && !s.permissions.Check(startCtx) {
		granted, err := s.permissions.Request(startCtx)
		if err != nil {
			return s.failStart(startCtx, fmt.Errorf("microphone permission request: %w", err))
		}
		if !granted {
			return s.failStart(startCtx, ErrPermissionDenied)
		}
	}

	var attemptErrs []error
	for _, id := range selectionOrder(req, caps) {
		if startCtx.Err() != nil {
			return s.failStart(startCtx, ErrStartCanceled)
		}
		p, ok := s.registry[id]
		if !ok {
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: not registered", id))
			continue
		}
		if err := s.startWith(startCtx, p, req); err != nil {
			slog.Warn("provider start failed; trying next candidate", "provider", id, "error", err)
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", id, err))
			continue
		}

		s.mu.Lock()
		if startCtx.Err() != nil {
			// Cancel raced the last attempt; undo it.
			s.mu.Unlock()
			s.teardownBestEffort()
			return s.failStart(startCtx, ErrStartCanceled)
		}
		s.status = StatusStreaming
		s.mu.Unlock()
		s.emit(StatusStreaming)
		slog.Info("voice stream started", "provider", id, "language", req.Language)
		return nil
	}
	return s.failStart(startCtx, &ExhaustedError{Errors: attemptErrs})
}

func (s *Session) failStart(startCtx context.Context, err error) error {
	if startCtx.Err() != nil || errors.Is(err, ErrStartCanceled) {
		// Cancel already moved the session to StatusDisconnected.
		return ErrStartCanceled
	}
	s.mu.Lock()
	s.status = StatusError
	s.cancelStart = nil
	s.mu.Unlock()
	s.emit(StatusError)
	return err
}

// startWith performs one provider attempt: connect the backend, then the
// capture primitive, then the audio pump. Any failure unwinds what this
// attempt acquired so the next candidate starts clean.
func (s *Session) startWith(ctx context.Context, p provider.Provider, req Request) error {
	encoding := s.cfg.Encoding
	if p.ID() != provider.IDDeepgram {
		// Only the default provider accepts compressed audio.
		encoding = config.EncodingLinear16
	}

	startCfg := provider.StartConfig{
		Language:       req.Language,
		SampleRate:     s.cfg.Audio.SampleRate,
		Channels:       s.cfg.Audio.Channels,
		Encoding:       encoding,
		InterimResults: true,
		EndpointingMs:  s.cfg.EndpointingMs,
	}
	cb := provider.Callbacks{
		OnPartialTranscript: s.cb.OnPartialTranscript,
		OnFinalTranscript:   s.cb.OnFinalTranscript,
		OnAssistantToken:    s.cb.OnAssistantToken,
		OnStatusChange: func(st provider.Status) {
			slog.Debug("provider status changed", "provider", p.ID(), "status", st)
		},
	}
	if err := p.Start(ctx, startCfg, cb); err != nil {
		return err
	}

	capSession, err := s.capture.Start(ctx, s.cfg.Audio)
	if err != nil {
		s.stopProviderBounded(p)
		return fmt.Errorf("start capture: %w", err)
	}

	var enc audio.Encoder
	if encoding == config.EncodingOpus && s.newEncoder != nil {
		enc, err = s.newEncoder(s.cfg.Audio.SampleRate, s.cfg.Audio.Channels)
		if err != nil {
			_ = capSession.Stop()
			_ = capSession.Close()
			s.stopProviderBounded(p)
			return fmt.Errorf("create encoder: %w", err)
		}
	}

	p.SetMuted(req.Muted)

	pumpDone := make(chan struct{})
	s.mu.Lock()
	s.active = p
	s.capSession = capSession
	s.encoder = enc
	s.pumpDone = pumpDone
	s.mu.Unlock()

	go pumpAudio(capSession, p, enc, s.cfg.ChunkSize, pumpDone)
	return nil
}

// pumpAudio moves capture chunks into the active provider until the capture
// session is stopped or the provider rejects a write.
func pumpAudio(capSession audio.CaptureSession, p provider.Provider, enc audio.Encoder, chunkSize int, done chan struct{}) {
	defer close(done)

	buf := make([]byte, chunkSize)
	for {
		n, err := capSession.Read(buf)
		if n > 0 {
			if writeErr := forwardChunk(p, enc, buf[:n]); writeErr != nil {
				slog.Warn("audio pump stopped", "provider", p.ID(), "error", writeErr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("audio capture read failed", "error", err)
			}
			return
		}
	}
}

func forwardChunk(p provider.Provider, enc audio.Encoder, chunk []byte) error {
	if enc == nil {
		return p.WriteAudio(chunk)
	}
	packets, err := enc.Encode(chunk)
	if err != nil {
		return fmt.Errorf("encode audio: %w", err)
	}
	for _, packet := range packets {
		if err := p.WriteAudio(packet); err != nil {
			return err
		}
	}
	return nil
}

// Stop performs the ordered, idempotent teardown. A second caller while a
// stop is in flight waits on the same completion and observes the same
// outcome; teardown itself runs exactly once. Every step is independently
// guarded so one failure never blocks the rest, and the session always
// reaches StatusFinished.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		<-done
		s.mu.Lock()
		err := s.stopErr
		s.mu.Unlock()
		return err
	}
	done := make(chan struct{})
	s.stopDone = done
	p := s.active
	capSession := s.capSession
	enc := s.encoder
	pumpDone := s.pumpDone
	s.active = nil
	s.capSession = nil
	s.encoder = nil
	s.pumpDone = nil
	s.cancelStart = nil
	s.status = StatusStopping
	s.mu.Unlock()
	s.emit(StatusStopping)

	if p != nil {
		// Bounded: a misbehaving provider is detached whether or not it
		// completes in time.
		s.stopProviderBounded(p)
	}
	if capSession != nil {
		if err := capSession.Stop(); err != nil {
			slog.Warn("capture stop failed", "error", err)
		}
		if err := capSession.Close(); err != nil {
			slog.Warn("capture release failed", "error", err)
		}
	}
	if enc != nil {
		enc.Close()
	}
	if pumpDone != nil {
		select {
		case <-pumpDone:
		case <-time.After(s.cfg.ProviderStopTimeout):
			slog.Warn("audio pump did not drain in time; detaching")
		}
	}

	// Short settling delay so the UI does not flash through states.
	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-ctx.Done():
	}

	s.mu.Lock()
	s.status = StatusFinished
	s.stopErr = nil
	s.mu.Unlock()
	s.emit(StatusFinished)
	close(done)
	return nil
}

// Cancel is the best-effort, non-sequenced teardown for abrupt abandonment,
// e.g. releasing mid-connect. All errors are swallowed; the session ends in
// StatusDisconnected and a fresh Start is required to stream again.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancelStart
	p := s.active
	capSession := s.capSession
	enc := s.encoder
	s.active = nil
	s.capSession = nil
	s.encoder = nil
	s.pumpDone = nil
	s.cancelStart = nil
	s.stopDone = nil
	s.stopErr = nil
	s.status = StatusDisconnected
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if p != nil {
		s.stopProviderBounded(p)
	}
	if capSession != nil {
		_ = capSession.Stop()
		_ = capSession.Close()
	}
	if enc != nil {
		enc.Close()
	}
	s.emit(StatusDisconnected)
}

// SetMuted forwards the mute flag to the active provider. It is a no-op
// unless the session is streaming.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	p := s.active
	streaming := s.status == StatusStreaming
	s.mu.Unlock()
	if !streaming || p == nil {
		return
	}
	p.SetMuted(muted)
}

// UpdateConfig forwards a language/VAD update to the active provider. It is
// a no-op unless the session is streaming; provider identity never changes.
func (s *Session) UpdateConfig(update provider.ConfigUpdate) {
	s.mu.Lock()
	p := s.active
	streaming := s.status == StatusStreaming
	s.mu.Unlock()
	if !streaming || p == nil {
		return
	}
	p.UpdateConfig(update)
}

func (s *Session) stopProviderBounded(p provider.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProviderStopTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.Stop(ctx)
	}()
	select {
	case err := <-done:
		if err != nil {
			slog.Warn("provider stop failed", "provider", p.ID(), "error", err)
		}
	case <-time.After(s.cfg.ProviderStopTimeout):
		slog.Warn("provider stop timed out; detaching", "provider", p.ID(), "timeout", s.cfg.ProviderStopTimeout)
	}
}

func (s *Session) teardownBestEffort() {
	s.mu.Lock()
	p := s.active
	capSession := s.capSession
	enc := s.encoder
	s.active = nil
	s.capSession = nil
	s.encoder = nil
	s.pumpDone = nil
	s.mu.Unlock()

	if p != nil {
		s.stopProviderBounded(p)
	}
	if capSession != nil {
		_ = capSession.Stop()
		_ = capSession.Close()
	}
	if enc != nil {
		enc.Close()
	}
}

func (s *Session) emit(status Status) {
	s.mu.Lock()
	cb := s.cb.OnStatusChange
	s.mu.Unlock()
	if cb != nil {
		cb(status)
	}
}
