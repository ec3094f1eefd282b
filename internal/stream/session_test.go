package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/brightclass/voicesession/internal/audio"
	"github.com/brightclass/voicesession/internal/capability"
	"github.com/brightclass/voicesession/internal/provider"
)

type mockProbe struct {
	caps capability.Capabilities
	err  error
}

func (m *mockProbe) GetCapabilities(_ context.Context, _ string, _ capability.Tier) (capability.Capabilities, error) {
	return m.caps, m.err
}

type mockGate struct {
	granted bool
}

func (m *mockGate) Check(_ context.Context) bool { return m.granted }
func (m *mockGate) Request(_ context.Context) (bool, error) {
	return m.granted, nil
}

type mockProvider struct {
	id       provider.ID
	startErr error

	mu          sync.Mutex
	startCount  int
	stopCount   int
	updateCount int
	lastUpdate  provider.ConfigUpdate
	muted       bool
	active      bool
}

func (m *mockProvider) ID() provider.ID { return m.id }

func (m *mockProvider) Start(_ context.Context, _ provider.StartConfig, _ provider.Callbacks) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCount++
	if m.startErr != nil {
		return m.startErr
	}
	m.active = true
	return nil
}

func (m *mockProvider) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCount++
	m.active = false
	return nil
}

func (m *mockProvider) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *mockProvider) UpdateConfig(update provider.ConfigUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCount++
	m.lastUpdate = update
}

func (m *mockProvider) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

func (m *mockProvider) WriteAudio(_ []byte) error { return nil }

func (m *mockProvider) starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCount
}

func (m *mockProvider) stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCount
}

func (m *mockProvider) updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCount
}

type mockCaptureSession struct {
	mu         sync.Mutex
	stopCount  int
	closeCount int
	done       chan struct{}
	once       sync.Once
}

func newMockCaptureSession() *mockCaptureSession {
	return &mockCaptureSession{done: make(chan struct{})}
}

func (m *mockCaptureSession) Read(_ []byte) (int, error) {
	<-m.done
	return 0, io.EOF
}

func (m *mockCaptureSession) Stop() error {
	m.mu.Lock()
	m.stopCount++
	m.mu.Unlock()
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *mockCaptureSession) Close() error {
	m.mu.Lock()
	m.closeCount++
	m.mu.Unlock()
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *mockCaptureSession) counts() (stops, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCount, m.closeCount
}

type mockCapture struct {
	mu       sync.Mutex
	sessions []*mockCaptureSession
	startErr error
}

func (m *mockCapture) Start(_ context.Context, _ audio.CaptureConfig) (audio.CaptureSession, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := newMockCaptureSession()
	m.sessions = append(m.sessions, s)
	return s, nil
}

func availableCaps() capability.Capabilities {
	return capability.Capabilities{
		StreamingAvailable: true,
		NativePCMCapture:   true,
	}
}

func testConfig() Config {
	return Config{
		Audio:               audio.CaptureConfig{SampleRate: 16000, Channels: 1},
		Encoding:            "linear16",
		ChunkSize:           512,
		ProviderStopTimeout: 200 * time.Millisecond,
		SettleDelay:         time.Millisecond,
	}
}

func newTestSession(probe capability.Probe, registry Registry, capture audio.Capture) *Session {
	return NewSession(probe, &mockGate{granted: true}, registry, capture, nil, testConfig())
}

func TestStart_PreflightUnavailableNeverTouchesProviders(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram}
	probe := &mockProbe{caps: capability.Capabilities{
		StreamingAvailable: false,
		Reasons:            []string{"streaming disabled for account"},
	}}
	s := newTestSession(probe, Registry{provider.IDDeepgram: deepgram}, &mockCapture{})

	err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{})
	if !errors.Is(err, ErrStreamingUnavailable) {
		t.Fatalf("expected ErrStreamingUnavailable, got %v", err)
	}
	if deepgram.starts() != 0 {
		t.Fatalf("no provider connection may be attempted after a failed preflight, got %d starts", deepgram.starts())
	}
	if s.Status() != StatusError {
		t.Fatalf("expected error status, got %s", s.Status())
	}
}

func TestStart_PermissionDenied(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram}
	probe := &mockProbe{caps: capability.Capabilities{
		StreamingAvailable:    true,
		RequiresMicPermission: true,
	}}
	s := NewSession(probe, &mockGate{granted: false}, Registry{provider.IDDeepgram: deepgram}, &mockCapture{}, nil, testConfig())

	err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if deepgram.starts() != 0 {
		t.Fatalf("no provider connection may be attempted without permission, got %d starts", deepgram.starts())
	}
}

func TestStart_FallsBackToNextProvider(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram, startErr: errors.New("connection refused")}
	google := &mockProvider{id: provider.IDGoogleSpeech}
	registry := Registry{
		provider.IDDeepgram:     deepgram,
		provider.IDGoogleSpeech: google,
	}
	capture := &mockCapture{}
	s := newTestSession(&mockProbe{caps: availableCaps()}, registry, capture)

	if err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{}); err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if deepgram.starts() != 1 || google.starts() != 1 {
		t.Fatalf("expected one attempt each, got deepgram=%d google=%d", deepgram.starts(), google.starts())
	}
	if s.Status() != StatusStreaming {
		t.Fatalf("expected streaming status, got %s", s.Status())
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestStart_AllProvidersFail(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram, startErr: errors.New("connection refused")}
	google := &mockProvider{id: provider.IDGoogleSpeech, startErr: errors.New("quota exceeded")}
	registry := Registry{
		provider.IDDeepgram:     deepgram,
		provider.IDGoogleSpeech: google,
	}
	s := newTestSession(&mockProbe{caps: availableCaps()}, registry, &mockCapture{})

	err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{})
	if err == nil {
		t.Fatal("expected error after exhausting all providers")
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %T: %v", err, err)
	}
	if len(exhausted.Errors) != 2 {
		t.Fatalf("expected 2 attempt errors, got %d", len(exhausted.Errors))
	}
	if s.Status() != StatusError {
		t.Fatalf("expected error status, got %s", s.Status())
	}
}

func TestStart_WhileActiveIsRejected(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram}
	s := newTestSession(&mockProbe{caps: availableCaps()}, Registry{provider.IDDeepgram: deepgram}, &mockCapture{})

	if err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{}); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{}); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestStop_IsIdempotentAndReleasesCaptureOnce(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram}
	capture := &mockCapture{}
	s := newTestSession(&mockProbe{caps: availableCaps()}, Registry{provider.IDDeepgram: deepgram}, capture)

	if err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = s.Stop(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("stop %d failed: %v", i, err)
		}
	}
	if s.Status() != StatusFinished {
		t.Fatalf("expected finished status, got %s", s.Status())
	}
	if deepgram.stops() != 1 {
		t.Fatalf("provider must be stopped exactly once, got %d", deepgram.stops())
	}
	if len(capture.sessions) != 1 {
		t.Fatalf("expected one capture session, got %d", len(capture.sessions))
	}
	stops, closes := capture.sessions[0].counts()
	if stops != 1 || closes != 1 {
		t.Fatalf("capture must be released exactly once, got stops=%d closes=%d", stops, closes)
	}
}

func TestStop_WithoutStartResolves(t *testing.T) {
	s := newTestSession(&mockProbe{caps: availableCaps()}, Registry{}, &mockCapture{})
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if s.Status() != StatusFinished {
		t.Fatalf("expected finished status, got %s", s.Status())
	}
}

func TestCancel_EndsDisconnected(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram}
	capture := &mockCapture{}
	s := newTestSession(&mockProbe{caps: availableCaps()}, Registry{provider.IDDeepgram: deepgram}, capture)

	if err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	s.Cancel()

	if s.Status() != StatusDisconnected {
		t.Fatalf("expected disconnected status, got %s", s.Status())
	}
	if deepgram.stops() != 1 {
		t.Fatalf("expected one provider stop, got %d", deepgram.stops())
	}

	// A fresh start after cancel must work.
	if err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{}); err != nil {
		t.Fatalf("restart after cancel failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestSetMuted_NoOpWhenNotStreaming(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram}
	s := newTestSession(&mockProbe{caps: availableCaps()}, Registry{provider.IDDeepgram: deepgram}, &mockCapture{})

	s.SetMuted(true)
	deepgram.mu.Lock()
	muted := deepgram.muted
	deepgram.mu.Unlock()
	if muted {
		t.Fatal("mute must not reach a provider before streaming")
	}
}

func TestSetMuted_ForwardsWhileStreaming(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram}
	s := newTestSession(&mockProbe{caps: availableCaps()}, Registry{provider.IDDeepgram: deepgram}, &mockCapture{})

	if err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	s.SetMuted(true)

	deepgram.mu.Lock()
	muted := deepgram.muted
	deepgram.mu.Unlock()
	if !muted {
		t.Fatal("mute must reach the active provider")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestUpdateConfig_ForwardedOnlyWhileStreaming(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram}
	s := newTestSession(&mockProbe{caps: availableCaps()}, Registry{provider.IDDeepgram: deepgram}, &mockCapture{})

	language := "fr-FR"
	update := provider.ConfigUpdate{Language: &language}

	s.UpdateConfig(update)
	if deepgram.updates() != 0 {
		t.Fatalf("an update must not reach a provider before streaming, got %d", deepgram.updates())
	}

	if err := s.Start(context.Background(), Request{Language: "en-US"}, Callbacks{}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	s.UpdateConfig(update)
	if deepgram.updates() != 1 {
		t.Fatalf("expected one forwarded update while streaming, got %d", deepgram.updates())
	}
	deepgram.mu.Lock()
	forwarded := deepgram.lastUpdate
	deepgram.mu.Unlock()
	if forwarded.Language == nil || *forwarded.Language != "fr-FR" {
		t.Fatalf("unexpected forwarded update: %+v", forwarded)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	s.UpdateConfig(update)
	if deepgram.updates() != 1 {
		t.Fatalf("an update after stop must be dropped, got %d", deepgram.updates())
	}
}

func TestStatusProgression(t *testing.T) {
	deepgram := &mockProvider{id: provider.IDDeepgram}
	s := newTestSession(&mockProbe{caps: availableCaps()}, Registry{provider.IDDeepgram: deepgram}, &mockCapture{})

	var mu sync.Mutex
	var seen []Status
	cb := Callbacks{OnStatusChange: func(st Status) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	}}

	if err := s.Start(context.Background(), Request{Language: "en-US"}, cb); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusConnecting, StatusStreaming, StatusStopping, StatusFinished}
	if len(seen) != len(want) {
		t.Fatalf("unexpected status sequence: %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("unexpected status sequence: %v", seen)
		}
	}
}
