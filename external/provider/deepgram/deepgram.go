package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brightclass/voicesession/internal/provider"
)

// Config holds Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
}

// Provider is the default low-latency streaming backend. It is
// platform-independent and accepts both linear16 and opus audio.
type Provider struct {
	cfg Config

	mu     sync.Mutex
	conn   *websocket.Conn
	active bool
	muted  bool
	done   chan struct{}

	writeMu sync.Mutex
}

func New(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) ID() provider.ID {
	return provider.IDDeepgram
}

func (p *Provider) Start(ctx context.Context, cfg provider.StartConfig, cb provider.Callbacks) error {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return errors.New("deepgram stream already active")
	}
	p.mu.Unlock()

	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return err
	}

	emitStatus(cb, provider.StatusConnecting)

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		emitStatus(cb, provider.StatusError)
		return fmt.Errorf("connect to deepgram websocket: %w", err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.conn = conn
	p.active = true
	p.muted = false
	p.done = done
	p.mu.Unlock()

	go p.readLoop(conn, cb, done)
	emitStatus(cb, provider.StatusConnected)
	return nil
}

func (p *Provider) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// WriteAudio sends one audio chunk. Muted sessions drop chunks silently so
// the stream stays alive without transcribing.
func (p *Provider) WriteAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	p.mu.Lock()
	conn := p.conn
	active := p.active
	muted := p.muted
	p.mu.Unlock()

	if !active || conn == nil {
		return errors.New("deepgram stream is not active")
	}
	if muted {
		return nil
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("send audio to deepgram: %w", err)
	}
	return nil
}

// Stop closes the stream gracefully and resolves even when the backend is
// already gone.
func (p *Provider) Stop(ctx context.Context) error {
	p.mu.Lock()
	conn := p.conn
	done := p.done
	wasActive := p.active
	p.active = false
	p.conn = nil
	p.done = nil
	p.mu.Unlock()

	if !wasActive || conn == nil {
		return nil
	}

	p.writeMu.Lock()
	closeErr := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	p.writeMu.Unlock()
	if closeErr != nil {
		slog.Debug("deepgram close message failed", "error", closeErr)
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
	}
	_ = conn.Close()
	return nil
}

// UpdateConfig records language/VAD updates for the next stream; Deepgram
// cannot change them mid-connection.
func (p *Provider) UpdateConfig(update provider.ConfigUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	if update.Language != nil {
		slog.Debug("deepgram language update deferred to next stream", "language", *update.Language)
	}
	if update.EndpointingMs != nil {
		slog.Debug("deepgram endpointing update deferred to next stream", "endpointing_ms", *update.EndpointingMs)
	}
}

func (p *Provider) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
}

func (p *Provider) readLoop(conn *websocket.Conn, cb provider.Callbacks, done chan struct{}) {
	defer close(done)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				slog.Warn("deepgram read loop ended", "error", err)
			}
			emitStatus(cb, provider.StatusClosed)
			return
		}

		var resp response
		if err := json.Unmarshal(payload, &resp); err != nil {
			continue
		}

		if strings.EqualFold(resp.Type, "Error") {
			slog.Warn("deepgram reported an error", "message", resp.Message)
			emitStatus(cb, provider.StatusError)
			return
		}

		transcript := extractTranscript(resp)
		if transcript == "" {
			continue
		}
		if resp.IsFinal || resp.SpeechFinal {
			if cb.OnFinalTranscript != nil {
				cb.OnFinalTranscript(transcript)
			}
		} else if cb.OnPartialTranscript != nil {
			cb.OnPartialTranscript(transcript)
		}
	}
}

func emitStatus(cb provider.Callbacks, status provider.Status) {
	if cb.OnStatusChange != nil {
		cb.OnStatusChange(status)
	}
}

type response struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func extractTranscript(resp response) string {
	if len(resp.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
}

func buildListenURL(providerCfg Config, streamCfg provider.StartConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram API base URL: %w", err)
	}

	encoding := streamCfg.Encoding
	if encoding == "" {
		encoding = "linear16"
	}
	sampleRate := streamCfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := streamCfg.Channels
	if channels <= 0 {
		channels = 1
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	query.Set("channels", fmt.Sprintf("%d", channels))
	query.Set("interim_results", fmt.Sprintf("%t", streamCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if streamCfg.Language != "" {
		query.Set("language", streamCfg.Language)
	}
	if streamCfg.EndpointingMs > 0 {
		query.Set("endpointing", fmt.Sprintf("%d", streamCfg.EndpointingMs))
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
