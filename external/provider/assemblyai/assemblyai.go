package assemblyai

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

// Config holds AssemblyAI Universal Streaming settings.
type Config struct {
	APIKey     string
	APIBaseURL string
}

// Provider is the premium fallback backend, reachable only by premium-tier
// accounts. It consumes 16-bit PCM only.
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
		cfg.APIBaseURL = "https://streaming.assemblyai.com/v3"
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) ID() provider.ID {
	return provider.IDAssemblyAI
}

func (p *Provider) Start(ctx context.Context, cfg provider.StartConfig, cb provider.Callbacks) error {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return errors.New("assemblyai stream already active")
	}
	p.mu.Unlock()

	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return errors.New("ASSEMBLYAI_API_KEY is not configured")
	}
	if cfg.Encoding != "" && cfg.Encoding != "linear16" {
		return fmt.Errorf("assemblyai does not accept %q audio", cfg.Encoding)
	}

	wsURL, err := buildStreamURL(p.cfg, cfg)
	if err != nil {
		return err
	}

	emitStatus(cb, provider.StatusConnecting)

	headers := http.Header{}
	headers.Set("Authorization", p.cfg.APIKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		emitStatus(cb, provider.StatusError)
		return fmt.Errorf("connect to assemblyai websocket: %w", err)
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
		return errors.New("assemblyai stream is not active")
	}
	if muted {
		return nil
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("send audio to assemblyai: %w", err)
	}
	return nil
}

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
	terminateErr := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Terminate"}`))
	p.writeMu.Unlock()
	if terminateErr != nil {
		slog.Debug("assemblyai terminate message failed", "error", terminateErr)
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

func (p *Provider) UpdateConfig(update provider.ConfigUpdate) {
	p.mu.Lock()
	conn := p.conn
	active := p.active
	p.mu.Unlock()
	if !active || conn == nil {
		return
	}

	// Universal Streaming accepts endpointing updates on the live socket.
	if update.EndpointingMs != nil {
		msg, err := json.Marshal(map[string]any{
			"type":                "UpdateConfiguration",
			"end_of_turn_silence": *update.EndpointingMs,
		})
		if err != nil {
			return
		}
		p.writeMu.Lock()
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			slog.Debug("assemblyai configuration update failed", "error", err)
		}
		p.writeMu.Unlock()
	}
	if update.Language != nil {
		slog.Debug("assemblyai language update deferred to next stream", "language", *update.Language)
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
				slog.Warn("assemblyai read loop ended", "error", err)
			}
			emitStatus(cb, provider.StatusClosed)
			return
		}

		var msg message
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "Begin":
			slog.Debug("assemblyai session began", "session_id", msg.ID)
		case "Turn":
			transcript := strings.TrimSpace(msg.Transcript)
			if transcript == "" {
				continue
			}
			if msg.EndOfTurn {
				if cb.OnFinalTranscript != nil {
					cb.OnFinalTranscript(transcript)
				}
			} else if cb.OnPartialTranscript != nil {
				cb.OnPartialTranscript(transcript)
			}
		case "Termination":
			emitStatus(cb, provider.StatusClosed)
			return
		}
	}
}

func emitStatus(cb provider.Callbacks, status provider.Status) {
	if cb.OnStatusChange != nil {
		cb.OnStatusChange(status)
	}
}

type message struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Transcript string `json:"transcript"`
	EndOfTurn  bool   `json:"end_of_turn"`
}

func buildStreamURL(providerCfg Config, streamCfg provider.StartConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	streamURL, err := url.Parse(base + "/ws")
	if err != nil {
		return "", fmt.Errorf("invalid assemblyai API base URL: %w", err)
	}

	sampleRate := streamCfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	query := streamURL.Query()
	query.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	query.Set("format_turns", "true")
	streamURL.RawQuery = query.Encode()
	return streamURL.String(), nil
}
