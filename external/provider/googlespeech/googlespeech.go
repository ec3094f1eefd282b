package googlespeech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/brightclass/voicesession/internal/provider"
)

const speechAPIEndpointPort = 443

// Config holds Google Cloud Speech-to-Text v2 settings.
type Config struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
}

// Provider is the specialist backend. It carries the widest language support,
// including low-resource languages no other backend covers, but requires
// native PCM capture on the host.
type Provider struct {
	cfg Config

	mu     sync.Mutex
	active bool
	muted  bool
	conn   *streamConn
}

func New(cfg Config) *Provider {
	if cfg.Location == "" {
		cfg.Location = "global"
	}
	if cfg.Model == "" {
		cfg.Model = "chirp_3"
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) ID() provider.ID {
	return provider.IDGoogleSpeech
}

func (p *Provider) Start(ctx context.Context, cfg provider.StartConfig, cb provider.Callbacks) error {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return errors.New("google speech stream already active")
	}
	p.mu.Unlock()

	if strings.TrimSpace(p.cfg.ProjectID) == "" {
		return errors.New("GOOGLE_CLOUD_PROJECT_ID is not configured")
	}
	if cfg.Encoding != "" && cfg.Encoding != "linear16" {
		return fmt.Errorf("google speech does not accept %q audio", cfg.Encoding)
	}

	emitStatus(cb, provider.StatusConnecting)

	conn, err := p.dial(ctx, cfg, cb)
	if err != nil {
		emitStatus(cb, provider.StatusError)
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.active = true
	p.muted = false
	p.mu.Unlock()

	emitStatus(cb, provider.StatusConnected)
	return nil
}

func (p *Provider) dial(ctx context.Context, cfg provider.StartConfig, cb provider.Callbacks) (*streamConn, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(p.cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if p.cfg.Location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", p.cfg.Location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	recognizer := fmt.Sprintf("projects/%s/locations/%s/recognizers/_", p.cfg.ProjectID, p.cfg.Location)
	sendConfig := func(s speechpb.Speech_StreamingRecognizeClient, language string) error {
		return s.Send(&speechpb.StreamingRecognizeRequest{
			Recognizer: recognizer,
			StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
				StreamingConfig: &speechpb.StreamingRecognitionConfig{
					Config: &speechpb.RecognitionConfig{
						Model:         p.cfg.Model,
						LanguageCodes: []string{language},
						DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
							ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
								Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
								SampleRateHertz:   int32(sampleRate),
								AudioChannelCount: int32(channels),
							},
						},
						Features: &speechpb.RecognitionFeatures{},
					},
					StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
						InterimResults: cfg.InterimResults,
					},
				},
			},
		})
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open recognize stream: %w", err)
	}
	if err := sendConfig(stream, cfg.Language); err != nil {
		_ = stream.CloseSend()
		_ = client.Close()
		return nil, fmt.Errorf("send stream config: %w", err)
	}

	conn := &streamConn{
		stream:   stream,
		cb:       cb,
		language: cfg.Language,
		newStreamFn: func(language string) (speechpb.Speech_StreamingRecognizeClient, error) {
			next, err := client.StreamingRecognize(ctx)
			if err != nil {
				return nil, err
			}
			if err := sendConfig(next, language); err != nil {
				_ = next.CloseSend()
				return nil, err
			}
			return next, nil
		},
		closeFn: client.Close,
	}
	conn.startReceiver(stream)
	return conn, nil
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
		return errors.New("google speech stream is not active")
	}
	if muted {
		return nil
	}
	return conn.write(chunk)
}

func (p *Provider) Stop(ctx context.Context) error {
	p.mu.Lock()
	conn := p.conn
	wasActive := p.active
	p.active = false
	p.conn = nil
	p.mu.Unlock()

	if !wasActive || conn == nil {
		return nil
	}
	if err := conn.close(); err != nil {
		slog.Debug("google speech stream close failed", "error", err)
	}
	emitStatus(conn.cb, provider.StatusClosed)
	return nil
}

// UpdateConfig applies a language change by reconnecting the recognize
// stream; the v2 API fixes the language set at stream open.
func (p *Provider) UpdateConfig(update provider.ConfigUpdate) {
	p.mu.Lock()
	conn := p.conn
	active := p.active
	p.mu.Unlock()
	if !active || conn == nil {
		return
	}

	if update.Language != nil && *update.Language != "" {
		if err := conn.setLanguage(*update.Language); err != nil {
			slog.Warn("google speech language update failed", "language", *update.Language, "error", err)
		}
	}
	if update.EndpointingMs != nil {
		slog.Debug("google speech endpointing update deferred to next stream", "endpointing_ms", *update.EndpointingMs)
	}
}

func (p *Provider) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
}

func emitStatus(cb provider.Callbacks, status provider.Status) {
	if cb.OnStatusChange != nil {
		cb.OnStatusChange(status)
	}
}

// streamConn owns one recognize stream plus the reconnect machinery that
// survives the API's five-minute stream ceiling.
type streamConn struct {
	mu          sync.Mutex
	closed      bool
	stream      speechpb.Speech_StreamingRecognizeClient
	cb          provider.Callbacks
	language    string
	newStreamFn func(language string) (speechpb.Speech_StreamingRecognizeClient, error)
	closeFn     func() error
}

func (c *streamConn) write(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.ErrClosedPipe
	}
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: pcm,
		},
	}
	if err := c.stream.Send(req); err != nil {
		if !isReconnectableStreamError(err) {
			return err
		}
		slog.Warn("google speech send failed with reconnectable error; reconnecting", "error", err)
		if err := c.reconnectLocked(); err != nil {
			return fmt.Errorf("reconnect stream: %w", err)
		}
		return c.stream.Send(req)
	}
	return nil
}

func (c *streamConn) setLanguage(language string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.ErrClosedPipe
	}
	c.language = language
	return c.reconnectLocked()
}

func (c *streamConn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.stream.CloseSend(); err != nil {
		_ = c.closeFn()
		return err
	}
	return c.closeFn()
}

func (c *streamConn) reconnectLocked() error {
	_ = c.stream.CloseSend()
	next, err := c.newStreamFn(c.language)
	if err != nil {
		slog.Error("failed to reconnect google speech stream", "error", err)
		return err
	}
	c.stream = next
	c.startReceiver(next)
	slog.Info("google speech stream reconnected", "language", c.language)
	return nil
}

func (c *streamConn) startReceiver(stream speechpb.Speech_StreamingRecognizeClient) {
	cb := c.cb
	go func() {
		for {
			resp, err := stream.Recv()
			if err != nil {
				if err == io.EOF || strings.Contains(err.Error(), "context canceled") {
					slog.Debug("google speech receive loop stopped", "reason", err.Error())
					return
				}
				if isReconnectableStreamError(err) {
					slog.Warn("google speech receive loop ended with reconnectable abort", "error", err)
					return
				}
				slog.Warn("google speech receive loop failed", "error", err)
				emitStatus(cb, provider.StatusError)
				return
			}
			for _, result := range resp.GetResults() {
				if len(result.GetAlternatives()) == 0 {
					continue
				}
				transcript := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript())
				if transcript == "" {
					continue
				}
				if result.GetIsFinal() {
					if cb.OnFinalTranscript != nil {
						cb.OnFinalTranscript(transcript)
					}
				} else if cb.OnPartialTranscript != nil {
					cb.OnPartialTranscript(transcript)
				}
			}
		}
	}()
}

func isReconnectableStreamError(err error) bool {
	if err == io.EOF || strings.Contains(strings.ToLower(err.Error()), "eof") {
		return true
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}
