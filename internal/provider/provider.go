package provider

import "context"

// ID identifies one concrete streaming speech backend.
type ID string

const (
	// IDGoogleSpeech is the specialist backend, mandatory for low-resource
	// languages.
	IDGoogleSpeech ID = "google_speech"
	// IDDeepgram is the default low-latency backend.
	IDDeepgram ID = "deepgram"
	// IDAssemblyAI is the premium fallback backend.
	IDAssemblyAI ID = "assemblyai"
)

// Status is the connection status a backend reports through its callback.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusClosed     Status = "closed"
	StatusError      Status = "error"
)

// StartConfig describes one streaming attempt.
type StartConfig struct {
	Language       string
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
	EndpointingMs  int
}

// ConfigUpdate carries in-place language/VAD changes for an active stream.
// Provider identity never changes mid-session; only these knobs may.
type ConfigUpdate struct {
	Language      *string
	EndpointingMs *int
}

// Callbacks are supplied at Start and invoked from the backend's read loop.
// OnAssistantToken is optional and only used by backends that stream
// assistant output alongside transcripts.
type Callbacks struct {
	OnPartialTranscript func(text string)
	OnFinalTranscript   func(text string)
	OnAssistantToken    func(token string)
	OnStatusChange      func(status Status)
}

// Provider is the contract every streaming backend implements. Stop must
// resolve even when the backend fails internally; SetMuted and UpdateConfig
// are no-ops on an inactive provider and never return errors.
type Provider interface {
	ID() ID
	Start(ctx context.Context, cfg StartConfig, cb Callbacks) error
	Stop(ctx context.Context) error
	IsActive() bool
	UpdateConfig(update ConfigUpdate)
	SetMuted(muted bool)
	WriteAudio(chunk []byte) error
}
