package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env string

	AccountID        string
	SubscriptionTier string
	Language         string

	// RequestedProvider optionally pins the first provider attempted for
	// languages that allow it. Empty means "use the default order".
	RequestedProvider string

	StreamingEnabled bool

	DatabaseURL string

	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string

	DeepgramAPIKey     string
	DeepgramAPIBaseURL string
	DeepgramModel      string

	AssemblyAIAPIKey     string
	AssemblyAIAPIBaseURL string

	AssistantURL string

	AudioInputFormat string
	AudioInputDevice string
	AudioSampleRate  int
	AudioChannels    int
	AudioEncoding    string
	AudioChunkSize   int

	// EndpointingMs is forwarded to providers that support server-side
	// endpointing. Zero means "use the provider default".
	EndpointingMs int

	TranscriptWait      time.Duration
	ProviderStopTimeout time.Duration
}

const (
	EncodingLinear16 = "linear16"
	EncodingOpus     = "opus"
)

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("VOICE_AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate)
	}
	if c.AudioChannels <= 0 {
		return fmt.Errorf("VOICE_AUDIO_CHANNELS must be positive, got %d", c.AudioChannels)
	}
	if c.AudioEncoding != EncodingLinear16 && c.AudioEncoding != EncodingOpus {
		return fmt.Errorf("VOICE_AUDIO_ENCODING must be %q or %q, got %q", EncodingLinear16, EncodingOpus, c.AudioEncoding)
	}
	if c.EndpointingMs < 0 {
		return fmt.Errorf("VOICE_ENDPOINTING_MS must not be negative, got %d", c.EndpointingMs)
	}
	if c.TranscriptWait <= 0 {
		return fmt.Errorf("VOICE_TRANSCRIPT_WAIT_MS must be positive, got %v", c.TranscriptWait)
	}
	if c.ProviderStopTimeout <= 0 {
		return fmt.Errorf("VOICE_PROVIDER_STOP_TIMEOUT_MS must be positive, got %v", c.ProviderStopTimeout)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "VOICE_ACCOUNT_ID", value: c.AccountID},
		{name: "VOICE_SUBSCRIPTION_TIER", value: c.SubscriptionTier},
		{name: "VOICE_LANGUAGE", value: c.Language},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "ASSISTANT_URL", value: c.AssistantURL},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
