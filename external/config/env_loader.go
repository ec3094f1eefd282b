package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/brightclass/voicesession/internal/config"
)

type envConfig struct {
	Env string `env:"ENV" envDefault:"production"`

	AccountID         string `env:"VOICE_ACCOUNT_ID,required"`
	SubscriptionTier  string `env:"VOICE_SUBSCRIPTION_TIER" envDefault:"free"`
	Language          string `env:"VOICE_LANGUAGE,required"`
	RequestedProvider string `env:"VOICE_REQUESTED_PROVIDER"`
	StreamingEnabled  bool   `env:"VOICE_STREAMING_ENABLED" envDefault:"true"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`

	DeepgramAPIKey     string `env:"DEEPGRAM_API_KEY"`
	DeepgramAPIBaseURL string `env:"DEEPGRAM_API_BASE" envDefault:"https://api.deepgram.com/v1"`
	DeepgramModel      string `env:"DEEPGRAM_MODEL" envDefault:"nova-2"`

	AssemblyAIAPIKey     string `env:"ASSEMBLYAI_API_KEY"`
	AssemblyAIAPIBaseURL string `env:"ASSEMBLYAI_API_BASE" envDefault:"https://streaming.assemblyai.com/v3"`

	AssistantURL string `env:"ASSISTANT_URL,required"`

	AudioInputFormat string `env:"VOICE_AUDIO_INPUT_FORMAT" envDefault:"pulse"`
	AudioInputDevice string `env:"VOICE_AUDIO_INPUT_DEVICE" envDefault:"default"`
	AudioSampleRate  int    `env:"VOICE_AUDIO_SAMPLE_RATE" envDefault:"16000"`
	AudioChannels    int    `env:"VOICE_AUDIO_CHANNELS" envDefault:"1"`
	AudioEncoding    string `env:"VOICE_AUDIO_ENCODING" envDefault:"linear16"`
	AudioChunkSize   int    `env:"VOICE_AUDIO_CHUNK_SIZE" envDefault:"4096"`

	EndpointingMs int `env:"VOICE_ENDPOINTING_MS" envDefault:"0"`

	TranscriptWaitMs      int `env:"VOICE_TRANSCRIPT_WAIT_MS" envDefault:"5000"`
	ProviderStopTimeoutMs int `env:"VOICE_PROVIDER_STOP_TIMEOUT_MS" envDefault:"3000"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		AccountID:                  raw.AccountID,
		SubscriptionTier:           raw.SubscriptionTier,
		Language:                   raw.Language,
		RequestedProvider:          raw.RequestedProvider,
		StreamingEnabled:           raw.StreamingEnabled,
		DatabaseURL:                raw.DatabaseURL,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		DeepgramAPIKey:             raw.DeepgramAPIKey,
		DeepgramAPIBaseURL:         raw.DeepgramAPIBaseURL,
		DeepgramModel:              raw.DeepgramModel,
		AssemblyAIAPIKey:           raw.AssemblyAIAPIKey,
		AssemblyAIAPIBaseURL:       raw.AssemblyAIAPIBaseURL,
		AssistantURL:               raw.AssistantURL,
		AudioInputFormat:           raw.AudioInputFormat,
		AudioInputDevice:           raw.AudioInputDevice,
		AudioSampleRate:            raw.AudioSampleRate,
		AudioChannels:              raw.AudioChannels,
		AudioEncoding:              raw.AudioEncoding,
		AudioChunkSize:             raw.AudioChunkSize,
		EndpointingMs:              raw.EndpointingMs,
		TranscriptWait:             time.Duration(raw.TranscriptWaitMs) * time.Millisecond,
		ProviderStopTimeout:        time.Duration(raw.ProviderStopTimeoutMs) * time.Millisecond,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
