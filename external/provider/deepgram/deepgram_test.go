package deepgram

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/brightclass/voicesession/internal/provider"
)

func TestBuildListenURL(t *testing.T) {
	cfg := Config{
		APIBaseURL:  "https://api.deepgram.com/v1",
		Model:       "nova-2",
		SmartFormat: true,
	}
	got, err := buildListenURL(cfg, provider.StartConfig{
		Language:       "en-US",
		SampleRate:     16000,
		Channels:       1,
		Encoding:       "opus",
		InterimResults: true,
		EndpointingMs:  300,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasPrefix(got, "wss://api.deepgram.com/v1/listen?") {
		t.Fatalf("unexpected URL prefix: %s", got)
	}

	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("failed to parse URL: %v", err)
	}
	q := parsed.Query()
	checks := map[string]string{
		"model":           "nova-2",
		"encoding":        "opus",
		"sample_rate":     "16000",
		"channels":        "1",
		"interim_results": "true",
		"smart_format":    "true",
		"language":        "en-US",
		"endpointing":     "300",
	}
	for key, want := range checks {
		if q.Get(key) != want {
			t.Fatalf("query %s = %q, want %q", key, q.Get(key), want)
		}
	}
}

func TestBuildListenURL_Defaults(t *testing.T) {
	got, err := buildListenURL(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2"}, provider.StartConfig{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	parsed, _ := url.Parse(got)
	q := parsed.Query()
	if q.Get("encoding") != "linear16" {
		t.Fatalf("expected linear16 default, got %q", q.Get("encoding"))
	}
	if q.Get("sample_rate") != "16000" {
		t.Fatalf("expected 16000 default, got %q", q.Get("sample_rate"))
	}
	if q.Has("language") {
		t.Fatal("empty language must be omitted")
	}
	if q.Has("endpointing") {
		t.Fatal("zero endpointing must be omitted")
	}
}

func TestExtractTranscript(t *testing.T) {
	var resp response
	if got := extractTranscript(resp); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}

	resp.Channel.Alternatives = []struct {
		Transcript string `json:"transcript"`
	}{{Transcript: "  hello world  "}}
	if got := extractTranscript(resp); got != "hello world" {
		t.Fatalf("expected trimmed transcript, got %q", got)
	}
}

func TestWriteAudio_InactiveStream(t *testing.T) {
	p := New(Config{APIKey: "key"})
	if err := p.WriteAudio([]byte{1, 2}); err == nil {
		t.Fatal("expected error writing to an inactive stream")
	}
}

func TestStop_WithoutStartResolves(t *testing.T) {
	p := New(Config{APIKey: "key"})
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
