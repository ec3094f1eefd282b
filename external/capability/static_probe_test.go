package capability

import (
	"context"
	"strings"
	"testing"

	"github.com/brightclass/voicesession/internal/capability"
)

func TestGetCapabilities_AllChecksPass(t *testing.T) {
	// "sh" stands in for the capture binary; it exists on every test host.
	probe := NewStaticProbe(true, "sh")
	caps, err := probe.GetCapabilities(context.Background(), "en-US", capability.TierFree)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !caps.StreamingAvailable {
		t.Fatalf("expected streaming available, reasons: %v", caps.Reasons)
	}
	if !caps.NativePCMCapture {
		t.Fatal("expected native PCM capture with an existing binary")
	}
}

func TestGetCapabilities_AccumulatesReasons(t *testing.T) {
	probe := NewStaticProbe(false, "definitely-not-a-real-binary-4729")
	caps, err := probe.GetCapabilities(context.Background(), "", capability.Tier("gold"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if caps.StreamingAvailable {
		t.Fatal("expected streaming unavailable")
	}
	if len(caps.Reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %v", caps.Reasons)
	}
	joined := strings.Join(caps.Reasons, "; ")
	for _, want := range []string{"streaming disabled", "no language", "unknown subscription tier", "not found"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing reason %q in %q", want, joined)
		}
	}
}

func TestGetCapabilities_MissingCaptureBinaryDisablesNativePCM(t *testing.T) {
	probe := NewStaticProbe(true, "definitely-not-a-real-binary-4729")
	caps, err := probe.GetCapabilities(context.Background(), "en-US", capability.TierPremium)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if caps.NativePCMCapture {
		t.Fatal("expected no native PCM capture without the binary")
	}
	if caps.StreamingAvailable {
		t.Fatal("expected streaming unavailable without a capture path")
	}
}
