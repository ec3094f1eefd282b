package audio

import (
	"context"
	"testing"

	"github.com/brightclass/voicesession/internal/audio"
)

func TestStart_MissingBinary(t *testing.T) {
	c := NewFFmpegCapture("definitely-not-a-real-binary-4729")
	if _, err := c.Start(context.Background(), audio.CaptureConfig{}); err == nil {
		t.Fatal("expected error for a missing capture binary")
	}
}

func TestStart_ImmediateExitIsAnError(t *testing.T) {
	// "false" ignores the capture arguments and exits at once, which must be
	// reported as a failed device open.
	c := NewFFmpegCapture("false")
	if _, err := c.Start(context.Background(), audio.CaptureConfig{}); err == nil {
		t.Fatal("expected error when the capture process exits before streaming")
	}
}

func TestSession_ReadAndStop(t *testing.T) {
	// "yes" echoes its arguments forever, standing in for a capture process
	// that keeps producing output.
	c := NewFFmpegCapture("yes")
	session, err := c.Start(context.Background(), audio.CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]byte, 64)
	n, err := session.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n == 0 {
		t.Fatal("expected captured bytes")
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	// Stop and Close are both idempotent.
	if err := session.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}
