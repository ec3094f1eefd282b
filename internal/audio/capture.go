package audio

import (
	"context"
	"io"
)

// CaptureConfig describes how the microphone should be captured.
type CaptureConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// CaptureSession is a live microphone capture. Read returns raw little-endian
// 16-bit PCM. Stop halts capture; Close releases the underlying hardware
// resource and is safe to call after Stop or more than once.
type CaptureSession interface {
	io.ReadCloser
	Stop() error
}

// Capture creates microphone capture sessions.
type Capture interface {
	Start(ctx context.Context, cfg CaptureConfig) (CaptureSession, error)
}

// Encoder compresses raw PCM into provider-ready packets. Encode buffers
// input internally and returns zero or more complete packets per call.
type Encoder interface {
	Encode(pcm []byte) ([][]byte, error)
	Close()
}

// EncoderFactory builds an encoder for the given capture parameters.
type EncoderFactory func(sampleRate, channels int) (Encoder, error)
