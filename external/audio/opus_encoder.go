package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/brightclass/voicesession/internal/audio"
	"github.com/hraban/opus"
)

const (
	frameSizeMs       = 20
	maxOpusPacketSize = 1500
)

// OpusEncoder compresses little-endian 16-bit PCM into 20ms opus packets for
// providers that accept compressed audio. Partial frames are buffered across
// Encode calls.
type OpusEncoder struct {
	enc             *opus.Encoder
	channels        int
	samplesPerFrame int
	pending         []int16
}

func NewOpusEncoder(sampleRate, channels int) (audio.Encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	return &OpusEncoder{
		enc:             enc,
		channels:        channels,
		samplesPerFrame: sampleRate * frameSizeMs / 1000 * channels,
	}, nil
}

func (e *OpusEncoder) Encode(pcm []byte) ([][]byte, error) {
	for i := 0; i+1 < len(pcm); i += 2 {
		e.pending = append(e.pending, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}

	var packets [][]byte
	buf := make([]byte, maxOpusPacketSize)
	for len(e.pending) >= e.samplesPerFrame {
		frame := e.pending[:e.samplesPerFrame]
		n, err := e.enc.Encode(frame, buf)
		if err != nil {
			return nil, fmt.Errorf("encode opus frame: %w", err)
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		packets = append(packets, packet)
		e.pending = e.pending[e.samplesPerFrame:]
	}
	return packets, nil
}

func (e *OpusEncoder) Close() {
	e.pending = nil
}
