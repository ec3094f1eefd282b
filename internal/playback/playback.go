package playback

import "context"

// Player plays assistant response audio. Stop interrupts an in-flight Play
// and is safe to call when nothing is playing.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
	Stop()
}
