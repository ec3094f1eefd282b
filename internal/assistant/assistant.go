package assistant

import "context"

// Reply is a single assistant response to a finalized transcript.
type Reply struct {
	Text  string
	Audio []byte
}

// Assistant is the downstream call a finalized transcript is handed to,
// invoked exactly once per successful release cycle.
type Assistant interface {
	SendMessage(ctx context.Context, transcript string) (Reply, error)
}
