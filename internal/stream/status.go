package stream

// Status is the session's connection lifecycle. It is owned exclusively by
// the Session; the controller reads it synchronously through Session.Status
// to make stop-vs-cancel decisions without a scheduling round-trip.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusStreaming    Status = "streaming"
	StatusStopping     Status = "stopping"
	StatusFinished     Status = "finished"
	StatusError        Status = "error"
)
