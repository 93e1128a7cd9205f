package audit

import "context"

// SendClassification categorizes a dispatcher batch-send outcome.
type SendClassification string

const (
	// SendOK: 2xx. Cursor may advance past the batch.
	SendOK SendClassification = "ok"
	// SendNonRetriable: 4xx. The WAL will skip the batch (mark poisoned)
	// and advance the cursor past it.
	SendNonRetriable SendClassification = "non-retriable"
	// SendRetriable: 5xx/network/timeout. The WAL retries per backoff
	// policy without advancing the cursor.
	SendRetriable SendClassification = "retriable"
)

// SendResult is the outcome of one Dispatcher.Send call.
type SendResult struct {
	Classification SendClassification
	StatusCode     int
}

// Dispatcher batch-sends events to the audit sink via S2S. Empty input is a
// no-op classified SendOK.
type Dispatcher interface {
	Send(ctx context.Context, events []Event) (SendResult, error)
}
