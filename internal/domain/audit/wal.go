package audit

import "context"

// EventState is the per-event lifecycle state tracked informally by the WAL:
// enqueued -> journaled -> draining -> acknowledged, or -> poisoned on a
// non-retriable downstream response.
type EventState string

const (
	StateEnqueued    EventState = "enqueued"
	StateJournaled   EventState = "journaled"
	StateDraining    EventState = "draining"
	StateAcknowledged EventState = "acknowledged"
	StatePoisoned    EventState = "poisoned"
)

// Cursor is the WalCursor entity: the durable drain position. Persisted to
// audit.offset; advances only on confirmed drain or a skipped poison batch.
type Cursor struct {
	File       string `json:"file"`
	ByteOffset int64  `json:"byteOffset"`
}

// WAL is the write-ahead audit log port. Responsibilities: durably persist
// every enqueued event, deliver each at least once, never drop silently
// under steady-state faults.
type WAL interface {
	// Enqueue appends one NDJSON line to the current file, updates the
	// ring buffer, and triggers a non-blocking drain attempt. Never blocks
	// the inbound request. When back-pressure refuses the write, the WAL
	// logs it at WARN and returns nil; an error is returned only for an
	// invalid event or a failed rotation, marshal or write.
	Enqueue(ctx context.Context, event Event) error

	// Flush forces the current file to sync to disk.
	Flush(ctx context.Context) error

	// Close stops the background drain goroutine and closes the current
	// file handle.
	Close() error

	// Cursor returns the current persisted drain cursor.
	Cursor() Cursor

	// Recent returns up to n of the most recently enqueued events from
	// the bounded ring buffer (newest first), for diagnostics.
	Recent(n int) []Event
}
