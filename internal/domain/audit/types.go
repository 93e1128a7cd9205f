// Package audit defines the AuditEvent entity and the WAL/Dispatcher ports
// for the write-ahead audit log.
package audit

import (
	"fmt"
	"time"
)

// FinalizeReason explains why a captured response closed.
type FinalizeReason string

const (
	FinalizeFinish        FinalizeReason = "finish"
	FinalizeTimeout       FinalizeReason = "timeout"
	FinalizeClientAbort   FinalizeReason = "client-abort"
	FinalizeShutdownReplay FinalizeReason = "shutdown-replay"
)

// Event is the AuditEvent entity. Required fields: EventID, TS, DurationMs,
// RequestID, Method, Path, Slug, Status, BillableUnits. Optional: TSStart,
// DurationReliable, FinalizeReason, Meta.
type Event struct {
	EventID       string            `json:"eventId"`
	TS            time.Time         `json:"ts"`
	DurationMs    int64             `json:"durationMs"`
	RequestID     string            `json:"requestId"`
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	Slug          string            `json:"slug"`
	Status        int               `json:"status"`
	BillableUnits int               `json:"billableUnits"`

	TSStart          *time.Time      `json:"tsStart,omitempty"`
	DurationReliable bool            `json:"durationReliable,omitempty"`
	FinalizeReason   FinalizeReason  `json:"finalizeReason,omitempty"`
	Meta             map[string]string `json:"meta,omitempty"`
}

// Validate enforces the AuditEvent invariants.
func (e Event) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("audit event: empty eventId")
	}
	if e.RequestID == "" {
		return fmt.Errorf("audit event %s: empty requestId", e.EventID)
	}
	if e.BillableUnits < 0 {
		return fmt.Errorf("audit event %s: billableUnits must be >= 0", e.EventID)
	}
	switch e.FinalizeReason {
	case "", FinalizeFinish, FinalizeTimeout, FinalizeClientAbort, FinalizeShutdownReplay:
	default:
		return fmt.Errorf("audit event %s: unknown finalizeReason %q", e.EventID, e.FinalizeReason)
	}
	return nil
}
