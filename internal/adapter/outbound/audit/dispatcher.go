package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/meridianmesh/edge-gateway/internal/domain/audit"
	"github.com/meridianmesh/edge-gateway/internal/port/outbound"
)

// DispatcherConfig parameterizes a Dispatcher.
type DispatcherConfig struct {
	SinkURL string
	NDJSON  bool // AUDIT_NDJSON; true selects application/x-ndjson
	Timeout time.Duration
}

// Dispatcher implements audit.Dispatcher, batch-sending events to the audit
// sink via S2S. The actual S2S-authenticated HTTP call is delegated to
// outbound.S2SCall so this package has no direct dependency on the minter
// or the proxy.
type Dispatcher struct {
	caller outbound.S2SCall
	cfg    DispatcherConfig
}

// NewDispatcher builds a Dispatcher over an S2SCall port.
func NewDispatcher(caller outbound.S2SCall, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{caller: caller, cfg: cfg}
}

// Send PUTs events to the sink and classifies the response. Empty input is
// a no-op classified ok.
func (d *Dispatcher) Send(ctx context.Context, events []audit.Event) (audit.SendResult, error) {
	if len(events) == 0 {
		return audit.SendResult{Classification: audit.SendOK, StatusCode: http.StatusNoContent}, nil
	}

	body, contentType, err := d.encode(events)
	if err != nil {
		return audit.SendResult{}, fmt.Errorf("audit dispatch: encode batch: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	resp, err := d.caller.Call(sendCtx, outbound.S2SCallRequest{
		Method:      http.MethodPut,
		URL:         d.cfg.SinkURL,
		Body:        body,
		ContentType: contentType,
	})
	if err != nil {
		// Network/timeout failures are always retriable.
		return audit.SendResult{Classification: audit.SendRetriable}, nil
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return audit.SendResult{Classification: audit.SendOK, StatusCode: resp.StatusCode}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return audit.SendResult{Classification: audit.SendNonRetriable, StatusCode: resp.StatusCode}, nil
	default:
		return audit.SendResult{Classification: audit.SendRetriable, StatusCode: resp.StatusCode}, nil
	}
}

func (d *Dispatcher) encode(events []audit.Event) ([]byte, string, error) {
	if d.cfg.NDJSON {
		var buf bytes.Buffer
		for _, ev := range events {
			line, err := json.Marshal(ev)
			if err != nil {
				return nil, "", err
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), "application/x-ndjson", nil
	}
	body, err := json.Marshal(events)
	if err != nil {
		return nil, "", err
	}
	return body, "application/json", nil
}

var _ audit.Dispatcher = (*Dispatcher)(nil)
