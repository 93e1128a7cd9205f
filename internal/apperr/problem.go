package apperr

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Problem is the application/problem+json body shape (RFC 7807) used for
// every edge error response.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"requestId"`
}

// WriteProblem is the single translator from a typed error to the wire
// response. Every gate calls this instead of writing JSON directly, keeping
// one JSON error writer for the whole pipeline.
func WriteProblem(w http.ResponseWriter, instance, requestID string, err error) {
	appErr, ok := As(err)
	if !ok {
		appErr = Wrap(KindInternal, "internal_error", err)
	}

	status := appErr.Status()
	p := Problem{
		Type:      "https://errors.meridianmesh.dev/" + appErr.Code,
		Title:     string(appErr.Kind),
		Status:    status,
		Detail:    appErr.Detail,
		Instance:  instance,
		RequestID: requestID,
	}

	if appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}
