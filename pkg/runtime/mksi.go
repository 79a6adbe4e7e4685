package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// RunSummary is the best-effort payload exported at the end of a request,
// mirroring kolibri_x/eval/mksi.py's run-summary shape closely enough for
// an external collector to correlate it against the journal tail.
type RunSummary struct {
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id"`
	Goal      string   `json:"goal"`
	Cached    bool     `json:"cached"`
	Statuses  []string `json:"statuses"`
}

// MKSIExporter ships a RunSummary to an external sink. Implementations must
// not block the pipeline: failures are swallowed by the caller.
type MKSIExporter interface {
	Export(ctx context.Context, summary RunSummary) error
}

// HTTPExporter posts a RunSummary as JSON to a fixed endpoint with a
// bounded timeout, matching spec section 5's "network POST for MKSI
// export (best-effort, bounded timeout ~2s)".
type HTTPExporter struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPExporter builds an exporter with a 2-second-timeout client.
func NewHTTPExporter(endpoint string) *HTTPExporter {
	return &HTTPExporter{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 2 * time.Second},
	}
}

// Export POSTs summary as JSON. Errors are returned, not retried; callers
// treat MKSI export as best-effort and proceed regardless of outcome.
func (e *HTTPExporter) Export(ctx context.Context, summary RunSummary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
