package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ServiceProbe checks readiness of the streaming ingest endpoint the
// Streamer publishes to (spec.md §4.6: "the Streamer depends on a
// readiness probe for the configured service before declaring
// STREAMING_STARTED").
//
// Grounded on the teacher's internal/mediamtx/client.go, generalized
// from a MediaMTX-specific path-status client to any JSON REST endpoint
// that reports {ready, bytesReceived} for a named stream path — the
// shape rtmp_common/rtmp_custom ingest fronts expose for push
// acknowledgement.
type ServiceProbe struct {
	baseURL    string
	httpClient *http.Client
}

const DefaultProbeTimeout = 5 * time.Second

type ProbeOption func(*ServiceProbe)

func WithProbeTimeout(d time.Duration) ProbeOption {
	return func(p *ServiceProbe) { p.httpClient.Timeout = d }
}

func WithProbeHTTPClient(c *http.Client) ProbeOption {
	return func(p *ServiceProbe) { p.httpClient = c }
}

func NewServiceProbe(baseURL string, opts ...ProbeOption) *ServiceProbe {
	p := &ServiceProbe{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultProbeTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type pathStatus struct {
	Ready         bool  `json:"ready"`
	BytesReceived int64 `json:"bytesReceived"`
}

// Ping checks that the service's status endpoint is reachable at all.
func (p *ServiceProbe) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v3/paths/list", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("service not reachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("service returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// IsReady reports whether name is publishing and has received data.
func (p *ServiceProbe) IsReady(ctx context.Context, name string) (bool, error) {
	url := fmt.Sprintf("%s/v3/paths/get/%s", p.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build status request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("status request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("status returned %d: %s", resp.StatusCode, string(body))
	}
	var status pathStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("decode status: %w", err)
	}
	return status.Ready && status.BytesReceived > 0, nil
}

// WaitUntilReady polls IsReady until it returns true, the deadline
// passes, or ctx is cancelled.
func (p *ServiceProbe) WaitUntilReady(ctx context.Context, name string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for %q to become ready", name)
		}
		ready, err := p.IsReady(ctx, name)
		if err == nil && ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
