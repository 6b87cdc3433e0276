package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"rulereg/pkg/record"
	"rulereg/pkg/regerrors"
	"rulereg/pkg/types"
)

const defaultClientTimeout = 5 * time.Second

// HTTPHandle implements NodeHandle over the peer's HTTP gossip endpoints.
type HTTPHandle struct {
	id         types.NodeID
	baseURL    string
	httpClient *http.Client

	// liveness hint maintained by call outcomes and Probe; IsAvailable
	// never performs I/O.
	up atomic.Bool
}

// NewHTTPHandle creates a handle for the peer at baseURL ("http://node2:8080").
// The peer is assumed available until a call proves otherwise.
func NewHTTPHandle(id types.NodeID, baseURL string) *HTTPHandle {
	h := &HTTPHandle{
		id:      id,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultClientTimeout,
		},
	}
	h.up.Store(true)
	return h
}

// NewHTTPHandleFactory returns a ClientFactory producing HTTPHandles.
func NewHTTPHandleFactory() ClientFactory {
	return func(id types.NodeID, addr string) NodeHandle {
		return NewHTTPHandle(id, addr)
	}
}

func (h *HTTPHandle) Identity() types.NodeID { return h.id }

func (h *HTTPHandle) IsAvailable() bool { return h.up.Load() }

func (h *HTTPHandle) Send(ctx context.Context, rec *record.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", rec.Key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/gossip/records", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.up.Store(false)
		return &regerrors.TransportError{Peer: h.id, Op: "send", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		h.up.Store(false)
		msg, _ := io.ReadAll(resp.Body)
		return &regerrors.TransportError{
			Peer: h.id,
			Op:   "send",
			Err:  fmt.Errorf("status %d: %s", resp.StatusCode, msg),
		}
	}

	h.up.Store(true)
	return nil
}

func (h *HTTPHandle) Receive(ctx context.Context) ([]*record.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		h.baseURL+"/gossip/records", nil)
	if err != nil {
		return nil, fmt.Errorf("create receive request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.up.Store(false)
		return nil, &regerrors.TransportError{Peer: h.id, Op: "receive", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.up.Store(false)
		msg, _ := io.ReadAll(resp.Body)
		return nil, &regerrors.TransportError{
			Peer: h.id,
			Op:   "receive",
			Err:  fmt.Errorf("status %d: %s", resp.StatusCode, msg),
		}
	}

	var recs []*record.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		h.up.Store(false)
		return nil, &regerrors.TransportError{Peer: h.id, Op: "receive", Err: fmt.Errorf("decode response: %w", err)}
	}

	h.up.Store(true)
	return recs, nil
}

// Probe refreshes the liveness hint with a cheap health check.
func (h *HTTPHandle) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.up.Store(false)
		return &regerrors.TransportError{Peer: h.id, Op: "probe", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode == http.StatusOK
	h.up.Store(ok)
	if !ok {
		return &regerrors.TransportError{
			Peer: h.id,
			Op:   "probe",
			Err:  fmt.Errorf("status %d", resp.StatusCode),
		}
	}
	return nil
}
