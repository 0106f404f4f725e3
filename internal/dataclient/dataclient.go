// Package dataclient is the HTTP client for the metagraph's data layer and
// snapshot layer (spec.md §4.2, §6.1). It is a thin wrapper over net/http:
// the teacher favors direct http.Client usage over a generated SDK
// (core/connection_pool.go's pooled-dialer idiom is the nearest teacher
// analogue for a small, explicit transport wrapper).
package dataclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"fibermesh/internal/model"
)

const (
	defaultQueryTimeout  = 5 * time.Second
	defaultSubmitTimeout = 10 * time.Second
)

// Client talks to one or more data-node endpoints and a snapshot-layer
// endpoint over HTTP.
type Client struct {
	HTTP          *http.Client
	DataNodeURLs  []string // POST /data targets; first element used by Submit
	SnapshotURL   string   // GL0/ML0 checkpoint base URL
	QueryTimeout  time.Duration
	SubmitTimeout time.Duration
}

// New builds a Client with sane default timeouts.
func New(dataNodeURLs []string, snapshotURL string) *Client {
	return &Client{
		HTTP:          &http.Client{},
		DataNodeURLs:  dataNodeURLs,
		SnapshotURL:   snapshotURL,
		QueryTimeout:  defaultQueryTimeout,
		SubmitTimeout: defaultSubmitTimeout,
	}
}

// SubmitResult is the data layer's acknowledgement of a write.
type SubmitResult struct {
	Hash    string  `json:"hash"`
	Ordinal *uint64 `json:"ordinal,omitempty"`
}

// Submit POSTs a signed envelope to the first configured data-node URL.
func (c *Client) Submit(ctx context.Context, envelope model.Signed[any]) (SubmitResult, error) {
	if len(c.DataNodeURLs) == 0 {
		return SubmitResult{}, fmt.Errorf("%w: no data node configured", model.ErrNetwork)
	}
	return c.submitTo(ctx, c.DataNodeURLs[0], envelope)
}

// SubmitBroadcast dispatches envelope to every configured data-node URL in
// parallel and returns the first 2xx response. If all fail, it aggregates
// the failures into a single error (spec.md §4.2).
func (c *Client) SubmitBroadcast(ctx context.Context, envelope model.Signed[any]) (SubmitResult, error) {
	if len(c.DataNodeURLs) == 0 {
		return SubmitResult{}, fmt.Errorf("%w: no data node configured", model.ErrNetwork)
	}
	if len(c.DataNodeURLs) == 1 {
		return c.submitTo(ctx, c.DataNodeURLs[0], envelope)
	}

	type outcome struct {
		res SubmitResult
		err error
	}
	results := make(chan outcome, len(c.DataNodeURLs))
	// Each dispatch is independent; a failing node must not cancel the
	// others' race for a first success, so each runs on the parent context
	// rather than an errgroup-derived one.
	var g errgroup.Group
	for _, url := range c.DataNodeURLs {
		url := url
		g.Go(func() error {
			res, err := c.submitTo(ctx, url, envelope)
			results <- outcome{res: res, err: err}
			return nil
		})
	}

	var errs []error
	for range c.DataNodeURLs {
		o := <-results
		if o.err == nil {
			return o.res, nil
		}
		errs = append(errs, o.err)
	}
	return SubmitResult{}, fmt.Errorf("%w: all data nodes failed: %v", model.ErrNetwork, errs)
}

func (c *Client) submitTo(ctx context.Context, url string, envelope model.Signed[any]) (SubmitResult, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: marshal envelope: %v", model.ErrValidation, err)
	}
	timeout := c.SubmitTimeout
	if timeout == 0 {
		timeout = defaultSubmitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/data", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		return SubmitResult{}, classifyHTTPError(resp.StatusCode, respBody)
	}
	var out SubmitResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	return out, nil
}

// classifyHTTPError turns a non-2xx data-layer response into the error
// taxonomy of spec.md §4.2/§4.4: 4xx carries the server's rationale and
// must not be retried blindly by the caller; the sequence reconciler (C3)
// further distinguishes SequenceConflict from this class.
func classifyHTTPError(code int, body []byte) error {
	if code == http.StatusConflict {
		return fmt.Errorf("%w: %s", model.ErrSequenceConflict, string(body))
	}
	if code/100 == 4 {
		return fmt.Errorf("%w: status %d: %s", model.ErrValidation, code, string(body))
	}
	return fmt.Errorf("%w: status %d: %s", model.ErrUpstream, code, string(body))
}

// GetStateMachine fetches a fiber's current state from the snapshot layer.
// Returns model.ErrNotFound if the fiber does not (yet) exist.
func (c *Client) GetStateMachine(ctx context.Context, fiberID string) (*model.Fiber, error) {
	var fiber model.Fiber
	err := c.getJSON(ctx, fmt.Sprintf("/data-application/v1/state-machines/%s", fiberID), &fiber)
	if err != nil {
		return nil, err
	}
	return &fiber, nil
}

// Checkpoint is the snapshot-layer's current view (spec.md §6.1).
type Checkpoint struct {
	Ordinal uint64 `json:"ordinal"`
	State   struct {
		StateMachines map[string]model.Fiber `json:"stateMachines"`
	} `json:"state"`
}

// GetCheckpoint fetches the current snapshot checkpoint.
func (c *Client) GetCheckpoint(ctx context.Context) (*Checkpoint, error) {
	var cp Checkpoint
	if err := c.getJSON(ctx, "/data-application/v1/checkpoint", &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// GetLatestOrdinal returns the latest snapshot ordinal, or nil if none
// exists yet.
func (c *Client) GetLatestOrdinal(ctx context.Context) (*uint64, error) {
	var out struct {
		Ordinal *uint64 `json:"ordinal"`
	}
	if err := c.getJSON(ctx, "/snapshots/latest/ordinal", &out); err != nil {
		return nil, err
	}
	return out.Ordinal, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	timeout := c.QueryTimeout
	if timeout == 0 {
		timeout = defaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SnapshotURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.ErrNotFound
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return classifyHTTPError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	return nil
}
