package dataclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"fibermesh/internal/model"
)

// SubscribeWebhookInput is the payload for registering a webhook
// subscription with the metagraph (spec.md §6.2).
type SubscribeWebhookInput struct {
	CallbackURL string `json:"callbackUrl"`
	Secret      string `json:"secret,omitempty"`
}

// SubscribeWebhookResult is the metagraph's acknowledgement, carrying the
// subscription id needed to unsubscribe.
type SubscribeWebhookResult struct {
	ID string `json:"id"`
}

// SubscribeWebhook registers callbackURL with the metagraph's webhook
// subscriber list. Called idempotently on boot (spec.md §4.5 "Subscription
// lifecycle"); a metagraph that already has this callback registered is
// expected to no-op rather than duplicate.
func (c *Client) SubscribeWebhook(ctx context.Context, in SubscribeWebhookInput) (SubscribeWebhookResult, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return SubscribeWebhookResult{}, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SnapshotURL+"/data-application/v1/webhooks/subscribe", bytes.NewReader(body))
	if err != nil {
		return SubscribeWebhookResult{}, fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return SubscribeWebhookResult{}, fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return SubscribeWebhookResult{}, classifyHTTPError(resp.StatusCode, respBody)
	}
	var out SubscribeWebhookResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return SubscribeWebhookResult{}, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	return out, nil
}

// UnsubscribeWebhook removes a subscription by id.
func (c *Client) UnsubscribeWebhook(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.SnapshotURL+"/data-application/v1/webhooks/subscribe/"+id, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return classifyHTTPError(resp.StatusCode, body)
	}
	return nil
}
