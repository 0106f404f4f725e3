package intake

import (
	"context"

	"github.com/sirupsen/logrus"

	"fibermesh/internal/dataclient"
)

// Subscriber registers this process's webhook callback with the metagraph
// at startup, and survives restarts by re-subscribing idempotently
// (spec.md §4.5 "Subscription lifecycle").
type Subscriber struct {
	Data        *dataclient.Client
	CallbackURL string
	Secret      string
	Log         *logrus.Logger
}

// EnsureSubscribed registers CallbackURL with the metagraph. A metagraph
// that already has this callback is expected to treat the call as a no-op,
// so this is safe to call on every boot without first checking
// GET /webhooks/subscribers.
func (s *Subscriber) EnsureSubscribed(ctx context.Context) error {
	res, err := s.Data.SubscribeWebhook(ctx, dataclient.SubscribeWebhookInput{
		CallbackURL: s.CallbackURL,
		Secret:      s.Secret,
	})
	if err != nil {
		return err
	}
	if s.Log != nil {
		s.Log.WithField("subscriptionId", res.ID).Info("webhook subscription confirmed")
	}
	return nil
}
