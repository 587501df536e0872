package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/logger"
)

type eventHandler interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (string, error)
}

// Consumer pulls forwarded processor events off pubsub. Retryable failures
// are nacked for redelivery; everything else is acked and logged.
type Consumer struct {
	handler      eventHandler
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func NewConsumer(handler eventHandler, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("event handler required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("processor events subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{handler: handler, subscription: subscription, logg: logg}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Data) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process reports whether the message should be redelivered.
func (c *Consumer) process(ctx context.Context, messageID string, data []byte) bool {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)

	var event stripe.Event
	if err := json.Unmarshal(data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode processor event", err)
		return false
	}
	if _, err := c.handler.HandleEvent(ctx, &event); err != nil {
		return Retryable(err)
	}
	return false
}

// Retryable reports whether err should be retried by redelivery.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).Retryable
}
