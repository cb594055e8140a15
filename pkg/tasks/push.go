package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"parley/pkg/logger"
	"parley/pkg/models"
)

// Notifier delivers a mention notification to a set of recipients.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, msg *models.Message) error
}

// LogNotifier is the default delivery backend: it records the fan-out
// and drops it. A real push provider slots in through the Notifier
// interface.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, recipients []string, msg *models.Message) error {
	logger.Info("push_notification", "message", msg.ID, "channel", msg.Channel, "recipients", len(recipients))
	return nil
}

// PushConsumer forwards queued notification fan-outs to the notifier.
type PushConsumer struct {
	notifier Notifier
}

func NewPushConsumer(notifier Notifier) *PushConsumer {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &PushConsumer{notifier: notifier}
}

func (c *PushConsumer) Handle(ctx context.Context, op *Op) error {
	var t PushTask
	if err := json.Unmarshal(op.Payload, &t); err != nil {
		return fmt.Errorf("decode push task: %w", err)
	}
	if len(t.Recipients) == 0 {
		return nil
	}
	return c.notifier.Notify(ctx, t.Recipients, &t.Message)
}
