package tasks

import (
	"context"
	"encoding/json"
	"fmt"
)

// ChannelPointerStore advances channel last-message pointers.
type ChannelPointerStore interface {
	SetChannelLastMessage(ctx context.Context, channelID, messageID string, markActive bool) error
}

// LastMessageConsumer applies last-message pointer updates.
type LastMessageConsumer struct {
	store ChannelPointerStore
}

func NewLastMessageConsumer(store ChannelPointerStore) *LastMessageConsumer {
	return &LastMessageConsumer{store: store}
}

func (c *LastMessageConsumer) Handle(ctx context.Context, op *Op) error {
	var t LastMessageTask
	if err := json.Unmarshal(op.Payload, &t); err != nil {
		return fmt.Errorf("decode last-message task: %w", err)
	}
	return c.store.SetChannelLastMessage(ctx, t.Channel, t.Message, t.MarkActive)
}
