package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"parley/pkg/models"
)

// UnreadStore maintains per-user unread pointers and pending mentions.
type UnreadStore interface {
	AckMessage(ctx context.Context, channelID, userID, messageID string) error
	AddUnreadMentions(ctx context.Context, channelID, messageID string, userIDs []string) error
}

// AckConsumer acknowledges a sent message for its author and files
// pending mentions for everyone it mentioned.
type AckConsumer struct {
	store UnreadStore
}

func NewAckConsumer(store UnreadStore) *AckConsumer {
	return &AckConsumer{store: store}
}

func (c *AckConsumer) Handle(ctx context.Context, op *Op) error {
	var t AckTask
	if err := json.Unmarshal(op.Payload, &t); err != nil {
		return fmt.Errorf("decode ack task: %w", err)
	}
	if t.Author != "" && t.Author != models.SystemAuthorID {
		if err := c.store.AckMessage(ctx, t.Channel, t.Author, t.Message); err != nil {
			return err
		}
	}
	if len(t.Mentions) == 0 {
		return nil
	}
	return c.store.AddUnreadMentions(ctx, t.Channel, t.Message, t.Mentions)
}
