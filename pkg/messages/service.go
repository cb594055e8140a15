// Package messages implements the ingestion and delivery pipeline:
// validation, mention resolution, permission gating, persistence,
// realtime broadcast, and deferred fan-out.
package messages

import (
	"context"

	"parley/pkg/config"
	"parley/pkg/events"
	"parley/pkg/models"
	"parley/pkg/store"
	"parley/pkg/tasks"
)

// ListOptions bounds a channel history read.
type ListOptions = store.ListOptions

// Store is the persistence surface the pipeline drives.
type Store interface {
	InsertMessage(ctx context.Context, msg *models.Message) error
	FetchMessage(ctx context.Context, id string) (*models.Message, error)
	FetchMessagesByID(ctx context.Context, ids []string) ([]models.Message, error)
	UpdateMessage(ctx context.Context, id string, partial models.PartialMessage, remove []models.MessageField) error
	AppendMessage(ctx context.Context, id string, payload models.AppendPayload) error
	DeleteMessage(ctx context.Context, id string) error
	DeleteMessages(ctx context.Context, channelID string, ids []string) error
	ListMessages(ctx context.Context, channelID string, opts ListOptions) ([]models.Message, error)

	AddReaction(ctx context.Context, id, emoji, userID string) error
	RemoveReaction(ctx context.Context, id, emoji, userID string) error
	ClearReaction(ctx context.Context, id, emoji string) error
	ClearReactions(ctx context.Context, id string) error

	FetchChannel(ctx context.Context, id string) (*models.Channel, error)
	FetchServer(ctx context.Context, id string) (*models.Server, error)
	FetchMembers(ctx context.Context, serverID string, userIDs []string) ([]models.Member, error)
	FetchEmoji(ctx context.Context, id string) (*models.Emoji, error)

	UseAttachment(ctx context.Context, id, messageID, uploaderID string) (*models.File, error)
	MarkAttachmentsDeleted(ctx context.Context, ids []string) error
}

// Oracle answers capability questions for a channel.
type Oracle interface {
	Require(ctx context.Context, userID string, ch *models.Channel, cap uint64) error
	FilterVisible(ctx context.Context, ch *models.Channel, userIDs []string) ([]string, error)
}

// Publisher broadcasts realtime frames to channel topics.
type Publisher interface {
	Publish(topic string, ev events.Event)
}

// Queue accepts deferred work spun off the send path.
type Queue interface {
	EnqueueLastMessage(tasks.LastMessageTask) error
	EnqueueAck(tasks.AckTask) error
	EnqueueEmbeds(tasks.EmbedTask) error
	EnqueuePush(tasks.PushTask) error
}

// Guard deduplicates client retries by idempotency key.
type Guard interface {
	Consume(key string) error
}

// Service runs the message pipeline against its collaborators.
type Service struct {
	store Store
	perms Oracle
	bus   Publisher
	queue Queue
	guard Guard
	snap  func() config.Snapshot
}

// NewService wires the pipeline. snapshot is read once per operation so
// a reload cannot change limits mid-flight.
func NewService(st Store, perms Oracle, bus Publisher, queue Queue, guard Guard, snapshot func() config.Snapshot) *Service {
	return &Service{store: st, perms: perms, bus: bus, queue: queue, guard: guard, snap: snapshot}
}

// Actor identifies the sender of an operation: a user or a webhook.
type Actor struct {
	User    *models.User
	Webhook *models.Webhook
}

// ID returns the acting identity's id.
func (a Actor) ID() string {
	if a.Webhook != nil {
		return a.Webhook.ID
	}
	if a.User != nil {
		return a.User.ID
	}
	return ""
}

// IsWebhook reports whether the actor is a webhook integration.
func (a Actor) IsWebhook() bool { return a.Webhook != nil }

// IsBot reports whether the actor is an automated identity.
func (a Actor) IsBot() bool {
	if a.Webhook != nil {
		return true
	}
	return a.User != nil && a.User.IsBot()
}
