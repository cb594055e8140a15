package events

import (
	"encoding/json"
	"fmt"

	"parley/pkg/models"
)

// Event is a realtime protocol frame. Type() is the discriminant the
// wire envelope carries as "type".
type Event interface {
	Type() string
}

// Message announces a freshly persisted message.
type Message struct {
	Message models.Message
}

func (Message) Type() string { return "Message" }

// MessageUpdate carries a partial edit.
type MessageUpdate struct {
	ID      string                `json:"id"`
	Channel string                `json:"channel"`
	Data    models.PartialMessage `json:"data"`
	Remove  []models.MessageField `json:"remove,omitempty"`
}

func (MessageUpdate) Type() string { return "MessageUpdate" }

// MessageAppend carries embeds added after the fact.
type MessageAppend struct {
	ID      string               `json:"id"`
	Channel string               `json:"channel"`
	Append  models.AppendPayload `json:"append"`
}

func (MessageAppend) Type() string { return "MessageAppend" }

// MessageDelete announces a single deletion.
type MessageDelete struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
}

func (MessageDelete) Type() string { return "MessageDelete" }

// BulkMessageDelete announces one round of bulk deletion.
type BulkMessageDelete struct {
	Channel string   `json:"channel"`
	IDs     []string `json:"ids"`
}

func (BulkMessageDelete) Type() string { return "BulkMessageDelete" }

// MessageReact announces a reactor joining an emoji key.
type MessageReact struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	EmojiID   string `json:"emoji_id"`
}

func (MessageReact) Type() string { return "MessageReact" }

// MessageUnreact announces a reactor leaving an emoji key.
type MessageUnreact struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	EmojiID   string `json:"emoji_id"`
}

func (MessageUnreact) Type() string { return "MessageUnreact" }

// MessageRemoveReaction announces an emoji key being cleared outright.
type MessageRemoveReaction struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	EmojiID   string `json:"emoji_id"`
}

func (MessageRemoveReaction) Type() string { return "MessageRemoveReaction" }

// ChannelStartTyping is the typing indicator raised by the beacon.
type ChannelStartTyping struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

func (ChannelStartTyping) Type() string { return "ChannelStartTyping" }

// ChannelStopTyping clears the typing indicator.
type ChannelStopTyping struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

func (ChannelStopTyping) Type() string { return "ChannelStopTyping" }

// Marshal encodes an event as a flat JSON object with the "type"
// discriminant folded into the payload fields.
func Marshal(ev Event) ([]byte, error) {
	var payload any = ev
	if m, ok := ev.(Message); ok {
		payload = m.Message
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("flatten event payload: %w", err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	typ, err := json.Marshal(ev.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = typ
	return json.Marshal(fields)
}
