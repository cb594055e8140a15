package models

import "time"

// SystemAuthorID is the reserved author id carried by system messages.
const SystemAuthorID = "00000000000000000000000000"

// Message is the stored and wire form of a channel message. Collection
// fields are omitted entirely when empty; consumers must treat a missing
// collection and an empty one identically.
type Message struct {
	ID      string `json:"_id"`
	Nonce   string `json:"nonce,omitempty"`
	Channel string `json:"channel"`
	// Author is a user id, a webhook id, or SystemAuthorID.
	Author  string          `json:"author"`
	Webhook *WebhookStamp   `json:"webhook,omitempty"`
	Content string          `json:"content,omitempty"`
	System  *SystemEnvelope `json:"system,omitempty"`

	Attachments []File     `json:"attachments,omitempty"`
	Edited      *time.Time `json:"edited,omitempty"`
	Embeds      []Embed    `json:"embeds,omitempty"`

	Mentions     []string `json:"mentions,omitempty"`
	RoleMentions []string `json:"role_mentions,omitempty"`
	Replies      []string `json:"replies,omitempty"`

	Reactions    *Reactions    `json:"reactions,omitempty"`
	Interactions *Interactions `json:"interactions,omitempty"`
	Masquerade   *Masquerade   `json:"masquerade,omitempty"`

	Pinned *bool         `json:"pinned,omitempty"`
	Flags  *MessageFlags `json:"flags,omitempty"`
}

// WebhookStamp is the name/avatar snapshot stored on webhook-authored
// messages so later webhook edits don't rewrite history.
type WebhookStamp struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Masquerade overrides the displayed author identity for one message.
type Masquerade struct {
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Colour string `json:"colour,omitempty"`
}

// HasSuppressedNotifications reports whether the suppress bit is set.
// False when flags are absent.
func (m *Message) HasSuppressedNotifications() bool {
	return m.Flags != nil && m.Flags.Has(FlagSuppressNotifications)
}

// MentionsMassRecipients reports whether delivery should treat this
// message as notifying beyond its explicit user mentions: the everyone
// flag is set or any role mention is present.
func (m *Message) MentionsMassRecipients() bool {
	if m.Flags != nil && m.Flags.Has(FlagMentionsEveryone) {
		return true
	}
	return len(m.RoleMentions) > 0
}

// IsSystem reports whether the message was authored by the platform.
func (m *Message) IsSystem() bool { return m.Author == SystemAuthorID }

// AttachmentIDs lists the ids of all owned attachments.
func (m *Message) AttachmentIDs() []string {
	if len(m.Attachments) == 0 {
		return nil
	}
	out := make([]string, 0, len(m.Attachments))
	for _, f := range m.Attachments {
		out = append(out, f.ID)
	}
	return out
}

// PartialMessage carries the mutable fields of an edit. Nil fields are
// left untouched.
type PartialMessage struct {
	Content *string    `json:"content,omitempty"`
	Edited  *time.Time `json:"edited,omitempty"`
	Embeds  []Embed    `json:"embeds,omitempty"`
	Pinned  *bool      `json:"pinned,omitempty"`
}

// MessageField names a removable message field on the edit path.
type MessageField string

const FieldPinned MessageField = "Pinned"

// Apply folds a partial update and field removals into the message.
func (m *Message) Apply(partial PartialMessage, remove []MessageField) {
	if partial.Content != nil {
		m.Content = *partial.Content
	}
	if partial.Edited != nil {
		m.Edited = partial.Edited
	}
	if partial.Embeds != nil {
		m.Embeds = partial.Embeds
	}
	if partial.Pinned != nil {
		m.Pinned = partial.Pinned
	}
	for _, f := range remove {
		if f == FieldPinned {
			m.Pinned = nil
		}
	}
}

// AppendPayload carries fields that can be appended to a stored message
// after creation. Currently only embeds arrive this way.
type AppendPayload struct {
	Embeds []Embed `json:"embeds,omitempty"`
}
