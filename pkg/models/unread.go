package models

// UnreadID keys an unread pointer by user and channel.
type UnreadID struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
}

// Unread tracks what a user has not seen in a channel: the last read
// message pointer and the ids of messages that mentioned them.
type Unread struct {
	ID       UnreadID `json:"_id"`
	LastID   string   `json:"last_id,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
}

// AddMention appends a mentioning message id, deduplicating.
func (u *Unread) AddMention(messageID string) {
	for _, id := range u.Mentions {
		if id == messageID {
			return
		}
	}
	u.Mentions = append(u.Mentions, messageID)
}
