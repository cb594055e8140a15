package models

// BotInfo marks a user account as bot-controlled.
type BotInfo struct {
	Owner string `json:"owner"`
}

// User is the minimal user record the pipeline needs: identity, bot
// marker and display name for push payloads.
type User struct {
	ID          string   `json:"_id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name,omitempty"`
	Avatar      string   `json:"avatar,omitempty"`
	Bot         *BotInfo `json:"bot,omitempty"`
}

// IsBot reports whether the account is bot-controlled.
func (u *User) IsBot() bool { return u != nil && u.Bot != nil }

// Name returns the push-facing display name.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Webhook posts messages into one channel without a user session.
type Webhook struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	Channel string `json:"channel_id"`
}

// Stamp snapshots the webhook identity onto a message.
func (w *Webhook) Stamp() *WebhookStamp {
	return &WebhookStamp{Name: w.Name, Avatar: w.Avatar}
}

// Emoji is a custom server emoji. Unicode emoji never have records;
// their identifiers simply aren't ULIDs.
type Emoji struct {
	ID       string `json:"_id"`
	Parent   string `json:"parent,omitempty"`
	Creator  string `json:"creator_id"`
	Name     string `json:"name"`
	Animated bool   `json:"animated,omitempty"`
	NSFW     bool   `json:"nsfw,omitempty"`
}
