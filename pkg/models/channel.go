package models

// ChannelKind is the closed set of channel shapes.
type ChannelKind string

const (
	ChannelSavedMessages ChannelKind = "SavedMessages"
	ChannelDirectMessage ChannelKind = "DirectMessage"
	ChannelGroup         ChannelKind = "Group"
	ChannelText          ChannelKind = "TextChannel"
	ChannelVoice         ChannelKind = "VoiceChannel"
)

// Channel is the minimal channel record the message pipeline needs:
// enough to narrow mentions, address events and track the last message.
type Channel struct {
	ID   string      `json:"_id"`
	Kind ChannelKind `json:"channel_type"`
	Name string      `json:"name,omitempty"`

	// server channels
	Server string `json:"server,omitempty"`

	// direct messages and groups
	Recipients []string `json:"recipients,omitempty"`
	// Active marks a DM as present in both participants' channel lists;
	// it flips back on when a new message arrives.
	Active bool `json:"active,omitempty"`

	// saved-messages owner
	User string `json:"user,omitempty"`

	LastMessageID string `json:"last_message_id,omitempty"`

	// per-channel role permission overrides, applied by the oracle
	DefaultPermissions *PermissionOverride           `json:"default_permissions,omitempty"`
	RolePermissions    map[string]PermissionOverride `json:"role_permissions,omitempty"`
}

// InServer reports whether the channel belongs to a server.
func (c *Channel) InServer() bool {
	return c.Kind == ChannelText || c.Kind == ChannelVoice
}

// HasRecipient reports whether the user participates in a DM/group.
func (c *Channel) HasRecipient(userID string) bool {
	for _, r := range c.Recipients {
		if r == userID {
			return true
		}
	}
	return false
}

// PermissionOverride is an allow/deny bit pair.
type PermissionOverride struct {
	Allow uint64 `json:"a"`
	Deny  uint64 `json:"d"`
}
