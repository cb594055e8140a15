package models

import (
	"encoding/json"
	"fmt"

	"parley/pkg/ids"
)

// SystemMessage is the closed set of platform-authored message payloads.
// Adding a variant means extending systemTag, decodeSystem and the
// exhaustiveness test together.
type SystemMessage interface {
	// UserIDs lists every user id the payload references, for client
	// hydration.
	UserIDs() []string
	systemMessage()
}

type SystemText struct {
	Content string `json:"content"`
}

type SystemUserAdded struct {
	ID string `json:"id"`
	By string `json:"by"`
}

type SystemUserRemove struct {
	ID string `json:"id"`
	By string `json:"by"`
}

type SystemUserJoined struct {
	ID string `json:"id"`
}

type SystemUserLeft struct {
	ID string `json:"id"`
}

type SystemUserKicked struct {
	ID string `json:"id"`
}

type SystemUserBanned struct {
	ID string `json:"id"`
}

type SystemChannelRenamed struct {
	Name string `json:"name"`
	By   string `json:"by"`
}

type SystemChannelDescriptionChanged struct {
	By string `json:"by"`
}

type SystemChannelIconChanged struct {
	By string `json:"by"`
}

type SystemChannelOwnershipChanged struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type SystemMessagePinned struct {
	ID string `json:"id"`
	By string `json:"by"`
}

type SystemMessageUnpinned struct {
	ID string `json:"id"`
	By string `json:"by"`
}

func (SystemText) systemMessage()                      {}
func (SystemUserAdded) systemMessage()                 {}
func (SystemUserRemove) systemMessage()                {}
func (SystemUserJoined) systemMessage()                {}
func (SystemUserLeft) systemMessage()                  {}
func (SystemUserKicked) systemMessage()                {}
func (SystemUserBanned) systemMessage()                {}
func (SystemChannelRenamed) systemMessage()            {}
func (SystemChannelDescriptionChanged) systemMessage() {}
func (SystemChannelIconChanged) systemMessage()        {}
func (SystemChannelOwnershipChanged) systemMessage()   {}
func (SystemMessagePinned) systemMessage()             {}
func (SystemMessageUnpinned) systemMessage()           {}

func (SystemText) UserIDs() []string                        { return nil }
func (s SystemUserAdded) UserIDs() []string                 { return []string{s.ID, s.By} }
func (s SystemUserRemove) UserIDs() []string                { return []string{s.ID, s.By} }
func (s SystemUserJoined) UserIDs() []string                { return []string{s.ID} }
func (s SystemUserLeft) UserIDs() []string                  { return []string{s.ID} }
func (s SystemUserKicked) UserIDs() []string                { return []string{s.ID} }
func (s SystemUserBanned) UserIDs() []string                { return []string{s.ID} }
func (s SystemChannelRenamed) UserIDs() []string            { return []string{s.By} }
func (s SystemChannelDescriptionChanged) UserIDs() []string { return []string{s.By} }
func (s SystemChannelIconChanged) UserIDs() []string        { return []string{s.By} }
func (s SystemChannelOwnershipChanged) UserIDs() []string   { return []string{s.From, s.To} }
func (s SystemMessagePinned) UserIDs() []string             { return []string{s.By} }
func (s SystemMessageUnpinned) UserIDs() []string           { return []string{s.By} }

func systemTag(sm SystemMessage) string {
	switch sm.(type) {
	case SystemText:
		return "text"
	case SystemUserAdded:
		return "user_added"
	case SystemUserRemove:
		return "user_remove"
	case SystemUserJoined:
		return "user_joined"
	case SystemUserLeft:
		return "user_left"
	case SystemUserKicked:
		return "user_kicked"
	case SystemUserBanned:
		return "user_banned"
	case SystemChannelRenamed:
		return "channel_renamed"
	case SystemChannelDescriptionChanged:
		return "channel_description_changed"
	case SystemChannelIconChanged:
		return "channel_icon_changed"
	case SystemChannelOwnershipChanged:
		return "channel_ownership_changed"
	case SystemMessagePinned:
		return "message_pinned"
	case SystemMessageUnpinned:
		return "message_unpinned"
	default:
		return ""
	}
}

func decodeSystem(tag string, data []byte) (SystemMessage, error) {
	var err error
	switch tag {
	case "text":
		var v SystemText
		err = json.Unmarshal(data, &v)
		return v, err
	case "user_added":
		var v SystemUserAdded
		err = json.Unmarshal(data, &v)
		return v, err
	case "user_remove":
		var v SystemUserRemove
		err = json.Unmarshal(data, &v)
		return v, err
	case "user_joined":
		var v SystemUserJoined
		err = json.Unmarshal(data, &v)
		return v, err
	case "user_left":
		var v SystemUserLeft
		err = json.Unmarshal(data, &v)
		return v, err
	case "user_kicked":
		var v SystemUserKicked
		err = json.Unmarshal(data, &v)
		return v, err
	case "user_banned":
		var v SystemUserBanned
		err = json.Unmarshal(data, &v)
		return v, err
	case "channel_renamed":
		var v SystemChannelRenamed
		err = json.Unmarshal(data, &v)
		return v, err
	case "channel_description_changed":
		var v SystemChannelDescriptionChanged
		err = json.Unmarshal(data, &v)
		return v, err
	case "channel_icon_changed":
		var v SystemChannelIconChanged
		err = json.Unmarshal(data, &v)
		return v, err
	case "channel_ownership_changed":
		var v SystemChannelOwnershipChanged
		err = json.Unmarshal(data, &v)
		return v, err
	case "message_pinned":
		var v SystemMessagePinned
		err = json.Unmarshal(data, &v)
		return v, err
	case "message_unpinned":
		var v SystemMessageUnpinned
		err = json.Unmarshal(data, &v)
		return v, err
	default:
		return nil, fmt.Errorf("system message: unknown type %q", tag)
	}
}

// SystemEnvelope carries a SystemMessage through JSON as a tagged
// object: {"type":"user_joined","id":"..."}.
type SystemEnvelope struct {
	Message SystemMessage
}

func (e SystemEnvelope) MarshalJSON() ([]byte, error) {
	tag := systemTag(e.Message)
	if tag == "" {
		return nil, fmt.Errorf("system message: unregistered variant %T", e.Message)
	}
	fields, err := json.Marshal(e.Message)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(fields, &out); err != nil {
		return nil, err
	}
	out["type"] = tag
	return json.Marshal(out)
}

func (e *SystemEnvelope) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	sm, err := decodeSystem(probe.Type, data)
	if err != nil {
		return err
	}
	e.Message = sm
	return nil
}

// SystemIntoMessage wraps a system payload into a sendable Message for
// the given channel, authored by the platform.
func SystemIntoMessage(sm SystemMessage, channelID string) Message {
	return Message{
		ID:      ids.New(),
		Channel: channelID,
		Author:  SystemAuthorID,
		System:  &SystemEnvelope{Message: sm},
	}
}
