package store

import (
	"fmt"
	"strings"
)

// Key layout. Message ids are ULIDs, so the channel index iterates in
// creation order without a separate timestamp component.
//
//	msg:<id>                  message record
//	cmsg:<channel>:<id>       channel membership index (empty value)
//	channel:<id>              channel record
//	server:<id>               server record
//	member:<server>:<user>    membership record
//	user:<id>                 user record
//	webhook:<id>              webhook record
//	emoji:<id>                custom emoji record
//	att:<id>                  upload/attachment record
//	unread:<channel>:<user>   unread pointer + mention list
const (
	prefixMessage    = "msg:"
	prefixChannelMsg = "cmsg:"
	prefixChannel    = "channel:"
	prefixServer     = "server:"
	prefixMember     = "member:"
	prefixUser       = "user:"
	prefixWebhook    = "webhook:"
	prefixEmoji      = "emoji:"
	prefixAttachment = "att:"
	prefixUnread     = "unread:"
)

func messageKey(id string) []byte { return []byte(prefixMessage + id) }

func channelMsgKey(channelID, msgID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixChannelMsg, channelID, msgID))
}

func channelMsgPrefix(channelID string) []byte {
	return []byte(prefixChannelMsg + channelID + ":")
}

// channelMsgID extracts the message id from a channel index key.
func channelMsgID(key []byte, channelID string) string {
	return strings.TrimPrefix(string(key), prefixChannelMsg+channelID+":")
}

func channelKey(id string) []byte { return []byte(prefixChannel + id) }

func serverKey(id string) []byte { return []byte(prefixServer + id) }

func memberKey(serverID, userID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixMember, serverID, userID))
}

func userKey(id string) []byte { return []byte(prefixUser + id) }

func webhookKey(id string) []byte { return []byte(prefixWebhook + id) }

func emojiKey(id string) []byte { return []byte(prefixEmoji + id) }

func attachmentKey(id string) []byte { return []byte(prefixAttachment + id) }

func unreadKey(channelID, userID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixUnread, channelID, userID))
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, for pebble range scans.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
