package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"parley/pkg/apperr"
	"parley/pkg/logger"
	"parley/pkg/models"
)

// PutChannel writes a channel record.
func (s *Store) PutChannel(ctx context.Context, ch *models.Channel) error {
	return s.putJSON(channelKey(ch.ID), ch)
}

// FetchChannel loads one channel by id.
func (s *Store) FetchChannel(ctx context.Context, id string) (*models.Channel, error) {
	var ch models.Channel
	if err := s.getJSON(channelKey(id), &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// SetChannelLastMessage advances a channel's last-message pointer.
// markActive also flips the active flag, which resurfaces dormant DMs.
func (s *Store) SetChannelLastMessage(ctx context.Context, channelID, messageID string, markActive bool) error {
	key := string(channelKey(channelID))
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	ch, err := s.FetchChannel(ctx, channelID)
	if err != nil {
		return err
	}
	ch.LastMessageID = messageID
	if markActive {
		ch.Active = true
	}
	if err := s.putJSON(channelKey(channelID), ch); err != nil {
		logger.Error("set_last_message_failed", "channel", channelID, "error", err)
		return err
	}
	return nil
}

// PutServer writes a server record.
func (s *Store) PutServer(ctx context.Context, sv *models.Server) error {
	return s.putJSON(serverKey(sv.ID), sv)
}

// FetchServer loads one server by id.
func (s *Store) FetchServer(ctx context.Context, id string) (*models.Server, error) {
	var sv models.Server
	if err := s.getJSON(serverKey(id), &sv); err != nil {
		return nil, err
	}
	return &sv, nil
}

// PutUser writes a user record.
func (s *Store) PutUser(ctx context.Context, u *models.User) error {
	return s.putJSON(userKey(u.ID), u)
}

// FetchUser loads one user by id.
func (s *Store) FetchUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.getJSON(userKey(id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// PutMember writes a membership record.
func (s *Store) PutMember(ctx context.Context, m *models.Member) error {
	return s.putJSON(memberKey(m.ID.Server, m.ID.User), m)
}

// FetchMembers loads the memberships that exist for userIDs in a server.
// Users without a membership record are skipped.
func (s *Store) FetchMembers(ctx context.Context, serverID string, userIDs []string) ([]models.Member, error) {
	out := make([]models.Member, 0, len(userIDs))
	for _, uid := range userIDs {
		var m models.Member
		err := s.getJSON(memberKey(serverID, uid), &m)
		if apperr.IsKind(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// PutWebhook writes a webhook record.
func (s *Store) PutWebhook(ctx context.Context, w *models.Webhook) error {
	return s.putJSON(webhookKey(w.ID), w)
}

// FetchWebhook loads one webhook by id.
func (s *Store) FetchWebhook(ctx context.Context, id string) (*models.Webhook, error) {
	var w models.Webhook
	if err := s.getJSON(webhookKey(id), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// PutEmoji writes a custom emoji record.
func (s *Store) PutEmoji(ctx context.Context, e *models.Emoji) error {
	return s.putJSON(emojiKey(e.ID), e)
}

// FetchEmoji loads one custom emoji by id.
func (s *Store) FetchEmoji(ctx context.Context, id string) (*models.Emoji, error) {
	var e models.Emoji
	if err := s.getJSON(emojiKey(id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// PutAttachment writes an upload record.
func (s *Store) PutAttachment(ctx context.Context, f *models.File) error {
	return s.putJSON(attachmentKey(f.ID), f)
}

// FetchAttachment loads one upload record by id.
func (s *Store) FetchAttachment(ctx context.Context, id string) (*models.File, error) {
	var f models.File
	if err := s.getJSON(attachmentKey(id), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// UseAttachment binds an upload to a message. The bind is one-shot: a
// missing, deleted, or already-bound upload reads as NotFound.
func (s *Store) UseAttachment(ctx context.Context, id, messageID, uploaderID string) (*models.File, error) {
	key := string(attachmentKey(id))
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	f, err := s.FetchAttachment(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Deleted || (f.MessageID != "" && f.MessageID != messageID) {
		return nil, apperr.New(apperr.KindNotFound)
	}
	f.MessageID = messageID
	f.UploaderID = uploaderID
	if err := s.putJSON(attachmentKey(id), f); err != nil {
		logger.Error("use_attachment_failed", "attachment", id, "error", err)
		return nil, err
	}
	return f, nil
}

// MarkAttachmentsDeleted flags uploads for the retention sweep. Missing
// ids are ignored.
func (s *Store) MarkAttachmentsDeleted(ctx context.Context, ids []string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		key := string(attachmentKey(id))
		mu := s.lock(key)
		mu.Lock()
		f, err := s.FetchAttachment(ctx, id)
		if apperr.IsKind(err, apperr.KindNotFound) {
			mu.Unlock()
			continue
		}
		if err != nil {
			mu.Unlock()
			return err
		}
		f.Deleted = true
		f.DeletedAt = now
		err = s.putJSON(attachmentKey(id), f)
		mu.Unlock()
		if err != nil {
			logger.Error("mark_attachment_deleted_failed", "attachment", id, "error", err)
			return err
		}
	}
	return nil
}

// PurgeDeletedAttachments removes upload records flagged deleted before
// cutoff and returns how many were purged.
func (s *Store) PurgeDeletedAttachments(ctx context.Context, cutoff time.Time) (int, error) {
	lower := []byte(prefixAttachment)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: prefixUpperBound(lower)})
	if err != nil {
		return 0, fmt.Errorf("attachment scan: %w", err)
	}
	defer iter.Close()

	purged := 0
	var doomed []string
	for ok := iter.First(); ok; ok = iter.Next() {
		var f models.File
		if err := json.Unmarshal(iter.Value(), &f); err != nil {
			continue
		}
		if !f.Deleted || f.DeletedAt == "" {
			continue
		}
		at, err := time.Parse(time.RFC3339, f.DeletedAt)
		if err != nil || !at.Before(cutoff) {
			continue
		}
		doomed = append(doomed, f.ID)
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("attachment scan: %w", err)
	}
	for _, id := range doomed {
		if err := s.db.Delete(attachmentKey(id), pebble.Sync); err != nil {
			return purged, fmt.Errorf("purge attachment: %w", err)
		}
		purged++
	}
	return purged, nil
}

// FetchUnread loads one unread pointer, or NotFound.
func (s *Store) FetchUnread(ctx context.Context, channelID, userID string) (*models.Unread, error) {
	var u models.Unread
	if err := s.getJSON(unreadKey(channelID, userID), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AckMessage advances a user's unread pointer and clears their pending
// mentions for the channel.
func (s *Store) AckMessage(ctx context.Context, channelID, userID, messageID string) error {
	key := string(unreadKey(channelID, userID))
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	u := &models.Unread{ID: models.UnreadID{Channel: channelID, User: userID}}
	err := s.getJSON(unreadKey(channelID, userID), u)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}
	u.LastID = messageID
	u.Mentions = nil
	return s.putJSON(unreadKey(channelID, userID), u)
}

// AddUnreadMentions records messageID as a pending mention for each user.
func (s *Store) AddUnreadMentions(ctx context.Context, channelID, messageID string, userIDs []string) error {
	for _, uid := range userIDs {
		key := string(unreadKey(channelID, uid))
		mu := s.lock(key)
		mu.Lock()
		u := &models.Unread{ID: models.UnreadID{Channel: channelID, User: uid}}
		err := s.getJSON(unreadKey(channelID, uid), u)
		if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
			mu.Unlock()
			return err
		}
		u.AddMention(messageID)
		err = s.putJSON(unreadKey(channelID, uid), u)
		mu.Unlock()
		if err != nil {
			logger.Error("add_unread_mention_failed", "channel", channelID, "user", uid, "error", err)
			return err
		}
	}
	return nil
}
