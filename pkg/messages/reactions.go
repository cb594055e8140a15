package messages

import (
	"context"

	"parley/pkg/apperr"
	"parley/pkg/events"
	"parley/pkg/ids"
	"parley/pkg/permissions"
)

// AddReaction records userID reacting with emoji. The broadcast goes
// out before the write lands so clients see their own reaction without
// waiting on storage.
func (s *Service) AddReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	if emoji == "" {
		return apperr.New(apperr.KindInvalidOperation)
	}
	ch, err := s.store.FetchChannel(ctx, channelID)
	if err != nil {
		return err
	}
	msg, err := s.fetchInChannel(ctx, channelID, messageID)
	if err != nil {
		return err
	}
	if err := s.perms.Require(ctx, userID, ch, permissions.React); err != nil {
		return err
	}

	// a new emoji key may not push the message past the distinct cap
	if !msg.Reactions.Has(emoji) && msg.Reactions.Len() >= s.snap().Limits.MessageReactions {
		return apperr.New(apperr.KindInvalidOperation)
	}
	if !msg.Interactions.CanUse(emoji) {
		return apperr.New(apperr.KindInvalidOperation)
	}
	if err := s.checkEmojiUsable(ctx, emoji); err != nil {
		return err
	}

	s.bus.Publish(channelID, events.MessageReact{ID: messageID, ChannelID: channelID, UserID: userID, EmojiID: emoji})
	if err := s.store.AddReaction(ctx, messageID, emoji, userID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// checkEmojiUsable accepts unicode emoji as-is; ULID-shaped ids must
// resolve to a stored custom emoji.
func (s *Service) checkEmojiUsable(ctx context.Context, emoji string) error {
	if !ids.IsULID(emoji) {
		return nil
	}
	if _, err := s.store.FetchEmoji(ctx, emoji); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return apperr.New(apperr.KindInvalidOperation)
		}
		return apperr.Internal(err)
	}
	return nil
}

// RemoveReaction takes targetUserID off an emoji key. Removing someone
// else's reaction is a moderation act.
func (s *Service) RemoveReaction(ctx context.Context, channelID, messageID, emoji, targetUserID string, actor Actor) error {
	ch, err := s.store.FetchChannel(ctx, channelID)
	if err != nil {
		return err
	}
	msg, err := s.fetchInChannel(ctx, channelID, messageID)
	if err != nil {
		return err
	}
	if targetUserID != actor.ID() {
		if actor.User == nil {
			return apperr.MissingPermission(permissions.Name(permissions.ManageMessages))
		}
		if err := s.perms.Require(ctx, actor.User.ID, ch, permissions.ManageMessages); err != nil {
			return err
		}
	}
	if !msg.Reactions.HasReactor(emoji, targetUserID) {
		return apperr.New(apperr.KindNotFound)
	}

	if len(msg.Reactions.Reactors(emoji)) == 1 {
		// the key disappears with its last reactor
		s.bus.Publish(channelID, events.MessageRemoveReaction{ID: messageID, ChannelID: channelID, EmojiID: emoji})
		if err := s.store.ClearReaction(ctx, messageID, emoji); err != nil {
			return apperr.Internal(err)
		}
		return nil
	}
	s.bus.Publish(channelID, events.MessageUnreact{ID: messageID, ChannelID: channelID, UserID: targetUserID, EmojiID: emoji})
	if err := s.store.RemoveReaction(ctx, messageID, emoji, targetUserID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ClearReaction drops one emoji key outright. The broadcast and write
// go out regardless of whether anyone had reacted.
func (s *Service) ClearReaction(ctx context.Context, channelID, messageID, emoji string, actor Actor) error {
	ch, err := s.store.FetchChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if _, err := s.fetchInChannel(ctx, channelID, messageID); err != nil {
		return err
	}
	if actor.User == nil {
		return apperr.MissingPermission(permissions.Name(permissions.ManageMessages))
	}
	if err := s.perms.Require(ctx, actor.User.ID, ch, permissions.ManageMessages); err != nil {
		return err
	}

	s.bus.Publish(channelID, events.MessageRemoveReaction{ID: messageID, ChannelID: channelID, EmojiID: emoji})
	if err := s.store.ClearReaction(ctx, messageID, emoji); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ClearReactions wipes every reaction key from a message.
func (s *Service) ClearReactions(ctx context.Context, channelID, messageID string, actor Actor) error {
	ch, err := s.store.FetchChannel(ctx, channelID)
	if err != nil {
		return err
	}
	msg, err := s.fetchInChannel(ctx, channelID, messageID)
	if err != nil {
		return err
	}
	if actor.User == nil {
		return apperr.MissingPermission(permissions.Name(permissions.ManageMessages))
	}
	if err := s.perms.Require(ctx, actor.User.ID, ch, permissions.ManageMessages); err != nil {
		return err
	}

	for _, key := range msg.Reactions.Keys() {
		s.bus.Publish(channelID, events.MessageRemoveReaction{ID: messageID, ChannelID: channelID, EmojiID: key})
	}
	if err := s.store.ClearReactions(ctx, messageID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
