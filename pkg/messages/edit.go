package messages

import (
	"context"
	"time"

	"parley/pkg/apperr"
	"parley/pkg/events"
	"parley/pkg/models"
	"parley/pkg/permissions"
)

// EditMessageData is the client-supplied body of an edit.
type EditMessageData struct {
	Content *string `json:"content,omitempty"`
}

// fetchInChannel loads a message and verifies it belongs to channelID.
// A message reached through the wrong channel does not exist.
func (s *Service) fetchInChannel(ctx context.Context, channelID, messageID string) (*models.Message, error) {
	msg, err := s.store.FetchMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Channel != channelID {
		return nil, apperr.New(apperr.KindNotFound)
	}
	return msg, nil
}

// Update applies an author's edit and broadcasts the partial.
func (s *Service) Update(ctx context.Context, channelID, messageID string, data EditMessageData, actor Actor) (*models.Message, error) {
	msg, err := s.fetchInChannel(ctx, channelID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Author != actor.ID() {
		return nil, apperr.New(apperr.KindInvalidOperation)
	}

	limits := s.snap().Limits
	if data.Content != nil {
		if len(*data.Content) > limits.MessageLength {
			return nil, apperr.New(apperr.KindPayloadTooLarge)
		}
		if *data.Content == "" && len(msg.Attachments) == 0 && len(msg.Embeds) == 0 {
			return nil, apperr.New(apperr.KindEmptyMessage)
		}
	}

	now := time.Now().UTC()
	partial := models.PartialMessage{Content: data.Content, Edited: &now}
	if err := s.store.UpdateMessage(ctx, messageID, partial, nil); err != nil {
		return nil, apperr.Internal(err)
	}
	s.bus.Publish(channelID, events.MessageUpdate{ID: messageID, Channel: channelID, Data: partial})
	return s.store.FetchMessage(ctx, messageID)
}

// Append attaches late-resolved embeds and broadcasts them. The embed
// consumer drives this after link previews come back.
func (s *Service) Append(ctx context.Context, channelID, messageID string, embeds []models.Embed) error {
	if len(embeds) == 0 {
		return nil
	}
	if _, err := s.fetchInChannel(ctx, channelID, messageID); err != nil {
		return err
	}
	payload := models.AppendPayload{Embeds: embeds}
	if err := s.store.AppendMessage(ctx, messageID, payload); err != nil {
		return apperr.Internal(err)
	}
	s.bus.Publish(channelID, events.MessageAppend{ID: messageID, Channel: channelID, Append: payload})
	return nil
}

// Delete removes one message. Attachments are flagged for the retention
// sweep before the record goes away so a crash cannot orphan them.
func (s *Service) Delete(ctx context.Context, channelID, messageID string, actor Actor) error {
	msg, err := s.fetchInChannel(ctx, channelID, messageID)
	if err != nil {
		return err
	}
	if msg.Author != actor.ID() {
		if actor.User == nil {
			return apperr.MissingPermission(permissions.Name(permissions.ManageMessages))
		}
		ch, err := s.store.FetchChannel(ctx, channelID)
		if err != nil {
			return err
		}
		if err := s.perms.Require(ctx, actor.User.ID, ch, permissions.ManageMessages); err != nil {
			return err
		}
	}

	if atts := msg.AttachmentIDs(); len(atts) > 0 {
		if err := s.store.MarkAttachmentsDeleted(ctx, atts); err != nil {
			return apperr.Internal(err)
		}
	}
	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return apperr.Internal(err)
	}
	s.bus.Publish(channelID, events.MessageDelete{ID: messageID, Channel: channelID})
	return nil
}

// BulkDelete removes up to the configured cap of messages in one round.
// Ids that are missing or belong to another channel are silently
// skipped; one event announces the survivors actually deleted.
func (s *Service) BulkDelete(ctx context.Context, channelID string, messageIDs []string, actor Actor) error {
	if len(messageIDs) == 0 {
		return nil
	}
	limits := s.snap().Limits
	if len(messageIDs) > limits.BulkDeleteMessages {
		return &apperr.Error{Kind: apperr.KindInvalidOperation, Max: limits.BulkDeleteMessages}
	}
	if actor.User == nil {
		return apperr.MissingPermission(permissions.Name(permissions.ManageMessages))
	}
	ch, err := s.store.FetchChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.perms.Require(ctx, actor.User.ID, ch, permissions.ManageMessages); err != nil {
		return err
	}

	msgs, err := s.store.FetchMessagesByID(ctx, messageIDs)
	if err != nil {
		return apperr.Internal(err)
	}
	var doomed []string
	var attachments []string
	for i := range msgs {
		if msgs[i].Channel != channelID {
			continue
		}
		doomed = append(doomed, msgs[i].ID)
		attachments = append(attachments, msgs[i].AttachmentIDs()...)
	}
	if len(doomed) == 0 {
		return nil
	}

	if len(attachments) > 0 {
		if err := s.store.MarkAttachmentsDeleted(ctx, attachments); err != nil {
			return apperr.Internal(err)
		}
	}
	if err := s.store.DeleteMessages(ctx, channelID, doomed); err != nil {
		return apperr.Internal(err)
	}
	s.bus.Publish(channelID, events.BulkMessageDelete{Channel: channelID, IDs: doomed})
	return nil
}

// Pin marks a message pinned and records who did it.
func (s *Service) Pin(ctx context.Context, channelID, messageID string, actor Actor) error {
	return s.setPinned(ctx, channelID, messageID, actor, true)
}

// Unpin clears the pin.
func (s *Service) Unpin(ctx context.Context, channelID, messageID string, actor Actor) error {
	return s.setPinned(ctx, channelID, messageID, actor, false)
}

func (s *Service) setPinned(ctx context.Context, channelID, messageID string, actor Actor, pin bool) error {
	msg, err := s.fetchInChannel(ctx, channelID, messageID)
	if err != nil {
		return err
	}
	if actor.User == nil {
		return apperr.MissingPermission(permissions.Name(permissions.ManageMessages))
	}
	ch, err := s.store.FetchChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.perms.Require(ctx, actor.User.ID, ch, permissions.ManageMessages); err != nil {
		return err
	}

	pinned := msg.Pinned != nil && *msg.Pinned
	if pinned == pin {
		return apperr.New(apperr.KindInvalidOperation)
	}

	var partial models.PartialMessage
	var remove []models.MessageField
	var sys models.SystemMessage
	if pin {
		on := true
		partial.Pinned = &on
		sys = models.SystemMessagePinned{ID: messageID, By: actor.ID()}
	} else {
		remove = []models.MessageField{models.FieldPinned}
		sys = models.SystemMessageUnpinned{ID: messageID, By: actor.ID()}
	}
	if err := s.store.UpdateMessage(ctx, messageID, partial, remove); err != nil {
		return apperr.Internal(err)
	}
	s.bus.Publish(channelID, events.MessageUpdate{ID: messageID, Channel: channelID, Data: partial, Remove: remove})
	if _, err := s.SendSystemMessage(ctx, channelID, sys); err != nil {
		return err
	}
	return nil
}
