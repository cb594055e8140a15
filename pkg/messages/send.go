package messages

import (
	"context"

	"parley/pkg/apperr"
	"parley/pkg/config"
	"parley/pkg/events"
	"parley/pkg/idempotency"
	"parley/pkg/ids"
	"parley/pkg/logger"
	"parley/pkg/mentions"
	"parley/pkg/models"
	"parley/pkg/permissions"
	"parley/pkg/tasks"
)

// Reply is a sender's intent to thread onto an earlier message.
type Reply struct {
	ID      string `json:"id"`
	Mention bool   `json:"mention"`
	// FailIfNotExists controls whether a dangling target fails the
	// send. Absent means fail.
	FailIfNotExists *bool `json:"fail_if_not_exists,omitempty"`
}

func (r Reply) failIfNotExists() bool {
	return r.FailIfNotExists == nil || *r.FailIfNotExists
}

// SendMessageData is the client-supplied body of a send.
type SendMessageData struct {
	Content      string                 `json:"content,omitempty"`
	Attachments  []string               `json:"attachments,omitempty"`
	Replies      []Reply                `json:"replies,omitempty"`
	Embeds       []models.SendableEmbed `json:"embeds,omitempty"`
	Masquerade   *models.Masquerade     `json:"masquerade,omitempty"`
	Interactions *models.Interactions   `json:"interactions,omitempty"`
	Flags        *uint32                `json:"flags,omitempty"`
}

// SendOptions carries the server-side context of a send.
type SendOptions struct {
	Actor          Actor
	IdempotencyKey string
	AllowMentions  bool
	GenerateEmbeds bool
}

// Send runs the full pipeline and queues push notifications for the
// resulting mentions.
func (s *Service) Send(ctx context.Context, channelID string, data SendMessageData, opts SendOptions) (*models.Message, error) {
	return s.send(ctx, channelID, data, opts, true)
}

// SendWithoutNotifications runs the same pipeline but never queues a
// push fan-out.
func (s *Service) SendWithoutNotifications(ctx context.Context, channelID string, data SendMessageData, opts SendOptions) (*models.Message, error) {
	return s.send(ctx, channelID, data, opts, false)
}

func (s *Service) send(ctx context.Context, channelID string, data SendMessageData, opts SendOptions, withPush bool) (*models.Message, error) {
	ch, err := s.store.FetchChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSend(ctx, ch, data, opts.Actor); err != nil {
		return nil, err
	}

	snap := s.snap()
	msg, err := s.create(ctx, ch, data, opts, snap)
	if err != nil {
		return nil, err
	}
	s.fanout(ch, msg, opts, snap, withPush)
	return msg, nil
}

func (s *Service) authorizeSend(ctx context.Context, ch *models.Channel, data SendMessageData, actor Actor) error {
	if actor.IsWebhook() {
		// a webhook only exists inside the channel it was created for
		if actor.Webhook.Channel != ch.ID {
			return apperr.New(apperr.KindNotFound)
		}
		return nil
	}
	if actor.User == nil {
		return apperr.MissingPermission(permissions.Name(permissions.SendMessage))
	}
	if err := s.perms.Require(ctx, actor.User.ID, ch, permissions.SendMessage); err != nil {
		return err
	}
	if data.Masquerade != nil {
		if err := s.perms.Require(ctx, actor.User.ID, ch, permissions.Masquerade); err != nil {
			return err
		}
	}
	return nil
}

// create validates, resolves and persists a message. Stage order is
// load-bearing: earlier failures must not consume attachments, and the
// idempotency key is claimed before any per-request side effect.
func (s *Service) create(ctx context.Context, ch *models.Channel, data SendMessageData, opts SendOptions, snap config.Snapshot) (*models.Message, error) {
	limits := snap.Limits

	if err := validateSum(data.Content, data.Embeds, limits.MessageLength); err != nil {
		return nil, err
	}

	key := idempotency.Key(opts.IdempotencyKey)
	if err := s.guard.Consume(key); err != nil {
		return nil, err
	}

	if data.Content == "" && len(data.Attachments) == 0 && len(data.Embeds) == 0 {
		return nil, apperr.New(apperr.KindEmptyMessage)
	}

	var raw uint32
	if data.Flags != nil {
		raw = *data.Flags
	}
	if err := models.ValidateRawFlags(raw); err != nil {
		return nil, err
	}
	requested := models.MessageFlags(raw)

	suppressed := requested.Has(models.FlagSuppressNotifications)
	everyone := requested.Has(models.FlagMentionsEveryone) && opts.AllowMentions
	online := requested.Has(models.FlagMentionsOnline) && opts.AllowMentions

	if (everyone || online) && !opts.Actor.IsBot() {
		return nil, apperr.New(apperr.KindIsNotBot)
	}
	if everyone && online {
		return nil, apperr.New(apperr.KindInvalidFlagValue)
	}

	if data.Interactions != nil {
		if err := data.Interactions.Validate(); err != nil {
			return nil, err
		}
	}

	msg := &models.Message{
		ID:         ids.New(),
		Channel:    ch.ID,
		Author:     opts.Actor.ID(),
		Masquerade: data.Masquerade,
	}
	if opts.Actor.IsWebhook() {
		msg.Webhook = opts.Actor.Webhook.Stamp()
	}
	if data.Interactions != nil && !data.Interactions.IsDefault() {
		msg.Interactions = data.Interactions
	}

	var userMentions, roleMentions []string
	if opts.AllowMentions {
		parsed := mentions.Parse(data.Content)
		userMentions = parsed.Users
		roleMentions = parsed.Roles
		everyone = everyone || parsed.Everyone
		online = online || parsed.Online
	}

	if len(roleMentions) > 0 && ch.InServer() {
		server, err := s.store.FetchServer(ctx, ch.Server)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		kept := roleMentions[:0]
		for _, rid := range roleMentions {
			if server.HasRole(rid) {
				kept = append(kept, rid)
			}
		}
		roleMentions = kept
	}

	if !snap.Features.MassMentionsEnabled {
		everyone, online = false, false
		roleMentions = nil
	}

	if everyone || online || len(roleMentions) > 0 {
		switch {
		case opts.Actor.IsWebhook():
			// integrations inherit the reach of their channel
		case opts.Actor.User == nil:
			return nil, apperr.New(apperr.KindInvalidProperty)
		default:
			if everyone || online {
				if err := s.perms.Require(ctx, opts.Actor.User.ID, ch, permissions.MentionEveryone); err != nil {
					return nil, err
				}
			}
			if len(roleMentions) > 0 {
				if err := s.perms.Require(ctx, opts.Actor.User.ID, ch, permissions.MentionRoles); err != nil {
					return nil, err
				}
			}
		}
	}

	if len(data.Replies) > 0 {
		if len(data.Replies) > limits.MessageReplies {
			return nil, apperr.TooManyReplies(limits.MessageReplies)
		}
		var replyIDs []string
		for _, reply := range data.Replies {
			target, err := s.store.FetchMessage(ctx, reply.ID)
			if err != nil {
				if apperr.IsKind(err, apperr.KindNotFound) && !reply.failIfNotExists() {
					continue
				}
				return nil, err
			}
			if target.Channel != ch.ID {
				if !reply.failIfNotExists() {
					continue
				}
				return nil, apperr.New(apperr.KindNotFound)
			}
			replyIDs = appendUnique(replyIDs, target.ID)
			if reply.Mention && opts.AllowMentions && !target.IsSystem() {
				userMentions = appendUnique(userMentions, target.Author)
			}
		}
		msg.Replies = replyIDs
	}

	switch ch.Kind {
	case models.ChannelDirectMessage, models.ChannelGroup:
		userMentions = retain(userMentions, ch.Recipients)
		roleMentions = nil
	case models.ChannelSavedMessages:
		userMentions, roleMentions = nil, nil
		everyone, online = false, false
	case models.ChannelText, models.ChannelVoice:
		if len(userMentions) > 0 {
			members, err := s.store.FetchMembers(ctx, ch.Server, userMentions)
			if err != nil {
				return nil, apperr.Internal(err)
			}
			inServer := make([]string, 0, len(members))
			for _, m := range members {
				inServer = append(inServer, m.ID.User)
			}
			userMentions = retain(userMentions, inServer)
			if len(userMentions) > 0 {
				visible, err := s.perms.FilterVisible(ctx, ch, userMentions)
				if err != nil {
					return nil, apperr.Internal(err)
				}
				userMentions = visible
			}
		}
	}

	if len(userMentions) > 0 {
		msg.Mentions = userMentions
	}
	if len(roleMentions) > 0 {
		msg.RoleMentions = roleMentions
	}

	var flags models.MessageFlags
	flags.Set(models.FlagSuppressNotifications, suppressed)
	flags.Set(models.FlagMentionsEveryone, everyone)
	flags.Set(models.FlagMentionsOnline, online)
	if flags != 0 {
		msg.Flags = &flags
	}

	if len(data.Attachments) > 0 {
		if len(data.Attachments) > limits.MessageAttachments {
			return nil, apperr.TooManyAttachments(limits.MessageAttachments)
		}
		for _, id := range data.Attachments {
			f, err := s.store.UseAttachment(ctx, id, msg.ID, msg.Author)
			if err != nil {
				return nil, err
			}
			msg.Attachments = append(msg.Attachments, *f)
		}
	}

	if len(data.Embeds) > 0 {
		if len(data.Embeds) > limits.MessageEmbeds {
			return nil, apperr.TooManyEmbeds(limits.MessageEmbeds)
		}
		for _, se := range data.Embeds {
			embed, err := s.buildTextEmbed(ctx, se, msg)
			if err != nil {
				return nil, err
			}
			msg.Embeds = append(msg.Embeds, embed)
		}
	}

	msg.Content = data.Content
	msg.Nonce = key

	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, apperr.Internal(err)
	}
	return msg, nil
}

func (s *Service) buildTextEmbed(ctx context.Context, se models.SendableEmbed, msg *models.Message) (models.Embed, error) {
	if err := se.Validate(); err != nil {
		return models.Embed{}, err
	}
	embed := models.Embed{
		Type:        models.EmbedText,
		IconURL:     se.IconURL,
		URL:         se.URL,
		Title:       se.Title,
		Description: se.Description,
		Colour:      se.Colour,
	}
	if se.Media != "" {
		f, err := s.store.UseAttachment(ctx, se.Media, msg.ID, msg.Author)
		if err != nil {
			return models.Embed{}, err
		}
		embed.Media = f
	}
	return embed, nil
}

// fanout broadcasts the fresh message and spins off deferred work.
// Queue rejections are tolerated: the message is already durable.
func (s *Service) fanout(ch *models.Channel, msg *models.Message, opts SendOptions, snap config.Snapshot, withPush bool) {
	s.bus.Publish(ch.ID, events.Message{Message: *msg})

	err := s.queue.EnqueueLastMessage(tasks.LastMessageTask{
		Channel:    ch.ID,
		Message:    msg.ID,
		MarkActive: ch.Kind == models.ChannelDirectMessage,
	})
	if err != nil {
		logger.Warn("last_message_enqueue_failed", "channel", ch.ID, "message", msg.ID, "error", err)
	}

	ackAuthor := ""
	if !opts.Actor.IsWebhook() && opts.Actor.User != nil {
		ackAuthor = opts.Actor.User.ID
	}
	err = s.queue.EnqueueAck(tasks.AckTask{
		Channel:  ch.ID,
		Message:  msg.ID,
		Author:   ackAuthor,
		Mentions: msg.Mentions,
	})
	if err != nil {
		logger.Warn("ack_enqueue_failed", "channel", ch.ID, "message", msg.ID, "error", err)
	}

	if opts.GenerateEmbeds && snap.Features.GenerateEmbeds && msg.Content != "" {
		if err := s.queue.EnqueueEmbeds(tasks.EmbedTask{Channel: ch.ID, Message: msg.ID, Content: msg.Content}); err != nil {
			logger.Warn("embed_enqueue_failed", "channel", ch.ID, "message", msg.ID, "error", err)
		}
	}

	if withPush {
		s.queuePush(ch, msg)
	}
}

// queuePush hands the message to the notifier when anything asked to
// be notified.
func (s *Service) queuePush(ch *models.Channel, msg *models.Message) {
	if msg.HasSuppressedNotifications() {
		return
	}
	online := msg.Flags != nil && msg.Flags.Has(models.FlagMentionsOnline)
	if len(msg.Mentions) == 0 && !msg.MentionsMassRecipients() && !online {
		return
	}

	var recipients []string
	switch ch.Kind {
	case models.ChannelDirectMessage, models.ChannelGroup:
		for _, uid := range ch.Recipients {
			if uid != msg.Author {
				recipients = append(recipients, uid)
			}
		}
	case models.ChannelText:
		recipients = msg.Mentions
	}
	if len(recipients) == 0 {
		return
	}
	if err := s.queue.EnqueuePush(tasks.PushTask{Message: *msg, Recipients: recipients}); err != nil {
		logger.Warn("push_enqueue_failed", "channel", ch.ID, "message", msg.ID, "error", err)
	}
}

// SendSystemMessage persists a platform-authored message. System sends
// skip validation, permissions and notifications entirely.
func (s *Service) SendSystemMessage(ctx context.Context, channelID string, sm models.SystemMessage) (*models.Message, error) {
	ch, err := s.store.FetchChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	msg := models.SystemIntoMessage(sm, ch.ID)
	if err := s.store.InsertMessage(ctx, &msg); err != nil {
		return nil, apperr.Internal(err)
	}
	s.bus.Publish(ch.ID, events.Message{Message: msg})
	err = s.queue.EnqueueLastMessage(tasks.LastMessageTask{
		Channel:    ch.ID,
		Message:    msg.ID,
		MarkActive: ch.Kind == models.ChannelDirectMessage,
	})
	if err != nil {
		logger.Warn("last_message_enqueue_failed", "channel", ch.ID, "message", msg.ID, "error", err)
	}
	return &msg, nil
}

// validateSum rejects payloads whose visible text exceeds the length
// budget, counting content and embed descriptions together in bytes.
func validateSum(content string, embeds []models.SendableEmbed, max int) error {
	total := len(content)
	for _, e := range embeds {
		total += len(e.Description)
	}
	if total > max {
		return apperr.New(apperr.KindPayloadTooLarge)
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, have := range list {
		if have == v {
			return list
		}
	}
	return append(list, v)
}

// retain filters list down to the members of keep, preserving order.
func retain(list, keep []string) []string {
	if len(list) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keep))
	for _, v := range keep {
		set[v] = struct{}{}
	}
	out := list[:0]
	for _, v := range list {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
