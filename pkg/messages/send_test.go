package messages

import (
	"context"
	"errors"
	"strings"
	"testing"

	"parley/pkg/apperr"
	"parley/pkg/models"
	"parley/pkg/permissions"
)

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("want %s, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("want kind %s, got %s (%v)", kind, got, err)
	}
}

func sendOpts(actor Actor) SendOptions {
	return SendOptions{Actor: actor, AllowMentions: true}
}

func TestSendPersistsAndFansOut(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	opts := sendOpts(f.actorUser(uAlice))
	opts.IdempotencyKey = "nonce-1"
	opts.GenerateEmbeds = true

	msg, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "hello"}, opts)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(msg.ID) != 26 {
		t.Fatalf("message id should be a ulid, got %q", msg.ID)
	}
	if msg.Author != uAlice || msg.Content != "hello" || msg.Nonce != "nonce-1" {
		t.Fatalf("unexpected message fields: %+v", msg)
	}
	if _, ok := f.store.messages[msg.ID]; !ok {
		t.Fatal("message not persisted")
	}

	if len(f.bus.published) != 1 {
		t.Fatalf("want 1 event, got %d", len(f.bus.published))
	}
	if f.bus.published[0].Topic != chDM || f.bus.published[0].Event.Type() != "Message" {
		t.Fatalf("unexpected event: %+v", f.bus.published[0])
	}

	if len(f.queue.lastMessages) != 1 {
		t.Fatalf("want 1 last-message task, got %d", len(f.queue.lastMessages))
	}
	lm := f.queue.lastMessages[0]
	if lm.Channel != chDM || lm.Message != msg.ID || !lm.MarkActive {
		t.Fatalf("unexpected last-message task: %+v", lm)
	}

	if len(f.queue.acks) != 1 || f.queue.acks[0].Author != uAlice {
		t.Fatalf("unexpected ack tasks: %+v", f.queue.acks)
	}
	if len(f.queue.embeds) != 1 || f.queue.embeds[0].Content != "hello" {
		t.Fatalf("unexpected embed tasks: %+v", f.queue.embeds)
	}
	if len(f.queue.pushes) != 0 {
		t.Fatalf("no mentions, no push: %+v", f.queue.pushes)
	}
}

func TestSendGroupDoesNotMarkActive(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Send(context.Background(), chGroup, SendMessageData{Content: "hi"}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if f.queue.lastMessages[0].MarkActive {
		t.Fatal("group sends must not re-activate the channel")
	}
}

func TestSendEmbedTaskGating(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// caller did not ask for embeds
	if _, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "https://a.example"}, sendOpts(f.actorUser(uAlice))); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(f.queue.embeds) != 0 {
		t.Fatal("embed task queued without opt-in")
	}

	// feature disabled wins over the opt-in
	f.cfg.Features.GenerateEmbeds = false
	opts := sendOpts(f.actorUser(uAlice))
	opts.GenerateEmbeds = true
	if _, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "https://a.example"}, opts); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(f.queue.embeds) != 0 {
		t.Fatal("embed task queued while feature disabled")
	}

	// attachment-only messages have no text to scan
	f.cfg.Features.GenerateEmbeds = true
	f.addFile("file-a")
	if _, err := f.svc.Send(ctx, chDM, SendMessageData{Attachments: []string{"file-a"}}, opts); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(f.queue.embeds) != 0 {
		t.Fatal("embed task queued for empty content")
	}
}

func TestSendChannelNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Send(context.Background(), "01QQQQQQQQQQQQQQQQQQQQQQQQ", SendMessageData{Content: "x"}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindNotFound)
}

func TestSendAuthorization(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// webhook bound to another channel
	_, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "x"}, sendOpts(f.actorWebhook()))
	wantKind(t, err, apperr.KindNotFound)

	// no identity at all
	_, err = f.svc.Send(ctx, chDM, SendMessageData{Content: "x"}, sendOpts(Actor{}))
	wantKind(t, err, apperr.KindMissingPermission)

	// send capability revoked
	f.oracle.grants[uAlice] = 0
	_, err = f.svc.Send(ctx, chDM, SendMessageData{Content: "x"}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindMissingPermission)
}

func TestSendMasqueradeNeedsCapability(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	data := SendMessageData{Content: "x", Masquerade: &models.Masquerade{Name: "ghost"}}

	f.oracle.grants[uAlice] = permissions.SendMessage
	_, err := f.svc.Send(ctx, chDM, data, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindMissingPermission)

	f.oracle.grants[uAlice] = permissions.SendMessage | permissions.Masquerade
	msg, err := f.svc.Send(ctx, chDM, data, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Masquerade == nil || msg.Masquerade.Name != "ghost" {
		t.Fatalf("masquerade not stamped: %+v", msg.Masquerade)
	}
}

func TestSendLengthRejectedBeforeKeyConsumed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	opts := sendOpts(f.actorUser(uAlice))
	opts.IdempotencyKey = "retry-key"

	long := strings.Repeat("a", 2001)
	_, err := f.svc.Send(ctx, chDM, SendMessageData{Content: long}, opts)
	wantKind(t, err, apperr.KindPayloadTooLarge)

	// the oversize attempt must not have burned the key
	if _, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "ok"}, opts); err != nil {
		t.Fatalf("retry after length rejection: %v", err)
	}
}

func TestSendLengthCountsEmbedDescriptions(t *testing.T) {
	f := newFixture()
	data := SendMessageData{
		Content: strings.Repeat("a", 1500),
		Embeds:  []models.SendableEmbed{{Description: strings.Repeat("b", 600)}},
	}
	_, err := f.svc.Send(context.Background(), chDM, data, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindPayloadTooLarge)
}

func TestSendDuplicateRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	opts := sendOpts(f.actorUser(uAlice))
	opts.IdempotencyKey = "once"

	if _, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "first"}, opts); err != nil {
		t.Fatalf("send: %v", err)
	}
	_, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "second"}, opts)
	wantKind(t, err, apperr.KindDuplicateRequest)
}

func TestSendEmptyMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	target := f.seedMessage(chDM, uBob, "earlier")

	opts := sendOpts(f.actorUser(uAlice))
	opts.IdempotencyKey = "empty-key"

	// replies alone do not make a message non-empty
	_, err := f.svc.Send(ctx, chDM, SendMessageData{Replies: []Reply{{ID: target.ID}}}, opts)
	wantKind(t, err, apperr.KindEmptyMessage)

	// the key was claimed before the emptiness check, so a retry with
	// real content reports the duplicate rather than sending
	_, err = f.svc.Send(ctx, chDM, SendMessageData{Content: "real"}, opts)
	wantKind(t, err, apperr.KindDuplicateRequest)
}

func TestSendFlagValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	flag := func(v uint32) *uint32 { return &v }

	// out-of-range raw value
	_, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "x", Flags: flag(8)}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindInvalidProperty)

	// mass-mention flags are bot-only
	_, err = f.svc.Send(ctx, chDM, SendMessageData{Content: "x", Flags: flag(2)}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindIsNotBot)

	// everyone and online are mutually exclusive
	f.oracle.grants[uBot] |= permissions.MentionEveryone
	_, err = f.svc.Send(ctx, chDM, SendMessageData{Content: "x", Flags: flag(2 | 4)}, sendOpts(f.actorUser(uBot)))
	wantKind(t, err, apperr.KindInvalidFlagValue)
}

func TestSendFlagsWashedWithoutAllowMentions(t *testing.T) {
	f := newFixture()
	flag := uint32(2)
	opts := SendOptions{Actor: f.actorUser(uAlice), AllowMentions: false}

	msg, err := f.svc.Send(context.Background(), chDM, SendMessageData{Content: "x", Flags: &flag}, opts)
	if err != nil {
		t.Fatalf("washed flags should not trip the bot check: %v", err)
	}
	if msg.Flags != nil {
		t.Fatalf("washed flags should not persist: %v", *msg.Flags)
	}
}

func TestSendSuppressFlagPersists(t *testing.T) {
	f := newFixture()
	flag := uint32(1)
	msg, err := f.svc.Send(context.Background(), chDM, SendMessageData{Content: "x", Flags: &flag}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Flags == nil || !msg.Flags.Has(models.FlagSuppressNotifications) {
		t.Fatal("suppress flag lost")
	}
}

func TestSendInteractions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Send(ctx, chDM, SendMessageData{
		Content:      "x",
		Interactions: &models.Interactions{RestrictReactions: true},
	}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindInvalidProperty)

	// default policies are dropped, meaningful ones stored
	msg, err := f.svc.Send(ctx, chDM, SendMessageData{
		Content:      "x",
		Interactions: &models.Interactions{},
	}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Interactions != nil {
		t.Fatal("default interactions should be omitted")
	}

	msg, err = f.svc.Send(ctx, chDM, SendMessageData{
		Content:      "x",
		Interactions: &models.Interactions{Reactions: []string{"🙂"}, RestrictReactions: true},
	}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Interactions == nil || !msg.Interactions.RestrictReactions {
		t.Fatal("meaningful interactions dropped")
	}
}

func TestSendMentionNarrowingDM(t *testing.T) {
	f := newFixture()
	content := "hey <@" + uBob + "> <@" + uCara + "> <%" + idRole + ">"

	msg, err := f.svc.Send(context.Background(), chDM, SendMessageData{Content: content}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(msg.Mentions) != 1 || msg.Mentions[0] != uBob {
		t.Fatalf("mentions should narrow to recipients, got %v", msg.Mentions)
	}
	if msg.RoleMentions != nil {
		t.Fatalf("role mentions are server-only, got %v", msg.RoleMentions)
	}
	if len(f.queue.pushes) != 1 {
		t.Fatalf("want 1 push, got %d", len(f.queue.pushes))
	}
	p := f.queue.pushes[0]
	if len(p.Recipients) != 1 || p.Recipients[0] != uBob {
		t.Fatalf("push recipients: %v", p.Recipients)
	}
	if len(f.queue.acks) != 1 || len(f.queue.acks[0].Mentions) != 1 {
		t.Fatalf("ack should carry the final mentions: %+v", f.queue.acks)
	}
}

func TestSendMentionsIgnoredWithoutAllowMentions(t *testing.T) {
	f := newFixture()
	content := "hey <@" + uBob + "> @everyone"
	opts := SendOptions{Actor: f.actorUser(uAlice), AllowMentions: false}

	msg, err := f.svc.Send(context.Background(), chDM, SendMessageData{Content: content}, opts)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Mentions != nil || msg.Flags != nil {
		t.Fatalf("mentions parsed despite AllowMentions=false: %v %v", msg.Mentions, msg.Flags)
	}
	if len(f.queue.pushes) != 0 {
		t.Fatal("nothing to push")
	}
}

func TestSendSavedMessagesNarrowing(t *testing.T) {
	f := newFixture()
	f.oracle.grants[uAlice] |= permissions.MentionEveryone

	content := "note to self <@" + uBob + "> @everyone"
	msg, err := f.svc.Send(context.Background(), chSaved, SendMessageData{Content: content}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Mentions != nil || msg.RoleMentions != nil || msg.Flags != nil {
		t.Fatalf("saved messages never mention: %v %v %v", msg.Mentions, msg.RoleMentions, msg.Flags)
	}
	if len(f.queue.pushes) != 0 {
		t.Fatal("saved messages never push")
	}
}

func TestSendServerChannelNarrowing(t *testing.T) {
	f := newFixture()
	f.oracle.hidden[uBot] = true

	// bob is a member and visible, cara is no member, the bot account
	// is a member but cannot see the channel
	content := "<@" + uBob + "> <@" + uCara + "> <@" + uBot + ">"
	msg, err := f.svc.Send(context.Background(), chText, SendMessageData{Content: content}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(msg.Mentions) != 1 || msg.Mentions[0] != uBob {
		t.Fatalf("server narrowing kept %v", msg.Mentions)
	}
	if len(f.queue.pushes) != 1 || len(f.queue.pushes[0].Recipients) != 1 || f.queue.pushes[0].Recipients[0] != uBob {
		t.Fatalf("text-channel push targets mentions: %+v", f.queue.pushes)
	}
}

func TestSendServerLookupFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.oracle.grants[uAlice] |= permissions.MentionRoles

	f.store.serverErr = errors.New("pebble: corrupt")
	_, err := f.svc.Send(ctx, chText, SendMessageData{Content: "<%" + idRole + ">"}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindInternalError)
	f.store.serverErr = nil

	f.store.membersErr = errors.New("pebble: corrupt")
	_, err = f.svc.Send(ctx, chText, SendMessageData{Content: "<@" + uBob + ">"}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindInternalError)
	f.store.membersErr = nil

	f.oracle.filterErr = errors.New("oracle down")
	_, err = f.svc.Send(ctx, chText, SendMessageData{Content: "<@" + uBob + ">"}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindInternalError)
}

func TestSendRolePruneAndCapability(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	content := "<%" + idRole + "> <%" + idGone + ">"

	// surviving role mentions demand the capability
	_, err := f.svc.Send(ctx, chText, SendMessageData{Content: content}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindMissingPermission)

	f.oracle.grants[uAlice] |= permissions.MentionRoles
	msg, err := f.svc.Send(ctx, chText, SendMessageData{Content: content}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(msg.RoleMentions) != 1 || msg.RoleMentions[0] != idRole {
		t.Fatalf("unknown roles should be pruned, got %v", msg.RoleMentions)
	}
}

func TestSendEveryoneLiteralNeedsCapability(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// the literal form skips the bot gate but not the capability
	_, err := f.svc.Send(ctx, chText, SendMessageData{Content: "@everyone ship it"}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindMissingPermission)

	f.oracle.grants[uAlice] |= permissions.MentionEveryone
	msg, err := f.svc.Send(ctx, chText, SendMessageData{Content: "@everyone ship it"}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Flags == nil || !msg.Flags.Has(models.FlagMentionsEveryone) {
		t.Fatal("everyone flag not recorded")
	}
}

func TestSendMassMentionKillSwitch(t *testing.T) {
	f := newFixture()
	f.cfg.Features.MassMentionsEnabled = false
	flag := uint32(2)

	// the bot gate still ran, but with the feature off no capability is
	// demanded and nothing mass-flagged survives
	msg, err := f.svc.Send(context.Background(), chText, SendMessageData{
		Content: "@everyone <%" + idRole + ">",
		Flags:   &flag,
	}, sendOpts(f.actorUser(uBot)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Flags != nil || msg.RoleMentions != nil {
		t.Fatalf("kill switch left mass signals: %v %v", msg.Flags, msg.RoleMentions)
	}
	if len(f.queue.pushes) != 0 {
		t.Fatal("kill switch should also silence push")
	}
}

func TestSendWebhookStampsAndBypasses(t *testing.T) {
	f := newFixture()
	msg, err := f.svc.Send(context.Background(), chText, SendMessageData{Content: "@everyone release"}, sendOpts(f.actorWebhook()))
	if err != nil {
		t.Fatalf("webhooks inherit channel reach: %v", err)
	}
	if msg.Author != idHook {
		t.Fatalf("author should be the webhook id, got %q", msg.Author)
	}
	if msg.Webhook == nil || msg.Webhook.Name != "courier" {
		t.Fatalf("webhook stamp missing: %+v", msg.Webhook)
	}
	if msg.Flags == nil || !msg.Flags.Has(models.FlagMentionsEveryone) {
		t.Fatal("everyone flag not recorded")
	}
	if len(f.queue.acks) != 1 || f.queue.acks[0].Author != "" {
		t.Fatalf("webhook sends carry no ack author: %+v", f.queue.acks)
	}
}

func TestSendReplies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t.Run("limit fails before lookups", func(t *testing.T) {
		replies := make([]Reply, 6)
		for i := range replies {
			replies[i] = Reply{ID: newSeedID(i)}
		}
		_, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "x", Replies: replies}, sendOpts(f.actorUser(uAlice)))
		wantKind(t, err, apperr.KindTooManyReplies)
		var ae *apperr.Error
		if !errors.As(err, &ae) || ae.Max != 5 {
			t.Fatalf("limit payload missing: %v", err)
		}
		if f.store.messageFetches != 0 {
			t.Fatalf("reply targets fetched before the limit check: %d", f.store.messageFetches)
		}
	})

	t.Run("dangling target", func(t *testing.T) {
		dangling := "01RRRRRRRRRRRRRRRRRRRRRRRR"
		_, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "x", Replies: []Reply{{ID: dangling}}}, sendOpts(f.actorUser(uAlice)))
		wantKind(t, err, apperr.KindNotFound)

		tolerate := false
		msg, err := f.svc.Send(ctx, chDM, SendMessageData{
			Content: "x",
			Replies: []Reply{{ID: dangling, FailIfNotExists: &tolerate}},
		}, sendOpts(f.actorUser(uAlice)))
		if err != nil {
			t.Fatalf("tolerant reply: %v", err)
		}
		if msg.Replies != nil {
			t.Fatalf("dangling reply recorded: %v", msg.Replies)
		}
	})

	t.Run("cross-channel target", func(t *testing.T) {
		elsewhere := f.seedMessage(chGroup, uBob, "other room")
		_, err := f.svc.Send(ctx, chDM, SendMessageData{Content: "x", Replies: []Reply{{ID: elsewhere.ID}}}, sendOpts(f.actorUser(uAlice)))
		wantKind(t, err, apperr.KindNotFound)

		tolerate := false
		msg, err := f.svc.Send(ctx, chDM, SendMessageData{
			Content: "x",
			Replies: []Reply{{ID: elsewhere.ID, FailIfNotExists: &tolerate}},
		}, sendOpts(f.actorUser(uAlice)))
		if err != nil {
			t.Fatalf("tolerant reply: %v", err)
		}
		if msg.Replies != nil {
			t.Fatalf("cross-channel reply recorded: %v", msg.Replies)
		}
	})

	t.Run("mention adds the target author", func(t *testing.T) {
		target := f.seedMessage(chDM, uBob, "quoted")
		msg, err := f.svc.Send(ctx, chDM, SendMessageData{
			Content: "x",
			Replies: []Reply{{ID: target.ID, Mention: true}, {ID: target.ID, Mention: true}},
		}, sendOpts(f.actorUser(uAlice)))
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if len(msg.Replies) != 1 || msg.Replies[0] != target.ID {
			t.Fatalf("replies should dedupe: %v", msg.Replies)
		}
		if len(msg.Mentions) != 1 || msg.Mentions[0] != uBob {
			t.Fatalf("reply mention lost: %v", msg.Mentions)
		}
	})

	t.Run("system targets are never mentioned", func(t *testing.T) {
		sys := f.seedMessage(chDM, models.SystemAuthorID, "user joined")
		msg, err := f.svc.Send(ctx, chDM, SendMessageData{
			Content: "x",
			Replies: []Reply{{ID: sys.ID, Mention: true}},
		}, sendOpts(f.actorUser(uAlice)))
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if msg.Mentions != nil {
			t.Fatalf("system author mentioned: %v", msg.Mentions)
		}
		if len(msg.Replies) != 1 {
			t.Fatalf("reply itself should stand: %v", msg.Replies)
		}
	})
}

func TestSendAttachments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ids := make([]string, 6)
	for i := range ids {
		ids[i] = "file-" + string(rune('a'+i))
		f.addFile(ids[i])
	}
	_, err := f.svc.Send(ctx, chDM, SendMessageData{Attachments: ids}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindTooManyAttachments)

	_, err = f.svc.Send(ctx, chDM, SendMessageData{Attachments: []string{"missing"}}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindNotFound)

	msg, err := f.svc.Send(ctx, chDM, SendMessageData{Attachments: ids[:2]}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(msg.Attachments) != 2 {
		t.Fatalf("want 2 attachments, got %d", len(msg.Attachments))
	}
	if f.store.files["file-a"].MessageID != msg.ID {
		t.Fatal("attachment not bound to the message")
	}
	if f.store.files["file-a"].UploaderID != uAlice {
		t.Fatal("uploader not recorded")
	}

	// a consumed upload cannot be attached again
	_, err = f.svc.Send(ctx, chDM, SendMessageData{Attachments: []string{"file-a"}}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindNotFound)
}

func TestSendEmbeds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	over := make([]models.SendableEmbed, 11)
	for i := range over {
		over[i] = models.SendableEmbed{Title: "t"}
	}
	_, err := f.svc.Send(ctx, chDM, SendMessageData{Embeds: over}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindTooManyEmbeds)

	_, err = f.svc.Send(ctx, chDM, SendMessageData{
		Embeds: []models.SendableEmbed{{Title: strings.Repeat("t", 101)}},
	}, sendOpts(f.actorUser(uAlice)))
	wantKind(t, err, apperr.KindFailedValidation)

	f.addFile("art")
	msg, err := f.svc.Send(ctx, chDM, SendMessageData{
		Embeds: []models.SendableEmbed{{Title: "release notes", Description: "v2", Media: "art"}},
	}, sendOpts(f.actorUser(uAlice)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(msg.Embeds) != 1 || msg.Embeds[0].Type != models.EmbedText {
		t.Fatalf("embed shape: %+v", msg.Embeds)
	}
	if msg.Embeds[0].Media == nil || msg.Embeds[0].Media.ID != "art" {
		t.Fatal("embed media not bound")
	}
	if f.store.files["art"].MessageID != msg.ID {
		t.Fatal("media upload not consumed")
	}
}

func TestPushGating(t *testing.T) {
	ctx := context.Background()
	mentionBob := "<@" + uBob + ">"

	t.Run("suppress flag silences", func(t *testing.T) {
		f := newFixture()
		flag := uint32(1)
		_, err := f.svc.Send(ctx, chDM, SendMessageData{Content: mentionBob, Flags: &flag}, sendOpts(f.actorUser(uAlice)))
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if len(f.queue.pushes) != 0 {
			t.Fatalf("suppressed message pushed: %+v", f.queue.pushes)
		}
	})

	t.Run("SendWithoutNotifications silences", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.SendWithoutNotifications(ctx, chDM, SendMessageData{Content: mentionBob}, sendOpts(f.actorUser(uAlice)))
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if len(f.queue.pushes) != 0 {
			t.Fatal("push queued despite opt-out")
		}
		if len(f.queue.acks) != 1 || len(f.queue.lastMessages) != 1 {
			t.Fatal("other fan-out must still run")
		}
	})

	t.Run("online flag reaches group recipients", func(t *testing.T) {
		f := newFixture()
		f.store.channels[chGroup].Recipients = []string{uAlice, uBob, uCara, uBot}
		f.oracle.grants[uBot] |= permissions.MentionEveryone
		flag := uint32(4)
		_, err := f.svc.Send(ctx, chGroup, SendMessageData{Content: "standup", Flags: &flag}, sendOpts(f.actorUser(uBot)))
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if len(f.queue.pushes) != 1 {
			t.Fatalf("want 1 push, got %d", len(f.queue.pushes))
		}
		got := f.queue.pushes[0].Recipients
		if len(got) != 3 {
			t.Fatalf("author must be excluded: %v", got)
		}
		for _, uid := range got {
			if uid == uBot {
				t.Fatalf("author pushed to itself: %v", got)
			}
		}
	})

	t.Run("everyone flag without mentions has no text-channel audience", func(t *testing.T) {
		f := newFixture()
		f.oracle.grants[uBot] |= permissions.MentionEveryone
		flag := uint32(2)
		_, err := f.svc.Send(ctx, chText, SendMessageData{Content: "ping", Flags: &flag}, sendOpts(f.actorUser(uBot)))
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if len(f.queue.pushes) != 0 {
			t.Fatalf("no explicit audience, no push: %+v", f.queue.pushes)
		}
	})
}

func TestSendSystemMessage(t *testing.T) {
	f := newFixture()
	msg, err := f.svc.SendSystemMessage(context.Background(), chDM, models.SystemUserJoined{ID: uBob})
	if err != nil {
		t.Fatalf("system send: %v", err)
	}
	if msg.Author != models.SystemAuthorID || msg.System == nil {
		t.Fatalf("system envelope missing: %+v", msg)
	}
	if _, ok := f.store.messages[msg.ID]; !ok {
		t.Fatal("system message not persisted")
	}
	if len(f.bus.published) != 1 || f.bus.published[0].Event.Type() != "Message" {
		t.Fatalf("system message not broadcast: %+v", f.bus.published)
	}
	if len(f.queue.lastMessages) != 1 || !f.queue.lastMessages[0].MarkActive {
		t.Fatalf("system sends still move the channel pointer: %+v", f.queue.lastMessages)
	}
	if len(f.queue.acks) != 0 || len(f.queue.pushes) != 0 || len(f.queue.embeds) != 0 {
		t.Fatal("system sends never ack, push or unfurl")
	}
}
