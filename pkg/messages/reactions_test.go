package messages

import (
	"context"
	"fmt"
	"testing"

	"parley/pkg/apperr"
	"parley/pkg/events"
	"parley/pkg/models"
	"parley/pkg/permissions"
)

func TestAddReactionBroadcastsBeforeWrite(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := f.seedMessage(chDM, uBob, "react to me")

	busAtWrite := -1
	f.store.onReactionWrite = func() { busAtWrite = len(f.bus.published) }

	if err := f.svc.AddReaction(ctx, chDM, msg.ID, "🙂", uAlice); err != nil {
		t.Fatalf("add: %v", err)
	}
	if busAtWrite != 1 {
		t.Fatalf("broadcast must precede the write, saw %d events at write time", busAtWrite)
	}
	ev, ok := f.bus.published[0].Event.(events.MessageReact)
	if !ok || ev.ID != msg.ID || ev.UserID != uAlice || ev.EmojiID != "🙂" {
		t.Fatalf("react event wrong: %+v", f.bus.published[0].Event)
	}
	if !f.store.messages[msg.ID].Reactions.HasReactor("🙂", uAlice) {
		t.Fatal("reaction not persisted")
	}
}

func TestAddReactionValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := f.seedMessage(chDM, uBob, "x")

	err := f.svc.AddReaction(ctx, chDM, msg.ID, "", uAlice)
	wantKind(t, err, apperr.KindInvalidOperation)

	err = f.svc.AddReaction(ctx, chDM, "01RRRRRRRRRRRRRRRRRRRRRRRR", "🙂", uAlice)
	wantKind(t, err, apperr.KindNotFound)

	f.oracle.grants[uAlice] &^= permissions.React
	err = f.svc.AddReaction(ctx, chDM, msg.ID, "🙂", uAlice)
	wantKind(t, err, apperr.KindMissingPermission)
}

func TestAddReactionDistinctEmojiCap(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := f.seedMessage(chDM, uBob, "popular")
	msg.Reactions = models.NewReactions()
	for i := 0; i < 20; i++ {
		msg.Reactions.Add(fmt.Sprintf("e%d", i), uBob)
	}

	err := f.svc.AddReaction(ctx, chDM, msg.ID, "e99", uAlice)
	wantKind(t, err, apperr.KindInvalidOperation)

	// piling onto an existing key is always allowed
	if err := f.svc.AddReaction(ctx, chDM, msg.ID, "e0", uAlice); err != nil {
		t.Fatalf("existing key add: %v", err)
	}
}

func TestAddReactionRestrictedWhitelist(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := f.seedMessage(chDM, uBob, "poll")
	msg.Interactions = &models.Interactions{Reactions: []string{"👍", "👎"}, RestrictReactions: true}

	err := f.svc.AddReaction(ctx, chDM, msg.ID, "🔥", uAlice)
	wantKind(t, err, apperr.KindInvalidOperation)

	if err := f.svc.AddReaction(ctx, chDM, msg.ID, "👍", uAlice); err != nil {
		t.Fatalf("whitelisted add: %v", err)
	}
}

func TestAddReactionCustomEmoji(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := f.seedMessage(chDM, uBob, "x")

	// ulid-shaped ids must resolve to a stored emoji
	err := f.svc.AddReaction(ctx, chDM, msg.ID, idGone, uAlice)
	wantKind(t, err, apperr.KindInvalidOperation)

	if err := f.svc.AddReaction(ctx, chDM, msg.ID, idEmoji, uAlice); err != nil {
		t.Fatalf("custom emoji add: %v", err)
	}
}

func TestRemoveReaction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := f.seedMessage(chDM, uAlice, "x")
	msg.Reactions = models.NewReactions()
	msg.Reactions.Add("🙂", uBob)
	msg.Reactions.Add("🙂", uCara)

	// not a reactor
	err := f.svc.RemoveReaction(ctx, chDM, msg.ID, "🙂", uAlice, f.actorUser(uAlice))
	wantKind(t, err, apperr.KindNotFound)

	// removing someone else's reaction is moderation
	err = f.svc.RemoveReaction(ctx, chDM, msg.ID, "🙂", uCara, f.actorUser(uAlice))
	wantKind(t, err, apperr.KindMissingPermission)

	// self-removal with another reactor left keeps the key
	if err := f.svc.RemoveReaction(ctx, chDM, msg.ID, "🙂", uBob, f.actorUser(uBob)); err != nil {
		t.Fatalf("self removal: %v", err)
	}
	ev, ok := f.bus.published[0].Event.(events.MessageUnreact)
	if !ok || ev.UserID != uBob {
		t.Fatalf("want MessageUnreact, got %+v", f.bus.published[0].Event)
	}
	if !f.store.messages[msg.ID].Reactions.Has("🙂") {
		t.Fatal("key should survive while reactors remain")
	}

	// the last reactor takes the whole key with them
	if err := f.svc.RemoveReaction(ctx, chDM, msg.ID, "🙂", uCara, f.actorUser(uCara)); err != nil {
		t.Fatalf("last removal: %v", err)
	}
	last := f.bus.published[len(f.bus.published)-1].Event
	if _, ok := last.(events.MessageRemoveReaction); !ok {
		t.Fatalf("want MessageRemoveReaction, got %T", last)
	}
	if f.store.messages[msg.ID].Reactions.Has("🙂") {
		t.Fatal("empty key should be dropped")
	}
}

func TestRemoveReactionByModerator(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := f.seedMessage(chDM, uAlice, "x")
	msg.Reactions = models.NewReactions()
	msg.Reactions.Add("🙂", uBob)

	f.oracle.grants[uAlice] |= permissions.ManageMessages
	if err := f.svc.RemoveReaction(ctx, chDM, msg.ID, "🙂", uBob, f.actorUser(uAlice)); err != nil {
		t.Fatalf("moderator removal: %v", err)
	}
	if f.store.messages[msg.ID].Reactions.Has("🙂") {
		t.Fatal("reaction should be gone")
	}
}

func TestClearReactionUnconditional(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := f.seedMessage(chDM, uAlice, "x")

	err := f.svc.ClearReaction(ctx, chDM, msg.ID, "🙂", f.actorUser(uAlice))
	wantKind(t, err, apperr.KindMissingPermission)

	f.oracle.grants[uAlice] |= permissions.ManageMessages
	// no one ever reacted with this emoji; the clear still goes out
	if err := f.svc.ClearReaction(ctx, chDM, msg.ID, "🙂", f.actorUser(uAlice)); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(f.bus.published) != 1 {
		t.Fatalf("want 1 event, got %d", len(f.bus.published))
	}
	if _, ok := f.bus.published[0].Event.(events.MessageRemoveReaction); !ok {
		t.Fatalf("want MessageRemoveReaction, got %T", f.bus.published[0].Event)
	}
	if len(f.store.reactionOps) != 1 || f.store.reactionOps[0] != "clearkey:🙂" {
		t.Fatalf("store not told: %v", f.store.reactionOps)
	}
}

func TestClearReactions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := f.seedMessage(chDM, uAlice, "x")
	msg.Reactions = models.NewReactions()
	msg.Reactions.Add("🙂", uBob)
	msg.Reactions.Add("🔥", uCara)

	err := f.svc.ClearReactions(ctx, chDM, msg.ID, f.actorUser(uBob))
	wantKind(t, err, apperr.KindMissingPermission)

	f.oracle.grants[uBob] |= permissions.ManageMessages
	if err := f.svc.ClearReactions(ctx, chDM, msg.ID, f.actorUser(uBob)); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	removes := 0
	for _, p := range f.bus.published {
		if _, ok := p.Event.(events.MessageRemoveReaction); ok {
			removes++
		}
	}
	if removes != 2 {
		t.Fatalf("want one removal event per key, got %d", removes)
	}
	if f.store.messages[msg.ID].Reactions != nil {
		t.Fatal("reactions should be wiped")
	}
}
