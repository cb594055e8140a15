package messages

import (
	"context"
	"time"

	"parley/pkg/apperr"
	"parley/pkg/config"
	"parley/pkg/events"
	"parley/pkg/idempotency"
	"parley/pkg/models"
	"parley/pkg/permissions"
	"parley/pkg/tasks"
)

// Fixed ULIDs keep mention tags parseable in test content.
const (
	uAlice   = "01AAAAAAAAAAAAAAAAAAAAAAAA"
	uBob     = "01BBBBBBBBBBBBBBBBBBBBBBBB"
	uCara    = "01CCCCCCCCCCCCCCCCCCCCCCCC"
	uBot     = "01DDDDDDDDDDDDDDDDDDDDDDDD"
	uOwner   = "01ZZZZZZZZZZZZZZZZZZZZZZZZ"
	idRole   = "01EEEEEEEEEEEEEEEEEEEEEEEE"
	idGone   = "01XXXXXXXXXXXXXXXXXXXXXXXX"
	idEmoji  = "01FFFFFFFFFFFFFFFFFFFFFFFF"
	idHook   = "01GGGGGGGGGGGGGGGGGGGGGGGG"
	chDM     = "01HDMHDMHDMHDMHDMHDMHDMHDM"
	chGroup  = "01HGRPHGRPHGRPHGRPHGRPHGRP"
	chSaved  = "01HSAVHSAVHSAVHSAVHSAVHSAV"
	chText   = "01HTXTHTXTHTXTHTXTHTXTHTXT"
	srvMain  = "01HSRVHSRVHSRVHSRVHSRVHSRV"
)

type updateCall struct {
	id      string
	partial models.PartialMessage
	remove  []models.MessageField
}

type fakeStore struct {
	channels map[string]*models.Channel
	servers  map[string]*models.Server
	members  map[string]*models.Member
	emojis   map[string]*models.Emoji
	files    map[string]*models.File
	messages map[string]*models.Message

	inserted         []string
	updates          []updateCall
	appends          []models.AppendPayload
	deleted          []string
	bulkDeleted      [][]string
	markedDeleted    []string
	reactionOps    []string
	messageFetches int
	serverErr      error
	membersErr     error
	// onReactionWrite observes the moment a reaction mutation hits
	// storage, for broadcast-ordering assertions.
	onReactionWrite func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		channels: map[string]*models.Channel{
			chDM:    {ID: chDM, Kind: models.ChannelDirectMessage, Recipients: []string{uAlice, uBob}},
			chGroup: {ID: chGroup, Kind: models.ChannelGroup, User: uAlice, Recipients: []string{uAlice, uBob, uCara}},
			chSaved: {ID: chSaved, Kind: models.ChannelSavedMessages, User: uAlice},
			chText:  {ID: chText, Kind: models.ChannelText, Server: srvMain},
		},
		servers: map[string]*models.Server{
			srvMain: {
				ID:    srvMain,
				Owner: uOwner,
				Roles: map[string]models.Role{idRole: {Name: "crew", Rank: 1}},
			},
		},
		members: map[string]*models.Member{
			srvMain + ":" + uAlice: {ID: models.MemberID{Server: srvMain, User: uAlice}},
			srvMain + ":" + uBob:   {ID: models.MemberID{Server: srvMain, User: uBob}},
			srvMain + ":" + uBot:   {ID: models.MemberID{Server: srvMain, User: uBot}},
		},
		emojis:   map[string]*models.Emoji{idEmoji: {ID: idEmoji, Name: "blob", Creator: uAlice}},
		files:    make(map[string]*models.File),
		messages: make(map[string]*models.Message),
	}
}

func (f *fakeStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	cp := *msg
	f.messages[msg.ID] = &cp
	f.inserted = append(f.inserted, msg.ID)
	return nil
}

func (f *fakeStore) FetchMessage(ctx context.Context, id string) (*models.Message, error) {
	f.messageFetches++
	if m, ok := f.messages[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, apperr.New(apperr.KindNotFound)
}

func (f *fakeStore) FetchMessagesByID(ctx context.Context, ids []string) ([]models.Message, error) {
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := f.messages[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateMessage(ctx context.Context, id string, partial models.PartialMessage, remove []models.MessageField) error {
	m, ok := f.messages[id]
	if !ok {
		return apperr.New(apperr.KindNotFound)
	}
	m.Apply(partial, remove)
	f.updates = append(f.updates, updateCall{id: id, partial: partial, remove: remove})
	return nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, id string, payload models.AppendPayload) error {
	m, ok := f.messages[id]
	if !ok {
		return apperr.New(apperr.KindNotFound)
	}
	m.Embeds = append(m.Embeds, payload.Embeds...)
	f.appends = append(f.appends, payload)
	return nil
}

func (f *fakeStore) DeleteMessage(ctx context.Context, id string) error {
	delete(f.messages, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) DeleteMessages(ctx context.Context, channelID string, ids []string) error {
	for _, id := range ids {
		delete(f.messages, id)
	}
	f.bulkDeleted = append(f.bulkDeleted, ids)
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, channelID string, opts ListOptions) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.Channel == channelID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) AddReaction(ctx context.Context, id, emoji, userID string) error {
	if f.onReactionWrite != nil {
		f.onReactionWrite()
	}
	m, ok := f.messages[id]
	if !ok {
		return apperr.New(apperr.KindNotFound)
	}
	if m.Reactions == nil {
		m.Reactions = models.NewReactions()
	}
	m.Reactions.Add(emoji, userID)
	f.reactionOps = append(f.reactionOps, "add:"+emoji+":"+userID)
	return nil
}

func (f *fakeStore) RemoveReaction(ctx context.Context, id, emoji, userID string) error {
	if m, ok := f.messages[id]; ok && m.Reactions != nil {
		m.Reactions.Remove(emoji, userID)
	}
	f.reactionOps = append(f.reactionOps, "remove:"+emoji+":"+userID)
	return nil
}

func (f *fakeStore) ClearReaction(ctx context.Context, id, emoji string) error {
	if f.onReactionWrite != nil {
		f.onReactionWrite()
	}
	if m, ok := f.messages[id]; ok && m.Reactions != nil {
		m.Reactions.Clear(emoji)
	}
	f.reactionOps = append(f.reactionOps, "clearkey:"+emoji)
	return nil
}

func (f *fakeStore) ClearReactions(ctx context.Context, id string) error {
	if m, ok := f.messages[id]; ok {
		m.Reactions = nil
	}
	f.reactionOps = append(f.reactionOps, "clearall")
	return nil
}

func (f *fakeStore) FetchChannel(ctx context.Context, id string) (*models.Channel, error) {
	if ch, ok := f.channels[id]; ok {
		cp := *ch
		return &cp, nil
	}
	return nil, apperr.New(apperr.KindNotFound)
}

func (f *fakeStore) FetchServer(ctx context.Context, id string) (*models.Server, error) {
	if f.serverErr != nil {
		return nil, f.serverErr
	}
	if sv, ok := f.servers[id]; ok {
		return sv, nil
	}
	return nil, apperr.New(apperr.KindNotFound)
}

func (f *fakeStore) FetchMembers(ctx context.Context, serverID string, userIDs []string) ([]models.Member, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	out := make([]models.Member, 0, len(userIDs))
	for _, uid := range userIDs {
		if m, ok := f.members[serverID+":"+uid]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) FetchEmoji(ctx context.Context, id string) (*models.Emoji, error) {
	if e, ok := f.emojis[id]; ok {
		return e, nil
	}
	return nil, apperr.New(apperr.KindNotFound)
}

func (f *fakeStore) UseAttachment(ctx context.Context, id, messageID, uploaderID string) (*models.File, error) {
	file, ok := f.files[id]
	if !ok || file.Deleted || (file.MessageID != "" && file.MessageID != messageID) {
		return nil, apperr.New(apperr.KindNotFound)
	}
	file.MessageID = messageID
	file.UploaderID = uploaderID
	cp := *file
	return &cp, nil
}

func (f *fakeStore) MarkAttachmentsDeleted(ctx context.Context, ids []string) error {
	f.markedDeleted = append(f.markedDeleted, ids...)
	return nil
}

type fakeOracle struct {
	grants    map[string]uint64
	hidden    map[string]bool
	filterErr error
}

func newFakeOracle() *fakeOracle {
	base := permissions.SendMessage | permissions.React | permissions.Masquerade
	return &fakeOracle{
		grants: map[string]uint64{
			uAlice: base,
			uBob:   base,
			uCara:  base,
			uBot:   base,
			uOwner: permissions.All,
		},
		hidden: make(map[string]bool),
	}
}

func (o *fakeOracle) Require(ctx context.Context, userID string, ch *models.Channel, cap uint64) error {
	if o.grants[userID]&cap == 0 {
		return apperr.MissingPermission(permissions.Name(cap))
	}
	return nil
}

func (o *fakeOracle) FilterVisible(ctx context.Context, ch *models.Channel, userIDs []string) ([]string, error) {
	if o.filterErr != nil {
		return nil, o.filterErr
	}
	out := make([]string, 0, len(userIDs))
	for _, uid := range userIDs {
		if !o.hidden[uid] {
			out = append(out, uid)
		}
	}
	return out, nil
}

type recordingBus struct {
	published []events.Published
}

func (b *recordingBus) Publish(topic string, ev events.Event) {
	b.published = append(b.published, events.Published{Topic: topic, Event: ev})
}

func (b *recordingBus) typesSeen() []string {
	out := make([]string, 0, len(b.published))
	for _, p := range b.published {
		out = append(out, p.Event.Type())
	}
	return out
}

type recordingQueue struct {
	lastMessages []tasks.LastMessageTask
	acks         []tasks.AckTask
	embeds       []tasks.EmbedTask
	pushes       []tasks.PushTask
}

func (q *recordingQueue) EnqueueLastMessage(t tasks.LastMessageTask) error {
	q.lastMessages = append(q.lastMessages, t)
	return nil
}

func (q *recordingQueue) EnqueueAck(t tasks.AckTask) error {
	q.acks = append(q.acks, t)
	return nil
}

func (q *recordingQueue) EnqueueEmbeds(t tasks.EmbedTask) error {
	q.embeds = append(q.embeds, t)
	return nil
}

func (q *recordingQueue) EnqueuePush(t tasks.PushTask) error {
	q.pushes = append(q.pushes, t)
	return nil
}

type fixture struct {
	svc    *Service
	store  *fakeStore
	oracle *fakeOracle
	bus    *recordingBus
	queue  *recordingQueue
	cfg    *config.Config
}

func newFixture() *fixture {
	f := &fixture{
		store:  newFakeStore(),
		oracle: newFakeOracle(),
		bus:    &recordingBus{},
		queue:  &recordingQueue{},
		cfg:    config.Default(),
	}
	guard := idempotency.NewGuard(time.Minute)
	f.svc = NewService(f.store, f.oracle, f.bus, f.queue, guard, f.cfg.Snapshot)
	return f
}

func (f *fixture) actorUser(id string) Actor {
	switch id {
	case uBot:
		return Actor{User: &models.User{ID: uBot, Username: "beep", Bot: &models.BotInfo{Owner: uAlice}}}
	default:
		return Actor{User: &models.User{ID: id, Username: "user-" + id[:4]}}
	}
}

func (f *fixture) actorWebhook() Actor {
	return Actor{Webhook: &models.Webhook{ID: idHook, Name: "courier", Channel: chText}}
}

func (f *fixture) addFile(id string) {
	f.store.files[id] = &models.File{ID: id, Tag: "attachments", Filename: id + ".png"}
}

func (f *fixture) seedMessage(channelID, author, content string) *models.Message {
	msg := &models.Message{ID: newSeedID(len(f.store.messages)), Channel: channelID, Author: author, Content: content}
	f.store.messages[msg.ID] = msg
	return msg
}

// newSeedID makes a deterministic ULID-shaped id for seeded fixtures.
func newSeedID(n int) string {
	alphabet := []byte("0123456789ABCDEFGHJKMNPQRS")
	b := []byte("01MSGMSGMSGMSGMSGMSGMSGMS0")
	b[len(b)-1] = alphabet[n%len(alphabet)]
	return string(b)
}
