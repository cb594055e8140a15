package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/cockroachdb/pebble"

	"parley/pkg/apperr"
	"parley/pkg/logger"
	"parley/pkg/models"
)

// Store is a pebble-backed record store. All values are JSON documents;
// secondary indexes are plain keys with empty values.
type Store struct {
	db   *pebble.DB
	path string

	// stripes serialize read-modify-write cycles per record key so
	// concurrent edits and reaction updates don't lose writes.
	stripes [64]sync.Mutex
}

// Open opens (or creates) the pebble database at path.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	logger.Info("pebble_opened", "path", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Ready reports whether the database handle is open.
func (s *Store) Ready() bool { return s != nil && s.db != nil }

func (s *Store) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.stripes[h.Sum32()%uint32(len(s.stripes))]
}

func (s *Store) putJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// getJSON loads key into out. A missing key maps to a NotFound app error.
func (s *Store) getJSON(key []byte, out any) error {
	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return apperr.New(apperr.KindNotFound)
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	defer closer.Close()
	if err := json.Unmarshal(val, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

// InsertMessage writes a message record and its channel index entry.
func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" || msg.Channel == "" {
		return fmt.Errorf("insert message: missing id or channel")
	}
	if err := s.putJSON(messageKey(msg.ID), msg); err != nil {
		logger.Error("insert_message_failed", "message", msg.ID, "error", err)
		return err
	}
	if err := s.db.Set(channelMsgKey(msg.Channel, msg.ID), nil, pebble.Sync); err != nil {
		logger.Error("index_message_failed", "message", msg.ID, "channel", msg.Channel, "error", err)
		return fmt.Errorf("index message: %w", err)
	}
	logger.Debug("message_saved", "message", msg.ID, "channel", msg.Channel)
	return nil
}

// FetchMessage loads one message by id.
func (s *Store) FetchMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := s.getJSON(messageKey(id), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// FetchMessagesByID loads the messages that exist among ids, preserving
// input order. Missing ids are skipped.
func (s *Store) FetchMessagesByID(ctx context.Context, ids []string) ([]models.Message, error) {
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		var msg models.Message
		err := s.getJSON(messageKey(id), &msg)
		if apperr.IsKind(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// UpdateMessage applies a partial edit and field removals to a stored
// message under the record's write lock.
func (s *Store) UpdateMessage(ctx context.Context, id string, partial models.PartialMessage, remove []models.MessageField) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	msg, err := s.FetchMessage(ctx, id)
	if err != nil {
		return err
	}
	msg.Apply(partial, remove)
	if err := s.putJSON(messageKey(id), msg); err != nil {
		logger.Error("update_message_failed", "message", id, "error", err)
		return err
	}
	return nil
}

// AppendMessage appends embeds to a stored message.
func (s *Store) AppendMessage(ctx context.Context, id string, payload models.AppendPayload) error {
	if len(payload.Embeds) == 0 {
		return nil
	}
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	msg, err := s.FetchMessage(ctx, id)
	if err != nil {
		return err
	}
	msg.Embeds = append(msg.Embeds, payload.Embeds...)
	if err := s.putJSON(messageKey(id), msg); err != nil {
		logger.Error("append_message_failed", "message", id, "error", err)
		return err
	}
	return nil
}

// DeleteMessage removes a message record and its index entry.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	msg, err := s.FetchMessage(ctx, id)
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(messageKey(id), nil); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if err := batch.Delete(channelMsgKey(msg.Channel, id), nil); err != nil {
		return fmt.Errorf("delete message index: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("delete_message_failed", "message", id, "error", err)
		return fmt.Errorf("commit delete: %w", err)
	}
	logger.Debug("message_deleted", "message", id, "channel", msg.Channel)
	return nil
}

// DeleteMessages removes a set of messages from one channel in a single
// batch. Ids not present are ignored.
func (s *Store) DeleteMessages(ctx context.Context, channelID string, ids []string) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, id := range ids {
		if err := batch.Delete(messageKey(id), nil); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		if err := batch.Delete(channelMsgKey(channelID, id), nil); err != nil {
			return fmt.Errorf("delete message index: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("bulk_delete_failed", "channel", channelID, "count", len(ids), "error", err)
		return fmt.Errorf("commit bulk delete: %w", err)
	}
	logger.Debug("messages_deleted", "channel", channelID, "count", len(ids))
	return nil
}

// ListOptions bound a channel history scan. Before and After are
// exclusive message ids; Limit defaults to 50 and caps at 100.
type ListOptions struct {
	Limit     int
	Before    string
	After     string
	Ascending bool
}

// ListMessages scans a channel's index in id (creation) order.
func (s *Store) ListMessages(ctx context.Context, channelID string, opts ListOptions) ([]models.Message, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	lower := channelMsgPrefix(channelID)
	upper := prefixUpperBound(lower)
	if opts.After != "" {
		lower = append(channelMsgKey(channelID, opts.After), 0x00)
	}
	if opts.Before != "" {
		upper = channelMsgKey(channelID, opts.Before)
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("channel scan: %w", err)
	}
	defer iter.Close()

	ids := make([]string, 0, limit)
	if opts.Ascending {
		for ok := iter.First(); ok && len(ids) < limit; ok = iter.Next() {
			ids = append(ids, channelMsgID(iter.Key(), channelID))
		}
	} else {
		for ok := iter.Last(); ok && len(ids) < limit; ok = iter.Prev() {
			ids = append(ids, channelMsgID(iter.Key(), channelID))
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("channel scan: %w", err)
	}
	return s.FetchMessagesByID(ctx, ids)
}

// AddReaction records userID under the emoji key, creating the key if
// new. Duplicate reactors are a no-op.
func (s *Store) AddReaction(ctx context.Context, id, emoji, userID string) error {
	return s.mutateMessage(ctx, id, func(msg *models.Message) {
		if msg.Reactions == nil {
			msg.Reactions = models.NewReactions()
		}
		msg.Reactions.Add(emoji, userID)
	})
}

// RemoveReaction removes userID from the emoji key. The key disappears
// with its last reactor; an empty reaction set is stored as absent.
func (s *Store) RemoveReaction(ctx context.Context, id, emoji, userID string) error {
	return s.mutateMessage(ctx, id, func(msg *models.Message) {
		if msg.Reactions == nil {
			return
		}
		msg.Reactions.Remove(emoji, userID)
		if msg.Reactions.IsEmpty() {
			msg.Reactions = nil
		}
	})
}

// ClearReaction drops an emoji key and all its reactors.
func (s *Store) ClearReaction(ctx context.Context, id, emoji string) error {
	return s.mutateMessage(ctx, id, func(msg *models.Message) {
		if msg.Reactions == nil {
			return
		}
		msg.Reactions.Clear(emoji)
		if msg.Reactions.IsEmpty() {
			msg.Reactions = nil
		}
	})
}

// ClearReactions drops every reaction on the message.
func (s *Store) ClearReactions(ctx context.Context, id string) error {
	return s.mutateMessage(ctx, id, func(msg *models.Message) {
		msg.Reactions = nil
	})
}

func (s *Store) mutateMessage(ctx context.Context, id string, fn func(*models.Message)) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	msg, err := s.FetchMessage(ctx, id)
	if err != nil {
		return err
	}
	fn(msg)
	if err := s.putJSON(messageKey(id), msg); err != nil {
		logger.Error("mutate_message_failed", "message", id, "error", err)
		return err
	}
	return nil
}
