package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Reactions maps emoji identifiers to the users who reacted with them.
// Emoji keys keep their insertion order across storage round-trips;
// reactor lists keep insertion order too, though no consumer relies on
// it.
type Reactions struct {
	keys []string
	sets map[string][]string
}

func NewReactions() *Reactions {
	return &Reactions{sets: make(map[string][]string)}
}

// Len returns the distinct emoji count.
func (r *Reactions) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Has reports whether the emoji key exists.
func (r *Reactions) Has(emoji string) bool {
	if r == nil {
		return false
	}
	_, ok := r.sets[emoji]
	return ok
}

// HasReactor reports whether the user is among the emoji's reactors.
func (r *Reactions) HasReactor(emoji, userID string) bool {
	if r == nil {
		return false
	}
	for _, u := range r.sets[emoji] {
		if u == userID {
			return true
		}
	}
	return false
}

// Reactors returns the users behind an emoji key.
func (r *Reactions) Reactors(emoji string) []string {
	if r == nil {
		return nil
	}
	return r.sets[emoji]
}

// Keys returns emoji identifiers in insertion order.
func (r *Reactions) Keys() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.keys...)
}

// Add records a reactor. Adding a user twice is a no-op.
func (r *Reactions) Add(emoji, userID string) {
	if r.sets == nil {
		r.sets = make(map[string][]string)
	}
	if existing, ok := r.sets[emoji]; ok {
		for _, u := range existing {
			if u == userID {
				return
			}
		}
		r.sets[emoji] = append(existing, userID)
		return
	}
	r.keys = append(r.keys, emoji)
	r.sets[emoji] = []string{userID}
}

// Remove drops one reactor; when the last reactor goes, the emoji key
// goes with it. Reports whether anything changed.
func (r *Reactions) Remove(emoji, userID string) bool {
	if r == nil {
		return false
	}
	set, ok := r.sets[emoji]
	if !ok {
		return false
	}
	for i, u := range set {
		if u == userID {
			set = append(set[:i], set[i+1:]...)
			if len(set) == 0 {
				r.Clear(emoji)
			} else {
				r.sets[emoji] = set
			}
			return true
		}
	}
	return false
}

// Clear removes the whole emoji key regardless of reactors.
func (r *Reactions) Clear(emoji string) {
	if r == nil {
		return
	}
	if _, ok := r.sets[emoji]; !ok {
		return
	}
	delete(r.sets, emoji)
	for i, k := range r.keys {
		if k == emoji {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// IsEmpty reports whether no emoji keys remain. Storage drops empty
// reaction maps entirely.
func (r *Reactions) IsEmpty() bool { return r.Len() == 0 }

// MarshalJSON writes a JSON object with keys in insertion order.
func (r *Reactions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.sets[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object form, preserving key order.
func (r *Reactions) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("reactions: expected object, got %v", tok)
	}
	r.keys = nil
	r.sets = make(map[string][]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		emoji, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("reactions: non-string key %v", keyTok)
		}
		var users []string
		if err := dec.Decode(&users); err != nil {
			return err
		}
		r.keys = append(r.keys, emoji)
		r.sets[emoji] = users
	}
	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
