package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestReactionsAddRemove(t *testing.T) {
	r := NewReactions()
	r.Add("👍", "u1")
	r.Add("👍", "u2")
	r.Add("👍", "u1") // duplicate, no-op
	r.Add("🎉", "u1")

	if r.Len() != 2 {
		t.Fatalf("distinct count = %d, want 2", r.Len())
	}
	if got := r.Reactors("👍"); !reflect.DeepEqual(got, []string{"u1", "u2"}) {
		t.Fatalf("reactors = %v", got)
	}
	if !r.HasReactor("🎉", "u1") || r.HasReactor("🎉", "u2") {
		t.Fatalf("HasReactor wrong")
	}

	if !r.Remove("👍", "u1") {
		t.Fatalf("remove existing reactor failed")
	}
	if r.Remove("👍", "u1") {
		t.Fatalf("second remove of same reactor succeeded")
	}
	if !r.Has("👍") {
		t.Fatalf("key dropped while reactors remain")
	}
	if !r.Remove("👍", "u2") || r.Has("👍") {
		t.Fatalf("last reactor removal must drop the key")
	}
	if !reflect.DeepEqual(r.Keys(), []string{"🎉"}) {
		t.Fatalf("keys = %v", r.Keys())
	}
}

func TestReactionsClear(t *testing.T) {
	r := NewReactions()
	r.Add("👍", "u1")
	r.Clear("👍")
	r.Clear("missing") // no-op
	if !r.IsEmpty() {
		t.Fatalf("clear left keys: %v", r.Keys())
	}
}

func TestReactionsJSONOrder(t *testing.T) {
	r := NewReactions()
	for _, emoji := range []string{"z", "a", "m"} {
		r.Add(emoji, "u1")
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"z":["u1"],"a":["u1"],"m":["u1"]}`
	if string(b) != want {
		t.Fatalf("marshal = %s, want %s", b, want)
	}

	var back Reactions
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back.Keys(), []string{"z", "a", "m"}) {
		t.Fatalf("key order lost: %v", back.Keys())
	}
	if !back.HasReactor("m", "u1") {
		t.Fatalf("reactor lost in round trip")
	}
}

func TestReactionsNilSafety(t *testing.T) {
	var r *Reactions
	if r.Len() != 0 || r.Has("x") || r.HasReactor("x", "u") || !r.IsEmpty() {
		t.Fatalf("nil receiver accessors must report empty")
	}
	if r.Remove("x", "u") {
		t.Fatalf("nil remove reported change")
	}
}
