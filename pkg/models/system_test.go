package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// every variant, for round-trip and exhaustiveness checks
var systemVariants = []SystemMessage{
	SystemText{Content: "maintenance at noon"},
	SystemUserAdded{ID: "u1", By: "u2"},
	SystemUserRemove{ID: "u1", By: "u2"},
	SystemUserJoined{ID: "u1"},
	SystemUserLeft{ID: "u1"},
	SystemUserKicked{ID: "u1"},
	SystemUserBanned{ID: "u1"},
	SystemChannelRenamed{Name: "general", By: "u2"},
	SystemChannelDescriptionChanged{By: "u2"},
	SystemChannelIconChanged{By: "u2"},
	SystemChannelOwnershipChanged{From: "u1", To: "u2"},
	SystemMessagePinned{ID: "m1", By: "u2"},
	SystemMessageUnpinned{ID: "m1", By: "u2"},
}

func TestSystemEnvelopeRoundTrip(t *testing.T) {
	for _, variant := range systemVariants {
		b, err := json.Marshal(SystemEnvelope{Message: variant})
		if err != nil {
			t.Fatalf("marshal %T: %v", variant, err)
		}
		if !strings.Contains(string(b), `"type"`) {
			t.Fatalf("marshal %T lacks type tag: %s", variant, b)
		}
		var back SystemEnvelope
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("unmarshal %T: %v", variant, err)
		}
		if !reflect.DeepEqual(back.Message, variant) {
			t.Fatalf("round trip %T: got %#v", variant, back.Message)
		}
	}
}

// The variant set is closed: decoding an unknown tag must fail rather
// than degrade into a partial value.
func TestSystemEnvelopeUnknownTag(t *testing.T) {
	var e SystemEnvelope
	err := json.Unmarshal([]byte(`{"type":"server_exploded","id":"u1"}`), &e)
	if err == nil {
		t.Fatalf("unknown tag accepted")
	}
}

func TestSystemUserIDs(t *testing.T) {
	got := SystemChannelOwnershipChanged{From: "a", To: "b"}.UserIDs()
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("ownership UserIDs = %v", got)
	}
	if ids := (SystemText{Content: "x"}).UserIDs(); len(ids) != 0 {
		t.Fatalf("text UserIDs = %v", ids)
	}
}

func TestSystemIntoMessage(t *testing.T) {
	msg := SystemIntoMessage(SystemUserJoined{ID: "u1"}, "ch1")
	if msg.Author != SystemAuthorID {
		t.Fatalf("author = %s", msg.Author)
	}
	if !msg.IsSystem() {
		t.Fatalf("IsSystem false for system message")
	}
	if msg.Channel != "ch1" || msg.ID == "" || msg.System == nil {
		t.Fatalf("incomplete message: %+v", msg)
	}
}

func TestSystemTagsAllRegistered(t *testing.T) {
	seen := map[string]bool{}
	for _, variant := range systemVariants {
		tag := systemTag(variant)
		if tag == "" {
			t.Fatalf("variant %T has no tag", variant)
		}
		if seen[tag] {
			t.Fatalf("duplicate tag %s", tag)
		}
		seen[tag] = true
	}
	if len(seen) != 13 {
		t.Fatalf("expected 13 variants, saw %d", len(seen))
	}
}
