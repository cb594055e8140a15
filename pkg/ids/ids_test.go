package ids

import (
	"sort"
	"testing"
)

func TestNewMonotonic(t *testing.T) {
	var got []string
	for i := 0; i < 100; i++ {
		got = append(got, New())
	}
	if !sort.StringsAreSorted(got) {
		t.Fatalf("ULIDs generated out of order")
	}
	seen := map[string]bool{}
	for _, id := range got {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		if !IsULID(id) {
			t.Fatalf("generated id %q does not parse as ULID", id)
		}
	}
}

func TestIsULID(t *testing.T) {
	if IsULID("thumbsup") {
		t.Fatalf("unicode emoji name classified as ULID")
	}
	if IsULID("") {
		t.Fatalf("empty string classified as ULID")
	}
	if IsULID("uuuuuuuuuuuuuuuuuuuuuuuuuu") {
		t.Fatalf("26 chars of invalid alphabet classified as ULID")
	}
	if !IsULID(New()) {
		t.Fatalf("fresh ULID not recognised")
	}
}

func TestTimestamp(t *testing.T) {
	id := New()
	ts, err := Timestamp(id)
	if err != nil {
		t.Fatalf("Timestamp(%s): %v", id, err)
	}
	if ts.IsZero() {
		t.Fatalf("zero timestamp for %s", id)
	}
	if _, err := Timestamp("not-a-ulid"); err == nil {
		t.Fatalf("expected parse error")
	}
}
