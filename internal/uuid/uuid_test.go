package uuid

import (
	"testing"
)

func TestNew(t *testing.T) {
	id1 := New()
	id2 := New()

	if len(id1) == 0 {
		t.Error("UUID should not be empty")
	}

	if id1 == id2 {
		t.Error("UUIDs should be unique")
	}

	if !Valid(id1) {
		t.Errorf("New returned an unparseable UUID %q", id1)
	}
	if Valid("local-1700000000000-abc123") {
		t.Error("local identifiers must not validate as UUIDs")
	}
}
