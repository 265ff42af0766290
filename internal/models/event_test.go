package models

import "testing"

func TestEventKindValid(t *testing.T) {
	for _, k := range []EventKind{EventGreeting, EventBackground, EventExport} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if EventKind("poem").Valid() {
		t.Error("unknown kind reported valid")
	}
}

func TestHashName(t *testing.T) {
	h := HashName("小明")
	if len(h) != 16 {
		t.Fatalf("len = %d, want 16", len(h))
	}
	if h != HashName("小明") {
		t.Error("hash is not deterministic")
	}
	if h == HashName("小红") {
		t.Error("different names share a hash")
	}
	if HashName("") != "" {
		t.Error("empty name should hash to empty")
	}
}
