package util

import (
	"strings"
	"testing"
)

func TestRandomKey(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		key := RandomKey(32)
		if len(key) != 32 {
			t.Fatalf("expected 32 characters, got %d", len(key))
		}
		for _, r := range key {
			if !strings.ContainsRune(keyAlphabet, r) {
				t.Fatalf("unexpected character %q in %s", r, key)
			}
		}
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key %s", key)
		}
		seen[key] = struct{}{}
	}
}

func TestNewRequestID(t *testing.T) {
	if got := NewRequestID(); len(got) != 16 {
		t.Fatalf("expected 16 hex characters, got %q", got)
	}
}
