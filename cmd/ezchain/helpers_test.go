package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRandomHashFormat(t *testing.T) {
	h := randomHash()
	if !strings.HasPrefix(h, "0x") {
		t.Fatalf("expected 0x prefix, got %q", h)
	}
	if len(h) != 2+32 {
		t.Fatalf("expected 34 chars, got %d (%q)", len(h), h)
	}
}

func TestRandomHashIsUnpredictable(t *testing.T) {
	if randomHash() == randomHash() {
		t.Fatal("expected two calls to produce different hashes")
	}
}

func TestPrintRawJSONRejectsInvalid(t *testing.T) {
	if err := printRawJSON(json.RawMessage("not json")); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}
