package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// randomHash mints the tx/submit hash style tokens the prototype derived
// from secrets.token_hex: "0x" followed by 32 hex digits of real entropy.
func randomHash() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return "0x" + hex.EncodeToString(buf)
}

// printJSON renders v as indented JSON to stdout, matching the original
// CLI's json.dumps(..., indent=2) convention.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// printRawJSON re-indents an already-decoded JSON payload (typically a
// submission service response's "data" field) for display.
func printRawJSON(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return printJSON(v)
}
