package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateIdentityMintsOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "node.key")
	pubKeyFile := filepath.Join(dir, "node.pub")

	priv, pubPEM, err := loadOrCreateIdentity(keyFile, pubKeyFile)
	if err != nil {
		t.Fatalf("loadOrCreateIdentity: %v", err)
	}
	if priv == nil {
		t.Fatal("expected a non-nil private key")
	}
	if len(pubPEM) == 0 {
		t.Fatal("expected a non-empty public key PEM")
	}
	if _, err := os.Stat(keyFile); err != nil {
		t.Fatalf("expected key file to be written: %v", err)
	}
	if _, err := os.Stat(pubKeyFile); err != nil {
		t.Fatalf("expected pub key file to be written: %v", err)
	}
}

func TestLoadOrCreateIdentityReusesExistingKey(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "node.key")
	pubKeyFile := filepath.Join(dir, "node.pub")

	priv1, _, err := loadOrCreateIdentity(keyFile, pubKeyFile)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	priv2, _, err := loadOrCreateIdentity(keyFile, pubKeyFile)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if priv1.D.Cmp(priv2.D) != 0 {
		t.Fatal("expected second load to reuse the persisted key, got a different one")
	}
}

func TestLoadOrCreateIdentityEmptyKeyFileIsEphemeral(t *testing.T) {
	priv1, _, err := loadOrCreateIdentity("", "")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	priv2, _, err := loadOrCreateIdentity("", "")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if priv1.D.Cmp(priv2.D) == 0 {
		t.Fatal("expected two ephemeral identities to differ")
	}
}
