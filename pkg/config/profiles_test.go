package config

import (
	"reflect"
	"testing"
)

func TestListProfilesIsSortedAndStable(t *testing.T) {
	got := ListProfiles()
	want := []string{"local-dev", "official-testnet"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestApplyProfileOverwritesNetworkSection(t *testing.T) {
	cfg := Default()
	if err := ApplyProfile(&cfg, "official-testnet"); err != nil {
		t.Fatalf("apply profile: %v", err)
	}
	if cfg.Network.Name != "testnet" {
		t.Fatalf("expected name testnet, got %q", cfg.Network.Name)
	}
	if cfg.Network.ConsensusNodes != 3 {
		t.Fatalf("expected 3 consensus nodes, got %d", cfg.Network.ConsensusNodes)
	}
	if len(cfg.Network.BootstrapNodes) != 1 || cfg.Network.BootstrapNodes[0] != "bootstrap.ezchain.test:19500" {
		t.Fatalf("unexpected bootstrap nodes: %v", cfg.Network.BootstrapNodes)
	}
}

func TestApplyProfileUnknownNameFails(t *testing.T) {
	cfg := Default()
	err := ApplyProfile(&cfg, "nonexistent")
	if err == nil {
		t.Fatal("expected an error for an unknown profile")
	}
	if _, ok := err.(ErrUnknownProfile); !ok {
		t.Fatalf("expected ErrUnknownProfile, got %T", err)
	}
}
