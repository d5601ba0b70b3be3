package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadStrictJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{
		"meta": {"config_version": 1},
		"network": {"name": "devnet", "bootstrap_nodes": ["127.0.0.1:9000"], "start_port": 9000},
		"app": {"data_dir": "/tmp/ez", "api_host": "0.0.0.0", "api_port": 8080},
		"security": {"max_payload_bytes": 65536, "max_tx_amount": 1000, "nonce_ttl_seconds": 60},
		"router": {"node_role": "account", "listen_host": "0.0.0.0", "listen_port": 7000, "network_id": "devnet"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Meta.ConfigVersion != 1 {
		t.Fatalf("expected config_version 1, got %d", cfg.Meta.ConfigVersion)
	}
	if cfg.Network.Name != "devnet" || cfg.Network.StartPort != 9000 {
		t.Fatalf("unexpected network section: %+v", cfg.Network)
	}
	if cfg.App.APIPort != 8080 {
		t.Fatalf("expected api_port 8080, got %d", cfg.App.APIPort)
	}
	if cfg.Security.MaxPayloadBytes != 65536 {
		t.Fatalf("expected max_payload_bytes 65536, got %d", cfg.Security.MaxPayloadBytes)
	}
	if cfg.Router.NodeRole != "account" || cfg.Router.ListenPort != 7000 {
		t.Fatalf("unexpected router section: %+v", cfg.Router)
	}
}

func TestLoadSectionedGrammar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	writeFile(t, path, `meta:
  config_version: 1
network:
  name: devnet
  start_port: 9000
app:
  data_dir: /tmp/ez
  api_port: 8080
security:
  max_payload_bytes: 65536
  nonce_ttl_seconds: 60
router:
  node_role: account
  listen_port: 7000
  enforce_identity_verification: TRUE
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network.Name != "devnet" {
		t.Fatalf("expected network.name devnet, got %q", cfg.Network.Name)
	}
	if cfg.App.APIPort != 8080 {
		t.Fatalf("expected api_port 8080, got %d", cfg.App.APIPort)
	}
	if !cfg.Router.EnforceIdentityVerification {
		t.Fatal("expected case-insensitive boolean TRUE to parse as true")
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	writeFile(t, path, "  key: value\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected malformed config to fail to load")
	}
}

func TestLoadMissingFileYieldsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	if cfg.Network.Name != want.Network.Name || cfg.App.APIPort != want.App.APIPort {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"network": {"name": "devnet"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network.Name != "devnet" {
		t.Fatalf("expected overridden network.name, got %q", cfg.Network.Name)
	}
	if cfg.App.APIPort != Default().App.APIPort {
		t.Fatalf("expected default api_port to survive partial config, got %d", cfg.App.APIPort)
	}
}

func TestEnsureDirectoriesMintsToken(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.App.DataDir = filepath.Join(dir, "data")
	cfg.App.LogDir = filepath.Join(dir, "logs")
	cfg.App.APITokenFile = filepath.Join(dir, "data", "api.token")

	if err := EnsureDirectories(&cfg); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if _, err := os.Stat(cfg.App.DataDir); err != nil {
		t.Fatalf("expected data dir to exist: %v", err)
	}
	token, err := LoadAPIToken(&cfg)
	if err != nil {
		t.Fatalf("load api token: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty minted token")
	}

	token2, err := LoadAPIToken(&cfg)
	if err != nil {
		t.Fatalf("load api token again: %v", err)
	}
	if token2 != token {
		t.Fatalf("expected stable token across reloads, got %q then %q", token, token2)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}
