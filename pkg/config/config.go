package config

// Package config provides the loader for ezchain's node/service
// configuration files. It is versioned so that applications can depend on a
// stable API contract.
//
// Version: v0.2.0

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"ezchain/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config is the unified configuration for an ezchain node or submission
// service, mirroring spec.md §6's recognized sections.
type Config struct {
	Meta struct {
		ConfigVersion int `mapstructure:"config_version" json:"config_version"`
	} `mapstructure:"meta" json:"meta"`

	Network struct {
		Name           string   `mapstructure:"name" json:"name"`
		BootstrapNodes []string `mapstructure:"bootstrap_nodes" json:"bootstrap_nodes"`
		ConsensusNodes int      `mapstructure:"consensus_nodes" json:"consensus_nodes"`
		AccountNodes   int      `mapstructure:"account_nodes" json:"account_nodes"`
		StartPort      int      `mapstructure:"start_port" json:"start_port"`
	} `mapstructure:"network" json:"network"`

	App struct {
		DataDir      string `mapstructure:"data_dir" json:"data_dir"`
		LogDir       string `mapstructure:"log_dir" json:"log_dir"`
		APIHost      string `mapstructure:"api_host" json:"api_host"`
		APIPort      int    `mapstructure:"api_port" json:"api_port"`
		APITokenFile string `mapstructure:"api_token_file" json:"api_token_file"`
	} `mapstructure:"app" json:"app"`

	Security struct {
		MaxPayloadBytes int   `mapstructure:"max_payload_bytes" json:"max_payload_bytes"`
		MaxTxAmount     int64 `mapstructure:"max_tx_amount" json:"max_tx_amount"`
		NonceTTLSeconds int   `mapstructure:"nonce_ttl_seconds" json:"nonce_ttl_seconds"`
	} `mapstructure:"security" json:"security"`

	// Router carries the settings needed to construct an
	// internal/router.Config for this node. Most field names follow the
	// router's own Config; identity keys are given as file paths and timings
	// as whole seconds, which cmd/ezrouter loads and converts.
	Router struct {
		NodeRole        string   `mapstructure:"node_role" json:"node_role"`
		ListenHost      string   `mapstructure:"listen_host" json:"listen_host"`
		ListenPort      int      `mapstructure:"listen_port" json:"listen_port"`
		Transport       string   `mapstructure:"transport" json:"transport"`
		PeerSeeds       []string `mapstructure:"peer_seeds" json:"peer_seeds"`
		NetworkID       string   `mapstructure:"network_id" json:"network_id"`
		ProtocolVersion string   `mapstructure:"protocol_version" json:"protocol_version"`
		MaxNeighbors    int      `mapstructure:"max_neighbors" json:"max_neighbors"`

		IdentityKeyFile    string `mapstructure:"identity_key_file" json:"identity_key_file"`
		IdentityPubKeyFile string `mapstructure:"identity_pubkey_file" json:"identity_pubkey_file"`

		EnforceIdentityVerification bool     `mapstructure:"enforce_identity_verification" json:"enforce_identity_verification"`
		SignedMessageTypes          []string `mapstructure:"signed_message_types" json:"signed_message_types"`

		MaintenanceIntervalSec int `mapstructure:"maintenance_interval_sec" json:"maintenance_interval_sec"`
		SeedRetryBaseSec       int `mapstructure:"seed_retry_base_sec" json:"seed_retry_base_sec"`
		SeedRetryMaxSec        int `mapstructure:"seed_retry_max_sec" json:"seed_retry_max_sec"`
		DegradedNoPeerSec      int `mapstructure:"degraded_no_peer_sec" json:"degraded_no_peer_sec"`
	} `mapstructure:"router" json:"router"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Default returns the configuration an ezchain node starts with before any
// file is read, mirroring the original prototype's DEFAULT_CONFIG.
func Default() Config {
	var cfg Config
	cfg.Meta.ConfigVersion = 1
	cfg.Network.Name = "testnet"
	cfg.Network.BootstrapNodes = []string{"127.0.0.1:19500"}
	cfg.Network.ConsensusNodes = 1
	cfg.Network.AccountNodes = 1
	cfg.Network.StartPort = 19500
	cfg.App.DataDir = ".ezchain"
	cfg.App.LogDir = ".ezchain/logs"
	cfg.App.APIHost = "127.0.0.1"
	cfg.App.APIPort = 8787
	cfg.App.APITokenFile = ".ezchain/api.token"
	cfg.Security.MaxPayloadBytes = 65536
	cfg.Security.MaxTxAmount = 100000000
	cfg.Security.NonceTTLSeconds = 600
	return cfg
}

// Load reads the configuration file at path, accepting either strict JSON or
// the restricted YAML-like grammar of spec.md §6, and binds it onto
// AppConfig. A missing file yields Default() rather than an error, matching
// the original prototype's load_config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		AppConfig = cfg
		return &AppConfig, nil
	}
	if err != nil {
		return nil, utils.Wrap(err, "read config file")
	}

	generic, err := decodeGeneric(raw)
	if err != nil {
		return nil, utils.Wrap(err, "decode config file")
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, utils.Wrap(err, "build config decoder")
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, utils.Wrap(err, "bind config")
	}

	AppConfig = cfg
	return &AppConfig, nil
}

// LoadFromEnv loads the configuration file named by EZCHAIN_CONFIG, falling
// back to "config.json" in the working directory.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("EZCHAIN_CONFIG", "config.json"))
}

// decodeGeneric tries strict JSON first, falling back to the restricted
// section/key grammar spec.md §6 describes. Since that grammar is a subset
// of YAML, handing it to a full YAML parser only ever relaxes acceptance,
// never narrows it.
func decodeGeneric(raw []byte) (map[string]any, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err == nil {
		return generic, nil
	}

	if looksLikeSectionedConfig(raw) {
		return parseSectionedConfig(raw)
	}

	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("not valid JSON or YAML: %w", err)
	}
	return generic, nil
}

// looksLikeSectionedConfig reports whether raw goes to spec.md §6's
// "section:" / "  key: value" parser: every non-empty input that does not
// open with '{' or '[' does. Only the rest reaches the full yaml.v3 parser.
func looksLikeSectionedConfig(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] != '{' && trimmed[0] != '['
}

// parseSectionedConfig implements the restricted grammar: unindented
// "section:" headers followed by indented "key: value" lines. Values are
// JSON-parsed when possible, booleans are recognized case-insensitively,
// and unquoted strings have surrounding quotes stripped.
func parseSectionedConfig(raw []byte) (map[string]any, error) {
	result := make(map[string]any)
	var currentSection map[string]any

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		trimmedLine := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmedLine) == "" || strings.HasPrefix(strings.TrimSpace(trimmedLine), "#") {
			continue
		}

		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			name := strings.TrimSuffix(strings.TrimSpace(trimmedLine), ":")
			currentSection = make(map[string]any)
			result[name] = currentSection
			continue
		}

		if currentSection == nil {
			return nil, fmt.Errorf("key outside any section: %q", line)
		}
		key, value, ok := strings.Cut(strings.TrimSpace(trimmedLine), ":")
		if !ok {
			return nil, fmt.Errorf("malformed line: %q", line)
		}
		currentSection[strings.TrimSpace(key)] = parseSectionedValue(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseSectionedValue(value string) any {
	if value == "" {
		return ""
	}
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	var jsonVal any
	if err := json.Unmarshal([]byte(value), &jsonVal); err == nil {
		return jsonVal
	}
	return strings.Trim(value, `"'`)
}

// Save writes cfg to path as indented JSON, creating the parent directory if
// needed. JSON is accepted by Load's strict-JSON path, so a file written by
// Save round-trips through Load unchanged.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.Wrap(err, "create config dir")
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return utils.Wrap(err, "encode config")
	}
	return utils.Wrap(os.WriteFile(path, raw, 0o644), "write config file")
}

// EnsureDirectories creates the data, log and token-file parent directories
// a running node needs, minting a fresh API token file if one doesn't exist
// yet.
func EnsureDirectories(cfg *Config) error {
	if err := os.MkdirAll(cfg.App.DataDir, 0o755); err != nil {
		return utils.Wrap(err, "create data dir")
	}
	if err := os.MkdirAll(cfg.App.LogDir, 0o755); err != nil {
		return utils.Wrap(err, "create log dir")
	}
	if cfg.App.APITokenFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.App.APITokenFile), 0o755); err != nil {
		return utils.Wrap(err, "create token dir")
	}
	if _, err := os.Stat(cfg.App.APITokenFile); os.IsNotExist(err) {
		token, err := generateToken()
		if err != nil {
			return utils.Wrap(err, "generate api token")
		}
		if err := os.WriteFile(cfg.App.APITokenFile, []byte(token), 0o600); err != nil {
			return utils.Wrap(err, "write api token file")
		}
	}
	return nil
}

// LoadAPIToken returns the bearer token an ezchain CLI or service uses to
// authenticate against the submission service, minting the token file on
// first use.
func LoadAPIToken(cfg *Config) (string, error) {
	if err := EnsureDirectories(cfg); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(cfg.App.APITokenFile)
	if err != nil {
		return "", utils.Wrap(err, "read api token file")
	}
	return strings.TrimSpace(string(raw)), nil
}

func generateToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
