package config

import "sort"

// NetworkProfile is a named bundle of network settings a node can adopt in
// one step, mirroring the original prototype's DEFAULT_NETWORK_SETTINGS.
type NetworkProfile struct {
	Name           string
	BootstrapNodes []string
	ConsensusNodes int
	AccountNodes   int
	StartPort      int
}

// networkProfiles are the built-in profiles a fresh node can apply without
// hand-editing its config file.
var networkProfiles = map[string]NetworkProfile{
	"local-dev": {
		Name:           "testnet-local",
		BootstrapNodes: []string{"127.0.0.1:19500"},
		ConsensusNodes: 1,
		AccountNodes:   1,
		StartPort:      19500,
	},
	"official-testnet": {
		Name:           "testnet",
		BootstrapNodes: []string{"bootstrap.ezchain.test:19500"},
		ConsensusNodes: 3,
		AccountNodes:   1,
		StartPort:      19500,
	},
}

// ListProfiles returns the names of the built-in network profiles, sorted.
func ListProfiles() []string {
	names := make([]string, 0, len(networkProfiles))
	for name := range networkProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrUnknownProfile is returned by ApplyProfile for an unrecognized name.
type ErrUnknownProfile string

func (e ErrUnknownProfile) Error() string {
	return "unknown_profile:" + string(e)
}

// ApplyProfile overwrites cfg's network section with the named profile's
// settings, in place.
func ApplyProfile(cfg *Config, name string) error {
	profile, ok := networkProfiles[name]
	if !ok {
		return ErrUnknownProfile(name)
	}
	cfg.Network.Name = profile.Name
	cfg.Network.BootstrapNodes = append([]string(nil), profile.BootstrapNodes...)
	cfg.Network.ConsensusNodes = profile.ConsensusNodes
	cfg.Network.AccountNodes = profile.AccountNodes
	cfg.Network.StartPort = profile.StartPort
	return nil
}
