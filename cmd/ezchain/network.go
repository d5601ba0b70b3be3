package main

import (
	"github.com/spf13/cobra"

	pkgconfig "ezchain/pkg/config"
)

// NetworkCmd reports and edits the configured network. `info` reads the
// running submission service's view; `list-profiles`/`set-profile` operate
// on the local config file directly, since a profile change rewrites the
// file a not-yet-running `serve` process would read on its next start.
var NetworkCmd = &cobra.Command{
	Use:   "network",
	Short: "inspect or reconfigure the configured network",
}

var networkInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "print the network name and bootstrap nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := loadClientConfig()
		if err != nil {
			return err
		}
		data, err := client.get("/network/info", nil)
		if err != nil {
			return err
		}
		return printRawJSON(data)
	},
}

var networkListProfilesCmd = &cobra.Command{
	Use:   "list-profiles",
	Short: "list the built-in network profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(map[string]any{"profiles": pkgconfig.ListProfiles()})
	},
}

var networkSetProfileName string

var networkSetProfileCmd = &cobra.Command{
	Use:   "set-profile",
	Short: "apply a built-in network profile to the local config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pkgconfig.Load(configPath)
		if err != nil {
			return err
		}
		if err := pkgconfig.ApplyProfile(cfg, networkSetProfileName); err != nil {
			return err
		}
		if err := pkgconfig.Save(cfg, configPath); err != nil {
			return err
		}
		if err := pkgconfig.EnsureDirectories(cfg); err != nil {
			return err
		}
		return printJSON(map[string]any{
			"status":          "updated",
			"profile":         networkSetProfileName,
			"network":         cfg.Network.Name,
			"bootstrap_nodes": cfg.Network.BootstrapNodes,
			"consensus_nodes": cfg.Network.ConsensusNodes,
			"account_nodes":   cfg.Network.AccountNodes,
			"start_port":      cfg.Network.StartPort,
		})
	},
}

func init() {
	networkSetProfileCmd.Flags().StringVar(&networkSetProfileName, "name", "", "profile name (see network list-profiles)")
	_ = networkSetProfileCmd.MarkFlagRequired("name")

	NetworkCmd.AddCommand(networkInfoCmd, networkListProfilesCmd, networkSetProfileCmd)
}
