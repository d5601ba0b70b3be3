package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pkgconfig "ezchain/pkg/config"
)

// AuthCmd exposes the bearer token the submission service expects on
// every request, minting it on first use. Unlike the other subcommands
// this reads the token file directly rather than going through the
// service, since a user needs the token before they can reach it.
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "inspect local authentication material",
}

var authShowTokenCmd = &cobra.Command{
	Use:   "show-token",
	Short: "print the submission service's API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pkgconfig.Load(configPath)
		if err != nil {
			return err
		}
		token, err := pkgconfig.LoadAPIToken(cfg)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	AuthCmd.AddCommand(authShowTokenCmd)
}
