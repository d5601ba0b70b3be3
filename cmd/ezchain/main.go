// Command ezchain is the operator CLI for a single-account ezchain wallet
// and node. Wallet, transaction and node-lifecycle subcommands are thin
// HTTP clients of the submission service started by `ezchain serve`: the
// Tx Engine and Node Manager collaborators only live inside that long-running
// process, so every other subcommand talks to it rather than rebuilding its
// own (necessarily stateless, per-invocation) copy; `network info` is one of
// these HTTP clients too. `network list-profiles`/`network set-profile`,
// `auth show-token` and `serve` itself work directly off the config file.
// Subcommand shape mirrors the original prototype's argparse-based CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	pkgconfig "ezchain/pkg/config"
)

var (
	logger     = logrus.StandardLogger()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "ezchain",
	Short: "ezchain single-account wallet and node CLI",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		lvl := os.Getenv("LOG_LEVEL")
		if lvl == "" {
			lvl = "info"
		}
		l, err := logrus.ParseLevel(lvl)
		if err != nil {
			return err
		}
		logger.SetLevel(l)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ezchain.yaml", "path to the ezchain config file")
	rootCmd.AddCommand(WalletCmd, TxCmd, NodeCmd, NetworkCmd, AuthCmd, ServeCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadClientConfig loads the config file and builds an apiClient pointed at
// the submission service it describes, minting/reading the API token file
// along the way.
func loadClientConfig() (*pkgconfig.Config, *apiClient, error) {
	cfg, err := pkgconfig.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	token, err := pkgconfig.LoadAPIToken(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newAPIClient(fmt.Sprintf("http://%s:%d", cfg.App.APIHost, cfg.App.APIPort), token), nil
}
