package main

import (
	"github.com/spf13/cobra"
)

// ──────────────────────────────────────────────────────────────────────────
// ezchain wallet – single-account wallet management, via the submission
// service's /wallet/* routes.
//
// Sub‑routes:
//   create   – generate a fresh bip39 mnemonic and persist an encrypted wallet
//   import   – recreate a wallet from an existing mnemonic
//   show     – print the wallet summary (no secrets)
//   balance  – query the Tx Engine for the wallet's current balance
// ──────────────────────────────────────────────────────────────────────────

var WalletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "manage the local single-account wallet",
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "generate a new wallet",
	RunE:  runWalletCreate,
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "recreate a wallet from a bip39 mnemonic",
	RunE:  runWalletImport,
}

var walletShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print the current wallet summary",
	RunE:  runWalletShow,
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "query the current wallet balance",
	RunE:  runWalletBalance,
}

func init() {
	walletCreateCmd.Flags().String("name", "default", "wallet name")
	walletCreateCmd.Flags().String("password", "", "encryption password")
	_ = walletCreateCmd.MarkFlagRequired("password")

	walletImportCmd.Flags().String("name", "default", "wallet name")
	walletImportCmd.Flags().String("password", "", "encryption password")
	walletImportCmd.Flags().String("mnemonic", "", "bip39 mnemonic to import")
	_ = walletImportCmd.MarkFlagRequired("password")
	_ = walletImportCmd.MarkFlagRequired("mnemonic")

	walletBalanceCmd.Flags().String("password", "", "wallet password")
	_ = walletBalanceCmd.MarkFlagRequired("password")

	WalletCmd.AddCommand(walletCreateCmd, walletImportCmd, walletShowCmd, walletBalanceCmd)
}

func runWalletCreate(cmd *cobra.Command, args []string) error {
	_, client, err := loadClientConfig()
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")

	data, err := client.post("/wallet/create", map[string]any{"name": name, "password": password}, nil)
	if err != nil {
		return err
	}
	return printRawJSON(data)
}

func runWalletImport(cmd *cobra.Command, args []string) error {
	_, client, err := loadClientConfig()
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")
	mnemonic, _ := cmd.Flags().GetString("mnemonic")

	data, err := client.post("/wallet/import", map[string]any{
		"name": name, "password": password, "mnemonic": mnemonic,
	}, nil)
	if err != nil {
		return err
	}
	return printRawJSON(data)
}

func runWalletShow(cmd *cobra.Command, args []string) error {
	_, client, err := loadClientConfig()
	if err != nil {
		return err
	}
	data, err := client.get("/wallet/show", nil)
	if err != nil {
		return err
	}
	return printRawJSON(data)
}

func runWalletBalance(cmd *cobra.Command, args []string) error {
	_, client, err := loadClientConfig()
	if err != nil {
		return err
	}
	password, _ := cmd.Flags().GetString("password")

	data, err := client.get("/wallet/balance", map[string]string{"X-EZ-Password": password})
	if err != nil {
		return err
	}
	return printRawJSON(data)
}
