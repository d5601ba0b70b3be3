package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// ──────────────────────────────────────────────────────────────────────────
// ezchain tx – transaction submission, via the submission service's
// /tx/* routes.
// ──────────────────────────────────────────────────────────────────────────

var TxCmd = &cobra.Command{
	Use:   "tx",
	Short: "send or faucet a transaction",
}

var txSendCmd = &cobra.Command{
	Use:   "send",
	Short: "submit a transaction to a recipient",
	RunE:  runTxSend,
}

var txFaucetCmd = &cobra.Command{
	Use:   "faucet",
	Short: "mint balance into the local wallet",
	RunE:  runTxFaucet,
}

func init() {
	txSendCmd.Flags().String("recipient", "", "recipient address")
	txSendCmd.Flags().Int64("amount", 0, "amount to send")
	txSendCmd.Flags().String("password", "", "wallet password")
	txSendCmd.Flags().String("client-tx-id", "", "idempotency token (synthesized if omitted)")
	_ = txSendCmd.MarkFlagRequired("recipient")
	_ = txSendCmd.MarkFlagRequired("amount")
	_ = txSendCmd.MarkFlagRequired("password")

	txFaucetCmd.Flags().Int64("amount", 0, "amount to mint")
	txFaucetCmd.Flags().String("password", "", "wallet password")
	_ = txFaucetCmd.MarkFlagRequired("amount")
	_ = txFaucetCmd.MarkFlagRequired("password")

	TxCmd.AddCommand(txSendCmd, txFaucetCmd)
}

func runTxSend(cmd *cobra.Command, args []string) error {
	_, client, err := loadClientConfig()
	if err != nil {
		return err
	}
	recipient, _ := cmd.Flags().GetString("recipient")
	amount, _ := cmd.Flags().GetInt64("amount")
	password, _ := cmd.Flags().GetString("password")
	clientTxID, _ := cmd.Flags().GetString("client-tx-id")

	data, err := client.post("/tx/send", map[string]any{
		"recipient":    recipient,
		"amount":       amount,
		"password":     password,
		"client_tx_id": clientTxID,
	}, map[string]string{"X-EZ-Nonce": uuid.New().String()})
	if err != nil {
		return err
	}
	return printRawJSON(data)
}

func runTxFaucet(cmd *cobra.Command, args []string) error {
	_, client, err := loadClientConfig()
	if err != nil {
		return err
	}
	amount, _ := cmd.Flags().GetInt64("amount")
	password, _ := cmd.Flags().GetString("password")

	data, err := client.post("/tx/faucet", map[string]any{"amount": amount, "password": password}, nil)
	if err != nil {
		return err
	}
	return printRawJSON(data)
}
