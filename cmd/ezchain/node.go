package main

import (
	"github.com/spf13/cobra"
)

// ──────────────────────────────────────────────────────────────────────────
// ezchain node – router node lifecycle, via the submission service's
// /node/* routes (which delegate to the Node Manager collaborator).
// ──────────────────────────────────────────────────────────────────────────

var NodeCmd = &cobra.Command{
	Use:   "node",
	Short: "control the router node process",
}

var nodeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "start the router node if it isn't already running",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := loadClientConfig()
		if err != nil {
			return err
		}
		data, err := client.post("/node/start", nil, nil)
		if err != nil {
			return err
		}
		return printRawJSON(data)
	},
}

var nodeStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stop the router node if it is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := loadClientConfig()
		if err != nil {
			return err
		}
		data, err := client.post("/node/stop", nil, nil)
		if err != nil {
			return err
		}
		return printRawJSON(data)
	},
}

var nodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "report whether the router node is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := loadClientConfig()
		if err != nil {
			return err
		}
		data, err := client.get("/node/status", nil)
		if err != nil {
			return err
		}
		return printRawJSON(data)
	},
}

func init() {
	NodeCmd.AddCommand(nodeStartCmd, nodeStopCmd, nodeStatusCmd)
}
