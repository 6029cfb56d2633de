package cmd

import (
	"os"

	"github.com/mezonai/credits/logx"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "credits",
	Short: "Credits ledger node CLI",
	Long:  "Command line interface for running a credits ledger node and calling it over JSON-RPC.",
}

// nodeURL is the JSON-RPC endpoint used by the client commands
var nodeURL string

func init() {
	rootCmd.PersistentFlags().StringVarP(&nodeURL, "node-url", "u", "http://localhost:8545", "ledger node JSON-RPC URL")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
