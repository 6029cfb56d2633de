package cmd

import (
	"context"

	"github.com/mezonai/credits/jsonrpc"
	"github.com/spf13/cobra"
)

var (
	historyCursor string
	historyLimit  int
)

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show the balance of a wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *jsonrpc.Client) (interface{}, error) {
			return c.GetBalance(ctx, args[0])
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <address>",
	Short: "List wallet transactions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *jsonrpc.Client) (interface{}, error) {
			return c.GetHistory(ctx, jsonrpc.HistoryParams{Address: args[0], Cursor: historyCursor, Limit: historyLimit})
		})
	},
}

var txCmd = &cobra.Command{
	Use:   "tx <id>",
	Short: "Show one transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *jsonrpc.Client) (interface{}, error) {
			return c.GetTransaction(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd, historyCmd, txCmd)
	historyCmd.Flags().StringVar(&historyCursor, "cursor", "", "next_cursor from the previous page")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 0, "page size")
}

func contextWithTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, callTimeout)
}

func withClient(cmd *cobra.Command, call func(ctx context.Context, c *jsonrpc.Client) (interface{}, error)) error {
	client := jsonrpc.Dial(nodeURL)
	defer client.Close()
	ctx, cancel := contextWithTimeout(cmd)
	defer cancel()

	res, err := call(ctx, client)
	if err != nil {
		return err
	}
	return printJSON(res)
}
