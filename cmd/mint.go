package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/mezonai/credits/jsonrpc"
	"github.com/spf13/cobra"
)

var mintParams jsonrpc.MintParams

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Credit a wallet from the system account",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := mintParams
		params.Amount = normalizeAmount(params.Amount)
		if params.IdempotencyKey == "" {
			params.IdempotencyKey = uuid.NewString()
		}
		return withClient(cmd, func(ctx context.Context, c *jsonrpc.Client) (interface{}, error) {
			return c.Mint(ctx, params)
		})
	},
}

var openAccountCmd = &cobra.Command{
	Use:   "open-account <address>",
	Short: "Provision an empty wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *jsonrpc.Client) (interface{}, error) {
			return c.OpenAccount(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(mintCmd, openAccountCmd)
	mintCmd.Flags().StringVarP(&mintParams.Receiver, "to", "t", "", "receiver wallet address")
	mintCmd.Flags().StringVarP(&mintParams.Amount, "amount", "a", "", "amount in minor units")
	mintCmd.Flags().StringVarP(&mintParams.IdempotencyKey, "key", "k", "", "idempotency key")
	mintCmd.Flags().StringVarP(&mintParams.Memo, "memo", "m", "", "optional memo")
	_ = mintCmd.MarkFlagRequired("to")
	_ = mintCmd.MarkFlagRequired("amount")
}
