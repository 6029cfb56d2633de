package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mezonai/credits/jsonrpc"
	"github.com/mezonai/credits/logx"
	"github.com/spf13/cobra"
)

const callTimeout = 30 * time.Second

type TransferConfig struct {
	From           string
	To             string
	Amount         string
	IdempotencyKey string
	Memo           string
}

var transferConfig TransferConfig

// transferCmd represents the transfer command
var transferCmd = &cobra.Command{
	Use:   "transfer [flags]",
	Short: "Transfer credits to another wallet",
	Long: `This command sends credits from one wallet address to another.
Without --key a fresh idempotency key is generated and printed; pass it back
with --key to retry a transfer that returned busy.

Examples:
  transfer -f 2ZragYd1u8ydRHnK9ge9iVwdw4z7P7gnxuxZVb9jDrDr -t 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY -a 1_000
  transfer -f <sender> -t <receiver> -a 500 -k 0f6c3a2e-retry`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return transferCredits(cmd, transferConfig)
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)

	transferCmd.Flags().StringVarP(&transferConfig.From, "from", "f", "", "sender wallet address")
	transferCmd.Flags().StringVarP(&transferConfig.To, "to", "t", "", "receiver wallet address")
	transferCmd.Flags().StringVarP(&transferConfig.Amount, "amount", "a", "", "amount in minor units")
	transferCmd.Flags().StringVarP(&transferConfig.IdempotencyKey, "key", "k", "", "idempotency key")
	transferCmd.Flags().StringVarP(&transferConfig.Memo, "memo", "m", "", "optional memo")
	_ = transferCmd.MarkFlagRequired("from")
	_ = transferCmd.MarkFlagRequired("to")
	_ = transferCmd.MarkFlagRequired("amount")
}

// normalizeAmount drops digit group separators such as 1_000
func normalizeAmount(raw string) string {
	return strings.ReplaceAll(raw, "_", "")
}

func transferCredits(cmd *cobra.Command, cfg TransferConfig) error {
	key := cfg.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
		logx.Info("TRANSFER CLI", "Using idempotency key", key)
	}

	client := jsonrpc.Dial(nodeURL)
	defer client.Close()
	ctx, cancel := contextWithTimeout(cmd)
	defer cancel()

	receipt, err := client.Transfer(ctx, jsonrpc.TransferParams{
		Sender:         cfg.From,
		Receiver:       cfg.To,
		Amount:         normalizeAmount(cfg.Amount),
		IdempotencyKey: key,
		Memo:           cfg.Memo,
	})
	if err != nil {
		return fmt.Errorf("transfer with key %s failed: %w", key, err)
	}
	return printJSON(receipt)
}
