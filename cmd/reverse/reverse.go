// Package reverse issues an outbound payment reversal
package reverse

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"obs/reversal-watcher/cmd/root"
)

var (
	amount        string
	currency      string
	originalMsgID string
	originalPmtID string
	debtorAccount string
)

// Cmd represents the reverse command
var Cmd = &cobra.Command{
	Use:   "reverse",
	Short: "Send an outbound pain.007 reversal for a previously sent payment",
	Long: `Build a pain.007 customer payment reversal referencing the original
message and submit it through the makeReverseTransaction operation. This is
an operator tool for undoing our own outbound transfers; incoming reversals
are handled by the watcher automatically.`,
	RunE: reverseFunc,
}

func init() {
	Cmd.Flags().StringVar(&amount, "amount", "", "Amount to reverse")
	Cmd.Flags().StringVar(&currency, "currency", "KHR", "Currency of the reversed amount")
	Cmd.Flags().StringVar(&originalMsgID, "original-msg-id", "", "MsgId of the payment being reversed")
	Cmd.Flags().StringVar(&originalPmtID, "original-pmt-inf-id", "", "PmtInfId of the payment being reversed")
	Cmd.Flags().StringVar(&debtorAccount, "debtor-account", "", "Debtor account of the original payment")
	_ = Cmd.MarkFlagRequired("amount")
	_ = Cmd.MarkFlagRequired("original-msg-id")
	_ = Cmd.MarkFlagRequired("original-pmt-inf-id")
}

func reverseFunc(cmd *cobra.Command, args []string) error {
	c := root.AppContainer

	if err := c.GetConfig().ValidateService(); err != nil {
		return err
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if amt.IsNegative() || amt.IsZero() {
		return fmt.Errorf("amount must be positive, got %s", amt)
	}

	_, err = c.GetClient().ReverseTransaction(cmd.Context(), amt, currency,
		originalMsgID, originalPmtID, debtorAccount)
	if err != nil {
		return err
	}

	fmt.Printf("reversal for %s submitted (amount %s %s)\n", originalMsgID, amt, currency)
	return nil
}
