package main

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/pkg/core"
	"github.com/arnac-io/paygate/pkg/invoicing"
	"github.com/arnac-io/paygate/pkg/status"
)

func newCreateCmd(e *env) *cobra.Command {
	var (
		amount   string
		currency string
		payee    string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pending invoice",
		Long:  "Create a pending invoice. The amount is given in whole currency units and stored in the smallest unit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q", amount)
			}
			service := invoicing.NewService(zap.NewNop(), e.store, e.cfg.Asset.Available, e.cfg.API.PublicBaseURL, e.cfg.Asset.Symbol)
			invoice, err := service.Create(cmd.Context(), invoicing.CreateRequest{
				Amount:       value,
				Currency:     currency,
				PayeeAddress: payee,
			})
			if err != nil {
				return err
			}
			return printView(cmd, e, invoice)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in whole currency units, e.g. 1.50")
	cmd.Flags().StringVar(&currency, "currency", "", "Currency symbol (default $ASSET_SYMBOL)")
	cmd.Flags().StringVar(&payee, "payee", "", "Payee address")
	cmd.MarkFlagRequired("amount")
	cmd.MarkFlagRequired("payee")
	return cmd
}

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status <invoice-id>",
		Short: "Print the status of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := core.NormalizeInvoiceID(args[0])
			invoice, err := e.store.GetInvoice(cmd.Context(), id)
			if errors.Is(err, core.ErrEntityNotFound) {
				return fmt.Errorf("invoice %v not found", id)
			}
			if err != nil {
				return err
			}
			return printView(cmd, e, invoice)
		},
	}
}

func newListCmd(e *env) *cobra.Command {
	var (
		payee string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices of a payee, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			invoices, err := e.store.ListInvoicesByPayee(cmd.Context(), payee, limit)
			if err != nil {
				return err
			}
			for _, invoice := range invoices {
				if err := printView(cmd, e, invoice); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&payee, "payee", "", "Payee address")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of invoices")
	cmd.MarkFlagRequired("payee")
	return cmd
}

// printView writes the status view of an invoice as a JSON line.
func printView(cmd *cobra.Command, e *env, invoice core.Invoice) error {
	var enc jx.Encoder
	status.NewProjector(e.cfg.Asset.Available).Project(invoice).Encode(&enc)
	_, err := fmt.Fprintln(cmd.OutOrStdout(), string(enc.Bytes()))
	return err
}
