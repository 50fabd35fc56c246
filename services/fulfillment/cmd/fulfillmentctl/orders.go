package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	httpapi "github.com/shestoi/cocktail-delivery/services/fulfillment/internal/api/http"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/postgres"
)

func ordersCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect orders",
	}

	var paymentRef, orderID string
	get := &cobra.Command{
		Use:   "get",
		Short: "Print an order with its line items as JSON",
		Example: `  fulfillmentctl orders get --payment-ref pi_3Nk...
  fulfillmentctl orders get --id 0b6c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (paymentRef == "") == (orderID == "") {
				return errors.New("exactly one of --payment-ref or --id is required")
			}

			pool, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := postgres.NewRepository(pool)
			var order repository.Order
			if paymentRef != "" {
				order, err = repo.GetByPaymentReference(cmd.Context(), paymentRef)
			} else {
				order, err = repo.GetByID(cmd.Context(), orderID)
			}
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("order not found")
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(httpapi.NewOrderResponse(order))
		},
	}
	get.Flags().StringVar(&paymentRef, "payment-ref", "", "payment reference (PaymentIntent id)")
	get.Flags().StringVar(&orderID, "id", "", "order id")

	cmd.AddCommand(get)
	return cmd
}
