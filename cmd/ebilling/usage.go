package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/billing"
)

func newUsageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Record monthly consumption",
	}

	var in billing.UsageInput
	record := &cobra.Command{
		Use:   "record",
		Short: "Record a month's usage and issue its bill",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := a.recorder(st)
			if err != nil {
				return err
			}
			bill, err := rec.RecordUsageAndBill(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bill for %s/%d added: %.2f\n", bill.Month, bill.Year, bill.AmountDue)
			return nil
		},
	}
	record.Flags().StringVar(&in.CustomerID, "customer", "", "customer national id")
	record.Flags().Float64Var(&in.ConsumptionKWh, "kwh", 0, "consumption in kWh")
	record.Flags().StringVar(&in.Month, "month", "", "billing month, name or number")
	record.Flags().IntVar(&in.Year, "year", 0, "billing year")
	for _, f := range []string{"customer", "kwh", "month", "year"} {
		_ = record.MarkFlagRequired(f)
	}

	cmd.AddCommand(record)
	return cmd
}
