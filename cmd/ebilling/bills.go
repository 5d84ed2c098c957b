package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/billing"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

func newBillsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bills",
		Short: "Inspect bills",
	}

	var customerID string
	var unpaid bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List bills, optionally for one customer or only unpaid ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			q := billing.NewQueries(st)
			var bills []storage.Bill
			switch {
			case unpaid:
				bills, err = q.UnpaidBills(cmd.Context(), customerID)
			case customerID != "":
				bills, err = q.BillHistory(cmd.Context(), customerID)
			default:
				bills, err = q.AllBills(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printBills(cmd.OutOrStdout(), bills)
		},
	}
	list.Flags().StringVar(&customerID, "customer", "", "only this customer's bills")
	list.Flags().BoolVar(&unpaid, "unpaid", false, "only unpaid bills")

	cmd.AddCommand(list)
	return cmd
}

func printBills(w io.Writer, bills []storage.Bill) error {
	if len(bills) == 0 {
		fmt.Fprintln(w, "No bills found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tPERIOD\tKWH\tAMOUNT\tDUE\tPAID")
	for _, b := range bills {
		due := "-"
		if b.DueDate != nil {
			due = b.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s/%d\t%.2f\t%.2f\t%s\t%t\n",
			b.ID, b.CustomerID, b.Month, b.Year, b.ConsumptionKWh, b.AmountDue, due, b.IsPaid)
	}
	return tw.Flush()
}

func newPaymentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Inspect payments",
	}

	var customerID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			payments, err := billing.NewQueries(st).Payments(cmd.Context(), customerID)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tBILL\tCUSTOMER\tAMOUNT\tDATE\tMETHOD")
			for _, p := range payments {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%.2f\t%s\t%s\n",
					p.ID, p.BillID, p.CustomerID, p.AmountPaid, p.PaymentDate.Format("2006-01-02"), p.PaymentMethod)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&customerID, "customer", "", "only this customer's payments")

	cmd.AddCommand(list)
	return cmd
}
