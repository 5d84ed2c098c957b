package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/billing"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

func newCustomerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Add and list customers",
	}

	var c storage.Customer
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			added, err := billing.NewCustomers(st, a.locationNames(), a.log).Add(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Customer %s (%s) added\n", added.NationalID, added.Name)
			return nil
		},
	}
	add.Flags().StringVar(&c.NationalID, "id", "", "national id")
	add.Flags().StringVar(&c.Name, "name", "", "full name")
	add.Flags().StringVar(&c.Phone, "phone", "", "phone number")
	add.Flags().StringVar(&c.Email, "email", "", "email address")
	add.Flags().StringVar(&c.Address, "address", "", "postal address")
	add.Flags().StringVar(&c.Location, "location", "", "city used for weather lookups")
	_ = add.MarkFlagRequired("id")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List customers",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			customers, err := billing.NewCustomers(st, a.locationNames(), a.log).List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPHONE\tEMAIL\tLOCATION\tSTATUS")
			for _, c := range customers {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", c.NationalID, c.Name, c.Phone, c.Email, c.Location, c.Status)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
