package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/tariff"
)

func newTariffCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tariff",
		Short: "Inspect the tiered tariff",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List tariff slabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := tariff.NewService(st).List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIER\tMIN KWH\tMAX KWH\tRATE\tEFFECTIVE")
			for _, t := range rows {
				upper := "-"
				if t.MaxKWh != nil {
					upper = fmt.Sprintf("%g", *t.MaxKWh)
				}
				fmt.Fprintf(tw, "%d\t%g\t%s\t%g\t%s\n", t.TierID, t.MinKWh, upper, t.Rate, t.EffectiveDate.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}

	var kWh float64
	quote := &cobra.Command{
		Use:   "quote",
		Short: "Price a consumption figure under the current tariff",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			q, err := tariff.NewService(st).Quote(cmd.Context(), kWh, time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLAB\tKWH\tRATE\tAMOUNT")
			for _, l := range q.Lines {
				upper := "+"
				if l.Slab.MaxKWh != nil {
					upper = fmt.Sprintf("-%g", *l.Slab.MaxKWh)
				}
				fmt.Fprintf(tw, "%g%s\t%g\t%g\t%s\n", l.Slab.MinKWh, upper, l.KWh, l.Slab.Rate, l.Amount.StringFixed(2))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Total for %g kWh: %s\n", q.ConsumptionKWh, q.Amount.StringFixed(2))
			return nil
		},
	}
	quote.Flags().Float64Var(&kWh, "kwh", 0, "consumption in kWh")
	_ = quote.MarkFlagRequired("kwh")

	cmd.AddCommand(list, quote)
	return cmd
}
