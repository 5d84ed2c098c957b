package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/seed"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Reset the database and load the demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := seed.Load(cmd.Context(), st, a.cfg.Auth.SessionTTL, a.log); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Database initialized with sample data!")
			for _, id := range seed.Logins() {
				fmt.Fprintf(out, "Login: national_id=%s, password=%s\n", id, id)
			}
			return nil
		},
	}
}
