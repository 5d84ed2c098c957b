package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

// migrator is implemented by the SQL backends.
type migrator interface {
	Migrate(ctx context.Context) error
	MigrateDown(ctx context.Context) error
	MigrationStatus(ctx context.Context) error
}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(use, short string, fn func(migrator, context.Context) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				// Open without auto-migrate so down and status see the real state.
				st, err := storage.Open(cmd.Context(), storage.Config{
					Driver: a.cfg.Storage.Driver,
					DSN:    a.cfg.Storage.DSN,
				}, a.log)
				if err != nil {
					return err
				}
				a.store = st
				m, ok := st.(migrator)
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "driver %q has no schema to migrate\n", a.cfg.Storage.Driver)
					return nil
				}
				return fn(m, cmd.Context())
			},
		}
	}

	cmd.AddCommand(
		run("up", "Apply all pending migrations", migrator.Migrate),
		run("down", "Roll back the newest migration", migrator.MigrateDown),
		run("status", "Show applied and pending migrations", migrator.MigrationStatus),
	)
	return cmd
}
