package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/api"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/auth"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/billing"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			authSvc, err := auth.NewService(ctx, st, a.cfg.Auth.SessionTTL, a.log)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}

			srv := &http.Server{
				Addr: addr,
				Handler: api.NewMux(api.Deps{
					Store:        st,
					Auth:         authSvc,
					Customers:    billing.NewCustomers(st, a.locationNames(), a.log),
					Queries:      billing.NewQueries(st),
					CookieSecure: a.cfg.Auth.CookieSecure,
					Log:          a.log,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("ebilling listening", zap.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
