package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/billing"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/config"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/forecast"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/logging"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/notification"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/weather"
)

// app holds what every subcommand shares. The store is opened on first use.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	store storage.Storage
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ebilling",
		Short:         "Electricity billing: tariffs, bills and consumption forecasts",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store != nil {
				_ = a.store.Close()
			}
			if a.log != nil {
				_ = a.log.Sync()
			}
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
		newCustomerCmd(a),
		newUsageCmd(a),
		newBillsCmd(a),
		newPaymentsCmd(a),
		newTariffCmd(a),
		newForecastCmd(a),
	)
	return root
}

func (a *app) openStore(ctx context.Context) (storage.Storage, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := storage.Open(ctx, storage.Config{
		Driver:      a.cfg.Storage.Driver,
		DSN:         a.cfg.Storage.DSN,
		AutoMigrate: a.cfg.Storage.AutoMigrate,
	}, a.log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = st
	return st, nil
}

func (a *app) locationNames() []string {
	names := make([]string, 0, len(a.cfg.Weather.Locations))
	for _, l := range a.cfg.Weather.Locations {
		names = append(names, l.Name)
	}
	return names
}

func (a *app) recorder(st storage.Storage) (*billing.Recorder, error) {
	loc, err := time.LoadLocation(a.cfg.Billing.Timezone)
	if err != nil {
		return nil, err
	}
	dueDates, err := billing.NewDueDatePolicy(a.cfg.Billing.DueDateSchedule, loc)
	if err != nil {
		return nil, err
	}
	notifier, err := notification.NewService(a.cfg.Notification, a.log)
	if err != nil {
		return nil, err
	}
	return billing.NewRecorder(st, dueDates, a.log, billing.WithNotifier(notifier)), nil
}

func (a *app) weatherClient() *weather.Client {
	return weather.NewClient(a.cfg.Weather, a.log)
}

func (a *app) artifacts() *forecast.ArtifactStore {
	return forecast.NewArtifactStore(a.cfg.Forecast.ModelPath)
}
