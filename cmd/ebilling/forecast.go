package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/alerting"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/forecast"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/period"
)

func newForecastCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Train and query the consumption model",
	}

	train := &cobra.Command{
		Use:   "train",
		Short: "Build the training table and fit the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			builder := forecast.NewBuilder(st, a.weatherClient(), a.cfg.Forecast.RateLimitDelay, a.log)
			alerter := alerting.New(a.cfg.Alert, a.log)
			trainer := forecast.NewTrainer(builder, a.artifacts(), a.cfg.Forecast, a.log, forecast.WithAlerter(alerter))
			_, rep, err := trainer.Train(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Training rows: %d (train %d, test %d)\n", rep.Rows, rep.TrainRows, rep.TestRows)
			fmt.Fprintf(out, "Dropped: %d without previous month, %d without weather\n", rep.Build.DroppedNoLag, rep.Build.DroppedNoWeather)
			fmt.Fprintf(out, "MAE: %.2f\nR2: %.2f\n", rep.MAE, rep.R2)
			fmt.Fprintf(out, "Model saved to %s\n", rep.ModelPath)
			return nil
		},
	}

	var customerID, month string
	var year int
	predict := &cobra.Command{
		Use:   "predict",
		Short: "Predict a customer's consumption for a month and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := period.ParseMonth(month)
			if err != nil {
				return err
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			p := forecast.NewPredictor(st, a.artifacts(), a.weatherClient(), a.cfg.Forecast, a.log)
			pred, err := p.Predict(cmd.Context(), customerID, year, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Predicted consumption for %s in %s %d: %.2f kWh\n",
				pred.CustomerID, period.Name(time.Month(pred.Month)), pred.Year, pred.PredictedKWh)
			return nil
		},
	}
	predict.Flags().StringVar(&customerID, "customer", "", "customer national id")
	predict.Flags().StringVar(&month, "month", "", "target month, name or number")
	predict.Flags().IntVar(&year, "year", 0, "target year")
	for _, f := range []string{"customer", "month", "year"} {
		_ = predict.MarkFlagRequired(f)
	}

	cmd.AddCommand(train, predict)
	return cmd
}
