package forecast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/config"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/metrics"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/period"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/weather"
)

var ErrNoHistory = fmt.Errorf("no historical data found for customer: %w", apperr.ErrNotFound)

// Predictor forecasts one customer's consumption for a target month and
// stores the result.
type Predictor struct {
	store     storage.Storage
	artifacts *ArtifactStore
	weather   weather.Lookuper
	cfg       config.ForecastConfig
	log       *zap.Logger
	now       func() time.Time
}

func NewPredictor(st storage.Storage, artifacts *ArtifactStore, w weather.Lookuper, cfg config.ForecastConfig, log *zap.Logger) *Predictor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Predictor{store: st, artifacts: artifacts, weather: w, cfg: cfg, log: log.Named("predictor"), now: time.Now}
}

// Predict loads the saved model, takes the customer's most recent monthly
// consumption and the target month's weather (or the configured fallback when
// weather is unavailable), predicts, and upserts the prediction. The model is
// loaded before anything else so a missing model fails fast.
func (p *Predictor) Predict(ctx context.Context, customerID string, year int, month time.Month) (storage.Prediction, error) {
	if year <= 0 || month < time.January || month > time.December {
		return storage.Prediction{}, fmt.Errorf("target %d-%d: %w", year, month, apperr.ErrInvalidArgument)
	}

	forest, err := p.artifacts.Load()
	if err != nil {
		return storage.Prediction{}, err
	}

	history, err := p.store.ListUsageHistory(ctx, customerID)
	if err != nil {
		return storage.Prediction{}, fmt.Errorf("load usage history: %w", err)
	}
	if len(history) == 0 {
		return storage.Prediction{}, fmt.Errorf("%w: %s", ErrNoHistory, customerID)
	}
	ordered, err := normalise(history)
	if err != nil {
		return storage.Prediction{}, err
	}
	last := ordered[len(ordered)-1]

	temp, precip := p.cfg.FallbackTemp, p.cfg.FallbackPrecip
	sample, err := p.weather.Lookup(ctx, last.Location, year, month)
	if err != nil {
		p.log.Warn("weather unavailable, using fallback",
			zap.String("customer_id", customerID),
			zap.Float64("temp", temp),
			zap.Float64("precip", precip),
			zap.Error(err),
		)
	} else {
		temp, precip = sample.TemperatureC, sample.PrecipitationMM
	}

	row := FeatureRow{
		CustomerID:          customerID,
		Year:                year,
		Month:               month,
		PreviousConsumption: last.ConsumptionKWh,
		TemperatureC:        temp,
		PrecipitationMM:     precip,
	}
	value, err := forest.Predict(row.Features())
	if err != nil {
		return storage.Prediction{}, err
	}

	pred := storage.Prediction{
		CustomerID:   customerID,
		Year:         year,
		Month:        int(month),
		PredictedKWh: value,
		Model:        p.cfg.ModelName,
		CreatedAt:    p.now().UTC(),
	}
	if err := p.store.UpsertPrediction(ctx, pred); err != nil {
		return storage.Prediction{}, fmt.Errorf("save prediction: %w", err)
	}
	metrics.PredictionsSavedTotal.Inc()
	p.log.Info("prediction saved",
		zap.String("customer_id", customerID),
		zap.String("period", fmt.Sprintf("%s %d", period.Name(month), year)),
		zap.Float64("predicted_kwh", value),
	)
	return pred, nil
}
