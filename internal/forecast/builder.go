// Package forecast builds the monthly consumption training table, trains the
// consumption regressor and stores per-customer predictions.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/metrics"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/period"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/weather"
)

// FeatureNames lists the model inputs in the order Features returns them.
var FeatureNames = []string{"year", "month_num", "previous_consumption", "temp", "precip"}

// FeatureRow is one usage record enriched for training. ConsumptionKWh is the
// target; every other numeric field is a feature.
type FeatureRow struct {
	UsageID             uint       `json:"usage_id"`
	CustomerID          string     `json:"customer_id"`
	Location            string     `json:"location"`
	Year                int        `json:"year"`
	Month               time.Month `json:"month_num"`
	PreviousConsumption float64    `json:"previous_consumption"`
	TemperatureC        float64    `json:"temp"`
	PrecipitationMM     float64    `json:"precip"`
	ConsumptionKWh      float64    `json:"consumption_kwh"`
}

// Features returns the feature vector in FeatureNames order.
func (r FeatureRow) Features() []float64 {
	return []float64{float64(r.Year), float64(r.Month), r.PreviousConsumption, r.TemperatureC, r.PrecipitationMM}
}

// BuildStats counts what happened to each usage record during a build.
type BuildStats struct {
	UsageRecords     int `json:"usage_records"`
	Kept             int `json:"kept"`
	DroppedNoLag     int `json:"dropped_no_lag"`
	DroppedNoWeather int `json:"dropped_no_weather"`
	WeatherCalls     int `json:"weather_calls"`

	WeatherFailures []RowFailure `json:"weather_failures,omitempty"`
}

// RowFailure records a usage row dropped because its weather lookup failed.
type RowFailure struct {
	UsageID    uint       `json:"usage_id"`
	CustomerID string     `json:"customer_id"`
	Location   string     `json:"location"`
	Year       int        `json:"year"`
	Month      time.Month `json:"month"`
	Err        string     `json:"error"`
}

// Builder turns stored usage history into training rows.
type Builder struct {
	store   storage.Storage
	weather weather.Lookuper
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewBuilder returns a builder that waits at least delay between weather
// calls. A non-positive delay disables throttling.
func NewBuilder(st storage.Storage, w weather.Lookuper, delay time.Duration, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Builder{
		store:   st,
		weather: w,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.Named("builder"),
	}
}

type historyRow struct {
	storage.UsageHistoryRow
	month time.Month
}

// Build reads every customer's usage, orders it chronologically per customer,
// attaches the previous month's consumption and the month's weather, and
// drops rows lacking any of those. Rows come back ordered by customer, year
// and month. An unparseable month fails the whole build.
func (b *Builder) Build(ctx context.Context) ([]FeatureRow, BuildStats, error) {
	started := time.Now()
	rows, stats, err := b.build(ctx)
	metrics.UpdateJobMetrics("build_training_table", started, err)
	return rows, stats, err
}

func (b *Builder) build(ctx context.Context) ([]FeatureRow, BuildStats, error) {
	var stats BuildStats
	history, err := b.store.ListUsageHistory(ctx, "")
	if err != nil {
		return nil, stats, fmt.Errorf("load usage history: %w", err)
	}
	stats.UsageRecords = len(history)

	normalised, err := normalise(history)
	if err != nil {
		return nil, stats, err
	}

	var out []FeatureRow
	for i, r := range normalised {
		if i == 0 || normalised[i-1].CustomerID != r.CustomerID {
			stats.DroppedNoLag++
			continue
		}
		prev := normalised[i-1]

		if err := b.limiter.Wait(ctx); err != nil {
			return nil, stats, err
		}
		stats.WeatherCalls++
		sample, err := b.weather.Lookup(ctx, r.Location, r.Year, r.month)
		if err != nil {
			var lerr *weather.LookupError
			if !errors.As(err, &lerr) {
				return nil, stats, err
			}
			stats.DroppedNoWeather++
			stats.WeatherFailures = append(stats.WeatherFailures, RowFailure{
				UsageID:    r.UsageID,
				CustomerID: r.CustomerID,
				Location:   r.Location,
				Year:       r.Year,
				Month:      r.month,
				Err:        lerr.Error(),
			})
			b.log.Debug("dropping row without weather",
				zap.Uint("usage_id", r.UsageID), zap.Stringer("kind", lerr.Kind))
			continue
		}

		out = append(out, FeatureRow{
			UsageID:             r.UsageID,
			CustomerID:          r.CustomerID,
			Location:            r.Location,
			Year:                r.Year,
			Month:               r.month,
			PreviousConsumption: prev.ConsumptionKWh,
			TemperatureC:        sample.TemperatureC,
			PrecipitationMM:     sample.PrecipitationMM,
			ConsumptionKWh:      r.ConsumptionKWh,
		})
	}
	stats.Kept = len(out)
	b.log.Info("training table built",
		zap.Int("usage_records", stats.UsageRecords),
		zap.Int("kept", stats.Kept),
		zap.Int("dropped_no_lag", stats.DroppedNoLag),
		zap.Int("dropped_no_weather", stats.DroppedNoWeather),
	)
	return out, stats, nil
}

// normalise parses every month and sorts rows by customer, then
// chronologically, then by insertion order.
func normalise(history []storage.UsageHistoryRow) ([]historyRow, error) {
	out := make([]historyRow, 0, len(history))
	for _, h := range history {
		m, err := period.ParseMonth(h.Month)
		if err != nil {
			return nil, fmt.Errorf("usage record %d: %w", h.UsageID, err)
		}
		out = append(out, historyRow{UsageHistoryRow: h, month: m})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CustomerID != b.CustomerID {
			return a.CustomerID < b.CustomerID
		}
		ka, kb := period.Key(a.Year, a.month), period.Key(b.Year, b.month)
		if ka != kb {
			return ka < kb
		}
		return a.UsageID < b.UsageID
	})
	return out, nil
}
