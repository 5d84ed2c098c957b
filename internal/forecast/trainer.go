package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/alerting"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/config"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/metrics"
)

var ErrInsufficientData = fmt.Errorf("not enough data to train a reliable model: %w", apperr.ErrInsufficientData)

// TrainReport summarises one training run.
type TrainReport struct {
	Rows      int        `json:"rows"`
	TrainRows int        `json:"train_rows"`
	TestRows  int        `json:"test_rows"`
	MAE       float64    `json:"mae"`
	R2        float64    `json:"r2"`
	Build     BuildStats `json:"build"`
	ModelPath string     `json:"model_path"`
	TrainedAt time.Time  `json:"trained_at"`
}

// Trainer fits the consumption model and saves it.
type Trainer struct {
	builder   *Builder
	artifacts *ArtifactStore
	cfg       config.ForecastConfig
	alerter   DropAlerter
	log       *zap.Logger
	now       func() time.Time
}

// DropAlerter is told when a build drops rows for lack of weather.
type DropAlerter interface {
	SendBuildAlert(ctx context.Context, alert alerting.BuildAlert) error
}

type TrainerOption func(*Trainer)

// WithAlerter reports weather-dropped rows through a.
func WithAlerter(a DropAlerter) TrainerOption {
	return func(t *Trainer) { t.alerter = a }
}

func NewTrainer(b *Builder, artifacts *ArtifactStore, cfg config.ForecastConfig, log *zap.Logger, opts ...TrainerOption) *Trainer {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Trainer{builder: b, artifacts: artifacts, cfg: cfg, log: log.Named("trainer"), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train builds the training table, holds out a seeded test split, fits the
// forest on the rest, evaluates it and overwrites the saved model. With fewer
// than MinRows usable rows nothing is written and ErrInsufficientData is
// returned.
func (t *Trainer) Train(ctx context.Context) (*Forest, TrainReport, error) {
	started := time.Now()
	f, report, err := t.train(ctx)
	metrics.UpdateJobMetrics("train", started, err)
	return f, report, err
}

func (t *Trainer) train(ctx context.Context) (*Forest, TrainReport, error) {
	buildStarted := time.Now()
	rows, stats, err := t.builder.Build(ctx)
	if err != nil {
		return nil, TrainReport{}, err
	}
	t.alertDropped(ctx, stats, time.Since(buildStarted))
	report := TrainReport{Rows: len(rows), Build: stats}
	if len(rows) < t.cfg.MinRows {
		t.log.Warn("not enough data to train a reliable model",
			zap.Int("rows", len(rows)), zap.Int("min_rows", t.cfg.MinRows))
		return nil, report, fmt.Errorf("%w: %d rows, need %d", ErrInsufficientData, len(rows), t.cfg.MinRows)
	}

	trainIdx, testIdx := splitIndices(len(rows), t.cfg.TestRatio, t.cfg.RandomSeed)
	xTrain, yTrain := matrix(rows, trainIdx)
	xTest, yTest := matrix(rows, testIdx)
	report.TrainRows, report.TestRows = len(trainIdx), len(testIdx)

	forest, err := FitForest(xTrain, yTrain, ForestParams{
		Estimators:     t.cfg.Estimators,
		MinSamplesLeaf: t.cfg.MinSamplesLeaf,
		Seed:           t.cfg.RandomSeed,
	})
	if err != nil {
		return nil, report, err
	}
	forest.Model = t.cfg.ModelName
	forest.Features = append([]string(nil), FeatureNames...)
	forest.TrainedAt = t.now().UTC()

	preds, err := forest.PredictAll(xTest)
	if err != nil {
		return nil, report, err
	}
	report.MAE = meanAbsoluteError(yTest, preds)
	report.R2 = stat.RSquaredFrom(preds, yTest, nil)

	if err := t.artifacts.Save(forest); err != nil {
		return nil, report, err
	}
	report.ModelPath = t.artifacts.Path()
	report.TrainedAt = forest.TrainedAt

	metrics.ForecastLastMAE.Set(report.MAE)
	metrics.ForecastLastR2.Set(report.R2)
	t.log.Info("model trained",
		zap.Int("train_rows", report.TrainRows),
		zap.Int("test_rows", report.TestRows),
		zap.Float64("mae_kwh", report.MAE),
		zap.Float64("r2", report.R2),
		zap.String("path", report.ModelPath),
	)
	return forest, report, nil
}

// alertDropped is best effort: a failed alert is logged, not returned.
func (t *Trainer) alertDropped(ctx context.Context, stats BuildStats, took time.Duration) {
	if t.alerter == nil || stats.DroppedNoWeather == 0 {
		return
	}
	alert := alerting.BuildAlert{
		Job:        "build_training_table",
		Candidates: stats.UsageRecords - stats.DroppedNoLag,
		Dropped:    stats.DroppedNoWeather,
		Duration:   took,
		Timestamp:  t.now().UTC(),
	}
	for _, f := range stats.WeatherFailures {
		alert.Failures = append(alert.Failures, alerting.Failure{
			Subject: fmt.Sprintf("%s %s %d-%02d", f.CustomerID, f.Location, f.Year, int(f.Month)),
			Error:   f.Err,
		})
	}
	if err := t.alerter.SendBuildAlert(ctx, alert); err != nil {
		t.log.Warn("failed to send drop alert", zap.Error(err))
	}
}

// splitIndices shuffles 0..n-1 with seed and holds out ceil(n*testRatio)
// indices for testing. At least one row is kept on each side when n >= 2.
func splitIndices(n int, testRatio float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Ceil(float64(n) * testRatio))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	return perm[nTest:], perm[:nTest]
}

func matrix(rows []FeatureRow, idx []int) ([][]float64, []float64) {
	x := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for k, i := range idx {
		x[k] = rows[i].Features()
		y[k] = rows[i].ConsumptionKWh
	}
	return x, y
}

func meanAbsoluteError(actual, predicted []float64) float64 {
	diffs := make([]float64, len(actual))
	for i := range actual {
		diffs[i] = math.Abs(actual[i] - predicted[i])
	}
	return stat.Mean(diffs, nil)
}
