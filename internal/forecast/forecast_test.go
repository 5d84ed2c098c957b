package forecast

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/alerting"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/config"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/weather"
)

type fakeWeather struct {
	calls int
	fail  func(location string, year int, month time.Month) bool
}

func (f *fakeWeather) Lookup(ctx context.Context, location string, year int, month time.Month) (weather.Sample, error) {
	f.calls++
	if location == "Atlantis" {
		return weather.Sample{}, &weather.LookupError{Kind: weather.LookupMiss, Location: location}
	}
	if f.fail != nil && f.fail(location, year, month) {
		return weather.Sample{}, &weather.LookupError{Kind: weather.Transport, Location: location, Year: year, Month: int(month)}
	}
	return weather.Sample{TemperatureC: float64(month) * 2, PrecipitationMM: 5}, nil
}

func addCustomer(t *testing.T, st storage.Storage, id, location string) {
	t.Helper()
	require.NoError(t, st.CreateCustomer(context.Background(), storage.Customer{NationalID: id, Name: id, Location: location, Status: "active"}))
}

func addUsage(t *testing.T, st storage.Storage, id, month string, year int, kwh float64) {
	t.Helper()
	require.NoError(t, st.CreateUsageRecord(context.Background(), &storage.UsageRecord{
		CustomerID: id, Month: month, Year: year, ConsumptionKWh: kwh,
	}))
}

func testForecastConfig(dir string) config.ForecastConfig {
	cfg := config.Default().Forecast
	cfg.ModelPath = filepath.Join(dir, "model.json")
	cfg.RateLimitDelay = 0
	cfg.Estimators = 20
	return cfg
}

// seedHistory gives three customers eight months each, 21 trainable rows.
func seedHistory(t *testing.T, st storage.Storage) {
	t.Helper()
	for c, loc := range map[string]string{"C1": "New York", "C2": "Los Angeles", "C3": "Chicago"} {
		addCustomer(t, st, c, loc)
		for m := 1; m <= 8; m++ {
			addUsage(t, st, c, time.Month(m).String(), 2023, float64(200+m*15+len(loc)))
		}
	}
}

func TestBuilder_LagAcrossMonthFormats(t *testing.T) {
	st := storage.NewMemory()
	addCustomer(t, st, "C1", "New York")
	addUsage(t, st, "C1", "3", 2024, 400)
	addUsage(t, st, "C1", "January", 2024, 300)
	addUsage(t, st, "C1", "feb", 2024, 350)

	w := &fakeWeather{}
	rows, stats, err := NewBuilder(st, w, 0, zaptest.NewLogger(t)).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, time.February, rows[0].Month)
	assert.Equal(t, 300.0, rows[0].PreviousConsumption)
	assert.Equal(t, 350.0, rows[0].ConsumptionKWh)
	assert.Equal(t, time.March, rows[1].Month)
	assert.Equal(t, 350.0, rows[1].PreviousConsumption)
	assert.Equal(t, 6.0, rows[1].TemperatureC)

	assert.Equal(t, 3, stats.UsageRecords)
	assert.Equal(t, 1, stats.DroppedNoLag)
	assert.Equal(t, 2, stats.Kept)
}

func TestBuilder_LagStaysWithinCustomer(t *testing.T) {
	st := storage.NewMemory()
	addCustomer(t, st, "C1", "Chicago")
	addCustomer(t, st, "C2", "Chicago")
	addUsage(t, st, "C1", "December", 2023, 500)
	addUsage(t, st, "C2", "January", 2024, 100)
	addUsage(t, st, "C1", "January", 2024, 450)

	rows, _, err := NewBuilder(st, &fakeWeather{}, 0, nil).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "C1", rows[0].CustomerID)
	assert.Equal(t, 2024, rows[0].Year)
	assert.Equal(t, 500.0, rows[0].PreviousConsumption)
}

func TestBuilder_WeatherFailureDropsOnlyThatRow(t *testing.T) {
	st := storage.NewMemory()
	addCustomer(t, st, "C1", "New York")
	addCustomer(t, st, "C2", "Atlantis")
	for _, m := range []string{"January", "February", "March"} {
		addUsage(t, st, "C1", m, 2024, 100)
		addUsage(t, st, "C2", m, 2024, 100)
	}
	w := &fakeWeather{fail: func(_ string, _ int, m time.Month) bool { return m == time.February }}

	rows, stats, err := NewBuilder(st, w, 0, nil).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, time.March, rows[0].Month)
	assert.Equal(t, 3, stats.DroppedNoWeather)
}

type recordingAlerter struct {
	alerts []alerting.BuildAlert
}

func (r *recordingAlerter) SendBuildAlert(_ context.Context, a alerting.BuildAlert) error {
	r.alerts = append(r.alerts, a)
	return nil
}

func TestTrainer_AlertsOnWeatherDrops(t *testing.T) {
	cfg := testForecastConfig(t.TempDir())
	st := storage.NewMemory()
	seedHistory(t, st)
	w := &fakeWeather{fail: func(loc string, _ int, m time.Month) bool { return loc == "Chicago" && m == time.March }}
	alerter := &recordingAlerter{}

	_, report, err := NewTrainer(NewBuilder(st, w, 0, nil), NewArtifactStore(cfg.ModelPath), cfg, nil, WithAlerter(alerter)).Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, report.Rows)
	require.Len(t, report.Build.WeatherFailures, 1)

	require.Len(t, alerter.alerts, 1)
	a := alerter.alerts[0]
	assert.Equal(t, 21, a.Candidates)
	assert.Equal(t, 1, a.Dropped)
	require.Len(t, a.Failures, 1)
	assert.Equal(t, "C3 Chicago 2023-03", a.Failures[0].Subject)
}

func TestBuilder_BadMonthIsDataQuality(t *testing.T) {
	st := storage.NewMemory()
	addCustomer(t, st, "C1", "Chicago")
	addUsage(t, st, "C1", "Smarch", 2024, 100)

	_, _, err := NewBuilder(st, &fakeWeather{}, 0, nil).Build(context.Background())
	assert.ErrorIs(t, err, apperr.ErrDataQuality)
}

func TestBuilder_Throttles(t *testing.T) {
	st := storage.NewMemory()
	addCustomer(t, st, "C1", "Chicago")
	for m := 1; m <= 4; m++ {
		addUsage(t, st, "C1", fmt.Sprint(m), 2024, 100)
	}
	started := time.Now()
	_, stats, err := NewBuilder(st, &fakeWeather{}, 20*time.Millisecond, nil).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.WeatherCalls)
	assert.GreaterOrEqual(t, time.Since(started), 40*time.Millisecond)
}

func TestTrainer_InsufficientDataWritesNothing(t *testing.T) {
	dir := t.TempDir()
	cfg := testForecastConfig(dir)
	st := storage.NewMemory()
	addCustomer(t, st, "C1", "Chicago")
	for m := 1; m <= 5; m++ {
		addUsage(t, st, "C1", fmt.Sprint(m), 2024, 100)
	}

	tr := NewTrainer(NewBuilder(st, &fakeWeather{}, 0, nil), NewArtifactStore(cfg.ModelPath), cfg, zaptest.NewLogger(t))
	_, report, err := tr.Train(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.ErrorIs(t, err, apperr.ErrInsufficientData)
	assert.Equal(t, 4, report.Rows)

	_, statErr := os.Stat(cfg.ModelPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTrainer_TrainsAndSaves(t *testing.T) {
	dir := t.TempDir()
	cfg := testForecastConfig(dir)
	st := storage.NewMemory()
	seedHistory(t, st)

	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	newTrainer := func() *Trainer {
		tr := NewTrainer(NewBuilder(st, &fakeWeather{}, 0, nil), NewArtifactStore(cfg.ModelPath), cfg, nil)
		tr.now = func() time.Time { return fixed }
		return tr
	}

	forest, report, err := newTrainer().Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21, report.Rows)
	assert.Equal(t, 5, report.TestRows)
	assert.Equal(t, 16, report.TrainRows)
	assert.GreaterOrEqual(t, report.MAE, 0.0)
	assert.Len(t, forest.Trees, 20)
	assert.Equal(t, "RandomForest_with_Weather", forest.Model)
	assert.Equal(t, FeatureNames, forest.Features)

	loaded, err := NewArtifactStore(cfg.ModelPath).Load()
	require.NoError(t, err)
	assert.Equal(t, forest.Trees, loaded.Trees)

	again, _, err := newTrainer().Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, forest.Trees, again.Trees, "training is deterministic for a seed")
}

func TestPredictor_ModelMissingFailsFirst(t *testing.T) {
	dir := t.TempDir()
	cfg := testForecastConfig(dir)
	st := storage.NewMemory()
	w := &fakeWeather{}

	p := NewPredictor(st, NewArtifactStore(cfg.ModelPath), w, cfg, nil)
	_, err := p.Predict(context.Background(), "C1", 2024, time.April)
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, w.calls)
}

func trainedPredictor(t *testing.T, w *fakeWeather) (*Predictor, storage.Storage) {
	t.Helper()
	dir := t.TempDir()
	cfg := testForecastConfig(dir)
	st := storage.NewMemory()
	seedHistory(t, st)
	artifacts := NewArtifactStore(cfg.ModelPath)
	_, _, err := NewTrainer(NewBuilder(st, &fakeWeather{}, 0, nil), artifacts, cfg, nil).Train(context.Background())
	require.NoError(t, err)
	return NewPredictor(st, artifacts, w, cfg, zaptest.NewLogger(t)), st
}

func TestPredictor_NoHistory(t *testing.T) {
	p, _ := trainedPredictor(t, &fakeWeather{})
	_, err := p.Predict(context.Background(), "C404", 2024, time.April)
	assert.ErrorIs(t, err, ErrNoHistory)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPredictor_UpsertsAndFallsBack(t *testing.T) {
	w := &fakeWeather{fail: func(string, int, time.Month) bool { return true }}
	p, st := trainedPredictor(t, w)
	ctx := context.Background()

	first, err := p.Predict(ctx, "C1", 2023, time.September)
	require.NoError(t, err)
	assert.Equal(t, "RandomForest_with_Weather", first.Model)
	assert.Equal(t, 9, first.Month)
	assert.Greater(t, first.PredictedKWh, 0.0)
	assert.Equal(t, 1, w.calls)

	second, err := p.Predict(ctx, "C1", 2023, time.September)
	require.NoError(t, err)
	assert.InDelta(t, first.PredictedKWh, second.PredictedKWh, 1e-9)

	list, err := st.ListPredictions(ctx, "C1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPredictor_RejectsBadTarget(t *testing.T) {
	p, _ := trainedPredictor(t, &fakeWeather{})
	_, err := p.Predict(context.Background(), "C1", 2024, time.Month(0))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestFitForest_LearnsStepFunction(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 40; i++ {
		x = append(x, []float64{float64(i)})
		if i < 20 {
			y = append(y, 10)
		} else {
			y = append(y, 50)
		}
	}
	f, err := FitForest(x, y, ForestParams{Estimators: 25, Seed: 42})
	require.NoError(t, err)

	low, err := f.Predict([]float64{3})
	require.NoError(t, err)
	high, err := f.Predict([]float64{35})
	require.NoError(t, err)
	assert.InDelta(t, 10, low, 1e-9)
	assert.InDelta(t, 50, high, 1e-9)
}

func TestFitForest_ConstantTargetIsSingleLeaf(t *testing.T) {
	f, err := FitForest([][]float64{{1}, {2}, {3}}, []float64{7, 7, 7}, ForestParams{Estimators: 3, Seed: 1})
	require.NoError(t, err)
	for _, tree := range f.Trees {
		require.Len(t, tree.Nodes, 1)
		assert.True(t, tree.Nodes[0].Leaf)
	}
	_, err = FitForest(nil, nil, ForestParams{Estimators: 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestSplitIndices(t *testing.T) {
	train, test := splitIndices(21, 0.2, 42)
	assert.Len(t, test, 5)
	assert.Len(t, train, 16)

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, 21)

	train2, test2 := splitIndices(21, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestArtifactStore_MissingAndCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	_, err := NewArtifactStore(path).Load()
	assert.ErrorIs(t, err, ErrModelNotFound)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = NewArtifactStore(path).Load()
	assert.ErrorIs(t, err, apperr.ErrDataQuality)
}
