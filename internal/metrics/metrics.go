package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebilling_requests_total",
			Help: "Total number of HTTP requests per path",
		},
		[]string{"path"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ebilling_request_duration_seconds",
			Help:    "Request duration in seconds per path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebilling_request_errors_total",
			Help: "Total number of error responses per path and status code",
		},
		[]string{"path", "code"},
	)

	DBOpenConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebilling_db_open_conns",
			Help: "Open connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebilling_db_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBInUseConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebilling_db_in_use_conns",
			Help: "Currently in-use connections per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, open, idle, inUse int) {
	DBOpenConns.WithLabelValues(driver).Set(float64(open))
	DBIdleConns.WithLabelValues(driver).Set(float64(idle))
	DBInUseConns.WithLabelValues(driver).Set(float64(inUse))
}

var (
	BillsRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ebilling_bills_recorded_total",
			Help: "Bills written by the usage recorder",
		},
	)

	BilledKWhTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ebilling_billed_kwh_total",
			Help: "Consumption in kWh across recorded bills",
		},
	)

	BilledAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ebilling_billed_amount_total",
			Help: "Amount due across recorded bills",
		},
	)
)

// ObserveBill records one bill written by the recorder.
func ObserveBill(kWh, amount float64) {
	BillsRecordedTotal.Inc()
	BilledKWhTotal.Add(kWh)
	BilledAmountTotal.Add(amount)
}

var (
	WeatherLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebilling_weather_lookups_total",
			Help: "Weather lookups by outcome (ok, miss, transport, status, malformed, missing_field)",
		},
		[]string{"outcome"},
	)

	WeatherLookupDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ebilling_weather_lookup_duration_seconds",
			Help:    "Latency of weather lookups including retries",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var (
	ForecastLastMAE = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ebilling_forecast_last_mae",
			Help: "Mean absolute error of the most recently trained model",
		},
	)

	ForecastLastR2 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ebilling_forecast_last_r2",
			Help: "R squared of the most recently trained model",
		},
	)

	PredictionsSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ebilling_predictions_saved_total",
			Help: "Predictions written by the forecast model",
		},
	)
)

var (
	JobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebilling_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	JobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebilling_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	JobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebilling_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

// UpdateJobMetrics records a finished run of a long job such as training
// or a training-table build.
func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	JobLastDurationSeconds.WithLabelValues(job).Set(dur)
	JobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		JobFailuresTotal.WithLabelValues(job).Inc()
	}
}
