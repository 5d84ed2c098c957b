package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config is the single configuration object handed to every component.
type Config struct {
	Storage      StorageConfig      `mapstructure:"storage"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Log          LogConfig          `mapstructure:"log"`
	Weather      WeatherConfig      `mapstructure:"weather"`
	Forecast     ForecastConfig     `mapstructure:"forecast"`
	Billing      BillingConfig      `mapstructure:"billing"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Notification NotificationConfig `mapstructure:"notification"`
	Alert        AlertConfig        `mapstructure:"alert"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"` // memory, sqlite, postgres
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Location is a named city with coordinates used for weather lookups.
type Location struct {
	Name      string  `mapstructure:"name"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

type WeatherConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Locations  []Location    `mapstructure:"locations"`
}

type ForecastConfig struct {
	ModelPath      string        `mapstructure:"model_path"`
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay"`
	MinRows        int           `mapstructure:"min_rows"`
	TestRatio      float64       `mapstructure:"test_ratio"`
	RandomSeed     int64         `mapstructure:"random_seed"`
	Estimators     int           `mapstructure:"estimators"`
	MinSamplesLeaf int           `mapstructure:"min_samples_leaf"`
	FallbackTemp   float64       `mapstructure:"fallback_temp"`
	FallbackPrecip float64       `mapstructure:"fallback_precip"`
	ModelName      string        `mapstructure:"model_name"`
}

type BillingConfig struct {
	// DueDateSchedule is a standard 5-field cron expression; a bill is due at
	// the first tick after its billing period closes.
	DueDateSchedule string `mapstructure:"due_date_schedule"`
	Timezone        string `mapstructure:"timezone"`
}

type AuthConfig struct {
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type NotificationConfig struct {
	Provider       string `mapstructure:"provider"` // "", sendgrid, smtp
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	SMTPHost       string `mapstructure:"smtp_host"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	SMTPUsername   string `mapstructure:"smtp_username"`
	SMTPPassword   string `mapstructure:"smtp_password"`
	SMTPEncryption string `mapstructure:"smtp_encryption"` // none, ssl, tls
	FromAddress    string `mapstructure:"from_address"`
	FromName       string `mapstructure:"from_name"`
}

// AlertConfig points training-data alerts at a chat or generic webhook. An
// empty WebhookURL disables alerting.
type AlertConfig struct {
	WebhookURL  string        `mapstructure:"webhook_url"`
	WebhookType string        `mapstructure:"webhook_type"` // slack, discord, generic; guessed from the URL when empty
	MinFailures int           `mapstructure:"min_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: "sqlite", DSN: "electricity_billing.db", AutoMigrate: true},
		HTTP:    HTTPConfig{Addr: ":8000"},
		Log:     LogConfig{Level: "info", Format: "json"},
		Weather: WeatherConfig{
			BaseURL:    "https://archive-api.open-meteo.com/v1/archive",
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			Locations: []Location{
				{Name: "New York", Latitude: 40.7128, Longitude: -74.0060},
				{Name: "Los Angeles", Latitude: 34.0522, Longitude: -118.2437},
				{Name: "Chicago", Latitude: 41.8781, Longitude: -87.6298},
			},
		},
		Forecast: ForecastConfig{
			ModelPath:      "consumption_predictor_model.json",
			RateLimitDelay: 100 * time.Millisecond,
			MinRows:        10,
			TestRatio:      0.2,
			RandomSeed:     42,
			Estimators:     100,
			MinSamplesLeaf: 1,
			FallbackTemp:   20.0,
			FallbackPrecip: 10.0,
			ModelName:      "RandomForest_with_Weather",
		},
		Billing: BillingConfig{DueDateSchedule: "0 0 15 * *", Timezone: "UTC"},
		Auth:    AuthConfig{SessionTTL: 24 * time.Hour},
		Notification: NotificationConfig{
			SMTPPort:       587,
			SMTPEncryption: "tls",
			FromName:       "Electricity Billing",
		},
		Alert: AlertConfig{MinFailures: 1, Timeout: 10 * time.Second},
	}
}

// Load builds the configuration from defaults, an optional ebilling.yaml,
// a .env file and EBILLING_* environment variables, in increasing priority.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("ebilling")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ebilling")
	v.SetEnvPrefix("EBILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	defaultLocations := cfg.Weather.Locations
	cfg.Weather.Locations = nil
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Weather.Locations) == 0 {
		cfg.Weather.Locations = defaultLocations
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("storage.driver", c.Storage.Driver)
	v.SetDefault("storage.dsn", c.Storage.DSN)
	v.SetDefault("storage.auto_migrate", c.Storage.AutoMigrate)
	v.SetDefault("http.addr", c.HTTP.Addr)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
	v.SetDefault("weather.base_url", c.Weather.BaseURL)
	v.SetDefault("weather.timeout", c.Weather.Timeout)
	v.SetDefault("weather.max_retries", c.Weather.MaxRetries)
	v.SetDefault("forecast.model_path", c.Forecast.ModelPath)
	v.SetDefault("forecast.rate_limit_delay", c.Forecast.RateLimitDelay)
	v.SetDefault("forecast.min_rows", c.Forecast.MinRows)
	v.SetDefault("forecast.test_ratio", c.Forecast.TestRatio)
	v.SetDefault("forecast.random_seed", c.Forecast.RandomSeed)
	v.SetDefault("forecast.estimators", c.Forecast.Estimators)
	v.SetDefault("forecast.min_samples_leaf", c.Forecast.MinSamplesLeaf)
	v.SetDefault("forecast.fallback_temp", c.Forecast.FallbackTemp)
	v.SetDefault("forecast.fallback_precip", c.Forecast.FallbackPrecip)
	v.SetDefault("forecast.model_name", c.Forecast.ModelName)
	v.SetDefault("billing.due_date_schedule", c.Billing.DueDateSchedule)
	v.SetDefault("billing.timezone", c.Billing.Timezone)
	v.SetDefault("auth.session_ttl", c.Auth.SessionTTL)
	v.SetDefault("auth.cookie_secure", c.Auth.CookieSecure)
	v.SetDefault("notification.provider", c.Notification.Provider)
	v.SetDefault("notification.sendgrid_api_key", c.Notification.SendgridAPIKey)
	v.SetDefault("notification.smtp_host", c.Notification.SMTPHost)
	v.SetDefault("notification.smtp_port", c.Notification.SMTPPort)
	v.SetDefault("notification.smtp_username", c.Notification.SMTPUsername)
	v.SetDefault("notification.smtp_password", c.Notification.SMTPPassword)
	v.SetDefault("notification.smtp_encryption", c.Notification.SMTPEncryption)
	v.SetDefault("notification.from_address", c.Notification.FromAddress)
	v.SetDefault("notification.from_name", c.Notification.FromName)
	v.SetDefault("alert.webhook_url", c.Alert.WebhookURL)
	v.SetDefault("alert.webhook_type", c.Alert.WebhookType)
	v.SetDefault("alert.min_failures", c.Alert.MinFailures)
	v.SetDefault("alert.timeout", c.Alert.Timeout)
}

// Validate rejects configurations the components cannot run with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	case "":
		return errors.New("storage.driver cannot be empty")
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, sqlite, postgres", c.Storage.Driver)
	}
	if c.Forecast.MinRows <= 0 {
		return fmt.Errorf("forecast.min_rows must be positive, got %d", c.Forecast.MinRows)
	}
	if c.Forecast.TestRatio <= 0 || c.Forecast.TestRatio >= 1 {
		return fmt.Errorf("forecast.test_ratio must be in (0,1), got %v", c.Forecast.TestRatio)
	}
	if c.Forecast.Estimators <= 0 {
		return fmt.Errorf("forecast.estimators must be positive, got %d", c.Forecast.Estimators)
	}
	if _, err := cron.ParseStandard(c.Billing.DueDateSchedule); err != nil {
		return fmt.Errorf("billing.due_date_schedule %q: %w", c.Billing.DueDateSchedule, err)
	}
	if _, err := time.LoadLocation(c.Billing.Timezone); err != nil {
		return fmt.Errorf("billing.timezone %q: %w", c.Billing.Timezone, err)
	}
	switch c.Notification.Provider {
	case "", "sendgrid", "smtp":
	default:
		return fmt.Errorf("notification.provider %q is not one of sendgrid, smtp", c.Notification.Provider)
	}
	switch c.Alert.WebhookType {
	case "", "slack", "discord", "generic":
	default:
		return fmt.Errorf("alert.webhook_type %q is not one of slack, discord, generic", c.Alert.WebhookType)
	}
	return nil
}

// LocationMap indexes the configured locations by name.
func (w WeatherConfig) LocationMap() map[string]Location {
	out := make(map[string]Location, len(w.Locations))
	for _, l := range w.Locations {
		out[l.Name] = l
	}
	return out
}
