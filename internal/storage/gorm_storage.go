package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/metrics"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/migrate"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db     *gorm.DB
	driver string
	log    *zap.Logger
}

func NewGormStorage(driver, dsn string, log *zap.Logger) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	switch driver {
	case "postgres":
		gormDialector = postgres.Open(dsn)
	case "sqlite":
		gormDialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// One writer at a time; avoids SQLITE_BUSY between pooled connections.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &GormStorage{db: db, driver: driver, log: log}, nil
}

// Migrate applies the embedded goose migrations on the underlying connection.
func (s *GormStorage) Migrate(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return migrate.Up(ctx, sqlDB, s.driver, s.log)
}

// MigrateDown rolls back the newest migration.
func (s *GormStorage) MigrateDown(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return migrate.Down(ctx, sqlDB, s.driver, s.log)
}

// MigrationStatus logs which migrations have been applied.
func (s *GormStorage) MigrationStatus(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return migrate.Status(ctx, sqlDB, s.driver, s.log)
}

// Customers

func (s *GormStorage) CreateCustomer(ctx context.Context, c Customer) error {
	err := s.db.WithContext(ctx).Create(&c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("customer %s: %w", c.NationalID, apperr.ErrAlreadyExists)
	}
	return err
}

func (s *GormStorage) GetCustomer(ctx context.Context, nationalID string) (*Customer, error) {
	var c Customer
	result := s.db.WithContext(ctx).First(&c, "national_id = ?", nationalID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &c, nil
}

func (s *GormStorage) ListCustomers(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	result := s.db.WithContext(ctx).Order("national_id").Find(&customers)
	return customers, result.Error
}

// Usage

func (s *GormStorage) CreateUsageRecord(ctx context.Context, rec *UsageRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *GormStorage) ListUsageHistory(ctx context.Context, customerID string) ([]UsageHistoryRow, error) {
	var rows []UsageHistoryRow
	q := s.db.WithContext(ctx).
		Table("usage_records AS u").
		Select("u.id AS usage_id, u.customer_id, u.month, u.year, u.consumption_kwh, c.location").
		Joins("JOIN customers c ON u.customer_id = c.national_id")
	if customerID != "" {
		q = q.Where("u.customer_id = ?", customerID)
	}
	result := q.Order("u.customer_id, u.id").Scan(&rows)
	return rows, result.Error
}

// Bills

func (s *GormStorage) CreateBill(ctx context.Context, b *Bill) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *GormStorage) ListBills(ctx context.Context, f BillFilter) ([]Bill, error) {
	var bills []Bill
	q := s.db.WithContext(ctx)
	if f.CustomerID != "" {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.UnpaidOnly {
		q = q.Where("is_paid = ?", false)
	}
	result := q.Order("id").Find(&bills)
	return bills, result.Error
}

// Tariffs

func (s *GormStorage) ListTariffs(ctx context.Context) ([]Tariff, error) {
	var tariffs []Tariff
	result := s.db.WithContext(ctx).Order("effective_date, min_kwh").Find(&tariffs)
	return tariffs, result.Error
}

func (s *GormStorage) ReplaceTariffs(ctx context.Context, rows []Tariff) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM tariffs").Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// Payments

func (s *GormStorage) CreatePayment(ctx context.Context, p *Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStorage) ListPayments(ctx context.Context, customerID string) ([]Payment, error) {
	var payments []Payment
	q := s.db.WithContext(ctx)
	if customerID != "" {
		q = q.Where("customer_id = ?", customerID)
	}
	result := q.Order("id").Find(&payments)
	return payments, result.Error
}

// Predictions

func (s *GormStorage) UpsertPrediction(ctx context.Context, p Prediction) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"predicted_kwh", "model", "created_at"}),
	}).Create(&p).Error
}

func (s *GormStorage) GetPrediction(ctx context.Context, customerID string, year, month int) (*Prediction, error) {
	var p Prediction
	result := s.db.WithContext(ctx).First(&p, "customer_id = ? AND year = ? AND month = ?", customerID, year, month)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &p, nil
}

func (s *GormStorage) ListPredictions(ctx context.Context, customerID string) ([]Prediction, error) {
	var preds []Prediction
	q := s.db.WithContext(ctx)
	if customerID != "" {
		q = q.Where("customer_id = ?", customerID)
	}
	result := q.Order("customer_id, year, month").Find(&preds)
	return preds, result.Error
}

// Users

func (s *GormStorage) CreateUser(ctx context.Context, user User) error {
	err := s.db.WithContext(ctx).Create(&user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("user %s: %w", user.NationalID, apperr.ErrAlreadyExists)
	}
	return err
}

func (s *GormStorage) GetUser(ctx context.Context, nationalID string) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).First(&user, "national_id = ?", nationalID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

// Sessions

func (s *GormStorage) CreateSession(ctx context.Context, sess Session) error {
	return s.db.WithContext(ctx).Create(&sess).Error
}

func (s *GormStorage) GetSessionByHash(ctx context.Context, hash string) (*Session, error) {
	var sess Session
	result := s.db.WithContext(ctx).First(&sess, "token_hash = ?", hash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &sess, nil
}

func (s *GormStorage) DeleteSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Session{}, "id = ?", id).Error
}

// Casbin Rules

func (s *GormStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	var rules []CasbinRule
	result := s.db.WithContext(ctx).Order("id").Find(&rules)
	return rules, result.Error
}

func (s *GormStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Create(&rule).Error
}

func (s *GormStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).
		Where("ptype = ? AND v0 = ? AND v1 = ? AND v2 = ? AND v3 = ? AND v4 = ? AND v5 = ?",
			rule.PType, rule.V0, rule.V1, rule.V2, rule.V3, rule.V4, rule.V5).
		Delete(&CasbinRule{}).Error
}

// Transactions

func (s *GormStorage) WithTx(ctx context.Context, fn func(Storage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStorage{db: tx, driver: s.driver, log: s.log})
	})
}

// resetOrder deletes children before parents so foreign keys hold.
var resetOrder = []string{
	"payments", "predictions", "bills", "usage_records",
	"sessions", "users", "customers", "tariffs", "casbin_rules",
}

func (s *GormStorage) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range resetOrder {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		return nil
	})
}

// Close & Ping

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ReportPoolMetrics publishes the connection pool counters.
func (s *GormStorage) ReportPoolMetrics() {
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	st := sqlDB.Stats()
	metrics.UpdateDBPoolMetrics(s.driver, st.OpenConnections, st.Idle, st.InUse)
}
