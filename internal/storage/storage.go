package storage

import "context"

// Storage abstracts persistence for customers, usage, bills, tariffs and
// forecasts. Lookups of a single missing row return (nil, nil).
type Storage interface {
	// Customers
	CreateCustomer(ctx context.Context, c Customer) error
	GetCustomer(ctx context.Context, nationalID string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)

	// Usage. CreateUsageRecord assigns rec.ID.
	CreateUsageRecord(ctx context.Context, rec *UsageRecord) error
	// ListUsageHistory returns usage joined with customer location, ordered by
	// customer then insertion. An empty customerID lists every customer.
	ListUsageHistory(ctx context.Context, customerID string) ([]UsageHistoryRow, error)

	// Bills. CreateBill assigns b.ID.
	CreateBill(ctx context.Context, b *Bill) error
	ListBills(ctx context.Context, f BillFilter) ([]Bill, error)

	// Tariffs
	ListTariffs(ctx context.Context) ([]Tariff, error)
	// ReplaceTariffs deletes every tariff row and inserts rows.
	ReplaceTariffs(ctx context.Context, rows []Tariff) error

	// Payments
	CreatePayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, customerID string) ([]Payment, error)

	// Predictions
	UpsertPrediction(ctx context.Context, p Prediction) error
	GetPrediction(ctx context.Context, customerID string, year, month int) (*Prediction, error)
	ListPredictions(ctx context.Context, customerID string) ([]Prediction, error)

	// Users & sessions
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, nationalID string) (*User, error)
	CreateSession(ctx context.Context, s Session) error
	GetSessionByHash(ctx context.Context, hash string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error

	// Casbin
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// WithTx runs fn against a transactional view of the store. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Storage) error) error

	// Reset deletes every row from every table.
	Reset(ctx context.Context) error

	Ping(ctx context.Context) error
	// Close releases any resources (no-op for in-memory).
	Close() error
}
