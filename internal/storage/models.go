package storage

import "time"

// Customer is a billed account holder. Location is one of the known weather
// cities and drives forecast feature lookups.
type Customer struct {
	NationalID string `json:"national_id" gorm:"primaryKey;column:national_id"`
	Name       string `json:"name" gorm:"column:name"`
	Phone      string `json:"phone" gorm:"column:phone"`
	Email      string `json:"email" gorm:"column:email"`
	Address    string `json:"address" gorm:"column:address"`
	Location   string `json:"location" gorm:"column:location"`
	Status     string `json:"status" gorm:"column:status"`
}

func (Customer) TableName() string { return "customers" }

// UsageRecord is one monthly meter reading. Month is stored as text exactly as
// entered; consumers normalise it with period.ParseMonth.
type UsageRecord struct {
	ID             uint       `json:"usage_id" gorm:"primaryKey;column:id"`
	CustomerID     string     `json:"customer_id" gorm:"column:customer_id"`
	Month          string     `json:"month" gorm:"column:month"`
	Year           int        `json:"year" gorm:"column:year"`
	ConsumptionKWh float64    `json:"consumption_kwh" gorm:"column:consumption_kwh"`
	ReadingDate    *time.Time `json:"reading_date,omitempty" gorm:"column:reading_date"`
}

func (UsageRecord) TableName() string { return "usage_records" }

// UsageHistoryRow is a usage record joined with the owning customer's location.
type UsageHistoryRow struct {
	UsageID        uint    `json:"usage_id" gorm:"column:usage_id"`
	CustomerID     string  `json:"customer_id" gorm:"column:customer_id"`
	Month          string  `json:"month" gorm:"column:month"`
	Year           int     `json:"year" gorm:"column:year"`
	ConsumptionKWh float64 `json:"consumption_kwh" gorm:"column:consumption_kwh"`
	Location       string  `json:"location" gorm:"column:location"`
}

// Bill is the charge issued for one usage record.
type Bill struct {
	ID             uint       `json:"bill_id" gorm:"primaryKey;column:id"`
	CustomerID     string     `json:"customer_id" gorm:"column:customer_id"`
	Month          string     `json:"month" gorm:"column:month"`
	Year           int        `json:"year" gorm:"column:year"`
	ConsumptionKWh float64    `json:"consumption_kwh" gorm:"column:consumption_kwh"`
	AmountDue      float64    `json:"amount_due" gorm:"column:amount_due"`
	DueDate        *time.Time `json:"due_date,omitempty" gorm:"column:due_date"`
	IsPaid         bool       `json:"is_paid" gorm:"column:is_paid"`
	CreatedDate    time.Time  `json:"created_date" gorm:"column:created_date"`
}

func (Bill) TableName() string { return "bills" }

// BillFilter narrows ListBills. Zero value lists every bill.
type BillFilter struct {
	CustomerID string
	UnpaidOnly bool
}

// Tariff is one persisted slab row. Rows sharing an EffectiveDate form a
// tariff generation.
type Tariff struct {
	TierID        uint      `json:"tier_id" gorm:"primaryKey;column:tier_id"`
	MinKWh        float64   `json:"min_kwh" gorm:"column:min_kwh"`
	MaxKWh        *float64  `json:"max_kwh" gorm:"column:max_kwh"`
	Rate          float64   `json:"rate" gorm:"column:rate"`
	EffectiveDate time.Time `json:"effective_date" gorm:"column:effective_date"`
}

func (Tariff) TableName() string { return "tariffs" }

// Payment records money received against a bill.
type Payment struct {
	ID            uint      `json:"payment_id" gorm:"primaryKey;column:id"`
	BillID        uint      `json:"bill_id" gorm:"column:bill_id"`
	CustomerID    string    `json:"customer_id" gorm:"column:customer_id"`
	AmountPaid    float64   `json:"amount_paid" gorm:"column:amount_paid"`
	PaymentDate   time.Time `json:"payment_date" gorm:"column:payment_date"`
	PaymentMethod string    `json:"payment_method" gorm:"column:payment_method"`
}

func (Payment) TableName() string { return "payments" }

// Prediction is the stored forecast for one customer and target month.
// (customer_id, year, month) is unique; writing again replaces the row.
type Prediction struct {
	CustomerID   string    `json:"customer_id" gorm:"primaryKey;column:customer_id"`
	Year         int       `json:"year" gorm:"primaryKey;autoIncrement:false;column:year"`
	Month        int       `json:"month" gorm:"primaryKey;autoIncrement:false;column:month"`
	PredictedKWh float64   `json:"predicted_kwh" gorm:"column:predicted_kwh"`
	Model        string    `json:"model" gorm:"column:model"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Prediction) TableName() string { return "predictions" }

// User is a login identity. Customers log in with their national id; admins
// have no customers row.
type User struct {
	NationalID   string    `json:"national_id" gorm:"primaryKey;column:national_id"`
	Name         string    `json:"name" gorm:"column:name"`
	Email        string    `json:"email" gorm:"column:email"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
}

func (User) TableName() string { return "users" }

// Session is a server-side login session. Only the sha256 of the bearer token
// is stored.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	UserID    string    `json:"user_id" gorm:"column:user_id"`
	TokenHash string    `json:"-" gorm:"column:token_hash"`
	Role      string    `json:"role" gorm:"column:role"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"column:expires_at"`
}

func (Session) TableName() string { return "sessions" }

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

func (CasbinRule) TableName() string { return "casbin_rules" }
