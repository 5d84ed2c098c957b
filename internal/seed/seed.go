// Package seed loads the demo data set: two admins, three customers with two
// months of usage, bills and payments, and the two-slab tariff.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/auth"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/tariff"
)

// TariffEffective is the effective date of the seeded tariff.
var TariffEffective = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

var admins = []storage.User{
	{NationalID: "A123456789", Name: "Admin One", Email: "admin1@example.com", Role: auth.RoleAdmin},
	{NationalID: "A987654321", Name: "Admin Two", Email: "admin2@example.com", Role: auth.RoleAdmin},
}

var customers = []storage.Customer{
	{NationalID: "C100000001", Name: "John Smith", Phone: "555-1234", Email: "john@example.com", Address: "123 Main St", Location: "New York"},
	{NationalID: "C100000002", Name: "Jane Doe", Phone: "555-5678", Email: "jane@example.com", Address: "456 Oak Ave", Location: "Los Angeles"},
	{NationalID: "C100000003", Name: "Bob Johnson", Phone: "555-9012", Email: "bob@example.com", Address: "789 Pine Rd", Location: "Chicago"},
}

type usageBill struct {
	customerID string
	month      time.Month
	year       int
	kWh        float64
	amount     float64
	paid       bool
}

var history = []usageBill{
	{"C100000001", time.January, 2023, 350, 62.50, true},
	{"C100000001", time.February, 2023, 420, 79.00, false},
	{"C100000002", time.January, 2023, 280, 47.00, true},
	{"C100000002", time.February, 2023, 310, 53.00, true},
	{"C100000003", time.January, 2023, 190, 28.50, false},
}

type payment struct {
	historyIdx int
	amount     float64
	date       time.Time
	method     string
}

var payments = []payment{
	{0, 62.50, day(2023, time.February, 10), "Credit Card"},
	{2, 47.00, day(2023, time.February, 12), "Bank Transfer"},
	{3, 53.00, day(2023, time.March, 5), "Debit Card"},
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(v float64) *float64 { return &v }

// Report counts what Load wrote.
type Report struct {
	Users, Customers, Usage, Bills, Payments, Tariffs int
}

// Load wipes st and writes the demo data. Every user's password is their
// national id.
func Load(ctx context.Context, st storage.Storage, sessionTTL time.Duration, log *zap.Logger) (Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var rep Report
	if err := st.Reset(ctx); err != nil {
		return rep, fmt.Errorf("reset: %w", err)
	}

	// A fresh auth service reinstalls the default access policy.
	authSvc, err := auth.NewService(ctx, st, sessionTTL, log)
	if err != nil {
		return rep, err
	}

	slabs := []tariff.Slab{
		{MinKWh: 0, MaxKWh: ptr(100), Rate: 0.15},
		{MinKWh: 100, Rate: 0.20},
	}
	if err := tariff.NewService(st).Replace(ctx, slabs, TariffEffective); err != nil {
		return rep, fmt.Errorf("tariffs: %w", err)
	}
	rep.Tariffs = len(slabs)

	for _, a := range admins {
		if err := authSvc.Register(ctx, a, a.NationalID); err != nil {
			return rep, fmt.Errorf("admin %s: %w", a.NationalID, err)
		}
		rep.Users++
	}
	for _, c := range customers {
		c.Status = "active"
		if err := st.CreateCustomer(ctx, c); err != nil {
			return rep, fmt.Errorf("customer %s: %w", c.NationalID, err)
		}
		rep.Customers++
		u := storage.User{NationalID: c.NationalID, Name: c.Name, Email: c.Email, Role: auth.RoleCustomer}
		if err := authSvc.Register(ctx, u, c.NationalID); err != nil {
			return rep, fmt.Errorf("user %s: %w", c.NationalID, err)
		}
		rep.Users++
	}

	billIDs := make([]uint, len(history))
	for i, h := range history {
		readingDate := day(h.year, h.month+1, 0)
		usage := storage.UsageRecord{
			CustomerID:     h.customerID,
			Month:          h.month.String(),
			Year:           h.year,
			ConsumptionKWh: h.kWh,
			ReadingDate:    &readingDate,
		}
		if err := st.CreateUsageRecord(ctx, &usage); err != nil {
			return rep, fmt.Errorf("usage %s %s: %w", h.customerID, usage.Month, err)
		}
		rep.Usage++

		due := day(h.year, h.month+1, 15)
		bill := storage.Bill{
			CustomerID:     h.customerID,
			Month:          h.month.String(),
			Year:           h.year,
			ConsumptionKWh: h.kWh,
			AmountDue:      h.amount,
			DueDate:        &due,
			IsPaid:         h.paid,
			CreatedDate:    readingDate,
		}
		if err := st.CreateBill(ctx, &bill); err != nil {
			return rep, fmt.Errorf("bill %s %s: %w", h.customerID, bill.Month, err)
		}
		billIDs[i] = bill.ID
		rep.Bills++
	}

	for _, p := range payments {
		row := storage.Payment{
			BillID:        billIDs[p.historyIdx],
			CustomerID:    history[p.historyIdx].customerID,
			AmountPaid:    p.amount,
			PaymentDate:   p.date,
			PaymentMethod: p.method,
		}
		if err := st.CreatePayment(ctx, &row); err != nil {
			return rep, fmt.Errorf("payment for bill %d: %w", row.BillID, err)
		}
		rep.Payments++
	}

	log.Info("demo data loaded",
		zap.Int("users", rep.Users),
		zap.Int("customers", rep.Customers),
		zap.Int("bills", rep.Bills),
	)
	return rep, nil
}

// Logins lists the seeded national ids; each one's password is the id itself.
func Logins() []string {
	out := make([]string, 0, len(admins)+len(customers))
	for _, a := range admins {
		out = append(out, a.NationalID)
	}
	for _, c := range customers {
		out = append(out, c.NationalID)
	}
	return out
}
