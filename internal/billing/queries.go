package billing

import (
	"context"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

// Queries is the read-only reporting surface shared by the CLI and HTTP API.
type Queries struct {
	store storage.Storage
}

func NewQueries(st storage.Storage) *Queries {
	return &Queries{store: st}
}

// AllBills lists every bill in insertion order.
func (q *Queries) AllBills(ctx context.Context) ([]storage.Bill, error) {
	return q.store.ListBills(ctx, storage.BillFilter{})
}

// UnpaidBills lists a customer's unpaid bills. An empty id lists all unpaid bills.
func (q *Queries) UnpaidBills(ctx context.Context, customerID string) ([]storage.Bill, error) {
	return q.store.ListBills(ctx, storage.BillFilter{CustomerID: customerID, UnpaidOnly: true})
}

// BillHistory lists every bill of one customer.
func (q *Queries) BillHistory(ctx context.Context, customerID string) ([]storage.Bill, error) {
	return q.store.ListBills(ctx, storage.BillFilter{CustomerID: customerID})
}

func (q *Queries) Payments(ctx context.Context, customerID string) ([]storage.Payment, error) {
	return q.store.ListPayments(ctx, customerID)
}

// Summary is a customer's account overview.
type Summary struct {
	Customer       storage.Customer `json:"customer"`
	TotalBills     int              `json:"total_bills"`
	UnpaidBills    int              `json:"unpaid_bills"`
	OutstandingDue float64          `json:"outstanding_due"`
}

// CustomerSummary returns counts and the outstanding amount for c.
func (q *Queries) CustomerSummary(ctx context.Context, c storage.Customer) (Summary, error) {
	bills, err := q.BillHistory(ctx, c.NationalID)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Customer: c, TotalBills: len(bills)}
	for _, b := range bills {
		if !b.IsPaid {
			s.UnpaidBills++
			s.OutstandingDue += b.AmountDue
		}
	}
	return s, nil
}
