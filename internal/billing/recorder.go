// Package billing records monthly usage and issues the matching bills.
package billing

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/metrics"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/period"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/tariff"
)

// Notifier is told about every bill after it has been committed.
type Notifier interface {
	BillIssued(ctx context.Context, c storage.Customer, b storage.Bill) error
}

// UsageInput is one monthly meter reading to record.
type UsageInput struct {
	CustomerID     string
	ConsumptionKWh float64
	Month          string
	Year           int
	ReadingDate    *time.Time
}

// Recorder writes a usage record and its bill together.
type Recorder struct {
	store    storage.Storage
	dueDates *DueDatePolicy
	notifier Notifier
	now      func() time.Time
	log      *zap.Logger
}

type RecorderOption func(*Recorder)

// WithNotifier sets the notifier told about issued bills.
func WithNotifier(n Notifier) RecorderOption {
	return func(r *Recorder) { r.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(st storage.Storage, dueDates *DueDatePolicy, log *zap.Logger, opts ...RecorderOption) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{
		store:    st,
		dueDates: dueDates,
		now:      time.Now,
		log:      log.Named("recorder"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RecordUsageAndBill stores the usage record and an unpaid bill priced with
// the tariff in effect now. Both rows are written in one transaction: either
// both exist afterwards or neither does.
func (r *Recorder) RecordUsageAndBill(ctx context.Context, in UsageInput) (storage.Bill, error) {
	if in.ConsumptionKWh < 0 || math.IsNaN(in.ConsumptionKWh) || math.IsInf(in.ConsumptionKWh, 0) {
		return storage.Bill{}, fmt.Errorf("consumption %v kWh: %w", in.ConsumptionKWh, apperr.ErrInvalidArgument)
	}
	month, err := period.ParseMonth(in.Month)
	if err != nil {
		return storage.Bill{}, fmt.Errorf("month %q: %w", in.Month, apperr.ErrInvalidArgument)
	}
	if in.Year <= 0 {
		return storage.Bill{}, fmt.Errorf("year %d: %w", in.Year, apperr.ErrInvalidArgument)
	}

	now := r.now().UTC()
	var (
		bill     storage.Bill
		customer storage.Customer
	)
	err = r.store.WithTx(ctx, func(tx storage.Storage) error {
		c, err := tx.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: %s", ErrCustomerNotFound, in.CustomerID)
		}
		customer = *c

		slabs, err := tariff.CurrentSlabs(ctx, tx, now)
		if err != nil {
			return err
		}

		usage := &storage.UsageRecord{
			CustomerID:     in.CustomerID,
			Month:          period.Name(month),
			Year:           in.Year,
			ConsumptionKWh: in.ConsumptionKWh,
			ReadingDate:    in.ReadingDate,
		}
		if err := tx.CreateUsageRecord(ctx, usage); err != nil {
			return fmt.Errorf("insert usage: %w", err)
		}

		due := r.dueDates.DueDate(in.Year, month, now)
		bill = storage.Bill{
			CustomerID:     in.CustomerID,
			Month:          period.Name(month),
			Year:           in.Year,
			ConsumptionKWh: in.ConsumptionKWh,
			AmountDue:      tariff.ComputeBill(in.ConsumptionKWh, slabs),
			DueDate:        &due,
			IsPaid:         false,
			CreatedDate:    now,
		}
		if err := tx.CreateBill(ctx, &bill); err != nil {
			return fmt.Errorf("insert bill: %w", err)
		}
		return nil
	})
	if err != nil {
		return storage.Bill{}, err
	}

	metrics.ObserveBill(bill.ConsumptionKWh, bill.AmountDue)
	r.log.Info("bill added",
		zap.String("customer_id", bill.CustomerID),
		zap.String("period", fmt.Sprintf("%s/%d", bill.Month, bill.Year)),
		zap.Float64("consumption_kwh", bill.ConsumptionKWh),
		zap.Float64("amount_due", bill.AmountDue),
	)

	if r.notifier != nil {
		if err := r.notifier.BillIssued(ctx, customer, bill); err != nil {
			r.log.Warn("bill notification failed", zap.Uint("bill_id", bill.ID), zap.Error(err))
		}
	}
	return bill, nil
}
