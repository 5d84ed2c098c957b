package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/tariff"
)

var fixedNow = time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	bills []storage.Bill
	err   error
}

func (n *recordingNotifier) BillIssued(ctx context.Context, c storage.Customer, b storage.Bill) error {
	n.bills = append(n.bills, b)
	return n.err
}

func newFixture(t *testing.T, withTariff bool, opts ...RecorderOption) (*Recorder, storage.Storage) {
	t.Helper()
	ctx := context.Background()
	st := storage.NewMemory()
	require.NoError(t, st.CreateCustomer(ctx, storage.Customer{NationalID: "C1", Name: "John", Location: "New York", Status: "active"}))
	if withTariff {
		max := 100.0
		require.NoError(t, tariff.NewService(st).Replace(ctx, []tariff.Slab{
			{MinKWh: 0, MaxKWh: &max, Rate: 0.15},
			{MinKWh: 100, Rate: 0.20},
		}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	}
	policy, err := NewDueDatePolicy("0 0 15 * *", time.UTC)
	require.NoError(t, err)
	opts = append([]RecorderOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewRecorder(st, policy, zaptest.NewLogger(t), opts...), st
}

func TestRecordUsageAndBill(t *testing.T) {
	ctx := context.Background()
	rec, st := newFixture(t, true)

	bill, err := rec.RecordUsageAndBill(ctx, UsageInput{CustomerID: "C1", ConsumptionKWh: 150, Month: "feb", Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, 25.0, bill.AmountDue)
	assert.Equal(t, "February", bill.Month)
	assert.False(t, bill.IsPaid)
	assert.NotZero(t, bill.ID)
	require.NotNil(t, bill.DueDate)
	assert.Equal(t, "2024-03-15", bill.DueDate.Format("2006-01-02"))
	assert.Equal(t, fixedNow, bill.CreatedDate)

	hist, err := st.ListUsageHistory(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "February", hist[0].Month)
	assert.Equal(t, 150.0, hist[0].ConsumptionKWh)

	bills, err := st.ListBills(ctx, storage.BillFilter{CustomerID: "C1", UnpaidOnly: true})
	require.NoError(t, err)
	assert.Len(t, bills, 1)
}

func TestRecordUsageAndBill_ZeroConsumption(t *testing.T) {
	rec, _ := newFixture(t, true)
	bill, err := rec.RecordUsageAndBill(context.Background(), UsageInput{CustomerID: "C1", ConsumptionKWh: 0, Month: "1", Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, 0.0, bill.AmountDue)
}

func TestRecordUsageAndBill_Validation(t *testing.T) {
	rec, _ := newFixture(t, true)
	ctx := context.Background()

	_, err := rec.RecordUsageAndBill(ctx, UsageInput{CustomerID: "C1", ConsumptionKWh: -1, Month: "May", Year: 2024})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = rec.RecordUsageAndBill(ctx, UsageInput{CustomerID: "C1", ConsumptionKWh: 1, Month: "Smarch", Year: 2024})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = rec.RecordUsageAndBill(ctx, UsageInput{CustomerID: "C1", ConsumptionKWh: 1, Month: "May", Year: 0})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestRecordUsageAndBill_UnknownCustomerWritesNothing(t *testing.T) {
	rec, st := newFixture(t, true)
	ctx := context.Background()

	_, err := rec.RecordUsageAndBill(ctx, UsageInput{CustomerID: "ghost", ConsumptionKWh: 10, Month: "May", Year: 2024})
	assert.ErrorIs(t, err, ErrCustomerNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	bills, err := st.ListBills(ctx, storage.BillFilter{})
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestRecordUsageAndBill_NoTariffRollsBack(t *testing.T) {
	rec, st := newFixture(t, false)
	ctx := context.Background()

	_, err := rec.RecordUsageAndBill(ctx, UsageInput{CustomerID: "C1", ConsumptionKWh: 10, Month: "May", Year: 2024})
	assert.ErrorIs(t, err, tariff.ErrNoTariff)

	hist, err := st.ListUsageHistory(ctx, "C1")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestRecordUsageAndBill_NotificationIsBestEffort(t *testing.T) {
	n := &recordingNotifier{err: errors.New("smtp down")}
	rec, _ := newFixture(t, true, WithNotifier(n))

	bill, err := rec.RecordUsageAndBill(context.Background(), UsageInput{CustomerID: "C1", ConsumptionKWh: 100, Month: "April", Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, 15.0, bill.AmountDue)
	require.Len(t, n.bills, 1)
	assert.Equal(t, bill.ID, n.bills[0].ID)
}

func TestDueDatePolicy(t *testing.T) {
	p, err := NewDueDatePolicy("0 0 15 * *", time.UTC)
	require.NoError(t, err)

	// Period closes Feb 1, created before then: due on the 15th of February.
	created := time.Date(2023, 1, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC), p.DueDate(2023, time.January, created))

	// Created long after the period: due on the next 15th after creation.
	created = time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), p.DueDate(2023, time.January, created))

	// December rolls into the next year.
	created = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), p.DueDate(2023, time.December, created))

	_, err = NewDueDatePolicy("not a schedule", nil)
	assert.Error(t, err)
}

func TestCustomers_Add(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	svc := NewCustomers(st, []string{"New York", "Chicago"}, zaptest.NewLogger(t))

	c, err := svc.Add(ctx, storage.Customer{NationalID: " C9 ", Name: "Ann", Email: "ann@example.com", Location: "Chicago"})
	require.NoError(t, err)
	assert.Equal(t, "C9", c.NationalID)
	assert.Equal(t, "active", c.Status)

	_, err = svc.Add(ctx, storage.Customer{NationalID: "C9", Name: "Ann again"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	_, err = svc.Add(ctx, storage.Customer{NationalID: "C10", Name: "Bad", Email: "not-an-email"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.Add(ctx, storage.Customer{Name: "No id"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	// Unknown locations are accepted.
	_, err = svc.Add(ctx, storage.Customer{NationalID: "C11", Name: "Far", Location: "Atlantis"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestQueries_CustomerSummary(t *testing.T) {
	ctx := context.Background()
	rec, st := newFixture(t, true)
	for _, m := range []string{"January", "February"} {
		_, err := rec.RecordUsageAndBill(ctx, UsageInput{CustomerID: "C1", ConsumptionKWh: 150, Month: m, Year: 2024})
		require.NoError(t, err)
	}
	q := NewQueries(st)
	c, err := st.GetCustomer(ctx, "C1")
	require.NoError(t, err)

	s, err := q.CustomerSummary(ctx, *c)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalBills)
	assert.Equal(t, 2, s.UnpaidBills)
	assert.Equal(t, 50.0, s.OutstandingDue)

	unpaid, err := q.UnpaidBills(ctx, "C1")
	require.NoError(t, err)
	assert.Len(t, unpaid, 2)
}
