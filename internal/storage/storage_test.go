package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]Storage {
	t.Helper()
	ctx := context.Background()

	sqliteStore, err := Open(ctx, Config{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "billing.db"),
		AutoMigrate: true,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	memStore, err := Open(ctx, Config{Driver: "memory"}, nil)
	require.NoError(t, err)

	return map[string]Storage{"memory": memStore, "sqlite": sqliteStore}
}

func seedCustomer(t *testing.T, st Storage, id, location string) {
	t.Helper()
	require.NoError(t, st.CreateCustomer(context.Background(), Customer{
		NationalID: id,
		Name:       "Customer " + id,
		Location:   location,
		Status:     "active",
	}))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	require.Error(t, err)
}

func TestStorage_Customers(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedCustomer(t, st, "C2", "Chicago")
			seedCustomer(t, st, "C1", "New York")

			got, err := st.GetCustomer(ctx, "C1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "New York", got.Location)

			missing, err := st.GetCustomer(ctx, "nope")
			require.NoError(t, err)
			assert.Nil(t, missing)

			list, err := st.ListCustomers(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "C1", list[0].NationalID)

			err = st.CreateCustomer(ctx, Customer{NationalID: "C1", Name: "dup"})
			require.Error(t, err)
		})
	}
}

func TestStorage_UsageHistoryJoinsLocation(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedCustomer(t, st, "C1", "Los Angeles")
			seedCustomer(t, st, "C2", "Chicago")

			for _, rec := range []UsageRecord{
				{CustomerID: "C1", Month: "January", Year: 2024, ConsumptionKWh: 300},
				{CustomerID: "C2", Month: "Jan", Year: 2024, ConsumptionKWh: 120},
				{CustomerID: "C1", Month: "February", Year: 2024, ConsumptionKWh: 350},
			} {
				rec := rec
				require.NoError(t, st.CreateUsageRecord(ctx, &rec))
				assert.NotZero(t, rec.ID)
			}

			all, err := st.ListUsageHistory(ctx, "")
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "C1", all[0].CustomerID)
			assert.Equal(t, "January", all[0].Month)
			assert.Equal(t, "February", all[1].Month)
			assert.Equal(t, "Los Angeles", all[0].Location)

			one, err := st.ListUsageHistory(ctx, "C2")
			require.NoError(t, err)
			require.Len(t, one, 1)
			assert.Equal(t, "Chicago", one[0].Location)
			assert.InDelta(t, 120.0, one[0].ConsumptionKWh, 1e-9)
		})
	}
}

func TestStorage_BillsFilter(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedCustomer(t, st, "C1", "Chicago")
			seedCustomer(t, st, "C2", "Chicago")
			due := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

			bills := []*Bill{
				{CustomerID: "C1", Month: "January", Year: 2024, ConsumptionKWh: 100, AmountDue: 15, DueDate: &due, IsPaid: true},
				{CustomerID: "C1", Month: "February", Year: 2024, ConsumptionKWh: 150, AmountDue: 25, DueDate: &due},
				{CustomerID: "C2", Month: "February", Year: 2024, ConsumptionKWh: 0, AmountDue: 0, DueDate: &due},
			}
			for _, b := range bills {
				b.CreatedDate = time.Now().UTC()
				require.NoError(t, st.CreateBill(ctx, b))
				assert.NotZero(t, b.ID)
			}

			all, err := st.ListBills(ctx, BillFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 3)

			unpaid, err := st.ListBills(ctx, BillFilter{CustomerID: "C1", UnpaidOnly: true})
			require.NoError(t, err)
			require.Len(t, unpaid, 1)
			assert.Equal(t, "February", unpaid[0].Month)
			assert.InDelta(t, 25.0, unpaid[0].AmountDue, 1e-9)
			require.NotNil(t, unpaid[0].DueDate)
			assert.Equal(t, "2024-02-15", unpaid[0].DueDate.Format("2006-01-02"))
		})
	}
}

func TestStorage_ReplaceTariffs(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			eff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			max := 100.0
			rows := []Tariff{
				{MinKWh: 100, MaxKWh: nil, Rate: 0.20, EffectiveDate: eff},
				{MinKWh: 0, MaxKWh: &max, Rate: 0.15, EffectiveDate: eff},
			}
			require.NoError(t, st.ReplaceTariffs(ctx, rows))
			require.NoError(t, st.ReplaceTariffs(ctx, rows))

			got, err := st.ListTariffs(ctx)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, 0.0, got[0].MinKWh)
			require.NotNil(t, got[0].MaxKWh)
			assert.Equal(t, 100.0, *got[0].MaxKWh)
			assert.Nil(t, got[1].MaxKWh)
		})
	}
}

func TestStorage_UpsertPredictionReplaces(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedCustomer(t, st, "C1", "Chicago")

			require.NoError(t, st.UpsertPrediction(ctx, Prediction{CustomerID: "C1", Year: 2024, Month: 4, PredictedKWh: 310, Model: "m"}))
			require.NoError(t, st.UpsertPrediction(ctx, Prediction{CustomerID: "C1", Year: 2024, Month: 4, PredictedKWh: 320, Model: "m"}))

			list, err := st.ListPredictions(ctx, "C1")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.InDelta(t, 320.0, list[0].PredictedKWh, 1e-9)

			got, err := st.GetPrediction(ctx, "C1", 2024, 4)
			require.NoError(t, err)
			require.NotNil(t, got)

			none, err := st.GetPrediction(ctx, "C1", 2024, 5)
			require.NoError(t, err)
			assert.Nil(t, none)
		})
	}
}

func TestStorage_WithTxRollsBack(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedCustomer(t, st, "C1", "Chicago")
			boom := errors.New("boom")

			err := st.WithTx(ctx, func(tx Storage) error {
				rec := &UsageRecord{CustomerID: "C1", Month: "March", Year: 2024, ConsumptionKWh: 10}
				if err := tx.CreateUsageRecord(ctx, rec); err != nil {
					return err
				}
				return boom
			})
			require.ErrorIs(t, err, boom)

			hist, err := st.ListUsageHistory(ctx, "C1")
			require.NoError(t, err)
			assert.Empty(t, hist)

			err = st.WithTx(ctx, func(tx Storage) error {
				return tx.CreateUsageRecord(ctx, &UsageRecord{CustomerID: "C1", Month: "March", Year: 2024, ConsumptionKWh: 10})
			})
			require.NoError(t, err)
			hist, err = st.ListUsageHistory(ctx, "C1")
			require.NoError(t, err)
			assert.Len(t, hist, 1)
		})
	}
}

func TestStorage_SessionsAndRules(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()
			require.NoError(t, st.CreateUser(ctx, User{NationalID: "A1", PasswordHash: "x", Role: "admin", CreatedAt: now}))
			require.NoError(t, st.CreateSession(ctx, Session{ID: "s1", UserID: "A1", TokenHash: "h1", Role: "admin", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

			sess, err := st.GetSessionByHash(ctx, "h1")
			require.NoError(t, err)
			require.NotNil(t, sess)
			assert.Equal(t, "A1", sess.UserID)

			require.NoError(t, st.DeleteSession(ctx, "s1"))
			sess, err = st.GetSessionByHash(ctx, "h1")
			require.NoError(t, err)
			assert.Nil(t, sess)

			rule := CasbinRule{PType: "p", V0: "admin", V1: "*", V2: "*"}
			require.NoError(t, st.AddCasbinRule(ctx, rule))
			rules, err := st.LoadCasbinRules(ctx)
			require.NoError(t, err)
			require.Len(t, rules, 1)
			require.NoError(t, st.RemoveCasbinRule(ctx, rule))
			rules, err = st.LoadCasbinRules(ctx)
			require.NoError(t, err)
			assert.Empty(t, rules)
		})
	}
}

func TestStorage_Reset(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedCustomer(t, st, "C1", "Chicago")
			require.NoError(t, st.CreateUsageRecord(ctx, &UsageRecord{CustomerID: "C1", Month: "May", Year: 2024, ConsumptionKWh: 1}))

			require.NoError(t, st.Reset(ctx))
			list, err := st.ListCustomers(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestMemoryStorage_UsageRequiresCustomer(t *testing.T) {
	err := NewMemory().CreateUsageRecord(context.Background(), &UsageRecord{CustomerID: "ghost"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
