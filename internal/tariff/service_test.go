package tariff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestSelectEffective_PicksNewestNotInFuture(t *testing.T) {
	rows := []storage.Tariff{
		{MinKWh: 0, MaxKWh: ptr(100), Rate: 0.10, EffectiveDate: day(2023, 1, 1)},
		{MinKWh: 100, Rate: 0.12, EffectiveDate: day(2023, 1, 1)},
		{MinKWh: 0, MaxKWh: ptr(100), Rate: 0.15, EffectiveDate: day(2024, 1, 1)},
		{MinKWh: 100, Rate: 0.20, EffectiveDate: day(2024, 1, 1)},
		{MinKWh: 0, Rate: 0.99, EffectiveDate: day(2030, 1, 1)},
	}

	got, err := SelectEffective(rows, day(2024, 6, 1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, day(2024, 1, 1), r.EffectiveDate)
	}

	got, err = SelectEffective(rows, day(2023, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, 0.10, FromTariffs(got)[0].Rate)

	_, err = SelectEffective(rows, day(2022, 1, 1))
	assert.ErrorIs(t, err, ErrNoTariff)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFromTariffs_SortsByMin(t *testing.T) {
	slabs := FromTariffs([]storage.Tariff{
		{MinKWh: 100, Rate: 0.20},
		{MinKWh: 0, MaxKWh: ptr(100), Rate: 0.15},
	})
	require.NoError(t, Validate(slabs))
	assert.Equal(t, 0.0, slabs[0].MinKWh)
}

func TestService_QuoteReadsFreshTariffs(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	svc := NewService(st)
	now := day(2024, 3, 10)

	_, err := svc.Quote(ctx, 10, now)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.Replace(ctx, defaultSlabs(), day(2024, 1, 1)))
	q, err := svc.Quote(ctx, 150, now)
	require.NoError(t, err)
	assert.Equal(t, "25", q.Amount.String())
	assert.Len(t, q.Lines, 2)

	require.NoError(t, svc.Replace(ctx, []Slab{{MinKWh: 0, Rate: 1}}, day(2024, 1, 1)))
	q, err = svc.Quote(ctx, 150, now)
	require.NoError(t, err)
	assert.Equal(t, "150", q.Amount.String())
}

func TestService_QuoteRejectsNegative(t *testing.T) {
	_, err := NewService(storage.NewMemory()).Quote(context.Background(), -1, time.Now())
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestService_ReplaceRejectsInvalid(t *testing.T) {
	err := NewService(storage.NewMemory()).Replace(context.Background(), []Slab{{MinKWh: 5, Rate: 1}}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidSlabs)
}
