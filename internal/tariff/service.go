package tariff

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

var ErrNoTariff = fmt.Errorf("no tariff in effect: %w", apperr.ErrNotFound)

// Quote is a priced consumption figure with its per-slab breakdown.
type Quote struct {
	ConsumptionKWh float64         `json:"consumption_kwh"`
	Amount         decimal.Decimal `json:"amount"`
	Lines          []Line          `json:"lines"`
}

// Service loads the tariff table from storage. It never caches: every call
// reads the current rows.
type Service struct {
	store storage.Storage
}

func NewService(st storage.Storage) *Service {
	return &Service{store: st}
}

// FromTariffs converts stored rows to slabs sorted by MinKWh.
func FromTariffs(rows []storage.Tariff) []Slab {
	slabs := make([]Slab, 0, len(rows))
	for _, r := range rows {
		s := Slab{MinKWh: r.MinKWh, Rate: r.Rate}
		if r.MaxKWh != nil {
			max := *r.MaxKWh
			s.MaxKWh = &max
		}
		slabs = append(slabs, s)
	}
	sort.SliceStable(slabs, func(i, j int) bool { return slabs[i].MinKWh < slabs[j].MinKWh })
	return slabs
}

// SelectEffective returns the rows of the newest tariff generation whose
// effective date is on or before asOf.
func SelectEffective(rows []storage.Tariff, asOf time.Time) ([]storage.Tariff, error) {
	cutoff := dayOf(asOf)
	var (
		best  time.Time
		found bool
	)
	for _, r := range rows {
		eff := dayOf(r.EffectiveDate)
		if eff.After(cutoff) {
			continue
		}
		if !found || eff.After(best) {
			best, found = eff, true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w as of %s", ErrNoTariff, asOf.Format("2006-01-02"))
	}
	var out []storage.Tariff
	for _, r := range rows {
		if dayOf(r.EffectiveDate).Equal(best) {
			out = append(out, r)
		}
	}
	return out, nil
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CurrentSlabs returns the validated slabs in effect at asOf.
func (s *Service) CurrentSlabs(ctx context.Context, asOf time.Time) ([]Slab, error) {
	return CurrentSlabs(ctx, s.store, asOf)
}

// CurrentSlabs is the store-parameterised form used inside transactions.
func CurrentSlabs(ctx context.Context, st storage.Storage, asOf time.Time) ([]Slab, error) {
	rows, err := st.ListTariffs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tariffs: %w", err)
	}
	effective, err := SelectEffective(rows, asOf)
	if err != nil {
		return nil, err
	}
	slabs := FromTariffs(effective)
	if err := Validate(slabs); err != nil {
		return nil, err
	}
	return slabs, nil
}

// Quote prices consumptionKWh under the tariff in effect now.
func (s *Service) Quote(ctx context.Context, consumptionKWh float64, now time.Time) (Quote, error) {
	if consumptionKWh < 0 {
		return Quote{}, fmt.Errorf("consumption %v kWh: %w", consumptionKWh, apperr.ErrInvalidArgument)
	}
	slabs, err := s.CurrentSlabs(ctx, now)
	if err != nil {
		return Quote{}, err
	}
	lines := Itemize(consumptionKWh, slabs)
	return Quote{ConsumptionKWh: consumptionKWh, Amount: Total(lines), Lines: lines}, nil
}

// List returns every stored tariff row.
func (s *Service) List(ctx context.Context) ([]storage.Tariff, error) {
	return s.store.ListTariffs(ctx)
}

// Replace validates slabs and installs them as the only tariff generation,
// effective from effective.
func (s *Service) Replace(ctx context.Context, slabs []Slab, effective time.Time) error {
	if err := Validate(slabs); err != nil {
		return err
	}
	rows := make([]storage.Tariff, 0, len(slabs))
	for _, sl := range slabs {
		rows = append(rows, storage.Tariff{
			MinKWh:        sl.MinKWh,
			MaxKWh:        sl.MaxKWh,
			Rate:          sl.Rate,
			EffectiveDate: dayOf(effective),
		})
	}
	return s.store.ReplaceTariffs(ctx, rows)
}
