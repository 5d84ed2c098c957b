// Package tariff implements the tiered (slab) electricity tariff.
package tariff

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
)

// Slab is a contiguous consumption range billed at a fixed rate per kWh.
// MaxKWh is nil for the unbounded top slab.
type Slab struct {
	MinKWh float64  `json:"min_kwh"`
	MaxKWh *float64 `json:"max_kwh"`
	Rate   float64  `json:"rate"`
}

// Unbounded reports whether s is the open-ended top slab.
func (s Slab) Unbounded() bool { return s.MaxKWh == nil }

// Line is the share of a bill that falls into one slab.
type Line struct {
	Slab   Slab            `json:"slab"`
	KWh    float64         `json:"kwh"`
	Amount decimal.Decimal `json:"amount"`
}

var ErrInvalidSlabs = fmt.Errorf("invalid tariff slabs: %w", apperr.ErrInvalidArgument)

// Itemize walks the slabs in the order given and returns the per-slab lines
// for consumptionKWh. Slabs must already be sorted by MinKWh ascending; they
// are not re-sorted here. Consumption beyond every bounded slab lands in the
// unbounded one.
func Itemize(consumptionKWh float64, slabs []Slab) []Line {
	remaining := decimal.NewFromFloat(consumptionKWh)
	lines := make([]Line, 0, len(slabs))
	for _, s := range slabs {
		if !remaining.IsPositive() {
			break
		}
		rate := decimal.NewFromFloat(s.Rate)
		if s.Unbounded() {
			lines = append(lines, newLine(s, remaining, rate))
			break
		}
		width := decimal.NewFromFloat(*s.MaxKWh).Sub(decimal.NewFromFloat(s.MinKWh))
		used := decimal.Min(remaining, width)
		lines = append(lines, newLine(s, used, rate))
		remaining = remaining.Sub(used)
	}
	return lines
}

func newLine(s Slab, used, rate decimal.Decimal) Line {
	return Line{Slab: s, KWh: used.InexactFloat64(), Amount: used.Mul(rate)}
}

// ComputeBill returns the amount due for consumptionKWh under slabs. It has no
// side effects; negative consumption must be rejected by the caller.
func ComputeBill(consumptionKWh float64, slabs []Slab) float64 {
	return Total(Itemize(consumptionKWh, slabs)).InexactFloat64()
}

// Total sums the line amounts.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

// Validate checks the slab invariant: sorted by MinKWh starting at zero,
// contiguous, non-overlapping, non-negative rates, and exactly one unbounded
// slab which is the last one.
func Validate(slabs []Slab) error {
	if len(slabs) == 0 {
		return fmt.Errorf("%w: no slabs", ErrInvalidSlabs)
	}
	for i, s := range slabs {
		if s.Rate < 0 {
			return fmt.Errorf("%w: slab %d has negative rate %v", ErrInvalidSlabs, i, s.Rate)
		}
		if i == 0 && s.MinKWh != 0 {
			return fmt.Errorf("%w: first slab starts at %v, want 0", ErrInvalidSlabs, s.MinKWh)
		}
		if i > 0 {
			prev := slabs[i-1]
			if prev.Unbounded() {
				return fmt.Errorf("%w: unbounded slab %d is not last", ErrInvalidSlabs, i-1)
			}
			if s.MinKWh != *prev.MaxKWh {
				return fmt.Errorf("%w: slab %d starts at %v, previous ends at %v", ErrInvalidSlabs, i, s.MinKWh, *prev.MaxKWh)
			}
		}
		if !s.Unbounded() && *s.MaxKWh <= s.MinKWh {
			return fmt.Errorf("%w: slab %d is empty (%v..%v)", ErrInvalidSlabs, i, s.MinKWh, *s.MaxKWh)
		}
	}
	if !slabs[len(slabs)-1].Unbounded() {
		return fmt.Errorf("%w: no unbounded top slab", ErrInvalidSlabs)
	}
	return nil
}
