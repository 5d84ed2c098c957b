// Package period normalises the month values found in usage and bill rows.
// Rows written by older tooling carry English month names ("January"), newer
// ones carry numbers as text ("1", "01"); everything downstream works with
// time.Month.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
)

var monthsByName = func() map[string]time.Month {
	m := make(map[string]time.Month, 24)
	for mo := time.January; mo <= time.December; mo++ {
		name := strings.ToLower(mo.String())
		m[name] = mo
		m[name[:3]] = mo
	}
	return m
}()

// ParseMonth accepts a full or three-letter English month name (any case) or
// a number 1..12 written as text. Anything else is a data quality failure.
func ParseMonth(raw string) (time.Month, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if mo, ok := monthsByName[s]; ok {
		return mo, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("month %q: %w", raw, apperr.ErrDataQuality)
	}
	if n < 1 || n > 12 {
		return 0, fmt.Errorf("month %q out of range: %w", raw, apperr.ErrDataQuality)
	}
	return time.Month(n), nil
}

// Name is the canonical stored form of a month.
func Name(m time.Month) string {
	return m.String()
}

// Key orders (year, month) pairs chronologically.
func Key(year int, m time.Month) int {
	return year*12 + int(m) - 1
}

// End returns the first instant after the billing period year/month, in loc.
func End(year int, m time.Month, loc *time.Location) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
}
