package billing

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/period"
)

// DueDatePolicy derives a bill's due date from a cron schedule. The due date
// is the first schedule tick after both the billing period has closed and the
// bill was created.
type DueDatePolicy struct {
	schedule cron.Schedule
	loc      *time.Location
}

// NewDueDatePolicy parses a standard 5-field cron expression such as
// "0 0 15 * *" (the 15th of every month).
func NewDueDatePolicy(expr string, loc *time.Location) (*DueDatePolicy, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("due date schedule %q: %w", expr, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DueDatePolicy{schedule: sched, loc: loc}, nil
}

// DueDate returns the due date for the billing period (year, month) of a bill
// created at createdAt.
func (p *DueDatePolicy) DueDate(year int, month time.Month, createdAt time.Time) time.Time {
	ref := period.End(year, month, p.loc)
	if c := createdAt.In(p.loc); c.After(ref) {
		ref = c
	}
	// Next is strictly after its argument; step back so a tick exactly at the
	// period end still counts.
	next := p.schedule.Next(ref.Add(-time.Second))
	y, m, d := next.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.loc)
}
