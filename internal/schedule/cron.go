package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

// ErrNoRuns is returned when a recurrence is asked for fewer than one run.
var ErrNoRuns = errors.New("count must be greater than 0")

// Recurrence is a parsed cron expression.
type Recurrence struct {
	expr   *cronexpr.Expression
	source string
}

func ParseRecurrence(cron string) (*Recurrence, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cron, err)
	}
	return &Recurrence{expr: expr, source: cron}, nil
}

func (r *Recurrence) String() string {
	return r.source
}

// Next returns the next n run times strictly after the given time, in UTC.
// Expressions with no further runs yield fewer than n times.
func (r *Recurrence) Next(after time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, ErrNoRuns
	}
	times := r.expr.NextN(after.UTC(), uint(n))
	for i := range times {
		times[i] = times[i].UTC()
	}
	return times, nil
}

// RunTimes parses cron and returns its next n run times after the given time.
func RunTimes(cron string, after time.Time, n int) ([]time.Time, error) {
	r, err := ParseRecurrence(cron)
	if err != nil {
		return nil, err
	}
	return r.Next(after, n)
}
