package cron

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	rcron "github.com/robfig/cron/v3"
)

var ErrInvalidSchedule = errors.New("invalid cron schedule")

var specials = map[string]bool{
	"@yearly": true, "@annually": true, "@monthly": true, "@weekly": true,
	"@daily": true, "@midnight": true, "@hourly": true, "@reboot": true,
}

type fieldSpec struct {
	name     string
	min, max int
}

var fields = []fieldSpec{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day of month", 1, 31},
	{"month", 1, 12},
	{"day of week", 0, 7},
}

var fieldChars = regexp.MustCompile(`^[\d*,/\-]+$`)

// Validate checks a 5-field expression or @ keyword. Field values are range
// checked one field at a time; day-of-month/month combinations such as
// "30 2" are not cross-checked.
func Validate(expr string) error {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "@") {
		if specials[expr] {
			return nil
		}
		return fmt.Errorf("%w: unknown keyword %q", ErrInvalidSchedule, expr)
	}

	parts := strings.Fields(expr)
	if len(parts) != len(fields) {
		return fmt.Errorf("%w: expected 5 fields, got %d", ErrInvalidSchedule, len(parts))
	}
	for i, part := range parts {
		if err := validateField(part, fields[i]); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, fields[i].name, err)
		}
	}
	return nil
}

func validateField(part string, spec fieldSpec) error {
	if !fieldChars.MatchString(part) {
		return fmt.Errorf("invalid characters in %q", part)
	}
	for _, item := range strings.Split(part, ",") {
		if item == "" {
			return fmt.Errorf("empty list item in %q", part)
		}
		rng, stepStr, hasStep := strings.Cut(item, "/")
		if hasStep {
			n, err := strconv.Atoi(stepStr)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid step %q", stepStr)
			}
		}
		if rng == "*" {
			continue
		}
		values := []string{rng}
		if lo, hi, isRange := strings.Cut(rng, "-"); isRange {
			values = []string{lo, hi}
		}
		for _, v := range values {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value %q", item)
			}
			if n < spec.min || n > spec.max {
				return fmt.Errorf("value %d out of range %d-%d", n, spec.min, spec.max)
			}
		}
	}
	return nil
}

var standardParser = rcron.NewParser(rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor)

// NextRuns returns up to n activation times after from. @reboot and
// expressions that never fire (30 February) yield no times.
func NextRuns(expr string, from time.Time, n int) ([]time.Time, error) {
	if err := Validate(expr); err != nil {
		return nil, err
	}
	if strings.TrimSpace(expr) == "@reboot" {
		return nil, nil
	}
	sched, err := standardParser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	var out []time.Time
	t := from
	for len(out) < n {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}
