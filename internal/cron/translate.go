package cron

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// rule maps one anchored phrase pattern to a cron expression builder.
type rule struct {
	name    string
	pattern *regexp.Regexp
	build   func(m []string) (string, bool)
}

var weekdays = map[string]int{
	"sunday": 0, "sun": 0,
	"monday": 1, "mon": 1,
	"tuesday": 2, "tue": 2, "tues": 2,
	"wednesday": 3, "wed": 3,
	"thursday": 4, "thu": 4, "thur": 4, "thurs": 4,
	"friday": 5, "fri": 5,
	"saturday": 6, "sat": 6,
}

const (
	dayAlt  = `(sunday|sun|monday|mon|tuesday|tues|tue|wednesday|wed|thursday|thurs|thur|thu|friday|fri|saturday|sat)`
	timeAlt = `(?:\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?)?`
)

func phrase(p string) *regexp.Regexp {
	return regexp.MustCompile(`^(?i)` + p + `$`)
}

// rules is evaluated top to bottom and the first match wins. Phrases that
// carry a time ("daily at 9am") are listed before their bare forms, and
// every pattern is anchored, so a phrase never matches on a prefix.
var rules = []rule{
	{"keyword", phrase(`@(yearly|annually|monthly|weekly|daily|midnight|hourly|reboot)`), func(m []string) (string, bool) {
		switch strings.ToLower(m[1]) {
		case "annually":
			return "@yearly", true
		case "midnight":
			return "@daily", true
		default:
			return "@" + strings.ToLower(m[1]), true
		}
	}},
	{"every-minute", phrase(`every\s+minute`), func([]string) (string, bool) {
		return "* * * * *", true
	}},
	{"every-n-minutes", phrase(`every\s+(\d+)\s+minutes?`), func(m []string) (string, bool) {
		n, ok := step(m[1], 59)
		return fmt.Sprintf("*/%d * * * *", n), ok
	}},
	{"hourly", phrase(`(?:every\s+hour|hourly)`), func([]string) (string, bool) {
		return "0 * * * *", true
	}},
	{"every-n-hours", phrase(`every\s+(\d+)\s+hours?`), func(m []string) (string, bool) {
		n, ok := step(m[1], 23)
		return fmt.Sprintf("0 */%d * * *", n), ok
	}},
	{"daily-at", phrase(`(?:daily|every\s+day)\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`), func(m []string) (string, bool) {
		h, min, ok := clock(m[1], m[2], m[3])
		return fmt.Sprintf("%d %d * * *", min, h), ok
	}},
	{"daily", phrase(`(?:daily|every\s+day)`), func([]string) (string, bool) {
		return "0 0 * * *", true
	}},
	{"weekly-on", phrase(`(?:weekly|every\s+week)\s+on\s+` + dayAlt + timeAlt), weekdayAt},
	{"weekly", phrase(`(?:weekly|every\s+week)`), func([]string) (string, bool) {
		return "0 0 * * 0", true
	}},
	{"every-weekday", phrase(`every\s+` + dayAlt + timeAlt), weekdayAt},
	{"monthly", phrase(`(?:monthly|every\s+month)`), func([]string) (string, bool) {
		return "0 0 1 * *", true
	}},
}

func weekdayAt(m []string) (string, bool) {
	day := weekdays[strings.ToLower(m[1])]
	if m[2] == "" {
		return fmt.Sprintf("0 0 * * %d", day), true
	}
	h, min, ok := clock(m[2], m[3], m[4])
	return fmt.Sprintf("%d %d * * %d", min, h, day), ok
}

// Translate converts an English schedule phrase into a cron expression.
// Input that matches no rule, or matches one with out-of-range numbers, is
// returned unchanged on the assumption that it already is an expression.
func Translate(input string) string {
	expr, _ := TranslateRule(input)
	return expr
}

// TranslateRule is Translate that also reports which rule fired ("" when
// none did).
func TranslateRule(input string) (string, string) {
	s := strings.Join(strings.Fields(input), " ")
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		expr, ok := r.build(m)
		if !ok {
			return input, ""
		}
		return expr, r.name
	}
	return input, ""
}

func step(raw string, max int) (int, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, false
	}
	return n, true
}

// clock turns "9", "30", "pm" into 24h hour and minute.
func clock(hour, minute, meridiem string) (int, int, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil {
		return 0, 0, false
	}
	m := 0
	if minute != "" {
		if m, err = strconv.Atoi(minute); err != nil {
			return 0, 0, false
		}
	}
	switch strings.ToLower(meridiem) {
	case "am":
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		if h != 12 {
			h += 12
		}
	}
	if h > 23 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
