package cron

import (
	"fmt"
	"strconv"
	"strings"
)

var keywordText = map[string]string{
	"@yearly":   "once a year at midnight on January 1",
	"@annually": "once a year at midnight on January 1",
	"@monthly":  "at midnight on the first day of every month",
	"@weekly":   "at midnight every Sunday",
	"@daily":    "every day at midnight",
	"@midnight": "every day at midnight",
	"@hourly":   "at the start of every hour",
	"@reboot":   "once at system startup",
}

var dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var monthNames = []string{"", "January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"}

// Explain renders a valid expression as an English sentence.
func Explain(expr string) (string, error) {
	if err := Validate(expr); err != nil {
		return "", err
	}
	expr = strings.TrimSpace(expr)
	if text, ok := keywordText[expr]; ok {
		return text, nil
	}
	f := strings.Fields(expr)
	minute, hour, dom, month, dow := f[0], f[1], f[2], f[3], f[4]

	var when string
	switch {
	case minute == "*" && hour == "*":
		when = "every minute"
	case strings.HasPrefix(minute, "*/") && hour == "*":
		when = "every " + minute[2:] + " minutes"
	case hour == "*":
		when = "at minute " + minute + " of every hour"
	case strings.HasPrefix(hour, "*/"):
		when = fmt.Sprintf("at minute %s every %s hours", minute, hour[2:])
	case isNumber(minute) && isNumber(hour):
		h, _ := strconv.Atoi(hour)
		m, _ := strconv.Atoi(minute)
		when = fmt.Sprintf("at %02d:%02d", h, m)
	default:
		when = fmt.Sprintf("at minute %s past hour %s", minute, hour)
	}

	parts := []string{when}
	if dom != "*" {
		parts = append(parts, "on day "+dom+" of the month")
	}
	if month != "*" {
		parts = append(parts, "in "+describeList(month, monthNames))
	}
	if dow != "*" {
		parts = append(parts, "on "+describeList(dow, dayNames))
	}
	if dom == "*" && dow == "*" && !strings.HasPrefix(when, "every") && hour != "*" && !strings.HasPrefix(hour, "*/") {
		parts = append(parts, "every day")
	}
	return strings.Join(parts, " "), nil
}

func describeList(field string, names []string) string {
	var out []string
	for _, item := range strings.Split(field, ",") {
		if lo, hi, ok := strings.Cut(item, "-"); ok && isNumber(lo) && isNumber(hi) {
			out = append(out, name(lo, names)+" through "+name(hi, names))
			continue
		}
		out = append(out, name(item, names))
	}
	return strings.Join(out, ", ")
}

func name(v string, names []string) string {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n >= len(names) || names[n] == "" {
		return v
	}
	return names[n]
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
