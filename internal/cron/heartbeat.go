package cron

import (
	"regexp"
	"strings"
)

type HeartbeatTask struct {
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
	Completed   bool   `json:"completed"`
	Schedule    string `json:"schedule,omitempty"`
}

var heartbeatLine = regexp.MustCompile(`^-\s*\[\s*([ xX]?)\s*\]\s*(.+?)(?:\s*\(([^)]+)\))?$`)

// ParseHeartbeat reads checklist lines such as "- [ ] Check inbox (every
// hour)". The frequency, when it translates, is exposed as Schedule.
func ParseHeartbeat(content string) []HeartbeatTask {
	var tasks []HeartbeatTask
	for _, line := range strings.Split(content, "\n") {
		m := heartbeatLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		t := HeartbeatTask{
			Description: strings.TrimSpace(m[2]),
			Frequency:   strings.TrimSpace(m[3]),
			Completed:   strings.EqualFold(m[1], "x"),
		}
		if t.Frequency != "" {
			if expr, rule := TranslateRule(t.Frequency); rule != "" {
				t.Schedule = expr
			}
		}
		tasks = append(tasks, t)
	}
	return tasks
}
