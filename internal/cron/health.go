package cron

import (
	"fmt"
	"sort"
	"time"
)

const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

type Issue struct {
	Job      string `json:"job"`
	Issue    string `json:"issue"`
	Severity string `json:"severity"`
}

type HealthReport struct {
	Checked int      `json:"checked"`
	Issues  []Issue  `json:"issues"`
	Healthy []string `json:"healthy"`
}

// CheckHealth inspects enabled jobs against their run history. A job gets
// at most one issue, checked in this order: never run, last run failed, at
// least 3 of the last 5 runs failed, overdue (two or more scheduled
// activations passed since the last run).
func CheckHealth(jobs []Job, runs []Run, now time.Time) HealthReport {
	byJob := make(map[string][]Run)
	for _, r := range runs {
		byJob[r.JobName] = append(byJob[r.JobName], r)
	}

	var rep HealthReport
	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		rep.Checked++
		jr := byJob[job.Name]
		sort.SliceStable(jr, func(i, j int) bool { return jr[i].StartedAt.After(jr[j].StartedAt) })

		if len(jr) == 0 {
			rep.Issues = append(rep.Issues, Issue{job.Name, "Never run", SeverityWarning})
			continue
		}
		last := jr[0]
		if last.Status == RunFailed {
			rep.Issues = append(rep.Issues, Issue{job.Name, fmt.Sprintf("Last run failed (exit code %d)", last.ExitCode), SeverityError})
			continue
		}
		recent := jr
		if len(recent) > 5 {
			recent = recent[:5]
		}
		failed := 0
		for _, r := range recent {
			if r.Status == RunFailed {
				failed++
			}
		}
		if failed >= 3 {
			rep.Issues = append(rep.Issues, Issue{job.Name, fmt.Sprintf("%d/5 recent runs failed", failed), SeverityError})
			continue
		}
		if next, err := NextRuns(job.Schedule, last.StartedAt, 2); err == nil && len(next) == 2 && next[1].Before(now) {
			overdue := now.Sub(next[0]).Round(time.Minute)
			rep.Issues = append(rep.Issues, Issue{job.Name, fmt.Sprintf("Overdue by %s", overdue), SeverityWarning})
			continue
		}
		rep.Healthy = append(rep.Healthy, job.Name)
	}
	return rep
}

// Critical keeps only error-severity issues.
func (r HealthReport) Critical() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}
