package cron

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/store"
)

// MaxHistory is the number of runs kept; older ones are dropped on write.
const MaxHistory = 1000

const (
	RunSuccess = "success"
	RunFailed  = "failed"
)

type Run struct {
	JobName    string    `json:"job_name"`
	Command    string    `json:"command"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
	Status     string    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	Output     string    `json:"output"`
	Error      string    `json:"error"`
}

type historyDoc struct {
	Runs []Run `json:"runs"`
}

type HistoryFilter struct {
	Job    string
	Status string
	Since  time.Duration
	Limit  int
}

type HistoryStore struct {
	file *store.JSONFile[historyDoc]
	max  int
}

func NewHistoryStore(path string) *HistoryStore {
	return &HistoryStore{file: store.NewJSONFile[historyDoc](path, nil), max: MaxHistory}
}

// Record appends run and keeps only the newest MaxHistory entries.
func (h *HistoryStore) Record(run Run) error {
	return h.file.Update(func(doc *historyDoc) error {
		doc.Runs = append(doc.Runs, run)
		if over := len(doc.Runs) - h.max; over > 0 {
			doc.Runs = append([]Run(nil), doc.Runs[over:]...)
		}
		return nil
	})
}

// All returns every stored run in insertion order.
func (h *HistoryStore) All() ([]Run, error) {
	doc, err := h.file.Load()
	if err != nil {
		return nil, err
	}
	return doc.Runs, nil
}

// Query returns matching runs, newest first.
func (h *HistoryStore) Query(f HistoryFilter, now time.Time) ([]Run, error) {
	runs, err := h.All()
	if err != nil {
		return nil, err
	}
	var out []Run
	for _, r := range runs {
		if f.Job != "" && r.JobName != f.Job {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Since > 0 && r.StartedAt.Before(now.Add(-f.Since)) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

var sincePattern = regexp.MustCompile(`^(\d+)([hdw])$`)

// ParseSince reads "24h", "7d" or "2w".
func ParseSince(s string) (time.Duration, error) {
	m := sincePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q (want Nh, Nd or Nw)", s)
	}
	n, _ := strconv.Atoi(m[1])
	unit := time.Hour
	switch m[2] {
	case "d":
		unit = 24 * time.Hour
	case "w":
		unit = 7 * 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

// ExportRuns writes runs as json or csv.
func ExportRuns(w io.Writer, runs []Run, format string) error {
	switch format {
	case "json":
		if runs == nil {
			runs = []Run{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case "csv":
		cw := csv.NewWriter(w)
		cw.Write([]string{"job_name", "started_at", "status", "duration_ms", "exit_code"})
		for _, r := range runs {
			cw.Write([]string{
				r.JobName,
				r.StartedAt.Format(time.RFC3339),
				r.Status,
				strconv.FormatInt(r.DurationMs, 10),
				strconv.Itoa(r.ExitCode),
			})
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown export format %q (want json or csv)", format)
	}
}
