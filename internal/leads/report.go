package leads

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

const HighValueScore = 70

var periodDays = map[string]int{
	"all":       0,
	"weekly":    7,
	"monthly":   30,
	"quarterly": 90,
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type Report struct {
	Period         string         `json:"period"`
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	ConversionRate float64        `json:"conversion_rate"`
	AverageScore   float64        `json:"average_score"`
	Sources        []SourceCount  `json:"sources"`
	HighValue      []Lead         `json:"high_value"`
}

// BuildReport summarizes leads created within the period ending at now.
func BuildReport(all []Lead, period string, now time.Time) (Report, error) {
	days, ok := periodDays[period]
	if !ok {
		return Report{}, fmt.Errorf("unknown period %q (want all, weekly, monthly or quarterly)", period)
	}
	var leads []Lead
	for _, l := range all {
		if days > 0 && l.CreatedAt.Before(now.AddDate(0, 0, -days)) {
			continue
		}
		leads = append(leads, l)
	}

	rep := Report{Period: period, Total: len(leads), ByStatus: make(map[string]int)}
	for _, s := range Statuses {
		rep.ByStatus[s] = 0
	}
	sources := make(map[string]int)
	var scoreSum int
	for _, l := range leads {
		rep.ByStatus[l.Status]++
		sources[l.Source]++
		scoreSum += l.Score
		if l.Score >= HighValueScore && l.Active() {
			rep.HighValue = append(rep.HighValue, l)
		}
	}
	if closed := rep.ByStatus[StatusConverted] + rep.ByStatus[StatusLost]; closed > 0 {
		rep.ConversionRate = float64(rep.ByStatus[StatusConverted]) / float64(closed) * 100
	}
	if len(leads) > 0 {
		rep.AverageScore = float64(scoreSum) / float64(len(leads))
	}
	for src, n := range sources {
		rep.Sources = append(rep.Sources, SourceCount{Source: src, Count: n})
	}
	sort.Slice(rep.Sources, func(i, j int) bool {
		if rep.Sources[i].Count != rep.Sources[j].Count {
			return rep.Sources[i].Count > rep.Sources[j].Count
		}
		return rep.Sources[i].Source < rep.Sources[j].Source
	})
	sort.SliceStable(rep.HighValue, func(i, j int) bool {
		return rep.HighValue[i].Score > rep.HighValue[j].Score
	})
	if len(rep.HighValue) > 5 {
		rep.HighValue = rep.HighValue[:5]
	}
	return rep, nil
}

func WriteReport(w io.Writer, rep Report) {
	title := strings.ToUpper(rep.Period[:1]) + rep.Period[1:]
	fmt.Fprintf(w, "Lead Report (%s)\n", title)
	fmt.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintf(w, "Total leads: %d\n\n", rep.Total)
	fmt.Fprintln(w, "By status:")
	for _, s := range Statuses {
		fmt.Fprintf(w, "  %-10s %d\n", s, rep.ByStatus[s])
	}
	fmt.Fprintf(w, "\nConversion rate: %.1f%%\n", rep.ConversionRate)
	fmt.Fprintf(w, "Average score:   %.1f\n", rep.AverageScore)
	if len(rep.Sources) > 0 {
		fmt.Fprintln(w, "\nBy source:")
		for _, s := range rep.Sources {
			fmt.Fprintf(w, "  %-12s %d\n", s.Source, s.Count)
		}
	}
	if len(rep.HighValue) > 0 {
		fmt.Fprintln(w, "\nHigh-value leads:")
		for _, l := range rep.HighValue {
			fmt.Fprintf(w, "  #%d %s (%s) score %d\n", l.ID, l.Name, l.Company, l.Score)
		}
	}
}
