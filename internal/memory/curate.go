package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DefaultReviewDays = 7

// Move is one file relocated by Archive.
type Move struct {
	Month string
	From  string
	To    string
}

// Archive moves daily files dated before now minus days into
// archive/YYYY-MM/. Files are only ever moved; an existing destination is
// an error. With dryRun nothing changes on disk.
func (j *Journal) Archive(days int, dryRun bool) ([]Move, error) {
	all, err := j.Files(0)
	if err != nil {
		return nil, err
	}
	cutoff := j.now().AddDate(0, 0, -days)
	var moves []Move
	for _, f := range all {
		if !f.Date.Before(cutoff) {
			continue
		}
		month := f.Date.Format("2006-01")
		moves = append(moves, Move{
			Month: month,
			From:  f.Path,
			To:    filepath.Join(j.Dir, archiveName, month, f.Name()),
		})
	}
	sort.Slice(moves, func(a, b int) bool { return moves[a].To < moves[b].To })
	if dryRun {
		return moves, nil
	}
	for i, m := range moves {
		if err := os.MkdirAll(filepath.Dir(m.To), 0755); err != nil {
			return moves[:i], fmt.Errorf("create archive dir: %w", err)
		}
		if _, err := os.Stat(m.To); err == nil {
			return moves[:i], fmt.Errorf("archive %s: %w", m.To, fs.ErrExist)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return moves[:i], err
		}
		if err := os.Rename(m.From, m.To); err != nil {
			return moves[:i], fmt.Errorf("archive %s: %w", filepath.Base(m.From), err)
		}
	}
	return moves, nil
}

// Review groups the tagged entries of the last days by file and by tag.
type Review struct {
	Days  int
	Files []FileEntries
	ByTag map[string][]Entry
	Total int
}

type FileEntries struct {
	Name    string
	Entries []Entry
}

// Sections maps the tags Review suggests promoting into MEMORY.md to the
// section they belong in.
var Sections = []struct{ Tag, Section string }{
	{"DECISION", "Key Decisions"},
	{"LESSON", "Lessons Learned"},
	{"EVENT", "Important Events"},
	{"PROJECT", "Active Projects"},
}

func (j *Journal) Review(days int) (Review, error) {
	if days <= 0 {
		days = DefaultReviewDays
	}
	files, err := j.Files(days)
	if err != nil {
		return Review{}, err
	}
	r := Review{Days: days, ByTag: make(map[string][]Entry)}
	for _, f := range files {
		content, err := f.Read()
		if err != nil {
			return Review{}, err
		}
		fe := FileEntries{Name: f.Name()}
		for _, e := range ParseEntries(content, "") {
			e.Source = f.Name()
			e.Date = f.Date.Format(DateLayout)
			fe.Entries = append(fe.Entries, e)
			r.ByTag[e.Tag] = append(r.ByTag[e.Tag], e)
		}
		r.Total += len(fe.Entries)
		r.Files = append(r.Files, fe)
	}
	return r, nil
}

// Summary is the activity report for the last days.
type Summary struct {
	Days       int
	Files      int
	Total      int
	Counts     map[string]int
	Timeline   []DayCount
	Highlights map[string][]Highlight // MILESTONE, DECISION, LESSON; at most 3 each
}

type DayCount struct {
	Date    time.Time
	Entries int
}

type Highlight struct {
	Date    string
	Details string
}

var anyTag = regexp.MustCompile(`\[\w+`)

func (j *Journal) Summary(days int) (Summary, error) {
	if days <= 0 {
		days = DefaultReviewDays
	}
	files, err := j.Files(days)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		Days:       days,
		Files:      len(files),
		Counts:     make(map[string]int, len(Tags)),
		Highlights: make(map[string][]Highlight),
	}
	for i, f := range files {
		content, err := f.Read()
		if err != nil {
			return Summary{}, err
		}
		for _, tag := range Tags {
			n, details := CountTag(content, tag)
			s.Counts[tag] += n
			s.Total += n
			for _, d := range details {
				s.Highlights[tag] = append(s.Highlights[tag], Highlight{Date: f.Date.Format(DateLayout), Details: d})
			}
		}
		if i < 7 {
			s.Timeline = append(s.Timeline, DayCount{Date: f.Date, Entries: len(anyTag.FindAllString(content, -1))})
		}
	}
	for tag, hs := range s.Highlights {
		switch tag {
		case "MILESTONE", "DECISION", "LESSON":
			if len(hs) > 3 {
				s.Highlights[tag] = hs[:3]
			}
		default:
			delete(s.Highlights, tag)
		}
	}
	return s, nil
}

// Bar renders a ten-cell activity bar, overflowing past ten.
func Bar(n int) string {
	pad := 10 - n
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat("█", n) + strings.Repeat("░", pad)
}

// SectionReport lists the cleanup issues of one "## " section of
// MEMORY.md.
type SectionReport struct {
	Name   string
	Issues []string
}

// AnalyzeMemory reports empty sections, lines mentioning years more than
// two years back, and bullet entries that contain one another.
func AnalyzeMemory(content string, now time.Time) []SectionReport {
	type section struct {
		name  string
		lines []string
	}
	var sections []section
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") {
			sections = append(sections, section{name: strings.TrimSpace(line[3:])})
			continue
		}
		if len(sections) > 0 {
			sections[len(sections)-1].lines = append(sections[len(sections)-1].lines, line)
		}
	}

	reports := make([]SectionReport, 0, len(sections))
	for _, s := range sections {
		reports = append(reports, SectionReport{Name: s.name, Issues: analyzeSection(s.lines, now)})
	}
	return reports
}

var yearPattern = regexp.MustCompile(`20\d\d`)

func analyzeSection(lines []string, now time.Time) []string {
	var nonEmpty int
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return []string{"Section is empty"}
	}

	var issues []string
	old := 0
	for _, l := range lines {
		for _, y := range yearPattern.FindAllString(l, -1) {
			if year, _ := strconv.Atoi(y); year < now.Year()-2 {
				old++
			}
		}
	}
	if old > 0 {
		issues = append(issues, fmt.Sprintf("Found %d entries older than 2 years", old))
	}

	var bullets []string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ") || strings.HasPrefix(t, "• ") {
			bullets = append(bullets, l)
		}
	}
	if d := countDuplicates(bullets); d > 0 {
		issues = append(issues, fmt.Sprintf("Found %d potential duplicates", d))
	}
	return issues
}

// countDuplicates counts pairs where one normalized bullet contains an
// earlier one or vice versa. Only bullets longer than 20 characters count.
func countDuplicates(bullets []string) int {
	var seen []string
	dups := 0
	for _, b := range bullets {
		norm := strings.Trim(strings.ToLower(b), "- ")
		for _, prev := range seen {
			if (strings.Contains(prev, norm) || strings.Contains(norm, prev)) && len(norm) > 20 {
				dups++
			}
		}
		seen = append(seen, norm)
	}
	return dups
}

// Maintenance is one full curation pass over the journal.
type Maintenance struct {
	Review   Review
	Summary  Summary
	Moves    []Move
	Sections []SectionReport
	Steps    []Step
}

// Step records the outcome of one maintenance stage.
type Step struct {
	Name string
	Err  error
}

// Failed reports whether any stage returned an error.
func (m Maintenance) Failed() bool {
	for _, s := range m.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Maintain reviews and summarizes the last days, archives files older than
// archiveDays and analyzes MEMORY.md. A failing stage is recorded and the
// remaining stages still run. MEMORY.md is only read, never rewritten.
func (j *Journal) Maintain(days, archiveDays int, dryRun bool) Maintenance {
	var m Maintenance
	step := func(name string, fn func() error) {
		m.Steps = append(m.Steps, Step{Name: name, Err: fn()})
	}
	step("review", func() (err error) {
		m.Review, err = j.Review(days)
		return err
	})
	step("summary", func() (err error) {
		m.Summary, err = j.Summary(days)
		return err
	})
	step("archive", func() (err error) {
		m.Moves, err = j.Archive(archiveDays, dryRun)
		return err
	})
	step("analyze", func() error {
		data, err := os.ReadFile(j.MemoryFile())
		if err != nil {
			return fmt.Errorf("read MEMORY.md: %w", err)
		}
		m.Sections = AnalyzeMemory(string(data), j.now())
		return nil
	})
	return m
}
