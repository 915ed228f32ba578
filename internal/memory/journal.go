// Package memory curates the daily markdown journal: tagged entries in
// YYYY-MM-DD.md files, a long-term MEMORY.md, and month archives.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	archiveName = "archive"
)

// Tags lists the recognised entry tags in display order.
var Tags = []string{"DECISION", "EVENT", "LESSON", "PROJECT", "MEETING", "MILESTONE", "TODO"}

var TagLabels = map[string]string{
	"DECISION":  "Decisions",
	"EVENT":     "Events",
	"LESSON":    "Lessons",
	"PROJECT":   "Projects",
	"MEETING":   "Meetings",
	"MILESTONE": "Milestones",
	"TODO":      "Todos",
}

// Entry is one tagged note such as "[DECISION: pricing] Moved to annual plans".
type Entry struct {
	Tag     string `json:"tag"`
	Details string `json:"details"`
	Content string `json:"content"`
	Source  string `json:"source"`
	Date    string `json:"date"`
}

var tagPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(Tags))
	for _, tag := range Tags {
		m[tag] = regexp.MustCompile(`(?i)\[` + tag + `([^\]]*)\]`)
	}
	return m
}()

// ParseEntries finds tagged entries in a journal file. An entry's text
// runs until the next line that starts with '[' or the end of the file.
// An empty tag means every known tag.
func ParseEntries(content, tag string) []Entry {
	tags := Tags
	if tag != "" {
		tags = []string{strings.ToUpper(tag)}
	}
	var entries []Entry
	for _, t := range tags {
		re, ok := tagPatterns[t]
		if !ok {
			continue
		}
		pos := 0
		for pos < len(content) {
			loc := re.FindStringSubmatchIndex(content[pos:])
			if loc == nil {
				break
			}
			details := content[pos+loc[2] : pos+loc[3]]
			bodyStart := pos + loc[1]
			bodyEnd := len(content)
			if i := strings.Index(content[bodyStart:], "\n["); i >= 0 {
				bodyEnd = bodyStart + i
			}
			entries = append(entries, Entry{
				Tag:     t,
				Details: strings.Trim(details, ": "),
				Content: strings.TrimSpace(content[bodyStart:bodyEnd]),
			})
			pos = bodyEnd
		}
	}
	return entries
}

// CountTag counts occurrences of a tag marker, entries or not.
func CountTag(content, tag string) (int, []string) {
	re, ok := tagPatterns[strings.ToUpper(tag)]
	if !ok {
		return 0, nil
	}
	matches := re.FindAllStringSubmatch(content, -1)
	details := make([]string, len(matches))
	for i, m := range matches {
		details[i] = strings.Trim(m[1], ": ")
	}
	return len(matches), details
}

// DailyFile is one YYYY-MM-DD.md journal file.
type DailyFile struct {
	Date time.Time
	Path string
}

func (f DailyFile) Name() string { return filepath.Base(f.Path) }

func (f DailyFile) Read() (string, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return string(b), nil
}

// Journal is the memory directory.
type Journal struct {
	Dir string
	now func() time.Time
}

func NewJournal(dir string) *Journal {
	return &Journal{Dir: dir, now: time.Now}
}

// MemoryFile is the long-term MEMORY.md next to the journal directory.
func (j *Journal) MemoryFile() string {
	return filepath.Join(filepath.Dir(j.Dir), "MEMORY.md")
}

// Files returns daily files newest first. days > 0 keeps files dated on
// or after now minus days; otherwise every file is returned. A missing
// directory yields no files.
func (j *Journal) Files(days int) ([]DailyFile, error) {
	dirEntries, err := os.ReadDir(j.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read memory dir: %w", err)
	}
	var cutoff time.Time
	if days > 0 {
		cutoff = j.now().AddDate(0, 0, -days)
	}
	var files []DailyFile
	for _, e := range dirEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		date, err := time.ParseInLocation(DateLayout, strings.TrimSuffix(e.Name(), ".md"), time.Local)
		if err != nil {
			continue
		}
		if !cutoff.IsZero() && date.Before(cutoff) {
			continue
		}
		files = append(files, DailyFile{Date: date, Path: filepath.Join(j.Dir, e.Name())})
	}
	sort.Slice(files, func(a, b int) bool { return files[a].Date.After(files[b].Date) })
	return files, nil
}

// Extract collects tagged entries from the last days (0 for all), newest
// file first, optionally for one tag.
func (j *Journal) Extract(days int, tag string) ([]Entry, error) {
	files, err := j.Files(days)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, f := range files {
		content, err := f.Read()
		if err != nil {
			return nil, err
		}
		for _, e := range ParseEntries(content, tag) {
			e.Source = f.Name()
			e.Date = f.Date.Format(DateLayout)
			out = append(out, e)
		}
	}
	return out, nil
}
