package memory

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 20, 10, 0, 0, 0, time.Local)

func newTestJournal(t *testing.T, files map[string]string) *Journal {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "memory")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile error: %v", err)
		}
	}
	j := NewJournal(dir)
	j.now = func() time.Time { return testNow }
	return j
}

func TestParseEntries(t *testing.T) {
	content := "# Notes\n[DECISION: pricing] Moved to annual plans\nmore context\n[lesson] Ship smaller\n[EVENT] Launch day\n"

	all := ParseEntries(content, "")
	if len(all) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(all))
	}
	decision := ParseEntries(content, "decision")
	if len(decision) != 1 {
		t.Fatalf("len(decision) = %d, want 1", len(decision))
	}
	if decision[0].Details != "pricing" {
		t.Fatalf("details = %q, want pricing", decision[0].Details)
	}
	if decision[0].Content != "Moved to annual plans\nmore context" {
		t.Fatalf("content = %q", decision[0].Content)
	}
	lesson := ParseEntries(content, "LESSON")
	if len(lesson) != 1 || lesson[0].Content != "Ship smaller" {
		t.Fatalf("lesson = %+v", lesson)
	}
	if got := ParseEntries(content, "UNKNOWN"); len(got) != 0 {
		t.Fatalf("unknown tag entries = %d, want 0", len(got))
	}
}

func TestCountTag(t *testing.T) {
	n, details := CountTag("[MILESTONE: v1] shipped [milestone] inline", "MILESTONE")
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if details[0] != "v1" || details[1] != "" {
		t.Fatalf("details = %q", details)
	}
}

func TestJournalFiles(t *testing.T) {
	j := newTestJournal(t, map[string]string{
		"2026-03-19.md": "[EVENT] a",
		"2026-03-10.md": "[EVENT] b",
		"2026-01-01.md": "[EVENT] c",
		"notes.md":      "ignored",
	})

	all, err := j.Files(0)
	if err != nil {
		t.Fatalf("Files error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(files) = %d, want 3", len(all))
	}
	if all[0].Name() != "2026-03-19.md" || all[2].Name() != "2026-01-01.md" {
		t.Fatalf("order = %s, %s", all[0].Name(), all[2].Name())
	}

	recent, err := j.Files(14)
	if err != nil {
		t.Fatalf("Files error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}

	missing := NewJournal(filepath.Join(t.TempDir(), "nope"))
	if files, err := missing.Files(0); err != nil || len(files) != 0 {
		t.Fatalf("missing dir = %v, %v", files, err)
	}
}

func TestJournalExtract(t *testing.T) {
	j := newTestJournal(t, map[string]string{
		"2026-03-19.md": "[DECISION: db] Use sqlite\n",
		"2026-03-18.md": "[DECISION] Keep markdown\n[LESSON] Test first\n",
	})

	entries, err := j.Extract(0, "DECISION")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Source != "2026-03-19.md" || entries[0].Date != "2026-03-19" {
		t.Fatalf("first entry = %+v", entries[0])
	}
}

func TestArchiveDryRunAndMove(t *testing.T) {
	j := newTestJournal(t, map[string]string{
		"2026-03-19.md": "recent",
		"2025-11-02.md": "old",
		"2025-12-25.md": "old",
	})

	moves, err := j.Archive(90, true)
	if err != nil {
		t.Fatalf("Archive dry run error: %v", err)
	}
	if len(moves) != 1 || moves[0].Month != "2025-11" {
		t.Fatalf("dry run moves = %+v", moves)
	}
	if _, err := os.Stat(moves[0].From); err != nil {
		t.Fatalf("dry run moved file: %v", err)
	}

	moves, err = j.Archive(30, false)
	if err != nil {
		t.Fatalf("Archive error: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("len(moves) = %d, want 2", len(moves))
	}
	for _, m := range moves {
		if _, err := os.Stat(m.To); err != nil {
			t.Fatalf("archived file missing: %v", err)
		}
		if _, err := os.Stat(m.From); !os.IsNotExist(err) {
			t.Fatalf("source still present: %s", m.From)
		}
	}
	files, _ := j.Files(0)
	if len(files) != 1 {
		t.Fatalf("remaining files = %d, want 1", len(files))
	}
}

func TestArchiveRefusesOverwrite(t *testing.T) {
	j := newTestJournal(t, map[string]string{"2025-11-02.md": "old"})
	dest := filepath.Join(j.Dir, archiveName, "2025-11")
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dest, "2025-11-02.md"), []byte("existing"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	_, err := j.Archive(30, false)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("err = %v, want fs.ErrExist", err)
	}
	b, _ := os.ReadFile(filepath.Join(dest, "2025-11-02.md"))
	if string(b) != "existing" {
		t.Fatalf("archive overwritten: %q", b)
	}
}

func TestReview(t *testing.T) {
	j := newTestJournal(t, map[string]string{
		"2026-03-19.md": "[DECISION] Use sqlite\n[TODO] write docs\n",
		"2026-03-17.md": "[LESSON] Test first\n",
		"2026-02-01.md": "[EVENT] too old\n",
	})

	r, err := j.Review(0)
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}
	if r.Days != DefaultReviewDays {
		t.Fatalf("days = %d, want %d", r.Days, DefaultReviewDays)
	}
	if r.Total != 3 || len(r.Files) != 2 {
		t.Fatalf("total = %d files = %d, want 3 and 2", r.Total, len(r.Files))
	}
	if len(r.ByTag["DECISION"]) != 1 || len(r.ByTag["EVENT"]) != 0 {
		t.Fatalf("by tag = %+v", r.ByTag)
	}
}

func TestSummary(t *testing.T) {
	j := newTestJournal(t, map[string]string{
		"2026-03-19.md": "[MILESTONE: a] x\n[MILESTONE: b] x\n[DECISION: c] x\n",
		"2026-03-18.md": "[MILESTONE: d] x\n[MILESTONE: e] x\n[TODO] x\n",
	})

	s, err := j.Summary(7)
	if err != nil {
		t.Fatalf("Summary error: %v", err)
	}
	if s.Files != 2 || s.Total != 6 {
		t.Fatalf("files = %d total = %d, want 2 and 6", s.Files, s.Total)
	}
	if s.Counts["MILESTONE"] != 4 {
		t.Fatalf("milestones = %d, want 4", s.Counts["MILESTONE"])
	}
	if len(s.Highlights["MILESTONE"]) != 3 {
		t.Fatalf("milestone highlights = %d, want 3", len(s.Highlights["MILESTONE"]))
	}
	if _, ok := s.Highlights["TODO"]; ok {
		t.Fatal("TODO should not be highlighted")
	}
	if len(s.Timeline) != 2 || s.Timeline[0].Entries != 3 {
		t.Fatalf("timeline = %+v", s.Timeline)
	}
}

func TestBar(t *testing.T) {
	if got := Bar(3); got != "███░░░░░░░" {
		t.Fatalf("Bar(3) = %q", got)
	}
	if got := Bar(12); strings.Count(got, "█") != 12 || strings.Contains(got, "░") {
		t.Fatalf("Bar(12) = %q", got)
	}
}

func TestAnalyzeMemory(t *testing.T) {
	content := `# MEMORY

## Key Decisions
- Moved billing to annual plans for all customers
- moved billing to annual plans for all customers in 2022
- Adopted sqlite in 2021

## Lessons Learned

## Active Projects
- opsclaw
`
	reports := AnalyzeMemory(content, testNow)
	if len(reports) != 3 {
		t.Fatalf("len(reports) = %d, want 3", len(reports))
	}

	decisions := reports[0]
	if decisions.Name != "Key Decisions" {
		t.Fatalf("name = %q, want Key Decisions", decisions.Name)
	}
	want := []string{"Found 2 entries older than 2 years", "Found 1 potential duplicates"}
	if strings.Join(decisions.Issues, "|") != strings.Join(want, "|") {
		t.Fatalf("issues = %q, want %q", decisions.Issues, want)
	}
	if len(reports[1].Issues) != 1 || reports[1].Issues[0] != "Section is empty" {
		t.Fatalf("lessons issues = %q", reports[1].Issues)
	}
	if len(reports[2].Issues) != 0 {
		t.Fatalf("projects issues = %q, want none", reports[2].Issues)
	}
}

func TestIndexSearch(t *testing.T) {
	j := newTestJournal(t, map[string]string{
		"2026-03-19.md": "[DECISION: storage] Use sqlite for the lead index\n[LESSON] Always back up the crontab\n",
		"2026-03-18.md": "[EVENT] Webinar about federal buyouts\n",
	})
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index", "memory.db"))
	if err != nil {
		t.Fatalf("OpenIndex error: %v", err)
	}
	defer idx.Close()

	n, err := IndexJournal(j, idx)
	if err != nil {
		t.Fatalf("IndexJournal error: %v", err)
	}
	if n != 3 {
		t.Fatalf("indexed = %d, want 3", n)
	}

	hits, err := idx.Search("sqlite", "", 5)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(hits) != 1 || hits[0].Tag != "DECISION" || hits[0].Source != "2026-03-19.md" {
		t.Fatalf("hits = %+v", hits)
	}

	hits, err = idx.Search("crontab", "decision", 5)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("tag filtered hits = %+v, want none", hits)
	}

	// Rebuild replaces rather than appends.
	if _, err := IndexJournal(j, idx); err != nil {
		t.Fatalf("IndexJournal error: %v", err)
	}
	if count, _ := idx.Count(); count != 3 {
		t.Fatalf("count after rebuild = %d, want 3", count)
	}
}

func TestMaintain(t *testing.T) {
	j := newTestJournal(t, map[string]string{
		"2026-03-19.md": "[DECISION: db] Use sqlite\n[MILESTONE: beta] shipped\n",
		"2025-11-02.md": "[EVENT] old launch\n",
	})
	memoryFile := "# MEMORY\n\n## Key Decisions\n\n## Active Projects\n- opsclaw\n"
	if err := os.WriteFile(j.MemoryFile(), []byte(memoryFile), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	m := j.Maintain(7, 30, true)
	if m.Failed() {
		t.Fatalf("steps = %+v", m.Steps)
	}
	var names []string
	for _, s := range m.Steps {
		names = append(names, s.Name)
	}
	if got := strings.Join(names, ","); got != "review,summary,archive,analyze" {
		t.Errorf("steps = %q", got)
	}
	if m.Review.Total != 2 || m.Summary.Counts["MILESTONE"] != 1 {
		t.Errorf("review total = %d milestones = %d", m.Review.Total, m.Summary.Counts["MILESTONE"])
	}
	if len(m.Moves) != 1 {
		t.Fatalf("moves = %+v, want 1", m.Moves)
	}
	if _, err := os.Stat(m.Moves[0].From); err != nil {
		t.Errorf("dry run moved file: %v", err)
	}
	if len(m.Sections) != 2 || len(m.Sections[0].Issues) != 1 {
		t.Errorf("sections = %+v", m.Sections)
	}
}

func TestMaintainContinuesPastFailure(t *testing.T) {
	j := newTestJournal(t, map[string]string{"2025-11-02.md": "old"})

	m := j.Maintain(7, 30, false)
	if !m.Failed() {
		t.Fatal("expected missing MEMORY.md to fail the analyze step")
	}
	last := m.Steps[len(m.Steps)-1]
	if last.Name != "analyze" || last.Err == nil {
		t.Errorf("last step = %+v", last)
	}
	if len(m.Moves) != 1 {
		t.Errorf("archive should still run, moves = %+v", m.Moves)
	}
}
