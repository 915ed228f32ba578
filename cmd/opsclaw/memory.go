package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/opsclaw/internal/config"
	"github.com/stellarlinkco/opsclaw/internal/memory"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Curate the daily memory journal",
}

var memoryExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract tagged entries from daily files",
	RunE:  runMemoryExtract,
}

var memoryArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move old daily files into archive/YYYY-MM",
	RunE:  runMemoryArchive,
}

var memoryReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review recent entries and suggest MEMORY.md updates",
	RunE:  runMemoryReview,
}

var memorySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize recent activity",
	RunE:  runMemorySummary,
}

var memoryAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Find stale, empty or duplicate sections in MEMORY.md",
	RunE:  runMemoryAnalyze,
}

var memoryMaintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Review, summarize, archive and analyze in one pass",
	RunE:  runMemoryMaintain,
}

var memoryIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the full-text search index",
	RunE:  runMemoryIndex,
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed entries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemorySearch,
}

var (
	memDays   int
	memWindow int
	memTag    string
	memJSON   bool
	memDryRun bool
	memLimit  int
)

func init() {
	f := memoryExtractCmd.Flags()
	f.IntVar(&memDays, "days", 0, "Only the last N days (0 for all)")
	f.StringVar(&memTag, "tag", "", "Only one tag ("+strings.Join(memory.Tags, ", ")+")")
	f.BoolVar(&memJSON, "json", false, "Output JSON")

	f = memoryArchiveCmd.Flags()
	f.IntVar(&memDays, "days", 0, "Archive files older than N days (default from config)")
	f.BoolVar(&memDryRun, "dry-run", false, "Show moves without touching files")

	memoryReviewCmd.Flags().IntVar(&memWindow, "days", memory.DefaultReviewDays, "Days to review")
	memorySummaryCmd.Flags().IntVar(&memWindow, "days", memory.DefaultReviewDays, "Days to summarize")

	f = memoryMaintainCmd.Flags()
	f.IntVar(&memWindow, "days", memory.DefaultReviewDays, "Days to review and summarize")
	f.IntVar(&memDays, "archive-days", 0, "Archive files older than N days (default from config)")
	f.BoolVar(&memDryRun, "dry-run", false, "Show archive moves without touching files")

	f = memorySearchCmd.Flags()
	f.StringVar(&memTag, "tag", "", "Only one tag")
	f.IntVar(&memLimit, "limit", 20, "Maximum results")

	memoryCmd.AddCommand(memoryExtractCmd, memoryArchiveCmd, memoryReviewCmd, memorySummaryCmd,
		memoryAnalyzeCmd, memoryMaintainCmd, memoryIndexCmd, memorySearchCmd)
	rootCmd.AddCommand(memoryCmd)
}

func journal() (*config.Config, *memory.Journal, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, memory.NewJournal(cfg.Memory.Dir), nil
}

func runMemoryExtract(cmd *cobra.Command, args []string) error {
	_, j, err := journal()
	if err != nil {
		return err
	}
	entries, err := j.Extract(memDays, strings.ToUpper(memTag))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if memJSON {
		return writeJSON(out, entries)
	}
	if len(entries) == 0 {
		info(out, "No tagged entries")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s [%s: %s] %s\n", e.Date, e.Tag, e.Details, e.Content)
	}
	return nil
}

func runMemoryArchive(cmd *cobra.Command, args []string) error {
	cfg, j, err := journal()
	if err != nil {
		return err
	}
	days := memDays
	if days <= 0 {
		days = cfg.Memory.ArchiveDays
	}
	moves, err := j.Archive(days, memDryRun)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(moves) == 0 {
		info(out, "Nothing older than %d days", days)
		return nil
	}
	verb := "Archived"
	if memDryRun {
		verb = "Would archive"
	}
	for _, m := range moves {
		fmt.Fprintf(out, "  %s → %s\n", m.From, m.To)
	}
	success(out, "%s %d file(s)", verb, len(moves))
	return nil
}

func runMemoryReview(cmd *cobra.Command, args []string) error {
	_, j, err := journal()
	if err != nil {
		return err
	}
	rev, err := j.Review(memWindow)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Reviewing last %d days: %d file(s), %d entries\n\n", rev.Days, len(rev.Files), rev.Total)
	for _, f := range rev.Files {
		fmt.Fprintf(out, "%s (%d)\n", f.Name, len(f.Entries))
		for _, e := range f.Entries {
			fmt.Fprintf(out, "  [%s: %s] %s\n", e.Tag, e.Details, e.Content)
		}
	}
	suggested := false
	for _, s := range memory.Sections {
		entries := rev.ByTag[s.Tag]
		if len(entries) == 0 {
			continue
		}
		if !suggested {
			fmt.Fprintf(out, "\nSuggested additions to %s:\n", j.MemoryFile())
			suggested = true
		}
		fmt.Fprintf(out, "\n## %s\n", s.Section)
		for _, e := range entries {
			fmt.Fprintf(out, "- %s: %s (%s)\n", e.Details, e.Content, e.Date)
		}
	}
	return nil
}

func runMemorySummary(cmd *cobra.Command, args []string) error {
	_, j, err := journal()
	if err != nil {
		return err
	}
	sum, err := j.Summary(memWindow)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Last %d days: %d file(s), %d entries\n\n", sum.Days, sum.Files, sum.Total)
	for _, tag := range memory.Tags {
		if n := sum.Counts[tag]; n > 0 {
			fmt.Fprintf(out, "  %-18s %3d\n", memory.TagLabels[tag], n)
		}
	}
	if len(sum.Timeline) > 0 {
		fmt.Fprintln(out, "\nTimeline:")
		for _, d := range sum.Timeline {
			fmt.Fprintf(out, "  %s %s %d\n", d.Date.Format("01-02"), memory.Bar(d.Entries), d.Entries)
		}
	}
	for _, tag := range []string{"MILESTONE", "DECISION", "LESSON"} {
		hs := sum.Highlights[tag]
		if len(hs) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s:\n", memory.TagLabels[tag])
		for _, h := range hs {
			fmt.Fprintf(out, "  %s %s\n", h.Date, h.Details)
		}
	}
	return nil
}

func runMemoryAnalyze(cmd *cobra.Command, args []string) error {
	_, j, err := journal()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(j.MemoryFile())
	if err != nil {
		return fmt.Errorf("read MEMORY.md: %w", err)
	}
	out := cmd.OutOrStdout()
	clean := true
	for _, s := range memory.AnalyzeMemory(string(data), time.Now()) {
		if len(s.Issues) == 0 {
			continue
		}
		clean = false
		fmt.Fprintf(out, "## %s\n", s.Name)
		for _, is := range s.Issues {
			warn(out, "%s", is)
		}
	}
	if clean {
		success(out, "MEMORY.md looks tidy")
	}
	return nil
}

func runMemoryMaintain(cmd *cobra.Command, args []string) error {
	cfg, j, err := journal()
	if err != nil {
		return err
	}
	archiveDays := memDays
	if archiveDays <= 0 {
		archiveDays = cfg.Memory.ArchiveDays
	}
	m := j.Maintain(memWindow, archiveDays, memDryRun)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Last %d days: %d file(s), %d entries\n", m.Summary.Days, m.Summary.Files, m.Summary.Total)
	for _, s := range memory.Sections {
		if n := len(m.Review.ByTag[s.Tag]); n > 0 {
			fmt.Fprintf(out, "  %-18s %3d  → %s\n", memory.TagLabels[s.Tag], n, s.Section)
		}
	}
	verb := "Archived"
	if memDryRun {
		verb = "Would archive"
	}
	fmt.Fprintf(out, "%s %d file(s) older than %d days\n", verb, len(m.Moves), archiveDays)
	for _, s := range m.Sections {
		for _, is := range s.Issues {
			fmt.Fprintf(out, "  %s: %s\n", s.Name, is)
		}
	}
	fmt.Fprintln(out)
	for _, s := range m.Steps {
		if s.Err != nil {
			fail(out, "%s: %v", s.Name, s.Err)
		} else {
			success(out, "%s", s.Name)
		}
	}
	if m.Failed() {
		return fmt.Errorf("memory maintenance incomplete")
	}
	return nil
}

func runMemoryIndex(cmd *cobra.Command, args []string) error {
	cfg, j, err := journal()
	if err != nil {
		return err
	}
	idx, err := memory.OpenIndex(cfg.IndexPath())
	if err != nil {
		return err
	}
	defer idx.Close()
	n, err := memory.IndexJournal(j, idx)
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Indexed %d entries into %s", n, cfg.IndexPath())
	return nil
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := memory.OpenIndex(cfg.IndexPath())
	if err != nil {
		return err
	}
	defer idx.Close()
	hits, err := idx.Search(strings.Join(args, " "), strings.ToUpper(memTag), memLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		info(out, "No matches (run 'opsclaw memory index' first)")
		return nil
	}
	for _, e := range hits {
		fmt.Fprintf(out, "%s %s [%s: %s] %s\n", e.Date, e.Source, e.Tag, e.Details, e.Content)
	}
	return nil
}
