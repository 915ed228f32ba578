package analytics

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	FormatConsole  = "console"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Report is implemented by every report type.
type Report interface {
	Console(w io.Writer)
	Markdown(w io.Writer)
}

// Render writes rep to w in format.
func Render(w io.Writer, rep Report, format string) error {
	switch format {
	case "", FormatConsole:
		rep.Console(w)
	case FormatMarkdown:
		rep.Markdown(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
	return nil
}

// WriteFile saves rep to path. Console output is not a file format; it is
// saved as JSON.
func WriteFile(path string, rep Report, format string) error {
	if format == FormatConsole || format == "" {
		format = FormatJSON
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := Render(f, rep, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FormatNumber renders 12345 as "12,345".
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds float64) string {
	neg := seconds < 0
	s := int(math.Abs(seconds))
	out := fmt.Sprintf("%d:%02d", s/60, s%60)
	if neg {
		return "-" + out
	}
	return out
}

func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func signed(s string, v float64) string {
	if v >= 0 {
		return "+" + s
	}
	return s
}

func trend(v float64) string {
	switch {
	case v > 0:
		return "📈"
	case v < 0:
		return "📉"
	}
	return "➡️"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var rule = strings.Repeat("=", 60)

func (r DailyReport) Console(w io.Writer) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "DAILY TRAFFIC SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Period: %s to %s\n", r.Range.Start, r.Range.End)
	fmt.Fprintf(w, "Property: %s\n", r.Property)
	fmt.Fprintln(w, rule)

	m := r.Metrics
	fmt.Fprintln(w, "\n📊 KEY METRICS")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "  Sessions:           %s\n", FormatNumber(m.Sessions))
	fmt.Fprintf(w, "  Total Users:        %s\n", FormatNumber(m.Users))
	fmt.Fprintf(w, "  New Users:          %s\n", FormatNumber(m.NewUsers))
	fmt.Fprintf(w, "  Pageviews:          %s\n", FormatNumber(m.Pageviews))
	fmt.Fprintf(w, "  Bounce Rate:        %s\n", FormatPercent(m.BounceRate))
	fmt.Fprintf(w, "  Avg Session:        %s\n", FormatDuration(m.AvgSessionDuration))
	fmt.Fprintf(w, "  Engagement Rate:    %s\n", FormatPercent(m.EngagementRate))

	fmt.Fprintln(w, "\n📄 TOP PAGES")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for i, p := range r.TopPages {
		if i == 5 {
			break
		}
		fmt.Fprintf(w, "  %d. %s\n", i+1, truncate(p.Title, 40))
		fmt.Fprintf(w, "     Path: %s\n", truncate(p.Path, 50))
		fmt.Fprintf(w, "     Views: %s, Sessions: %s\n", FormatNumber(p.Pageviews), FormatNumber(p.Sessions))
	}

	fmt.Fprintln(w, "\n🌐 TRAFFIC SOURCES")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, s := range r.Sources {
		pct := 0.0
		if m.Sessions > 0 {
			pct = float64(s.Sessions) / float64(m.Sessions) * 100
		}
		fmt.Fprintf(w, "  %-20s %10s (%s)\n", truncate(s.Channel, 20), FormatNumber(s.Sessions), FormatPercent(pct))
	}
	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintf(w, "Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
}

func (r DailyReport) Markdown(w io.Writer) {
	fmt.Fprintln(w, "# Daily Traffic Summary")
	fmt.Fprintf(w, "\n**Period:** %s to %s\n", r.Range.Start, r.Range.End)
	fmt.Fprintf(w, "**Property:** %s\n", r.Property)
	fmt.Fprintf(w, "**Generated:** %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))

	m := r.Metrics
	fmt.Fprint(w, "\n## Key Metrics\n\n| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(w, "| Sessions | %s |\n", FormatNumber(m.Sessions))
	fmt.Fprintf(w, "| Total Users | %s |\n", FormatNumber(m.Users))
	fmt.Fprintf(w, "| New Users | %s |\n", FormatNumber(m.NewUsers))
	fmt.Fprintf(w, "| Pageviews | %s |\n", FormatNumber(m.Pageviews))
	fmt.Fprintf(w, "| Bounce Rate | %s |\n", FormatPercent(m.BounceRate))
	fmt.Fprintf(w, "| Avg Session Duration | %s |\n", FormatDuration(m.AvgSessionDuration))
	fmt.Fprintf(w, "| Engagement Rate | %s |\n", FormatPercent(m.EngagementRate))

	fmt.Fprint(w, "\n## Top Pages\n\n| Page | Path | Views | Sessions |\n|------|------|-------|----------|\n")
	for _, p := range r.TopPages {
		fmt.Fprintf(w, "| %s | %s | %s | %s |\n", truncate(p.Title, 30), truncate(p.Path, 30), FormatNumber(p.Pageviews), FormatNumber(p.Sessions))
	}

	fmt.Fprint(w, "\n## Traffic Sources\n\n| Source | Sessions | Users |\n|--------|----------|-------|\n")
	for _, s := range r.Sources {
		fmt.Fprintf(w, "| %s | %s | %s |\n", s.Channel, FormatNumber(s.Sessions), FormatNumber(s.Users))
	}
}

type metricRow struct {
	label string
	key   string
	kind  string // number, percent, duration
}

var weeklyRows = []metricRow{
	{"Sessions", "sessions", "number"},
	{"Total Users", "users", "number"},
	{"New Users", "new_users", "number"},
	{"Pageviews", "pageviews", "number"},
	{"Bounce Rate", "bounce_rate", "percent"},
	{"Avg Session Duration", "avg_session_duration", "duration"},
	{"Engagement Rate", "engagement_rate", "percent"},
	{"Conversions", "conversions", "number"},
	{"Conversion Rate", "conversion_rate", "percent"},
}

func formatKind(v float64, kind string) string {
	switch kind {
	case "percent":
		return FormatPercent(v)
	case "duration":
		return FormatDuration(v)
	}
	return FormatNumber(int64(math.Round(v)))
}

func (r WeeklyReport) Console(w io.Writer) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "WEEKLY PERFORMANCE REPORT")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "This week:     %s to %s\n", r.CurrentWeek.Start, r.CurrentWeek.End)
	fmt.Fprintf(w, "Previous week: %s to %s\n", r.PreviousWeek.Start, r.PreviousWeek.End)
	fmt.Fprintln(w, rule)

	fmt.Fprintf(w, "\n%-25s %12s %12s %12s %9s\n", "Metric", "This Week", "Last Week", "Change", "%")
	fmt.Fprintln(w, strings.Repeat("-", 75))
	for _, row := range weeklyRows {
		cur, prev := metricValue(r.Current, row.key), metricValue(r.Previous, row.key)
		ch := r.Changes[row.key]
		fmt.Fprintf(w, "%-25s %12s %12s %12s %9s %s\n",
			row.label,
			formatKind(cur, row.kind),
			formatKind(prev, row.kind),
			signed(formatKind(ch.Value, row.kind), ch.Value),
			signed(FormatPercent(ch.Percent), ch.Percent),
			trend(ch.Value))
	}

	fmt.Fprintln(w, "\n🌐 TRAFFIC SOURCES")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, s := range r.Sources {
		fmt.Fprintf(w, "  %-20s %10s sessions %10s views\n", truncate(s.Channel, 20), FormatNumber(s.Sessions), FormatNumber(s.Pageviews))
	}

	fmt.Fprintln(w, "\n📄 TOP PAGES")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for i, p := range r.TopPages {
		fmt.Fprintf(w, "  %2d. %-40s %10s %12s\n", i+1, truncate(p.Title, 40), FormatNumber(p.Pageviews), FormatPercent(p.EngagementRate))
	}
}

func (r WeeklyReport) Markdown(w io.Writer) {
	fmt.Fprintln(w, "# Weekly Performance Report")
	fmt.Fprintf(w, "\n**This week:** %s to %s\n", r.CurrentWeek.Start, r.CurrentWeek.End)
	fmt.Fprintf(w, "**Previous week:** %s to %s\n", r.PreviousWeek.Start, r.PreviousWeek.End)

	fmt.Fprint(w, "\n## Week over Week\n\n| Metric | This Week | Last Week | Change | % |\n|--------|-----------|-----------|--------|---|\n")
	for _, row := range weeklyRows {
		cur, prev := metricValue(r.Current, row.key), metricValue(r.Previous, row.key)
		ch := r.Changes[row.key]
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n", row.label, formatKind(cur, row.kind), formatKind(prev, row.kind),
			signed(formatKind(ch.Value, row.kind), ch.Value), signed(FormatPercent(ch.Percent), ch.Percent))
	}

	fmt.Fprint(w, "\n## Traffic Sources\n\n| Channel | Sessions | Pageviews |\n|---------|----------|-----------|\n")
	for _, s := range r.Sources {
		fmt.Fprintf(w, "| %s | %s | %s |\n", s.Channel, FormatNumber(s.Sessions), FormatNumber(s.Pageviews))
	}
	fmt.Fprint(w, "\n## Top Pages\n\n| Page | Views | Engagement |\n|------|-------|------------|\n")
	for _, p := range r.TopPages {
		fmt.Fprintf(w, "| %s | %s | %s |\n", truncate(p.Title, 40), FormatNumber(p.Pageviews), FormatPercent(p.EngagementRate))
	}
}

func (r MonthlyReport) Console(w io.Writer) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "MONTHLY REPORT - %s\n", r.Month)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Period: %s to %s\n", r.Range.Start, r.Range.End)
	fmt.Fprintln(w, rule)

	fmt.Fprintf(w, "\n%-20s %12s %12s %10s\n", "Metric", "This Month", "Last Month", "MoM")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, row := range weeklyRows {
		chg, ok := r.Changes[row.key]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%-20s %12s %12s %10s %s\n", row.label,
			formatKind(metricValue(r.Metrics, row.key), row.kind),
			formatKind(metricValue(r.Previous, row.key), row.kind),
			signed(FormatPercent(chg), chg), trend(chg))
	}
	m := r.Metrics
	fmt.Fprintf(w, "\n  Bounce Rate:        %s\n", FormatPercent(m.BounceRate))
	fmt.Fprintf(w, "  Avg Session:        %s\n", FormatDuration(m.AvgSessionDuration))
	fmt.Fprintf(w, "  Engagement Rate:    %s\n", FormatPercent(m.EngagementRate))
	fmt.Fprintf(w, "  Conversion Rate:    %s\n", FormatPercent(m.ConversionRate))

	fmt.Fprintln(w, "\n📱 DEVICES")
	for _, d := range r.Devices {
		fmt.Fprintf(w, "  %-12s %10s sessions\n", d.Category, FormatNumber(d.Sessions))
	}
	fmt.Fprintln(w, "\n🌍 TOP LOCATIONS")
	for i, g := range r.Geo {
		if i == 10 {
			break
		}
		fmt.Fprintf(w, "  %-30s %10s\n", truncate(g.Country+", "+g.Region, 30), FormatNumber(g.Sessions))
	}
	fmt.Fprintln(w, "\n📄 TOP CONTENT")
	for i, p := range r.TopContent {
		if i == 10 {
			break
		}
		fmt.Fprintf(w, "  %2d. %-40s %10s\n", i+1, truncate(p.Title, 40), FormatNumber(p.Pageviews))
	}
}

func (r MonthlyReport) Markdown(w io.Writer) {
	fmt.Fprintf(w, "# Monthly Report - %s\n", r.Month)
	fmt.Fprintf(w, "\n**Period:** %s to %s\n", r.Range.Start, r.Range.End)

	fmt.Fprint(w, "\n## Month over Month\n\n| Metric | This Month | Last Month | MoM |\n|--------|------------|------------|-----|\n")
	for _, row := range weeklyRows {
		chg, ok := r.Changes[row.key]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "| %s | %s | %s | %s |\n", row.label,
			formatKind(metricValue(r.Metrics, row.key), row.kind),
			formatKind(metricValue(r.Previous, row.key), row.kind),
			signed(FormatPercent(chg), chg))
	}
	fmt.Fprint(w, "\n## Devices\n\n| Device | Sessions | Users |\n|--------|----------|-------|\n")
	for _, d := range r.Devices {
		fmt.Fprintf(w, "| %s | %s | %s |\n", d.Category, FormatNumber(d.Sessions), FormatNumber(d.Users))
	}
	fmt.Fprint(w, "\n## Top Content\n\n| Page | Path | Views |\n|------|------|-------|\n")
	for _, p := range r.TopContent {
		fmt.Fprintf(w, "| %s | %s | %s |\n", truncate(p.Title, 30), truncate(p.Path, 30), FormatNumber(p.Pageviews))
	}
}

func (r SourceReport) Console(w io.Writer) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "TRAFFIC SOURCE BREAKDOWN")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Period: %s to %s (%d days)\n", r.Range.Start, r.Range.End, r.Days)
	fmt.Fprintf(w, "Total sessions: %s\n", FormatNumber(r.TotalSessions))
	fmt.Fprintln(w, rule)

	fmt.Fprintf(w, "\n%-20s %10s %8s %10s %8s %8s\n", "Channel", "Sessions", "Share", "Users", "Bounce", "Engaged")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, ch := range r.Channels {
		fmt.Fprintf(w, "%-20s %10s %8s %10s %8s %8s\n", truncate(ch.Channel, 20), FormatNumber(ch.Sessions),
			FormatPercent(ch.Share), FormatNumber(ch.Users), FormatPercent(ch.BounceRate), FormatPercent(ch.EngagementRate))
	}

	fmt.Fprintln(w, "\n🔗 SOURCE / MEDIUM")
	for _, sm := range r.SourceMedium {
		fmt.Fprintf(w, "  %-35s %10s\n", truncate(sm.Source+" / "+sm.Medium, 35), FormatNumber(sm.Sessions))
	}
	if len(r.Referrals) > 0 {
		fmt.Fprintln(w, "\n↪ REFERRALS")
		for _, ref := range r.Referrals {
			fmt.Fprintf(w, "  %-45s %8s\n", truncate(ref.Referrer, 45), FormatNumber(ref.Sessions))
		}
	}
	if len(r.Campaigns) > 0 {
		fmt.Fprintln(w, "\n📣 CAMPAIGNS")
		for _, c := range r.Campaigns {
			fmt.Fprintf(w, "  %-30s %8s sessions %6.0f conversions\n", truncate(c.Campaign, 30), FormatNumber(c.Sessions), c.Conversions)
		}
	}

	fmt.Fprintln(w, "\n📊 CHANNEL SHARE")
	for _, ch := range r.Channels {
		bar := strings.Repeat("█", int(ch.Share/5))
		fmt.Fprintf(w, "  %-20s %s %s\n", truncate(ch.Channel, 20), bar, FormatPercent(ch.Share))
	}
}

func (r SourceReport) Markdown(w io.Writer) {
	fmt.Fprintln(w, "# Traffic Source Breakdown")
	fmt.Fprintf(w, "\n**Period:** %s to %s (%d days)\n", r.Range.Start, r.Range.End, r.Days)
	fmt.Fprintf(w, "**Total sessions:** %s\n", FormatNumber(r.TotalSessions))

	fmt.Fprint(w, "\n## Channels\n\n| Channel | Sessions | Share | Users | Conversions |\n|---------|----------|-------|-------|-------------|\n")
	for _, ch := range r.Channels {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %.0f |\n", ch.Channel, FormatNumber(ch.Sessions), FormatPercent(ch.Share), FormatNumber(ch.Users), ch.Conversions)
	}
	fmt.Fprint(w, "\n## Source / Medium\n\n| Source | Medium | Sessions |\n|--------|--------|----------|\n")
	for _, sm := range r.SourceMedium {
		fmt.Fprintf(w, "| %s | %s | %s |\n", sm.Source, sm.Medium, FormatNumber(sm.Sessions))
	}
	if len(r.Campaigns) > 0 {
		fmt.Fprint(w, "\n## Campaigns\n\n| Campaign | Sessions | Conversions |\n|----------|----------|-------------|\n")
		for _, c := range r.Campaigns {
			fmt.Fprintf(w, "| %s | %s | %.0f |\n", c.Campaign, FormatNumber(c.Sessions), c.Conversions)
		}
	}
}
