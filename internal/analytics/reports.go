package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const dateLayout = "2006-01-02"

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Metrics are the headline numbers of a period. Rates are percentages;
// AvgSessionDuration is in seconds.
type Metrics struct {
	Sessions           int64   `json:"sessions"`
	Users              int64   `json:"users"`
	NewUsers           int64   `json:"new_users"`
	ReturningUsers     int64   `json:"returning_users,omitempty"`
	Pageviews          int64   `json:"pageviews"`
	BounceRate         float64 `json:"bounce_rate"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
	EngagementRate     float64 `json:"engagement_rate"`
	Conversions        float64 `json:"conversions,omitempty"`
	ConversionRate     float64 `json:"conversion_rate,omitempty"`
	AdRevenue          float64 `json:"ad_revenue,omitempty"`
}

var (
	baseMetrics     = []string{"sessions", "totalUsers", "newUsers", "screenPageViews", "bounceRate", "averageSessionDuration", "engagementRate"}
	weeklyMetrics   = append(append([]string{}, baseMetrics...), "conversions", "sessionConversionRate")
	monthlyMetrics  = []string{"sessions", "totalUsers", "newUsers", "returningUsers", "screenPageViews", "bounceRate", "averageSessionDuration", "engagementRate", "conversions", "sessionConversionRate", "totalAdRevenue"}
	channelGrouping = "sessionDefaultChannelGroup"
)

func parseMetrics(rows []Row, names []string) Metrics {
	var m Metrics
	if len(rows) == 0 {
		return m
	}
	r := rows[0]
	for i, name := range names {
		switch name {
		case "sessions":
			m.Sessions = r.Int(i)
		case "totalUsers":
			m.Users = r.Int(i)
		case "newUsers":
			m.NewUsers = r.Int(i)
		case "returningUsers":
			m.ReturningUsers = r.Int(i)
		case "screenPageViews":
			m.Pageviews = r.Int(i)
		case "bounceRate":
			m.BounceRate = r.Float(i) * 100
		case "averageSessionDuration":
			m.AvgSessionDuration = r.Float(i)
		case "engagementRate":
			m.EngagementRate = r.Float(i) * 100
		case "conversions":
			m.Conversions = r.Float(i)
		case "sessionConversionRate":
			m.ConversionRate = r.Float(i) * 100
		case "totalAdRevenue":
			m.AdRevenue = r.Float(i)
		}
	}
	return m
}

// Change is the difference between two periods.
type Change struct {
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// CalcChange compares current with previous. With no previous baseline
// the change is the current value and the percent is 100 when anything
// happened, otherwise 0.
func CalcChange(current, previous float64) Change {
	if previous == 0 {
		pct := 0.0
		if current > 0 {
			pct = 100
		}
		return Change{Value: current, Percent: pct}
	}
	return Change{Value: current - previous, Percent: (current - previous) / previous * 100}
}

type Page struct {
	Title          string  `json:"title"`
	Path           string  `json:"path"`
	Pageviews      int64   `json:"pageviews"`
	Sessions       int64   `json:"sessions,omitempty"`
	EngagementRate float64 `json:"engagement_rate,omitempty"`
	EngagementTime float64 `json:"avg_engagement_time,omitempty"`
	Conversions    float64 `json:"conversions,omitempty"`
}

type Channel struct {
	Channel            string  `json:"channel"`
	Sessions           int64   `json:"sessions"`
	Users              int64   `json:"users,omitempty"`
	NewUsers           int64   `json:"new_users,omitempty"`
	Pageviews          int64   `json:"pageviews,omitempty"`
	AvgSessionDuration float64 `json:"avg_session_duration,omitempty"`
	BounceRate         float64 `json:"bounce_rate,omitempty"`
	EngagementRate     float64 `json:"engagement_rate,omitempty"`
	Conversions        float64 `json:"conversions,omitempty"`
	Share              float64 `json:"share,omitempty"`
}

// Reporter builds reports for one property.
type Reporter struct {
	Runner   Runner
	Property string
	Now      func() time.Time
}

func NewReporter(r Runner, property string) *Reporter {
	return &Reporter{Runner: r, Property: property, Now: time.Now}
}

// runAll executes queries concurrently; results line up with queries.
func (rp *Reporter) runAll(ctx context.Context, queries ...Query) ([][]Row, error) {
	out := make([][]Row, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			rows, err := rp.Runner.Run(ctx, q)
			if err != nil {
				return err
			}
			out[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analytics report: %w", err)
	}
	return out, nil
}

type DailyReport struct {
	Type        string    `json:"report_type"`
	Property    string    `json:"property_id"`
	Range       DateRange `json:"date_range"`
	Metrics     Metrics   `json:"metrics"`
	TopPages    []Page    `json:"top_pages"`
	Sources     []Channel `json:"traffic_sources"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Daily covers the last days days, today included.
func (rp *Reporter) Daily(ctx context.Context, days int) (DailyReport, error) {
	if days <= 0 {
		days = 1
	}
	now := rp.Now()
	dr := DateRange{Start: now.AddDate(0, 0, -(days - 1)).Format(dateLayout), End: now.Format(dateLayout)}

	res, err := rp.runAll(ctx,
		Query{Start: dr.Start, End: dr.End, Metrics: baseMetrics},
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{"pageTitle", "pagePath"}, Metrics: []string{"screenPageViews", "sessions"}, OrderBy: "screenPageViews", Limit: 10},
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{channelGrouping}, Metrics: []string{"sessions", "totalUsers"}, OrderBy: "sessions"},
	)
	if err != nil {
		return DailyReport{}, err
	}

	rep := DailyReport{
		Type:        "daily",
		Property:    rp.Property,
		Range:       dr,
		Metrics:     parseMetrics(res[0], baseMetrics),
		TopPages:    []Page{},
		Sources:     []Channel{},
		GeneratedAt: now,
	}
	for _, r := range res[1] {
		rep.TopPages = append(rep.TopPages, Page{Title: r.Dim(0), Path: r.Dim(1), Pageviews: r.Int(0), Sessions: r.Int(1)})
	}
	for _, r := range res[2] {
		rep.Sources = append(rep.Sources, Channel{Channel: r.Dim(0), Sessions: r.Int(0), Users: r.Int(1)})
	}
	return rep, nil
}

type WeeklyReport struct {
	Type         string            `json:"report_type"`
	Property     string            `json:"property_id"`
	CurrentWeek  DateRange         `json:"current_week"`
	PreviousWeek DateRange         `json:"previous_week"`
	Current      Metrics           `json:"current_metrics"`
	Previous     Metrics           `json:"previous_metrics"`
	Changes      map[string]Change `json:"changes"`
	Sources      []Channel         `json:"traffic_sources"`
	TopPages     []Page            `json:"top_pages"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

// Weekly compares the seven days ending yesterday with the seven before.
func (rp *Reporter) Weekly(ctx context.Context) (WeeklyReport, error) {
	now := rp.Now()
	end := now.AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -6)
	prevEnd := start.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -6)
	cur := DateRange{Start: start.Format(dateLayout), End: end.Format(dateLayout)}
	prev := DateRange{Start: prevStart.Format(dateLayout), End: prevEnd.Format(dateLayout)}

	res, err := rp.runAll(ctx,
		Query{Start: cur.Start, End: cur.End, Metrics: weeklyMetrics},
		Query{Start: prev.Start, End: prev.End, Metrics: weeklyMetrics},
		Query{Start: cur.Start, End: cur.End, Dimensions: []string{channelGrouping}, Metrics: []string{"sessions", "screenPageViews", "conversions"}, OrderBy: "sessions"},
		Query{Start: cur.Start, End: cur.End, Dimensions: []string{"pageTitle", "pagePath"}, Metrics: []string{"screenPageViews", "engagementRate"}, OrderBy: "screenPageViews", Limit: 10},
	)
	if err != nil {
		return WeeklyReport{}, err
	}

	rep := WeeklyReport{
		Type:         "weekly",
		Property:     rp.Property,
		CurrentWeek:  cur,
		PreviousWeek: prev,
		Current:      parseMetrics(res[0], weeklyMetrics),
		Previous:     parseMetrics(res[1], weeklyMetrics),
		Sources:      []Channel{},
		TopPages:     []Page{},
		GeneratedAt:  now,
	}
	rep.Changes = changes(rep.Current, rep.Previous, weeklyKeys)
	for _, r := range res[2] {
		rep.Sources = append(rep.Sources, Channel{Channel: r.Dim(0), Sessions: r.Int(0), Pageviews: r.Int(1), Conversions: r.Float(2)})
	}
	for _, r := range res[3] {
		rep.TopPages = append(rep.TopPages, Page{Title: r.Dim(0), Path: r.Dim(1), Pageviews: r.Int(0), EngagementRate: r.Float(1) * 100})
	}
	return rep, nil
}

var (
	weeklyKeys  = []string{"sessions", "users", "new_users", "pageviews", "bounce_rate", "avg_session_duration", "engagement_rate", "conversions", "conversion_rate"}
	monthlyKeys = []string{"sessions", "users", "new_users", "pageviews", "conversions"}
)

func metricValue(m Metrics, key string) float64 {
	switch key {
	case "sessions":
		return float64(m.Sessions)
	case "users":
		return float64(m.Users)
	case "new_users":
		return float64(m.NewUsers)
	case "pageviews":
		return float64(m.Pageviews)
	case "bounce_rate":
		return m.BounceRate
	case "avg_session_duration":
		return m.AvgSessionDuration
	case "engagement_rate":
		return m.EngagementRate
	case "conversions":
		return m.Conversions
	case "conversion_rate":
		return m.ConversionRate
	}
	return 0
}

func changes(cur, prev Metrics, keys []string) map[string]Change {
	out := make(map[string]Change, len(keys))
	for _, k := range keys {
		out[k] = CalcChange(metricValue(cur, k), metricValue(prev, k))
	}
	return out
}

type Geo struct {
	Country  string `json:"country"`
	Region   string `json:"region"`
	Sessions int64  `json:"sessions"`
	Users    int64  `json:"users"`
}

type Device struct {
	Category    string  `json:"category"`
	Sessions    int64   `json:"sessions"`
	Users       int64   `json:"users"`
	Pageviews   int64   `json:"pageviews"`
	Conversions float64 `json:"conversions"`
}

type DayTrend struct {
	Date        string  `json:"date"`
	Sessions    int64   `json:"sessions"`
	Users       int64   `json:"users"`
	Conversions float64 `json:"conversions"`
}

type MonthlyReport struct {
	Type          string             `json:"report_type"`
	Property      string             `json:"property_id"`
	Month         string             `json:"month"`
	Range         DateRange          `json:"date_range"`
	PreviousMonth DateRange          `json:"previous_month"`
	Metrics       Metrics            `json:"metrics"`
	Previous      Metrics            `json:"previous_metrics"`
	Changes       map[string]float64 `json:"mom_changes"`
	Geo           []Geo              `json:"geographic_data"`
	Devices       []Device           `json:"device_breakdown"`
	Daily         []DayTrend         `json:"daily_trends"`
	TopContent    []Page             `json:"top_content"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// MonthRange returns the first and last day of year-month.
func MonthRange(year int, month time.Month) DateRange {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return DateRange{Start: first.Format(dateLayout), End: last.Format(dateLayout)}
}

// Monthly reports on year-month; a zero year picks the previous calendar
// month. Month-over-month changes are percentages, zero when the previous
// month had nothing.
func (rp *Reporter) Monthly(ctx context.Context, year int, month time.Month) (MonthlyReport, error) {
	now := rp.Now()
	if year == 0 || month == 0 {
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		year, month = prev.Year(), prev.Month()
	}
	dr := MonthRange(year, month)
	p := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	prev := MonthRange(p.Year(), p.Month())
	prevMetrics := []string{"sessions", "totalUsers", "newUsers", "screenPageViews", "conversions"}

	res, err := rp.runAll(ctx,
		Query{Start: dr.Start, End: dr.End, Metrics: monthlyMetrics},
		Query{Start: prev.Start, End: prev.End, Metrics: prevMetrics},
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{"country", "region"}, Metrics: []string{"sessions", "totalUsers"}, OrderBy: "sessions", Limit: 20},
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{"deviceCategory"}, Metrics: []string{"sessions", "totalUsers", "screenPageViews", "conversions"}, OrderBy: "sessions"},
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{"date"}, Metrics: []string{"sessions", "totalUsers", "conversions"}},
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{"pageTitle", "pagePath"}, Metrics: []string{"screenPageViews", "averageEngagementTime", "conversions"}, OrderBy: "screenPageViews", Limit: 20},
	)
	if err != nil {
		return MonthlyReport{}, err
	}

	rep := MonthlyReport{
		Type:          "monthly",
		Property:      rp.Property,
		Month:         fmt.Sprintf("%d-%02d", year, int(month)),
		Range:         dr,
		PreviousMonth: prev,
		Metrics:       parseMetrics(res[0], monthlyMetrics),
		Previous:      parseMetrics(res[1], prevMetrics),
		Changes:       make(map[string]float64, len(monthlyKeys)),
		Geo:           []Geo{},
		Devices:       []Device{},
		Daily:         []DayTrend{},
		TopContent:    []Page{},
		GeneratedAt:   now,
	}
	for _, k := range monthlyKeys {
		cur, before := metricValue(rep.Metrics, k), metricValue(rep.Previous, k)
		if before > 0 {
			rep.Changes[k] = (cur - before) / before * 100
		} else {
			rep.Changes[k] = 0
		}
	}
	for _, r := range res[2] {
		rep.Geo = append(rep.Geo, Geo{Country: r.Dim(0), Region: r.Dim(1), Sessions: r.Int(0), Users: r.Int(1)})
	}
	for _, r := range res[3] {
		rep.Devices = append(rep.Devices, Device{Category: r.Dim(0), Sessions: r.Int(0), Users: r.Int(1), Pageviews: r.Int(2), Conversions: r.Float(3)})
	}
	for _, r := range res[4] {
		rep.Daily = append(rep.Daily, DayTrend{Date: r.Dim(0), Sessions: r.Int(0), Users: r.Int(1), Conversions: r.Float(2)})
	}
	for _, r := range res[5] {
		rep.TopContent = append(rep.TopContent, Page{Title: r.Dim(0), Path: r.Dim(1), Pageviews: r.Int(0), EngagementTime: r.Float(1), Conversions: r.Float(2)})
	}
	return rep, nil
}

type SourceMedium struct {
	Source      string  `json:"source"`
	Medium      string  `json:"medium"`
	Sessions    int64   `json:"sessions"`
	Users       int64   `json:"users"`
	Conversions float64 `json:"conversions"`
}

type Referral struct {
	Referrer string `json:"referrer"`
	Sessions int64  `json:"sessions"`
	Users    int64  `json:"users"`
}

type SearchTerm struct {
	Term     string `json:"term"`
	Sessions int64  `json:"sessions"`
}

type Campaign struct {
	Campaign    string  `json:"campaign"`
	Sessions    int64   `json:"sessions"`
	Users       int64   `json:"users"`
	Conversions float64 `json:"conversions"`
}

type SourceReport struct {
	Type          string         `json:"report_type"`
	Property      string         `json:"property_id"`
	Range         DateRange      `json:"date_range"`
	Days          int            `json:"days"`
	TotalSessions int64          `json:"total_sessions"`
	Channels      []Channel      `json:"channels"`
	SourceMedium  []SourceMedium `json:"source_medium"`
	Referrals     []Referral     `json:"referrals"`
	SearchTerms   []SearchTerm   `json:"search_terms"`
	Campaigns     []Campaign     `json:"campaigns"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// Source breaks traffic down by acquisition over the last days days,
// today included. Placeholder values such as "(not set)" are dropped.
func (rp *Reporter) Source(ctx context.Context, days int) (SourceReport, error) {
	if days <= 0 {
		days = 7
	}
	now := rp.Now()
	dr := DateRange{Start: now.AddDate(0, 0, -(days - 1)).Format(dateLayout), End: now.Format(dateLayout)}

	res, err := rp.runAll(ctx,
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{channelGrouping}, Metrics: []string{"sessions", "totalUsers", "newUsers", "screenPageViews", "averageSessionDuration", "bounceRate", "engagementRate", "conversions"}, OrderBy: "sessions"},
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{"sessionSource", "sessionMedium"}, Metrics: []string{"sessions", "totalUsers", "conversions"}, OrderBy: "sessions", Limit: 20},
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{"pageReferrer"}, Metrics: []string{"sessions", "totalUsers"}, OrderBy: "sessions", Limit: 15},
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{"searchTerm"}, Metrics: []string{"sessions"}, OrderBy: "sessions", Limit: 15},
		Query{Start: dr.Start, End: dr.End, Dimensions: []string{"sessionCampaign"}, Metrics: []string{"sessions", "totalUsers", "conversions"}, OrderBy: "sessions", Limit: 10},
	)
	if err != nil {
		return SourceReport{}, err
	}

	rep := SourceReport{
		Type:         "source_breakdown",
		Property:     rp.Property,
		Range:        dr,
		Days:         days,
		Channels:     []Channel{},
		SourceMedium: []SourceMedium{},
		Referrals:    []Referral{},
		SearchTerms:  []SearchTerm{},
		Campaigns:    []Campaign{},
		GeneratedAt:  now,
	}
	for _, r := range res[0] {
		ch := Channel{
			Channel:            r.Dim(0),
			Sessions:           r.Int(0),
			Users:              r.Int(1),
			NewUsers:           r.Int(2),
			Pageviews:          r.Int(3),
			AvgSessionDuration: r.Float(4),
			BounceRate:         r.Float(5) * 100,
			EngagementRate:     r.Float(6) * 100,
			Conversions:        r.Float(7),
		}
		rep.TotalSessions += ch.Sessions
		rep.Channels = append(rep.Channels, ch)
	}
	for i := range rep.Channels {
		if rep.TotalSessions > 0 {
			rep.Channels[i].Share = float64(rep.Channels[i].Sessions) / float64(rep.TotalSessions) * 100
		}
	}
	for _, r := range res[1] {
		rep.SourceMedium = append(rep.SourceMedium, SourceMedium{Source: r.Dim(0), Medium: r.Dim(1), Sessions: r.Int(0), Users: r.Int(1), Conversions: r.Float(2)})
	}
	for _, r := range res[2] {
		if ref := r.Dim(0); ref != "" && ref != "(direct)" {
			rep.Referrals = append(rep.Referrals, Referral{Referrer: ref, Sessions: r.Int(0), Users: r.Int(1)})
		}
	}
	for _, r := range res[3] {
		if term := r.Dim(0); term != "" && term != "(not set)" {
			rep.SearchTerms = append(rep.SearchTerms, SearchTerm{Term: term, Sessions: r.Int(0)})
		}
	}
	for _, r := range res[4] {
		if c := r.Dim(0); c != "" && c != "(not set)" {
			rep.Campaigns = append(rep.Campaigns, Campaign{Campaign: c, Sessions: r.Int(0), Users: r.Int(1), Conversions: r.Float(2)})
		}
	}
	return rep, nil
}
