package social

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func calendarFixture(t *testing.T) (*Scheduler, time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, now)
	for _, p := range []struct{ content, when, campaign string }{
		{"kickoff", "2026-03-04 09:00", "launch"},
		{"next week", "2026-03-10 09:00", ""},
		{"later this month", "2026-03-12 09:00", "launch"},
		{"april", "2026-04-01 09:00", ""},
	} {
		if _, _, err := s.Schedule(p.content, p.when, "", p.campaign); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := s.ScheduleThread("a\n---\nb", "2026-03-05 10:00", 0); err != nil {
		t.Fatal(err)
	}
	return s, now
}

func ids(posts []ScheduledTweet) string {
	var out []string
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return strings.Join(out, ",")
}

func TestCalendar(t *testing.T) {
	s, now := calendarFixture(t)
	all, _ := s.List("")

	tests := []struct {
		view, campaign string
		want           string
	}{
		{ViewToday, "", "tweet_0001"},
		{ViewWeek, "", "tweet_0001,thread_0001_tweet_01,thread_0001_tweet_02,tweet_0002"},
		{ViewMonth, "", "tweet_0001,thread_0001_tweet_01,thread_0001_tweet_02,tweet_0002,tweet_0003"},
		{"", "launch", "tweet_0001,tweet_0003"},
		{ViewWeek, "launch", "tweet_0001"},
		{"", "", "tweet_0001,thread_0001_tweet_01,thread_0001_tweet_02,tweet_0002,tweet_0003,tweet_0004"},
	}
	for _, tt := range tests {
		got, err := Calendar(all, tt.view, tt.campaign, now)
		if err != nil {
			t.Fatalf("Calendar(%q, %q) error: %v", tt.view, tt.campaign, err)
		}
		if ids(got) != tt.want {
			t.Errorf("Calendar(%q, %q) = %s, want %s", tt.view, tt.campaign, ids(got), tt.want)
		}
	}
	if _, err := Calendar(all, "year", "", now); err == nil {
		t.Error("expected unknown view error")
	}
}

func TestCalendar_UsesPostTimezone(t *testing.T) {
	post := ScheduledTweet{ID: "tweet_0001", ScheduledTime: "2026-03-04 21:00", Timezone: "America/New_York"}
	// 01:00 UTC on the 5th is still the 4th in New York.
	now := time.Date(2026, 3, 5, 1, 0, 0, 0, time.UTC)
	got, err := Calendar([]ScheduledTweet{post}, ViewToday, "", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("today = %d posts, want 1", len(got))
	}
}

func TestGroupByDay(t *testing.T) {
	s, now := calendarFixture(t)
	all, _ := s.List("")
	month, _ := Calendar(all, ViewMonth, "", now)

	days := GroupByDay(month)
	if len(days) != 4 {
		t.Fatalf("days = %d, want 4", len(days))
	}
	if days[0].Date != "2026-03-04" || days[0].Weekday != time.Wednesday {
		t.Errorf("first day = %s %s", days[0].Date, days[0].Weekday)
	}
	if len(days[1].Posts) != 2 {
		t.Errorf("thread day posts = %d, want 2", len(days[1].Posts))
	}
}

func TestExportCalendar(t *testing.T) {
	s, _ := calendarFixture(t)
	all, _ := s.List("")

	var buf bytes.Buffer
	if err := ExportCalendar(&buf, all, "csv"); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("rows = %d, want header + 6", len(rows))
	}
	if strings.Join(rows[0], ",") != "Date,Time,Content,Status,Thread,Campaign,Char Count" {
		t.Errorf("header = %q", rows[0])
	}
	if got := strings.Join(rows[1], ","); got != "2026-03-04,09:00,kickoff,scheduled,No,launch,7" {
		t.Errorf("first row = %q", got)
	}

	buf.Reset()
	if err := ExportCalendar(&buf, nil, "json"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[]\n" {
		t.Errorf("empty json = %q, want []", buf.String())
	}
	if err := ExportCalendar(&buf, all, "xml"); err == nil {
		t.Error("expected unknown format error")
	}
}

func TestStats(t *testing.T) {
	s, _ := calendarFixture(t)
	s.Cancel("tweet_0004")
	all, _ := s.List("")

	st := Stats(all)
	if st.Total != 6 || st.Single != 4 || st.Threads != 2 {
		t.Errorf("stats = %+v", st)
	}
	if st.ByStatus[StatusCancelled] != 1 || st.ByStatus[StatusScheduled] != 5 {
		t.Errorf("by status = %v", st.ByStatus)
	}
	want := []WeekCount{{"2026-W09", 3}, {"2026-W10", 2}, {"2026-W13", 1}}
	if len(st.ByWeek) != len(want) {
		t.Fatalf("by week = %+v, want %+v", st.ByWeek, want)
	}
	for i := range want {
		if st.ByWeek[i] != want[i] {
			t.Errorf("week %d = %+v, want %+v", i, st.ByWeek[i], want[i])
		}
	}
}

func TestMetricsStore(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	m := NewMetricsStore(filepath.Join(t.TempDir(), "analytics.json"))
	m.now = func() time.Time { return now }

	if _, err := m.Track(TweetMetrics{TweetID: "tweet_0001", Impressions: 1000, Engagements: 50}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Track(TweetMetrics{TweetID: "tweet_0002", Impressions: 300}); err != nil {
		t.Fatal(err)
	}
	got, err := m.Track(TweetMetrics{TweetID: "tweet_0001", Impressions: 1200, Engagements: 60})
	if err != nil {
		t.Fatal(err)
	}
	if !got.RecordedAt.Equal(now) || got.EngagementRate() != 5 {
		t.Errorf("tracked = %+v rate = %v", got, got.EngagementRate())
	}

	for _, bad := range []TweetMetrics{{TweetID: " "}, {TweetID: "x", Likes: -1}} {
		if _, err := m.Track(bad); !errors.Is(err, ErrInvalidMetrics) {
			t.Errorf("Track(%+v) err = %v, want ErrInvalidMetrics", bad, err)
		}
	}

	all, err := m.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Impressions != 1200 {
		t.Fatalf("all = %+v", all)
	}
	if best := Best(all, 1); len(best) != 1 || best[0].TweetID != "tweet_0001" {
		t.Errorf("best = %+v", best)
	}
}

func TestWeeklyReport(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	posts := []ScheduledTweet{
		{ID: "a", Status: StatusScheduled},
		{ID: "b", Status: StatusPosted, PostedAt: now.AddDate(0, 0, -2)},
		{ID: "c", Status: StatusPosted, PostedAt: now.AddDate(0, 0, -10)},
		{ID: "d", Status: StatusFailed},
	}
	metrics := []TweetMetrics{
		{TweetID: "b", RecordedAt: now.Add(-time.Hour), Impressions: 400, Engagements: 20},
		{TweetID: "e", RecordedAt: now.AddDate(0, 0, -1), Impressions: 200, Engagements: 4},
		{TweetID: "c", RecordedAt: now.AddDate(0, 0, -8), Impressions: 9000},
	}

	r := WeeklyReport(posts, metrics, now)
	if r.Pending != 1 || r.Posted != 1 || r.Tracked != 2 {
		t.Errorf("pending = %d posted = %d tracked = %d, want 1, 1, 2", r.Pending, r.Posted, r.Tracked)
	}
	if r.Impressions != 600 || r.Engagements != 24 || r.AvgImpressions != 300 {
		t.Errorf("totals = %d/%d avg %v", r.Impressions, r.Engagements, r.AvgImpressions)
	}
	if len(r.Best) != 2 || r.Best[0].TweetID != "b" {
		t.Errorf("best = %+v", r.Best)
	}
}

func TestSuggestHashtags(t *testing.T) {
	tests := []struct {
		topic string
		count int
		want  string
	}{
		{"NAICS  codes", 3, "#NAICS,#NAICSCode,#NAICSCodeHelp"},
		{"marketing for hubzone firms", 6, "#HUBZone,#GovCon,#SmallBusiness,#FederalContracts,#RuralBusiness,#GovMarketing"},
		{"gardening", 0, "#GovCon,#GovernmentContracting,#FederalContracts,#SmallBusiness,#ContractingMadeSimple"},
	}
	for _, tt := range tests {
		if got := strings.Join(SuggestHashtags(tt.topic, tt.count), ","); got != tt.want {
			t.Errorf("SuggestHashtags(%q, %d) = %s, want %s", tt.topic, tt.count, got, tt.want)
		}
	}
	// a word inside another word does not match
	if got := SuggestHashtags("settings", 5); got[0] != "#GovCon" {
		t.Errorf("SuggestHashtags(settings) = %q, want core tags", got)
	}
}

func TestParseHashtags(t *testing.T) {
	got := ParseHashtags("GovCon, #8a  wosb,,#")
	if strings.Join(got, ",") != "#GovCon,#8a,#wosb" {
		t.Errorf("ParseHashtags = %q", got)
	}
}

func TestAnalyzeHashtags(t *testing.T) {
	a := AnalyzeHashtags([]string{"#8a", "#wosb", "#Foo"})
	cats := []string{a.Tags[0].Category, a.Tags[1].Category, a.Tags[2].Category}
	if strings.Join(cats, ",") != "set asides,set asides,other" {
		t.Errorf("categories = %q", cats)
	}
	if a.TotalChars != 12 || a.Remaining != 265 || len(a.Warnings) != 0 {
		t.Errorf("analysis = %+v", a)
	}
	if got := strings.Join(a.Related, ","); got != "#MinorityOwned,#GovCon,#SmallBusiness,#FederalContracts,#WomenOwned" {
		t.Errorf("related = %s", got)
	}

	crowded := AnalyzeHashtags(ParseHashtags("#GovernmentContracting #WinGovernmentContracts #SmallBusinessCommunity #ContractingMadeSimple #SmallBusinessTips #GovConCommunity"))
	if len(crowded.Warnings) != 1 || !strings.Contains(crowded.Warnings[0], "3-5 hashtags") {
		t.Errorf("warnings = %q", crowded.Warnings)
	}
}
