package social

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/store"
)

var ErrInvalidMetrics = errors.New("invalid metrics")

// TweetMetrics is the latest manually recorded performance of one post.
type TweetMetrics struct {
	TweetID     string    `json:"tweet_id"`
	RecordedAt  time.Time `json:"recorded_at"`
	Impressions int       `json:"impressions"`
	Engagements int       `json:"engagements"`
	Likes       int       `json:"likes,omitempty"`
	Retweets    int       `json:"retweets,omitempty"`
	Replies     int       `json:"replies,omitempty"`
}

// EngagementRate is engagements per impression, in percent.
func (m TweetMetrics) EngagementRate() float64 {
	if m.Impressions == 0 {
		return 0
	}
	return float64(m.Engagements) / float64(m.Impressions) * 100
}

// MetricsStore keeps analytics.json, keyed by post id.
type MetricsStore struct {
	file *store.JSONFile[map[string]TweetMetrics]
	now  func() time.Time
}

func NewMetricsStore(path string) *MetricsStore {
	return &MetricsStore{
		file: store.NewJSONFile(path, func() map[string]TweetMetrics { return map[string]TweetMetrics{} }),
		now:  time.Now,
	}
}

// Track records m, replacing earlier numbers for the same post.
func (s *MetricsStore) Track(m TweetMetrics) (TweetMetrics, error) {
	m.TweetID = strings.TrimSpace(m.TweetID)
	if m.TweetID == "" {
		return TweetMetrics{}, fmt.Errorf("%w: tweet id is required", ErrInvalidMetrics)
	}
	if m.Impressions < 0 || m.Engagements < 0 || m.Likes < 0 || m.Retweets < 0 || m.Replies < 0 {
		return TweetMetrics{}, fmt.Errorf("%w: counts cannot be negative", ErrInvalidMetrics)
	}
	m.RecordedAt = s.now()
	err := s.file.Update(func(all *map[string]TweetMetrics) error {
		if *all == nil {
			*all = map[string]TweetMetrics{}
		}
		(*all)[m.TweetID] = m
		return nil
	})
	if err != nil {
		return TweetMetrics{}, err
	}
	return m, nil
}

// All returns every record ordered by post id.
func (s *MetricsStore) All() ([]TweetMetrics, error) {
	all, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	out := make([]TweetMetrics, 0, len(all))
	for _, m := range all {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TweetID < out[j].TweetID })
	return out, nil
}

// Best returns the n records with the most impressions.
func Best(metrics []TweetMetrics, n int) []TweetMetrics {
	sorted := append([]TweetMetrics(nil), metrics...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Impressions > sorted[j].Impressions })
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Report covers the seven days up to GeneratedAt.
type Report struct {
	GeneratedAt    time.Time      `json:"generated_at"`
	Since          time.Time      `json:"since"`
	Pending        int            `json:"pending"`
	Posted         int            `json:"posted"`
	Tracked        int            `json:"tracked"`
	Impressions    int            `json:"impressions"`
	Engagements    int            `json:"engagements"`
	AvgImpressions float64        `json:"avg_impressions"`
	Best           []TweetMetrics `json:"best"`
}

// WeeklyReport counts posts published in the last seven days, the posts
// still waiting, and totals the metrics recorded in the same window.
func WeeklyReport(posts []ScheduledTweet, metrics []TweetMetrics, now time.Time) Report {
	r := Report{GeneratedAt: now, Since: now.AddDate(0, 0, -7)}
	inWindow := func(t time.Time) bool { return !t.IsZero() && !t.Before(r.Since) && !t.After(now) }
	for _, p := range posts {
		switch {
		case p.Status == StatusScheduled:
			r.Pending++
		case p.Status == StatusPosted && inWindow(p.PostedAt):
			r.Posted++
		}
	}
	var recent []TweetMetrics
	for _, m := range metrics {
		if !inWindow(m.RecordedAt) {
			continue
		}
		recent = append(recent, m)
		r.Impressions += m.Impressions
		r.Engagements += m.Engagements
	}
	r.Tracked = len(recent)
	if r.Tracked > 0 {
		r.AvgImpressions = float64(r.Impressions) / float64(r.Tracked)
	}
	r.Best = Best(recent, 3)
	return r
}
