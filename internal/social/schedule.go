package social

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/store"
)

const (
	TimeLayout            = "2006-01-02 15:04"
	DefaultTimezone       = "America/New_York"
	DefaultThreadInterval = 10 * time.Minute

	StatusScheduled = "scheduled"
	StatusPosted    = "posted"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

var ErrPostNotFound = errors.New("scheduled post not found")

type ScheduledTweet struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	ScheduledTime  string    `json:"scheduled_time"`
	Timezone       string    `json:"timezone"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	Platform       string    `json:"platform"`
	ThreadID       string    `json:"thread_id,omitempty"`
	ThreadPosition int       `json:"thread_position,omitempty"`
	Metadata       Metadata  `json:"metadata"`
	PostedAt       time.Time `json:"posted_at,omitzero"`
	RemoteID       string    `json:"remote_id,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// At resolves ScheduledTime in the post's timezone.
func (t ScheduledTweet) At() (time.Time, error) {
	loc, err := loadLocation(t.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(TimeLayout, t.ScheduledTime, loc)
}

type ThreadTweet struct {
	Position      int    `json:"position"`
	ID            string `json:"id"`
	ScheduledTime string `json:"scheduled_time"`
	Content       string `json:"content"` // preview
}

type Thread struct {
	ID              string        `json:"id"`
	TweetCount      int           `json:"tweet_count"`
	ScheduledTime   string        `json:"scheduled_time"`
	IntervalMinutes int           `json:"interval_minutes"`
	Status          string        `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	Tweets          []ThreadTweet `json:"tweets"`
}

// Scheduler keeps scheduled.json and threads.json.
type Scheduler struct {
	posts    *store.JSONFile[[]ScheduledTweet]
	threads  *store.JSONFile[[]Thread]
	timezone string
	now      func() time.Time
}

func NewScheduler(postsPath, threadsPath, timezone string) *Scheduler {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	return &Scheduler{
		posts:    store.NewJSONFile(postsPath, func() []ScheduledTweet { return []ScheduledTweet{} }),
		threads:  store.NewJSONFile(threadsPath, func() []Thread { return []Thread{} }),
		timezone: timezone,
		now:      time.Now,
	}
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

// SuggestTime is the next posting slot: tomorrow at 09:00, or 14:00 when
// the morning window has already passed today.
func SuggestTime(now time.Time) time.Time {
	y, m, d := now.Date()
	slot := time.Date(y, m, d+1, 9, 0, 0, 0, now.Location())
	if now.Hour() >= 11 {
		slot = slot.Add(5 * time.Hour)
	}
	return slot
}

// Schedule stores one post, optionally tagged with a campaign. An empty
// when picks SuggestTime. It returns the stored post and whether the time
// is already in the past.
func (s *Scheduler) Schedule(content, when, timezone, campaign string) (ScheduledTweet, bool, error) {
	if err := ValidateTweet(content); err != nil {
		return ScheduledTweet{}, false, err
	}
	if timezone == "" {
		timezone = s.timezone
	}
	loc, err := loadLocation(timezone)
	if err != nil {
		return ScheduledTweet{}, false, err
	}
	now := s.now().In(loc)
	if when == "" {
		when = SuggestTime(now).Format(TimeLayout)
	}
	at, err := time.ParseInLocation(TimeLayout, when, loc)
	if err != nil {
		return ScheduledTweet{}, false, fmt.Errorf("%w: time format must be YYYY-MM-DD HH:MM", ErrInvalidTweet)
	}

	var added ScheduledTweet
	err = s.posts.Update(func(posts *[]ScheduledTweet) error {
		added = ScheduledTweet{
			ID:            nextID(*posts, "tweet_%04d"),
			Content:       content,
			ScheduledTime: when,
			Timezone:      timezone,
			Status:        StatusScheduled,
			CreatedAt:     s.now(),
			Platform:      "twitter",
			Metadata:      MetadataFor(content, false),
		}
		added.Metadata.Campaign = strings.TrimSpace(campaign)
		*posts = append(*posts, added)
		return nil
	})
	if err != nil {
		return ScheduledTweet{}, false, err
	}
	return added, at.Before(now), nil
}

// ScheduleThread splits draft with SplitThread and schedules each part
// interval apart, starting at start (tomorrow 09:00 when empty).
func (s *Scheduler) ScheduleThread(draft, start string, interval time.Duration) (Thread, []ScheduledTweet, error) {
	parts, err := SplitThread(draft)
	if err != nil {
		return Thread{}, nil, err
	}
	if interval <= 0 {
		interval = DefaultThreadInterval
	}
	loc, err := loadLocation(s.timezone)
	if err != nil {
		return Thread{}, nil, err
	}
	now := s.now().In(loc)
	var first time.Time
	if start == "" {
		y, m, d := now.Date()
		first = time.Date(y, m, d+1, 9, 0, 0, 0, loc)
		start = first.Format(TimeLayout)
	} else if first, err = time.ParseInLocation(TimeLayout, start, loc); err != nil {
		return Thread{}, nil, fmt.Errorf("%w: time format must be YYYY-MM-DD HH:MM", ErrInvalidTweet)
	}

	var thread Thread
	var posts []ScheduledTweet
	err = s.threads.Update(func(threads *[]Thread) error {
		thread = Thread{
			ID:              fmt.Sprintf("thread_%04d", len(*threads)+1),
			TweetCount:      len(parts),
			ScheduledTime:   start,
			IntervalMinutes: int(interval / time.Minute),
			Status:          StatusScheduled,
			CreatedAt:       s.now(),
		}
		at := first
		for i, p := range parts {
			post := ScheduledTweet{
				ID:             fmt.Sprintf("%s_tweet_%02d", thread.ID, i+1),
				Content:        p,
				ScheduledTime:  at.Format(TimeLayout),
				Timezone:       s.timezone,
				Status:         StatusScheduled,
				CreatedAt:      s.now(),
				Platform:       "twitter",
				ThreadID:       thread.ID,
				ThreadPosition: i + 1,
				Metadata:       MetadataFor(p, true),
			}
			posts = append(posts, post)
			thread.Tweets = append(thread.Tweets, ThreadTweet{
				Position:      i + 1,
				ID:            post.ID,
				ScheduledTime: post.ScheduledTime,
				Content:       Shorten(p, 63),
			})
			at = at.Add(interval)
		}
		if err := s.posts.Update(func(all *[]ScheduledTweet) error {
			*all = append(*all, posts...)
			return nil
		}); err != nil {
			return err
		}
		*threads = append(*threads, thread)
		return nil
	})
	if err != nil {
		return Thread{}, nil, err
	}
	return thread, posts, nil
}

func nextID(posts []ScheduledTweet, format string) string {
	used := make(map[string]bool, len(posts))
	for _, p := range posts {
		used[p.ID] = true
	}
	for n := len(posts) + 1; ; n++ {
		if id := fmt.Sprintf(format, n); !used[id] {
			return id
		}
	}
}

// List returns posts in insertion order, optionally filtered by status.
func (s *Scheduler) List(status string) ([]ScheduledTweet, error) {
	posts, err := s.posts.Load()
	if err != nil {
		return nil, err
	}
	var out []ScheduledTweet
	for _, p := range posts {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Scheduler) Threads() ([]Thread, error) {
	return s.threads.Load()
}

func (s *Scheduler) Cancel(id string) (ScheduledTweet, error) {
	return s.mutate(id, func(p *ScheduledTweet) error {
		if p.Status != StatusScheduled {
			return fmt.Errorf("post %s is %s", id, p.Status)
		}
		p.Status = StatusCancelled
		return nil
	})
}

func (s *Scheduler) mutate(id string, fn func(*ScheduledTweet) error) (ScheduledTweet, error) {
	var out ScheduledTweet
	err := s.posts.Update(func(posts *[]ScheduledTweet) error {
		for i := range *posts {
			if (*posts)[i].ID == id {
				if err := fn(&(*posts)[i]); err != nil {
					return err
				}
				out = (*posts)[i]
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrPostNotFound, id)
	})
	return out, err
}

// Due returns scheduled posts whose time has come, oldest first.
func (s *Scheduler) Due(now time.Time) ([]ScheduledTweet, error) {
	posts, err := s.List(StatusScheduled)
	if err != nil {
		return nil, err
	}
	type timed struct {
		post ScheduledTweet
		at   time.Time
	}
	var ready []timed
	for _, p := range posts {
		at, err := p.At()
		if err != nil {
			log.Printf("[tweets] skip %s: %v", p.ID, err)
			continue
		}
		if !at.After(now) {
			ready = append(ready, timed{p, at})
		}
	}
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].at.Before(ready[j].at) })
	due := make([]ScheduledTweet, len(ready))
	for i, r := range ready {
		due[i] = r.post
	}
	return due, nil
}

// Poster publishes one tweet, optionally as a reply.
type Poster interface {
	Tweet(ctx context.Context, text, replyTo string) (string, error)
}

// PostDue publishes every due post. Thread parts reply to the previous
// part when it has been posted. Failures are recorded on the post and do
// not stop the rest.
func (s *Scheduler) PostDue(ctx context.Context, p Poster, now time.Time) ([]ScheduledTweet, error) {
	due, err := s.Due(now)
	if err != nil {
		return nil, err
	}
	all, err := s.posts.Load()
	if err != nil {
		return nil, err
	}
	remote := make(map[string]string)
	for _, t := range all {
		if t.ThreadID != "" && t.RemoteID != "" {
			remote[fmt.Sprintf("%s#%d", t.ThreadID, t.ThreadPosition)] = t.RemoteID
		}
	}

	var out []ScheduledTweet
	for _, t := range due {
		replyTo := ""
		if t.ThreadID != "" && t.ThreadPosition > 1 {
			replyTo = remote[fmt.Sprintf("%s#%d", t.ThreadID, t.ThreadPosition-1)]
		}
		id, postErr := p.Tweet(ctx, t.Content, replyTo)
		updated, err := s.mutate(t.ID, func(st *ScheduledTweet) error {
			if postErr != nil {
				st.Status = StatusFailed
				st.Error = postErr.Error()
				return nil
			}
			st.Status = StatusPosted
			st.RemoteID = id
			st.PostedAt = now
			st.Error = ""
			return nil
		})
		if err != nil {
			return out, err
		}
		if postErr != nil {
			log.Printf("[tweets] post %s: %v", t.ID, postErr)
		} else if t.ThreadID != "" {
			remote[fmt.Sprintf("%s#%d", t.ThreadID, t.ThreadPosition)] = id
		}
		out = append(out, updated)
	}
	return out, nil
}
