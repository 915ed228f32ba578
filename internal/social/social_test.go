package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/config"
)

func TestValidateTweet(t *testing.T) {
	if err := ValidateTweet("hello"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateTweet(strings.Repeat("é", 280)); err != nil {
		t.Errorf("280 runes should be valid: %v", err)
	}
	for _, bad := range []string{"", "   ", strings.Repeat("a", 281)} {
		if err := ValidateTweet(bad); !errors.Is(err, ErrInvalidTweet) {
			t.Errorf("ValidateTweet(%d chars) err = %v, want ErrInvalidTweet", len(bad), err)
		}
	}
}

func TestMetadataFor(t *testing.T) {
	m := MetadataFor("Hi @bob see https://x.io #GovCon", false)
	if m.CharCount != 32 || !m.HasHashtags || !m.HasMentions || !m.HasURL || m.IsThread {
		t.Errorf("metadata = %+v", m)
	}
}

func TestSplitThread(t *testing.T) {
	parts, err := SplitThread("First idea\n---\n2/ already numbered\n---\n\nThird")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1/3\n\nFirst idea", "2/ already numbered", "3/3\n\nThird"}
	if len(parts) != 3 {
		t.Fatalf("parts = %q", parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, parts[i], want[i])
		}
	}

	if _, err := SplitThread("only one"); !errors.Is(err, ErrInvalidTweet) {
		t.Errorf("err = %v, want ErrInvalidTweet", err)
	}
	// a "---" inside a line is not a separator
	if _, err := SplitThread("a --- b"); err == nil {
		t.Error("expected single-part error")
	}
	if _, err := SplitThread("ok\n---\n" + strings.Repeat("x", 276)); !errors.Is(err, ErrInvalidTweet) {
		t.Errorf("numbering should push part 2 over the limit, err = %v", err)
	}
}

func TestSuggestTime(t *testing.T) {
	loc := time.FixedZone("ET", -5*3600)
	morning := time.Date(2026, 3, 1, 8, 0, 0, 0, loc)
	if got := SuggestTime(morning); !got.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, loc)) {
		t.Errorf("morning suggestion = %v", got)
	}
	noon := time.Date(2026, 3, 1, 11, 0, 0, 0, loc)
	if got := SuggestTime(noon); !got.Equal(time.Date(2026, 3, 2, 14, 0, 0, 0, loc)) {
		t.Errorf("noon suggestion = %v", got)
	}
}

func newTestScheduler(t *testing.T, now time.Time) *Scheduler {
	t.Helper()
	dir := t.TempDir()
	s := NewScheduler(filepath.Join(dir, "scheduled.json"), filepath.Join(dir, "threads.json"), "UTC")
	s.now = func() time.Time { return now }
	return s
}

func TestScheduler_Schedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, now)

	first, past, err := s.Schedule("hello #GovCon", "2026-03-05 10:00", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != "tweet_0001" || past || first.Timezone != "UTC" || !first.Metadata.HasHashtags {
		t.Errorf("first = %+v past = %v", first, past)
	}

	auto, _, err := s.Schedule("auto", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if auto.ID != "tweet_0002" || auto.ScheduledTime != "2026-03-02 14:00" {
		t.Errorf("auto = %+v", auto)
	}

	if _, past, _ := s.Schedule("late", "2026-02-01 09:00", "", ""); !past {
		t.Error("expected past flag")
	}
	if _, _, err := s.Schedule("bad time", "tomorrow", "", ""); !errors.Is(err, ErrInvalidTweet) {
		t.Errorf("err = %v, want ErrInvalidTweet", err)
	}
	if _, _, err := s.Schedule(strings.Repeat("a", 300), "", "", ""); !errors.Is(err, ErrInvalidTweet) {
		t.Errorf("err = %v, want ErrInvalidTweet", err)
	}

	all, _ := s.List("")
	if len(all) != 3 {
		t.Errorf("stored = %d, want 3", len(all))
	}
}

func TestScheduler_ThreadAndCancel(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, now)

	thread, posts, err := s.ScheduleThread("one\n---\ntwo\n---\nthree", "2026-03-03 09:00", 0)
	if err != nil {
		t.Fatal(err)
	}
	if thread.ID != "thread_0001" || thread.TweetCount != 3 || thread.IntervalMinutes != 10 {
		t.Errorf("thread = %+v", thread)
	}
	if posts[2].ID != "thread_0001_tweet_03" || posts[2].ScheduledTime != "2026-03-03 09:20" || !posts[2].Metadata.IsThread {
		t.Errorf("third post = %+v", posts[2])
	}

	threads, _ := s.Threads()
	if len(threads) != 1 || len(threads[0].Tweets) != 3 {
		t.Errorf("threads = %+v", threads)
	}

	if _, err := s.Cancel(posts[1].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Cancel(posts[1].ID); err == nil {
		t.Error("cancelling twice should fail")
	}
	if _, err := s.Cancel("tweet_9999"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("err = %v, want ErrPostNotFound", err)
	}
	scheduled, _ := s.List(StatusScheduled)
	if len(scheduled) != 2 {
		t.Errorf("scheduled = %d, want 2", len(scheduled))
	}
}

type fakePoster struct {
	calls   []string
	replies []string
	fail    map[string]bool
}

func (f *fakePoster) Tweet(ctx context.Context, text, replyTo string) (string, error) {
	if f.fail[text] {
		return "", errors.New("rejected")
	}
	f.calls = append(f.calls, text)
	f.replies = append(f.replies, replyTo)
	return fmt.Sprintf("id%d", len(f.calls)), nil
}

func TestScheduler_PostDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, now)
	s.Schedule("future", "2026-03-09 09:00", "", "")
	s.Schedule("broken", "2026-03-01 08:00", "", "")
	s.ScheduleThread("a\n---\nb", "2026-03-01 10:00", 10*time.Minute)

	p := &fakePoster{fail: map[string]bool{"broken": true}}
	out, err := s.PostDue(context.Background(), p, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("processed = %d, want 3", len(out))
	}
	if len(p.calls) != 2 || p.replies[0] != "" || p.replies[1] != "id1" {
		t.Errorf("calls = %q replies = %q", p.calls, p.replies)
	}

	failed, _ := s.List(StatusFailed)
	if len(failed) != 1 || failed[0].Error == "" {
		t.Errorf("failed = %+v", failed)
	}
	posted, _ := s.List(StatusPosted)
	if len(posted) != 2 || posted[1].RemoteID != "id2" {
		t.Errorf("posted = %+v", posted)
	}
	due, _ := s.Due(now)
	if len(due) != 0 {
		t.Errorf("still due = %d", len(due))
	}
}

func TestShorten(t *testing.T) {
	if got := Shorten("abcdef", 5); got != "ab..." {
		t.Errorf("Shorten = %q", got)
	}
	if got := Shorten("abc", 5); got != "abc" {
		t.Errorf("Shorten = %q", got)
	}
}

func TestTwitterClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			t.Errorf("missing oauth header")
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "hello" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"data":{"id":"42","text":"hello"}}`)
	}))
	defer srv.Close()

	c, err := NewTwitterClient(config.TwitterConfig{ConsumerKey: "k", ConsumerSecret: "s", AccessToken: "t", AccessTokenSecret: "ts"})
	if err != nil {
		t.Fatal(err)
	}
	c.BaseURL = srv.URL
	id, err := c.Tweet(context.Background(), "hello", "")
	if err != nil || id != "42" {
		t.Errorf("Tweet = %q, %v", id, err)
	}

	if _, err := NewTwitterClient(config.TwitterConfig{ConsumerKey: "k"}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestTwitterClient_RejectsNon201(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"detail":"duplicate"}`)
	}))
	defer srv.Close()

	c, _ := NewTwitterClient(config.TwitterConfig{ConsumerKey: "k", ConsumerSecret: "s", AccessToken: "t", AccessTokenSecret: "ts"})
	c.BaseURL = srv.URL
	_, err := c.Tweet(context.Background(), "hello", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Errorf("err = %v, want APIError 403", err)
	}
}

func TestLinkedInClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		switch r.URL.Path {
		case "/v2/me":
			io.WriteString(w, `{"id":"abc"}`)
		case "/v2/ugcPosts":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["author"] != "urn:li:person:abc" {
				t.Errorf("author = %v", body["author"])
			}
			w.Header().Set("X-RestLi-Id", "urn:li:share:1")
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c, err := NewLinkedInClient(config.LinkedInConfig{AccessToken: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	c.BaseURL = srv.URL
	id, err := c.Share(context.Background(), "text", Link{URL: "https://x", Title: "T"})
	if err != nil || id != "urn:li:share:1" {
		t.Errorf("Share = %q, %v", id, err)
	}
}

func TestBlueskyClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			io.WriteString(w, `{"accessJwt":"jwt","did":"did:plc:1"}`)
		case "/xrpc/com.atproto.repo.createRecord":
			if r.Header.Get("Authorization") != "Bearer jwt" {
				t.Errorf("auth = %q", r.Header.Get("Authorization"))
			}
			var body struct {
				Repo   string `json:"repo"`
				Record struct {
					Text string `json:"text"`
				} `json:"record"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.Repo != "did:plc:1" || len([]rune(body.Record.Text)) != MaxBlueskyLength {
				t.Errorf("record = %+v", body)
			}
			io.WriteString(w, `{"uri":"at://did:plc:1/app.bsky.feed.post/1"}`)
		}
	}))
	defer srv.Close()

	c, err := NewBlueskyClient(config.BlueskyConfig{Handle: "me.bsky.social", AppPassword: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	c.BaseURL = srv.URL
	uri, err := c.Post(context.Background(), strings.Repeat("x", 400))
	if err != nil || !strings.HasPrefix(uri, "at://") {
		t.Errorf("Post = %q, %v", uri, err)
	}
}
