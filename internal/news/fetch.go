package news

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

const (
	feedUserAgent    = "Mozilla/5.0 (compatible; NewsBot/1.0)"
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	maxBodyText      = 5000
	maxDescription   = 500
	maxPageBytes     = 5 << 20
)

// Fetcher downloads feeds and scores their items.
type Fetcher struct {
	Client      *http.Client
	Feeds       []Feed // priority lookup; nil means DefaultFeeds
	Policy      *Policy
	Concurrency int
	Delay       time.Duration // pause after each feed, per worker
	FullText    bool          // fetch the article page when a feed item has no content

	now func() time.Time
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		Client:      &http.Client{Timeout: timeout},
		Concurrency: 2,
		now:         time.Now,
	}
}

// FeedResult is the outcome for one feed. A failed feed does not stop
// the others.
type FeedResult struct {
	Feed     Feed
	Articles []Article
	Err      error
}

// FetchAll fetches every feed with bounded concurrency and returns one
// result per feed in input order.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []Feed) []FeedResult {
	results := make([]FeedResult, len(feeds))
	g, ctx := errgroup.WithContext(ctx)
	limit := f.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, feed := range feeds {
		g.Go(func() error {
			log.Printf("[news] fetching %s", feed.Name)
			articles, err := f.FetchFeed(ctx, feed)
			if err != nil {
				log.Printf("[news] %s: %v", feed.Name, err)
			}
			results[i] = FeedResult{Feed: feed, Articles: articles, Err: err}
			if f.Delay > 0 {
				select {
				case <-time.After(f.Delay):
				case <-ctx.Done():
				}
			}
			return nil
		})
	}
	g.Wait()
	return results
}

// FetchFeed downloads and parses one RSS 2.0 or Atom feed and scores its
// items.
func (f *Fetcher) FetchFeed(ctx context.Context, feed Feed) ([]Article, error) {
	body, err := f.get(ctx, feed.URL, feedUserAgent, "application/rss+xml,application/xml,*/*")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	parsed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := f.clock()
	articles := make([]Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		a := f.fromItem(item, feed.Key, now)
		if f.FullText && a.Content == "" && a.URL != "" {
			if text, err := f.FetchText(ctx, a.URL); err == nil {
				a.Content = text
			} else {
				log.Printf("[news] full text %s: %v", a.URL, err)
			}
		}
		a.Score = f.score(a, now)
		articles = append(articles, a)
	}
	return articles, nil
}

func (f *Fetcher) fromItem(item *gofeed.Item, source string, now time.Time) Article {
	content := item.Content
	if content == "" {
		content = item.Description
	}
	a := Article{
		URL:         item.Link,
		Title:       CleanText(item.Title),
		Description: truncateRunes(CleanText(item.Description), maxDescription),
		Content:     CleanText(content),
		Source:      source,
		FetchedAt:   now,
	}
	if a.Description == "" {
		a.Description = truncateRunes(a.Content, maxDescription)
	}
	switch {
	case item.PublishedParsed != nil:
		a.Published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		a.Published = *item.UpdatedParsed
	default:
		a.Published = now
	}
	return a
}

func (f *Fetcher) score(a Article, now time.Time) int {
	p := f.Policy
	if p == nil {
		p = &DefaultPolicy
	}
	feeds := f.Feeds
	if feeds == nil {
		feeds = DefaultFeeds
	}
	in := Input{
		Title:     a.Title,
		Content:   a.Content,
		Priority:  SourcePriority(feeds, a.Source),
		Published: a.Published,
	}
	return p.Score(p.Extract(in, now))
}

// FetchText downloads an article page and returns its main text.
func (f *Fetcher) FetchText(ctx context.Context, u string) (string, error) {
	page, err := f.FetchPage(ctx, u)
	if err != nil {
		return "", err
	}
	return truncateRunes(page.Body, maxBodyText), nil
}

func (f *Fetcher) FetchPage(ctx context.Context, u string) (Page, error) {
	body, err := f.get(ctx, u, browserUserAgent, "text/html,*/*")
	if err != nil {
		return Page{}, err
	}
	defer body.Close()
	return ExtractPage(io.LimitReader(body, maxPageBytes))
}

func (f *Fetcher) get(ctx context.Context, u, userAgent, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	return resp.Body, nil
}

func (f *Fetcher) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
