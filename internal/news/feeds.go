package news

import "fmt"

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

type Feed struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Priority string `json:"priority"`
}

var DefaultFeeds = []Feed{
	{Key: "fedsmith", Name: "FedSmith", URL: "https://www.fedsmith.com/feed/", Priority: PriorityHigh},
	{Key: "govexec", Name: "GovExec", URL: "https://www.govexec.com/rss/all-news.xml", Priority: PriorityHigh},
	{Key: "federal-news-network", Name: "Federal News Network", URL: "https://federalnewsnetwork.com/feed/", Priority: PriorityHigh},
	{Key: "federal-times", Name: "Federal Times", URL: "https://www.federaltimes.com/arc/outboundfeeds/rss/?outputType=xml", Priority: PriorityHigh},
	{Key: "federal-soup", Name: "Federal Soup", URL: "https://www.federalsoup.com/rss/news", Priority: PriorityMedium},
	{Key: "opm", Name: "OPM", URL: "https://www.opm.gov/news/releases/rss/releases.xml", Priority: PriorityHigh},
}

// SelectFeeds returns the feeds named by keys, in table order. No keys
// selects every feed.
func SelectFeeds(feeds []Feed, keys ...string) ([]Feed, error) {
	if len(keys) == 0 {
		return feeds, nil
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var out []Feed
	for _, f := range feeds {
		if want[f.Key] {
			out = append(out, f)
			delete(want, f.Key)
		}
	}
	for k := range want {
		return nil, fmt.Errorf("unknown source %q", k)
	}
	return out, nil
}

// SourcePriority looks up the priority of a feed key; unknown sources are
// low priority.
func SourcePriority(feeds []Feed, source string) string {
	for _, f := range feeds {
		if f.Key == source {
			return f.Priority
		}
	}
	return PriorityLow
}

// SourceName returns the display name for a feed key, or the key itself.
func SourceName(feeds []Feed, source string) string {
	for _, f := range feeds {
		if f.Key == source {
			return f.Name
		}
	}
	return source
}
