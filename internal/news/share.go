package news

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/stellarlinkco/opsclaw/internal/social"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownPlatform = errors.New("unknown platform")

var Platforms = []string{"twitter", "linkedin", "bluesky"}

// Sharer posts an article to one platform.
type Sharer interface {
	Share(ctx context.Context, a Article, message string) (string, error)
}

// ShareText builds the post text for platform. A custom message replaces
// the default "📰" lead-in.
func ShareText(platform string, a Article, message string) string {
	desc := truncateRunes(a.Description, 200)
	switch platform {
	case "twitter":
		if message != "" {
			return social.Shorten(fmt.Sprintf("%s %s %s", message, a.Title, a.URL), social.MaxTweetLength)
		}
		return social.Shorten(fmt.Sprintf("📰 Federal Buyout News: %s %s", a.Title, a.URL), social.MaxTweetLength)
	case "linkedin":
		if message != "" {
			return fmt.Sprintf("%s\n\n%s\n%s", message, a.Title, desc)
		}
		return fmt.Sprintf("📰 Federal Buyout Update:\n\n%s\n\n%s", a.Title, desc)
	case "bluesky":
		if message != "" {
			return social.Shorten(fmt.Sprintf("%s %s %s", message, a.Title, a.URL), social.MaxBlueskyLength)
		}
		return social.Shorten(fmt.Sprintf("📰 Federal Buyout News: %s\n\n%s", a.Title, a.URL), social.MaxBlueskyLength)
	default:
		return fmt.Sprintf("Federal Buyout News: %s\n%s", a.Title, a.URL)
	}
}

// PreviewText is the text shown by share --preview.
func PreviewText(platform string, a Article) string {
	switch platform {
	case "twitter":
		return fmt.Sprintf("📰 Federal Buyout News: %s via @%s %s", a.Title, a.Source, a.URL)
	case "linkedin":
		return fmt.Sprintf("📰 Federal Buyout Update\n\n%s\n\nRead more: %s", a.Title, a.URL)
	default:
		return ShareText(platform, a, "")
	}
}

type TwitterSharer struct{ Client *social.TwitterClient }

func (s TwitterSharer) Share(ctx context.Context, a Article, message string) (string, error) {
	return s.Client.Tweet(ctx, ShareText("twitter", a, message), "")
}

type LinkedInSharer struct{ Client *social.LinkedInClient }

func (s LinkedInSharer) Share(ctx context.Context, a Article, message string) (string, error) {
	return s.Client.Share(ctx, ShareText("linkedin", a, message), social.Link{
		URL:         a.URL,
		Title:       a.Title,
		Description: truncateRunes(a.Description, 200),
	})
}

type BlueskySharer struct{ Client *social.BlueskyClient }

func (s BlueskySharer) Share(ctx context.Context, a Article, message string) (string, error) {
	return s.Client.Post(ctx, ShareText("bluesky", a, message))
}

type ShareResult struct {
	Platform string
	ID       string
	Err      error
}

// ShareAll posts to each platform concurrently. A platform with no sharer
// reports ErrMissingCredentials; unknown platforms report
// ErrUnknownPlatform. Results follow the order of platforms.
func ShareAll(ctx context.Context, a Article, platforms []string, message string, sharers map[string]Sharer) []ShareResult {
	if len(platforms) == 0 {
		platforms = Platforms
	}
	results := make([]ShareResult, len(platforms))
	g, gctx := errgroup.WithContext(ctx)
	for i, raw := range platforms {
		platform := strings.ToLower(strings.TrimSpace(raw))
		g.Go(func() error {
			res := ShareResult{Platform: platform}
			if !known(platform) {
				res.Err = fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
			} else if s, ok := sharers[platform]; !ok || s == nil {
				res.Err = fmt.Errorf("%s: %w", platform, ErrMissingCredentials)
			} else {
				res.ID, res.Err = s.Share(gctx, a, message)
			}
			if res.Err != nil {
				log.Printf("[news] share to %s: %v", platform, res.Err)
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()
	return results
}

func known(platform string) bool {
	for _, p := range Platforms {
		if p == platform {
			return true
		}
	}
	return false
}
