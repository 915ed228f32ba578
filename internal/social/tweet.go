// Package social schedules posts in flat JSON files and publishes them to
// Twitter/X, LinkedIn and Bluesky.
package social

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTweetLength   = 280
	MaxBlueskyLength = 300
)

var (
	ErrInvalidTweet       = errors.New("invalid tweet")
	ErrMissingCredentials = errors.New("missing credentials")
)

// ValidateTweet rejects empty content and content over 280 characters.
func ValidateTweet(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content cannot be empty", ErrInvalidTweet)
	}
	if n := utf8.RuneCountInString(content); n > MaxTweetLength {
		return fmt.Errorf("%w: exceeds %d characters (%d chars)", ErrInvalidTweet, MaxTweetLength, n)
	}
	return nil
}

type Metadata struct {
	CharCount   int    `json:"char_count"`
	HasHashtags bool   `json:"has_hashtags"`
	HasMentions bool   `json:"has_mentions"`
	HasURL      bool   `json:"has_url"`
	IsThread    bool   `json:"is_thread"`
	Campaign    string `json:"campaign,omitempty"`
}

func MetadataFor(content string, thread bool) Metadata {
	return Metadata{
		CharCount:   utf8.RuneCountInString(content),
		HasHashtags: strings.Contains(content, "#"),
		HasMentions: strings.Contains(content, "@"),
		HasURL:      strings.Contains(content, "http"),
		IsThread:    thread,
	}
}

// Shorten cuts text to max characters, ending with "..." when cut.
func Shorten(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	const suffix = "..."
	if max <= len(suffix) {
		return string(r[:max])
	}
	return string(r[:max-len(suffix)]) + suffix
}

// SplitThread splits a thread draft on lines consisting of "---" and
// numbers each part "i/n" unless it already starts with its number.
func SplitThread(draft string) ([]string, error) {
	var parts []string
	var cur []string
	flush := func() {
		if text := strings.TrimSpace(strings.Join(cur, "\n")); text != "" {
			parts = append(parts, text)
		}
		cur = nil
	}
	for _, line := range strings.Split(draft, "\n") {
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()

	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: thread must have at least 2 tweets", ErrInvalidTweet)
	}
	n := len(parts)
	var problems []string
	for i, p := range parts {
		if !strings.HasPrefix(p, fmt.Sprintf("%d/", i+1)) {
			p = fmt.Sprintf("%d/%d\n\n%s", i+1, n, p)
			parts[i] = p
		}
		if c := utf8.RuneCountInString(p); c > MaxTweetLength {
			problems = append(problems, fmt.Sprintf("tweet %d exceeds %d characters (%d chars)", i+1, MaxTweetLength, c))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTweet, strings.Join(problems, "; "))
	}
	return parts, nil
}
