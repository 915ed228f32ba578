package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/stellarlinkco/opsclaw/internal/config"
)

const (
	TwitterAPI  = "https://api.twitter.com"
	LinkedInAPI = "https://api.linkedin.com"
	BlueskyAPI  = "https://bsky.social"
)

// APIError is a non-success response from a platform.
type APIError struct {
	Platform string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Platform, e.Status, e.Body)
}

// TwitterClient posts through the v2 API with OAuth 1.0a user context.
type TwitterClient struct {
	BaseURL string
	http    *http.Client
}

func NewTwitterClient(cfg config.TwitterConfig) (*TwitterClient, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" || cfg.AccessToken == "" || cfg.AccessTokenSecret == "" {
		return nil, fmt.Errorf("twitter: %w", ErrMissingCredentials)
	}
	oc := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)
	client := oc.Client(context.Background(), token)
	client.Timeout = 30 * time.Second
	return &TwitterClient{BaseURL: TwitterAPI, http: client}, nil
}

func (c *TwitterClient) Tweet(ctx context.Context, text, replyTo string) (string, error) {
	payload := map[string]any{"text": text}
	if replyTo != "" {
		payload["reply"] = map[string]string{"in_reply_to_tweet_id": replyTo}
	}
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	status, body, err := doJSON(ctx, c.http, http.MethodPost, c.BaseURL+"/2/tweets", nil, payload, &out)
	if err != nil {
		return "", fmt.Errorf("twitter: %w", err)
	}
	if status != http.StatusCreated {
		return "", &APIError{Platform: "twitter", Status: status, Body: body}
	}
	return out.Data.ID, nil
}

// LinkedInClient shares article posts as the authenticated member.
type LinkedInClient struct {
	BaseURL string
	token   string
	http    *http.Client
}

func NewLinkedInClient(cfg config.LinkedInConfig) (*LinkedInClient, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("linkedin: %w", ErrMissingCredentials)
	}
	return &LinkedInClient{
		BaseURL: LinkedInAPI,
		token:   cfg.AccessToken,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Link is the article attached to a LinkedIn share.
type Link struct {
	URL         string
	Title       string
	Description string
}

func (c *LinkedInClient) Share(ctx context.Context, text string, link Link) (string, error) {
	headers := map[string]string{
		"Authorization":             "Bearer " + c.token,
		"X-Restli-Protocol-Version": "2.0.0",
	}
	var me struct {
		ID string `json:"id"`
	}
	status, body, err := doJSON(ctx, c.http, http.MethodGet, c.BaseURL+"/v2/me", headers, nil, &me)
	if err != nil {
		return "", fmt.Errorf("linkedin: %w", err)
	}
	if status != http.StatusOK {
		return "", &APIError{Platform: "linkedin", Status: status, Body: body}
	}

	share := map[string]any{
		"author":         "urn:li:person:" + me.ID,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": "ARTICLE",
				"media": []map[string]any{{
					"status":      "READY",
					"originalUrl": link.URL,
					"title":       map[string]string{"text": Shorten(link.Title, 200)},
					"description": map[string]string{"text": link.Description},
				}},
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	req, err := newJSONRequest(ctx, http.MethodPost, c.BaseURL+"/v2/ugcPosts", headers, share)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("linkedin: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{Platform: "linkedin", Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	id := resp.Header.Get("X-RestLi-Id")
	if id == "" {
		id = "unknown"
	}
	return id, nil
}

// BlueskyClient posts with an app password session.
type BlueskyClient struct {
	BaseURL  string
	handle   string
	password string
	http     *http.Client
	now      func() time.Time
}

func NewBlueskyClient(cfg config.BlueskyConfig) (*BlueskyClient, error) {
	if cfg.Handle == "" || cfg.AppPassword == "" {
		return nil, fmt.Errorf("bluesky: %w", ErrMissingCredentials)
	}
	return &BlueskyClient{
		BaseURL:  BlueskyAPI,
		handle:   cfg.Handle,
		password: cfg.AppPassword,
		http:     &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
	}, nil
}

func (c *BlueskyClient) Post(ctx context.Context, text string) (string, error) {
	var session struct {
		AccessJwt string `json:"accessJwt"`
		DID       string `json:"did"`
	}
	creds := map[string]string{"identifier": c.handle, "password": c.password}
	status, body, err := doJSON(ctx, c.http, http.MethodPost, c.BaseURL+"/xrpc/com.atproto.server.createSession", nil, creds, &session)
	if err != nil {
		return "", fmt.Errorf("bluesky: %w", err)
	}
	if status != http.StatusOK {
		return "", &APIError{Platform: "bluesky", Status: status, Body: body}
	}

	record := map[string]any{
		"repo":       session.DID,
		"collection": "app.bsky.feed.post",
		"record": map[string]any{
			"$type":     "app.bsky.feed.post",
			"text":      Shorten(text, MaxBlueskyLength),
			"createdAt": c.now().UTC().Format(time.RFC3339),
		},
	}
	var created struct {
		URI string `json:"uri"`
	}
	headers := map[string]string{"Authorization": "Bearer " + session.AccessJwt}
	status, body, err = doJSON(ctx, c.http, http.MethodPost, c.BaseURL+"/xrpc/com.atproto.repo.createRecord", headers, record, &created)
	if err != nil {
		return "", fmt.Errorf("bluesky: %w", err)
	}
	if status != http.StatusOK {
		return "", &APIError{Platform: "bluesky", Status: status, Body: body}
	}
	return created.URI, nil
}

func newJSONRequest(ctx context.Context, method, url string, headers map[string]string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// doJSON sends payload and decodes a 2xx response into out. The raw body
// is returned for error reporting.
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, payload, out any) (int, string, error) {
	req, err := newJSONRequest(ctx, method, url, headers, payload)
	if err != nil {
		return 0, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, "", err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil && len(b) > 0 {
		if err := json.Unmarshal(b, out); err != nil {
			return resp.StatusCode, string(b), fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, strings.TrimSpace(string(b)), nil
}
