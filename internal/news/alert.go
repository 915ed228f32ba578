package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/social"
	"github.com/stellarlinkco/opsclaw/internal/store"
	"golang.org/x/sync/errgroup"
)

// ErrMissingCredentials marks a notifier or share target that is not
// configured. Fan-out callers skip it and carry on with the others.
var ErrMissingCredentials = social.ErrMissingCredentials

const ResendEndpoint = "https://api.resend.com/emails"

// Notifier sends one alert over one route.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Article, test bool) error
}

// FormatAlert renders the plain-text alert body.
func FormatAlert(a Article, test bool, now time.Time) string {
	prefix := "🚨 BREAKING"
	if test {
		prefix = "🧪 TEST ALERT"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: Federal Buyout News\n\n", prefix)
	fmt.Fprintf(&b, "%s\n\n", a.Title)
	fmt.Fprintf(&b, "Relevance Score: %d/100\n", a.Score)
	fmt.Fprintf(&b, "Source: %s\n\n", a.Source)
	if a.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", truncateRunes(a.Description, maxDescription))
	}
	fmt.Fprintf(&b, "Read more: %s\n\n", a.URL)
	b.WriteString("---\nFedBuyOut News Monitor\n")
	b.WriteString(now.UTC().Format("2006-01-02 15:04") + " UTC")
	return b.String()
}

// ResendNotifier emails alerts through the Resend API.
type ResendNotifier struct {
	APIKey   string
	From     string
	To       string
	Endpoint string
	Client   *http.Client
	now      func() time.Time
}

func (n *ResendNotifier) Name() string { return "email" }

func (n *ResendNotifier) Notify(ctx context.Context, a Article, test bool) error {
	if n.APIKey == "" || n.To == "" {
		return fmt.Errorf("email: %w", ErrMissingCredentials)
	}
	subject := "Federal Buyout Alert - " + truncateRunes(a.Title, 50) + "..."
	if test {
		subject = "TEST: " + subject
	}
	now := time.Now()
	if n.now != nil {
		now = n.now()
	}
	payload := map[string]any{
		"from":    fmt.Sprintf("FedBuyOut Alerts <%s>", n.From),
		"to":      []string{n.To},
		"subject": subject,
		"text":    FormatAlert(a, test, now),
	}
	endpoint := n.Endpoint
	if endpoint == "" {
		endpoint = ResendEndpoint
	}
	status, body, err := postJSON(ctx, n.Client, endpoint, "Bearer "+n.APIKey, payload)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("email: status %d: %s", status, body)
	}
	return nil
}

// WebhookNotifier posts a Slack attachment and retries with a Discord
// embed when the endpoint rejects the Slack shape.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Notify(ctx context.Context, a Article, test bool) error {
	if n.URL == "" {
		return fmt.Errorf("webhook: %w", ErrMissingCredentials)
	}
	testPrefix := ""
	if test {
		testPrefix = "TEST: "
	}
	color := "warning"
	if a.Score >= 80 {
		color = "danger"
	}
	slack := map[string]any{
		"text": testPrefix + "Federal Buyout Alert",
		"attachments": []map[string]any{{
			"title":      a.Title,
			"title_link": a.URL,
			"fields": []map[string]any{
				{"title": "Source", "value": a.Source, "short": true},
				{"title": "Relevance Score", "value": fmt.Sprintf("%d/100", a.Score), "short": true},
			},
			"color": color,
		}},
	}
	status, _, err := postJSON(ctx, n.webhookClient(), n.URL, "", slack)
	if err == nil && webhookOK(status) {
		return nil
	}

	discordPrefix := ""
	if test {
		discordPrefix = "**TEST** "
	}
	embedColor := 0xffaa00
	if a.Score >= 80 {
		embedColor = 0xff0000
	}
	discord := map[string]any{
		"content": discordPrefix + "🚨 **Federal Buyout Alert**",
		"embeds": []map[string]any{{
			"title": truncateRunes(a.Title, 256),
			"url":   a.URL,
			"fields": []map[string]any{
				{"name": "Source", "value": a.Source, "inline": true},
				{"name": "Score", "value": fmt.Sprintf("%d/100", a.Score), "inline": true},
			},
			"color": embedColor,
		}},
	}
	status, _, err = postJSON(ctx, n.webhookClient(), n.URL, "", discord)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if !webhookOK(status) {
		return fmt.Errorf("webhook: status %d", status)
	}
	return nil
}

func (n *WebhookNotifier) webhookClient() *http.Client {
	if n.Client != nil {
		return n.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func webhookOK(status int) bool {
	return status == http.StatusOK || status == http.StatusNoContent
}

// Deliverer is the outbound chat surface (telegram, console).
type Deliverer interface {
	Deliver(ctx context.Context, channel, target, text string) error
}

// ChatNotifier forwards the alert text to a chat channel.
type ChatNotifier struct {
	Channel   string
	Target    string
	Deliverer Deliverer
}

func (n *ChatNotifier) Name() string { return n.Channel }

func (n *ChatNotifier) Notify(ctx context.Context, a Article, test bool) error {
	if n.Deliverer == nil {
		return fmt.Errorf("%s: %w", n.Channel, ErrMissingCredentials)
	}
	return n.Deliverer.Deliver(ctx, n.Channel, n.Target, FormatAlert(a, test, time.Now()))
}

func postJSON(ctx context.Context, client *http.Client, url, auth string, payload any) (int, string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, strings.TrimSpace(string(body)), nil
}

// AlertRecord is one entry of alerts.json.
type AlertRecord struct {
	Article   string          `json:"article"`
	URL       string          `json:"url"`
	Timestamp time.Time       `json:"timestamp"`
	Results   map[string]bool `json:"results"`
}

type AlertFailure struct {
	URL       string    `json:"url"`
	Notifier  string    `json:"notifier"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type alertLog struct {
	Sent   []AlertRecord  `json:"sent"`
	Errors []AlertFailure `json:"errors"`
}

// Alerter fans an article out to every notifier and keeps the alert log.
type Alerter struct {
	Notifiers []Notifier
	Articles  *ArticleStore

	log *store.JSONFile[alertLog]
	now func() time.Time
}

func NewAlerter(logPath string, articles *ArticleStore, notifiers ...Notifier) *Alerter {
	return &Alerter{
		Notifiers: notifiers,
		Articles:  articles,
		log: store.NewJSONFile(logPath, func() alertLog {
			return alertLog{Sent: []AlertRecord{}, Errors: []AlertFailure{}}
		}),
		now: time.Now,
	}
}

// Delivered reports whether any notifier succeeded.
func (r AlertRecord) Delivered() bool {
	for _, ok := range r.Results {
		if ok {
			return true
		}
	}
	return false
}

// Send notifies every route concurrently. One route failing never stops
// the others. Test alerts are not logged.
func (al *Alerter) Send(ctx context.Context, a Article, test bool) (AlertRecord, error) {
	rec := AlertRecord{
		Article:   a.Title,
		URL:       a.URL,
		Timestamp: al.now(),
		Results:   make(map[string]bool, len(al.Notifiers)),
	}
	var (
		mu       sync.Mutex
		failures []AlertFailure
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range al.Notifiers {
		g.Go(func() error {
			err := n.Notify(gctx, a, test)
			mu.Lock()
			defer mu.Unlock()
			rec.Results[n.Name()] = err == nil
			if err != nil {
				log.Printf("[news] alert via %s: %v", n.Name(), err)
				failures = append(failures, AlertFailure{URL: a.URL, Notifier: n.Name(), Error: err.Error(), Timestamp: rec.Timestamp})
			}
			return nil
		})
	}
	g.Wait()

	if test {
		return rec, nil
	}
	err := al.log.Update(func(l *alertLog) error {
		l.Sent = append(l.Sent, rec)
		l.Errors = append(l.Errors, failures...)
		return nil
	})
	return rec, err
}

// CheckResult summarizes one Check pass.
type CheckResult struct {
	Candidates int
	Alerted    []AlertRecord
	Failed     []AlertRecord
}

// Check alerts on every stored article at or above threshold that has not
// been alerted yet. Articles with at least one successful route are
// marked alerted; the rest are retried on the next pass.
func (al *Alerter) Check(ctx context.Context, threshold int) (CheckResult, error) {
	pending, err := al.Articles.List(ListFilter{MinScore: threshold, Pending: true})
	if err != nil {
		return CheckResult{}, err
	}
	res := CheckResult{Candidates: len(pending)}
	var delivered []string
	for _, a := range pending {
		rec, err := al.Send(ctx, a, false)
		if err != nil {
			return res, err
		}
		if rec.Delivered() {
			res.Alerted = append(res.Alerted, rec)
			delivered = append(delivered, a.URL)
		} else {
			res.Failed = append(res.Failed, rec)
		}
	}
	if len(delivered) > 0 {
		if err := al.Articles.MarkAlerted(delivered...); err != nil {
			return res, err
		}
	}
	return res, nil
}

// History returns the logged alerts, oldest first.
func (al *Alerter) History() ([]AlertRecord, []AlertFailure, error) {
	l, err := al.log.Load()
	if err != nil {
		return nil, nil, err
	}
	return l.Sent, l.Errors, nil
}

// TestArticle is the canned article used for test alerts.
func TestArticle(score int) Article {
	if score <= 0 {
		score = 85
	}
	return Article{
		Title:       "Test Alert - Federal Buyout News Monitor",
		URL:         "https://fedbuyout.com",
		Score:       score,
		Source:      "Test",
		Description: "This is a test alert to verify the notification system is working correctly.",
	}
}
