package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/opsclaw/internal/channel"
	"github.com/stellarlinkco/opsclaw/internal/config"
	"github.com/stellarlinkco/opsclaw/internal/news"
	"github.com/stellarlinkco/opsclaw/internal/social"
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Monitor news feeds",
}

var newsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and score articles from the configured feeds",
	RunE:  runNewsFetch,
}

var newsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored articles by score",
	RunE:  runNewsList,
}

var newsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize stored articles by relevance",
	RunE:  runNewsSummary,
}

var newsSummarizeCmd = &cobra.Command{
	Use:   "summarize <url>",
	Short: "Fetch an article and print an extractive summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runNewsSummarize,
}

var newsAlertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Send alerts for high-scoring articles",
}

var newsAlertCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Alert on new articles at or above the threshold",
	RunE:  runNewsAlertCheck,
}

var newsAlertTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test alert through every route",
	RunE:  runNewsAlertTest,
}

var newsAlertHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show sent alerts",
	RunE:  runNewsAlertHistory,
}

var newsShareCmd = &cobra.Command{
	Use:   "share <url>",
	Short: "Share an article to social platforms",
	Args:  cobra.ExactArgs(1),
	RunE:  runNewsShare,
}

var (
	newsSources   string
	newsFullText  bool
	newsMinScore  int
	newsHours     int
	newsWindow    int
	newsLimit     int
	newsJSON      bool
	newsSentences int
	newsThreshold int
	newsScore     int
	newsPlatforms string
	newsMessage   string
	newsPreview   bool
)

func init() {
	f := newsFetchCmd.Flags()
	f.StringVar(&newsSources, "sources", "", "Comma-separated feed keys (default all)")
	f.BoolVar(&newsFullText, "full-text", false, "Fetch article pages for items without content")

	f = newsListCmd.Flags()
	f.IntVar(&newsMinScore, "min-score", 0, "Minimum score")
	f.IntVar(&newsHours, "hours", 0, "Only articles fetched within the last N hours")
	f.IntVar(&newsLimit, "limit", 20, "Maximum articles")
	f.BoolVar(&newsJSON, "json", false, "Output JSON")

	newsSummaryCmd.Flags().IntVar(&newsWindow, "hours", 24, "Window in hours")

	f = newsSummarizeCmd.Flags()
	f.IntVar(&newsSentences, "sentences", news.DefaultSummarySentences, "Summary length in sentences")
	f.BoolVar(&newsJSON, "json", false, "Output JSON")

	newsAlertCheckCmd.Flags().IntVar(&newsThreshold, "threshold", 0, "Score threshold (default from config)")
	newsAlertTestCmd.Flags().IntVar(&newsScore, "score", 85, "Score of the test article")
	newsAlertCmd.AddCommand(newsAlertCheckCmd, newsAlertTestCmd, newsAlertHistoryCmd)

	f = newsShareCmd.Flags()
	f.StringVar(&newsPlatforms, "platforms", strings.Join(news.Platforms, ","), "Comma-separated platforms")
	f.StringVar(&newsMessage, "message", "", "Custom lead-in text")
	f.BoolVar(&newsPreview, "preview", false, "Print the posts without sending")

	newsCmd.AddCommand(newsFetchCmd, newsListCmd, newsSummaryCmd, newsSummarizeCmd, newsAlertCmd, newsShareCmd)
	rootCmd.AddCommand(newsCmd)
}

func newFetcher(cfg *config.Config) *news.Fetcher {
	f := news.NewFetcher(time.Duration(cfg.News.HTTPTimeout) * time.Second)
	f.Concurrency = cfg.News.FetchConcurrency
	f.Delay = time.Duration(cfg.News.FetchDelayMs) * time.Millisecond
	f.FullText = cfg.News.FullText
	return f
}

func articleStore(cfg *config.Config) *news.ArticleStore {
	return news.NewArticleStore(cfg.DataFile("news", "articles.json"))
}

func runNewsFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	feeds, err := news.SelectFeeds(news.DefaultFeeds, splitList(newsSources)...)
	if err != nil {
		return err
	}
	fetcher := newFetcher(cfg)
	if newsFullText {
		fetcher.FullText = true
	}
	out := cmd.OutOrStdout()
	var all []news.Article
	failed := 0
	for _, res := range fetcher.FetchAll(cmd.Context(), feeds) {
		if res.Err != nil {
			failed++
			fail(out, "%s: %v", res.Feed.Name, res.Err)
			continue
		}
		success(out, "%s: %d article(s)", res.Feed.Name, len(res.Articles))
		all = append(all, res.Articles...)
	}
	added, err := articleStore(cfg).Merge(all)
	if err != nil {
		return err
	}
	info(out, "%d new article(s)", len(added))
	for _, a := range added {
		if a.Score >= news.HighRelevance {
			fmt.Fprintf(out, "  [%3d] %s\n", a.Score, a.Title)
		}
	}
	if failed == len(feeds) && len(feeds) > 0 {
		return errors.New("every feed failed")
	}
	return nil
}

func newsFilter(hours int) news.ListFilter {
	f := news.ListFilter{MinScore: newsMinScore, Limit: newsLimit}
	if hours > 0 {
		f.Since = time.Now().Add(-time.Duration(hours) * time.Hour)
	}
	return f
}

func runNewsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	list, err := articleStore(cfg).List(newsFilter(newsHours))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if newsJSON {
		return writeJSON(out, list)
	}
	if len(list) == 0 {
		info(out, "No articles")
		return nil
	}
	for _, a := range list {
		printArticle(out, a)
	}
	return nil
}

func printArticle(w io.Writer, a news.Article) {
	fmt.Fprintf(w, "[%3d] %s\n", a.Score, a.Title)
	fmt.Fprintf(w, "      %s | %s\n", news.SourceName(news.DefaultFeeds, a.Source), a.Published.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "      %s\n", a.URL)
}

func runNewsSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	list, err := articleStore(cfg).List(news.ListFilter{Since: time.Now().Add(-time.Duration(newsWindow) * time.Hour)})
	if err != nil {
		return err
	}
	r := news.Bucket(list)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "News summary (last %dh): %d article(s)\n\n", newsWindow, len(list))
	sections := []struct {
		label    string
		articles []news.Article
	}{
		{fmt.Sprintf("🔴 High relevance (%d+)", news.HighRelevance), r.High},
		{fmt.Sprintf("🟡 Medium relevance (%d-%d)", news.MediumRelevance, news.HighRelevance-1), r.Medium},
		{fmt.Sprintf("⚪ Low relevance (<%d)", news.MediumRelevance), r.Low},
	}
	for _, s := range sections {
		fmt.Fprintf(out, "%s: %d\n", s.label, len(s.articles))
		for i, a := range s.articles {
			if i == 5 {
				fmt.Fprintf(out, "  ... and %d more\n", len(s.articles)-5)
				break
			}
			fmt.Fprintf(out, "  [%3d] %s\n", a.Score, a.Title)
		}
	}
	return nil
}

func runNewsSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	page, err := newFetcher(cfg).FetchPage(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	source := args[0]
	if u, err := url.Parse(args[0]); err == nil && u.Host != "" {
		source = u.Host
	}
	d, ok := page.Digest(source, newsSentences)
	if !ok {
		return errors.New("no article text found")
	}
	out := cmd.OutOrStdout()
	if newsJSON {
		return writeJSON(out, d)
	}
	fmt.Fprintf(out, "%s\n%s\n\n", d.Title, d.Source)
	fmt.Fprintf(out, "%s\n", d.Summary)
	if len(d.KeyPoints) > 0 {
		fmt.Fprintln(out, "\nKey points:")
		for _, p := range d.KeyPoints {
			fmt.Fprintf(out, "  • %s\n", p)
		}
	}
	fmt.Fprintf(out, "\n%d words → %d words\n", d.WordCount, d.SummaryLength)
	return nil
}

// notifiers builds every alert route from config. Routes without
// credentials are still returned so the alert log records them as failed.
func notifiers(cmd *cobra.Command, cfg *config.Config) ([]news.Notifier, error) {
	ns := []news.Notifier{
		&news.ResendNotifier{APIKey: cfg.Alerts.ResendAPIKey, From: cfg.Alerts.FromEmail, To: cfg.Alerts.Email},
		&news.WebhookNotifier{URL: cfg.Alerts.WebhookURL},
	}
	if cfg.Telegram.Enabled {
		mgr, err := channel.NewManagerFromConfig(cfg, cmd.OutOrStdout())
		if err != nil {
			return nil, err
		}
		ns = append(ns, &news.ChatNotifier{Channel: "telegram", Deliverer: mgr})
	}
	return ns, nil
}

func newAlerter(cmd *cobra.Command) (*config.Config, *news.Alerter, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	ns, err := notifiers(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, news.NewAlerter(cfg.DataFile("news", "alerts.json"), articleStore(cfg), ns...), nil
}

func printDelivery(w io.Writer, rec news.AlertRecord) {
	for name, ok := range rec.Results {
		if ok {
			success(w, "%s", name)
		} else {
			fail(w, "%s", name)
		}
	}
}

func runNewsAlertCheck(cmd *cobra.Command, args []string) error {
	cfg, al, err := newAlerter(cmd)
	if err != nil {
		return err
	}
	threshold := newsThreshold
	if threshold <= 0 {
		threshold = cfg.News.AlertThreshold
	}
	res, err := al.Check(cmd.Context(), threshold)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	info(out, "%d article(s) at or above %d pending", res.Candidates, threshold)
	for _, rec := range res.Alerted {
		success(out, "Alerted: %s", rec.Article)
	}
	for _, rec := range res.Failed {
		fail(out, "Not delivered: %s", rec.Article)
	}
	return nil
}

func runNewsAlertTest(cmd *cobra.Command, args []string) error {
	_, al, err := newAlerter(cmd)
	if err != nil {
		return err
	}
	rec, err := al.Send(cmd.Context(), news.TestArticle(newsScore), true)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printDelivery(out, rec)
	if !rec.Delivered() {
		return errors.New("no alert route delivered")
	}
	return nil
}

func runNewsAlertHistory(cmd *cobra.Command, args []string) error {
	_, al, err := newAlerter(cmd)
	if err != nil {
		return err
	}
	sent, failures, err := al.History()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(sent) == 0 {
		info(out, "No alerts sent")
	}
	for _, rec := range sent {
		var routes []string
		for name, ok := range rec.Results {
			if ok {
				routes = append(routes, name)
			}
		}
		fmt.Fprintf(out, "%s %s [%s]\n", rec.Timestamp.Local().Format("2006-01-02 15:04"), rec.Article, strings.Join(routes, ","))
	}
	if len(failures) > 0 {
		fmt.Fprintf(out, "\n%d delivery error(s); latest: %s: %s\n", len(failures), failures[len(failures)-1].Notifier, failures[len(failures)-1].Error)
	}
	return nil
}

// sharers returns a sharer per platform whose credentials are configured.
func sharers(cfg *config.Config) map[string]news.Sharer {
	m := map[string]news.Sharer{}
	if c, err := social.NewTwitterClient(cfg.Social.Twitter); err == nil {
		m["twitter"] = news.TwitterSharer{Client: c}
	}
	if c, err := social.NewLinkedInClient(cfg.Social.LinkedIn); err == nil {
		m["linkedin"] = news.LinkedInSharer{Client: c}
	}
	if c, err := social.NewBlueskyClient(cfg.Social.Bluesky); err == nil {
		m["bluesky"] = news.BlueskySharer{Client: c}
	}
	return m
}

func runNewsShare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := articleStore(cfg).Get(args[0])
	if err != nil {
		a = news.Placeholder(args[0])
	}
	platforms := splitList(newsPlatforms)
	out := cmd.OutOrStdout()
	if newsPreview {
		for _, p := range platforms {
			fmt.Fprintf(out, "── %s ──\n%s\n\n", p, news.PreviewText(p, a))
		}
		return nil
	}
	ok := 0
	for _, r := range news.ShareAll(cmd.Context(), a, platforms, newsMessage, sharers(cfg)) {
		switch {
		case r.Err == nil:
			ok++
			success(out, "%s: %s", r.Platform, r.ID)
		case errors.Is(r.Err, news.ErrMissingCredentials):
			warn(out, "%s: not configured, skipped", r.Platform)
		default:
			fail(out, "%s: %v", r.Platform, r.Err)
		}
	}
	if ok == 0 {
		return errors.New("article was not shared anywhere")
	}
	return nil
}
