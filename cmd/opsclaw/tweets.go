package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/opsclaw/internal/config"
	"github.com/stellarlinkco/opsclaw/internal/social"
)

// newPoster is swapped in tests.
var newPoster = func(cfg *config.Config) (social.Poster, error) {
	return social.NewTwitterClient(cfg.Social.Twitter)
}

var tweetsCmd = &cobra.Command{
	Use:   "tweets",
	Short: "Schedule and publish tweets",
}

var tweetsScheduleCmd = &cobra.Command{
	Use:   "schedule <content>",
	Short: "Schedule a tweet",
	Args:  cobra.ExactArgs(1),
	RunE:  runTweetsSchedule,
}

var tweetsThreadCmd = &cobra.Command{
	Use:   "thread <file>",
	Short: "Schedule a thread from a draft whose parts are separated by --- lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runTweetsThread,
}

var tweetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tweets",
	RunE:  runTweetsList,
}

var tweetsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a scheduled tweet",
	Args:  cobra.ExactArgs(1),
	RunE:  runTweetsCancel,
}

var tweetsValidateCmd = &cobra.Command{
	Use:   "validate <content>",
	Short: "Check a tweet and show its metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runTweetsValidate,
}

var tweetsPostNowCmd = &cobra.Command{
	Use:   "post-now <content>",
	Short: "Publish a tweet immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runTweetsPostNow,
}

var tweetsPostDueCmd = &cobra.Command{
	Use:   "post-due",
	Short: "Publish every scheduled tweet whose time has come",
	RunE:  runTweetsPostDue,
}

var tweetsCalendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show the content calendar, its statistics, or export it",
	RunE:  runTweetsCalendar,
}

var tweetsTrackCmd = &cobra.Command{
	Use:   "track <id>",
	Short: "Record performance numbers for a tweet",
	Args:  cobra.ExactArgs(1),
	RunE:  runTweetsTrack,
}

var tweetsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Weekly performance report",
	RunE:  runTweetsReport,
}

var tweetsHashtagsCmd = &cobra.Command{
	Use:   "hashtags",
	Short: "Hashtag library, suggestions and analysis",
}

var hashtagsSuggestCmd = &cobra.Command{
	Use:   "suggest <topic>",
	Short: "Suggest hashtags for a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHashtagsSuggest,
}

var hashtagsAnalyzeCmd = &cobra.Command{
	Use:   "analyze <tags>",
	Short: "Classify comma or space separated hashtags",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHashtagsAnalyze,
}

var hashtagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the hashtag library by category",
	RunE:  runHashtagsList,
}

var (
	tweetCampaign string
	tweetView     string
	tweetStats    bool
	tweetExport   string
	tweetOutput   string
	tweetBest     int
	tweetCount    int
	tweetMetrics  social.TweetMetrics

	tweetTime     string
	tweetTimezone string
	tweetInterval int
	tweetStatus   string
	tweetThreads  bool
	tweetJSON     bool
)

func init() {
	f := tweetsScheduleCmd.Flags()
	f.StringVar(&tweetTime, "time", "", "\"YYYY-MM-DD HH:MM\" (default next posting slot)")
	f.StringVar(&tweetTimezone, "timezone", "", "IANA timezone (default from config)")
	f.StringVar(&tweetCampaign, "campaign", "", "Campaign name")

	f = tweetsThreadCmd.Flags()
	f.StringVar(&tweetTime, "time", "", "Start time \"YYYY-MM-DD HH:MM\" (default tomorrow 09:00)")
	f.IntVar(&tweetInterval, "interval", int(social.DefaultThreadInterval/time.Minute), "Minutes between parts")

	f = tweetsListCmd.Flags()
	f.StringVar(&tweetStatus, "status", "", "scheduled, posted, failed or cancelled")
	f.BoolVar(&tweetThreads, "threads", false, "List threads instead of tweets")
	f.BoolVar(&tweetJSON, "json", false, "Output JSON")

	f = tweetsCalendarCmd.Flags()
	f.StringVar(&tweetView, "view", "", "today, week or month (default everything)")
	f.StringVar(&tweetCampaign, "campaign", "", "Only one campaign")
	f.BoolVar(&tweetStats, "stats", false, "Show statistics instead of the calendar")
	f.StringVar(&tweetExport, "export", "", "Export format: json or csv")
	f.StringVarP(&tweetOutput, "output", "o", "", "Export file (default stdout)")

	f = tweetsTrackCmd.Flags()
	f.IntVar(&tweetMetrics.Impressions, "impressions", 0, "Impressions")
	f.IntVar(&tweetMetrics.Engagements, "engagements", 0, "Engagements")
	f.IntVar(&tweetMetrics.Likes, "likes", 0, "Likes")
	f.IntVar(&tweetMetrics.Retweets, "retweets", 0, "Retweets")
	f.IntVar(&tweetMetrics.Replies, "replies", 0, "Replies")

	f = tweetsReportCmd.Flags()
	f.IntVar(&tweetBest, "best", 0, "List the N best performing tweets of all time instead")
	f.BoolVar(&tweetJSON, "json", false, "Output JSON")

	hashtagsSuggestCmd.Flags().IntVar(&tweetCount, "count", 5, "Number of suggestions")
	tweetsHashtagsCmd.AddCommand(hashtagsSuggestCmd, hashtagsAnalyzeCmd, hashtagsListCmd)

	tweetsCmd.AddCommand(tweetsScheduleCmd, tweetsThreadCmd, tweetsListCmd, tweetsCancelCmd,
		tweetsValidateCmd, tweetsPostNowCmd, tweetsPostDueCmd, tweetsCalendarCmd,
		tweetsTrackCmd, tweetsReportCmd, tweetsHashtagsCmd)
	rootCmd.AddCommand(tweetsCmd)
}

func tweetScheduler() (*config.Config, *social.Scheduler, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	s := social.NewScheduler(cfg.DataFile("social", "scheduled.json"), cfg.DataFile("social", "threads.json"), cfg.Social.Timezone)
	return cfg, s, nil
}

func runTweetsSchedule(cmd *cobra.Command, args []string) error {
	_, s, err := tweetScheduler()
	if err != nil {
		return err
	}
	t, past, err := s.Schedule(args[0], tweetTime, tweetTimezone, tweetCampaign)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	success(out, "Scheduled %s for %s (%s)", t.ID, t.ScheduledTime, t.Timezone)
	if past {
		warn(out, "Scheduled time is in the past; it will post on the next post-due run")
	}
	return nil
}

func runTweetsThread(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read draft: %w", err)
	}
	_, s, err := tweetScheduler()
	if err != nil {
		return err
	}
	th, posts, err := s.ScheduleThread(string(data), tweetTime, time.Duration(tweetInterval)*time.Minute)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	success(out, "Scheduled thread %s: %d tweets every %d min from %s", th.ID, th.TweetCount, th.IntervalMinutes, th.ScheduledTime)
	for _, p := range posts {
		fmt.Fprintf(out, "  %s  %s  %s\n", p.ID, p.ScheduledTime, clip(p.Content, 50))
	}
	return nil
}

func printTweet(w io.Writer, t social.ScheduledTweet) {
	fmt.Fprintf(w, "%-11s %-10s %s %s\n", t.ID, t.Status, t.ScheduledTime, t.Timezone)
	fmt.Fprintf(w, "  %s\n", clip(t.Content, 70))
	if t.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", t.Error)
	}
}

func runTweetsList(cmd *cobra.Command, args []string) error {
	_, s, err := tweetScheduler()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if tweetThreads {
		threads, err := s.Threads()
		if err != nil {
			return err
		}
		if tweetJSON {
			return writeJSON(out, threads)
		}
		for _, th := range threads {
			fmt.Fprintf(out, "%-12s %-10s %d tweets from %s, every %d min\n", th.ID, th.Status, th.TweetCount, th.ScheduledTime, th.IntervalMinutes)
		}
		return nil
	}
	posts, err := s.List(tweetStatus)
	if err != nil {
		return err
	}
	if tweetJSON {
		return writeJSON(out, posts)
	}
	if len(posts) == 0 {
		info(out, "No tweets")
		return nil
	}
	for _, t := range posts {
		printTweet(out, t)
	}
	return nil
}

func runTweetsCancel(cmd *cobra.Command, args []string) error {
	_, s, err := tweetScheduler()
	if err != nil {
		return err
	}
	t, err := s.Cancel(args[0])
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Cancelled %s", t.ID)
	return nil
}

func runTweetsValidate(cmd *cobra.Command, args []string) error {
	if err := social.ValidateTweet(args[0]); err != nil {
		return err
	}
	m := social.MetadataFor(args[0], false)
	out := cmd.OutOrStdout()
	success(out, "Valid tweet (%d/%d characters)", m.CharCount, social.MaxTweetLength)
	fmt.Fprintf(out, "  hashtags: %t  mentions: %t  url: %t\n", m.HasHashtags, m.HasMentions, m.HasURL)
	return nil
}

func runTweetsPostNow(cmd *cobra.Command, args []string) error {
	if err := social.ValidateTweet(args[0]); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := newPoster(cfg)
	if err != nil {
		return err
	}
	id, err := p.Tweet(cmd.Context(), args[0], "")
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Posted tweet %s", id)
	return nil
}

func runTweetsPostDue(cmd *cobra.Command, args []string) error {
	cfg, s, err := tweetScheduler()
	if err != nil {
		return err
	}
	p, err := newPoster(cfg)
	if err != nil {
		return err
	}
	posted, err := s.PostDue(cmd.Context(), p, time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(posted) == 0 {
		info(out, "Nothing due")
		return nil
	}
	failed := 0
	for _, t := range posted {
		if t.Status == social.StatusPosted {
			success(out, "%s posted (%s)", t.ID, t.RemoteID)
		} else {
			failed++
			fail(out, "%s failed: %s", t.ID, t.Error)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d due tweet(s) failed", failed, len(posted))
	}
	return nil
}

func runTweetsCalendar(cmd *cobra.Command, args []string) error {
	_, s, err := tweetScheduler()
	if err != nil {
		return err
	}
	all, err := s.List("")
	if err != nil {
		return err
	}
	posts, err := social.Calendar(all, tweetView, tweetCampaign, time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if tweetExport != "" {
		if tweetOutput == "" {
			return social.ExportCalendar(out, posts, tweetExport)
		}
		f, err := os.Create(tweetOutput)
		if err != nil {
			return err
		}
		if err := social.ExportCalendar(f, posts, tweetExport); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		success(out, "Exported %d item(s) to %s", len(posts), tweetOutput)
		return nil
	}

	if tweetStats {
		st := social.Stats(posts)
		fmt.Fprintf(out, "Total: %d  single: %d  thread parts: %d\n", st.Total, st.Single, st.Threads)
		for _, status := range []string{social.StatusScheduled, social.StatusPosted, social.StatusFailed, social.StatusCancelled} {
			if n := st.ByStatus[status]; n > 0 {
				fmt.Fprintf(out, "  %-10s %d\n", status, n)
			}
		}
		for _, w := range st.ByWeek {
			fmt.Fprintf(out, "  %s  %d\n", w.Week, w.Count)
		}
		return nil
	}

	if len(posts) == 0 {
		info(out, "No content for this view")
		return nil
	}
	fmt.Fprintf(out, "Content calendar (%d items)\n", len(posts))
	for _, day := range social.GroupByDay(posts) {
		fmt.Fprintf(out, "\n%s, %s\n", day.Weekday, day.Date)
		for _, p := range day.Posts {
			kind := "tweet "
			if p.Metadata.IsThread {
				kind = "thread"
			}
			clock := p.ScheduledTime
			if len(clock) >= 16 {
				clock = clock[11:16]
			}
			fmt.Fprintf(out, "  %s %s %-10s %s\n", clock, kind, p.Status, clip(p.Content, 40))
		}
	}
	return nil
}

func metricsStore() (*config.Config, *social.MetricsStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, social.NewMetricsStore(cfg.DataFile("social", "analytics.json")), nil
}

func runTweetsTrack(cmd *cobra.Command, args []string) error {
	_, ms, err := metricsStore()
	if err != nil {
		return err
	}
	m := tweetMetrics
	m.TweetID = args[0]
	m, err = ms.Track(m)
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Recorded %s: %d impressions, %d engagements (%.1f%%)", m.TweetID, m.Impressions, m.Engagements, m.EngagementRate())
	return nil
}

func printMetrics(w io.Writer, rank int, m social.TweetMetrics) {
	fmt.Fprintf(w, "%d. %-22s %8d impressions %6d engagements %5.1f%%\n", rank, m.TweetID, m.Impressions, m.Engagements, m.EngagementRate())
}

func runTweetsReport(cmd *cobra.Command, args []string) error {
	_, ms, err := metricsStore()
	if err != nil {
		return err
	}
	metrics, err := ms.All()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if tweetBest > 0 {
		best := social.Best(metrics, tweetBest)
		if tweetJSON {
			return writeJSON(out, best)
		}
		if len(best) == 0 {
			info(out, "No performance data yet (record some with 'opsclaw tweets track')")
			return nil
		}
		for i, m := range best {
			printMetrics(out, i+1, m)
		}
		return nil
	}

	_, s, err := tweetScheduler()
	if err != nil {
		return err
	}
	posts, err := s.List("")
	if err != nil {
		return err
	}
	r := social.WeeklyReport(posts, metrics, time.Now())
	if tweetJSON {
		return writeJSON(out, r)
	}
	fmt.Fprintf(out, "Weekly report %s to %s\n\n", r.Since.Format("2006-01-02"), r.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(out, "  Posted:   %d\n  Pending:  %d\n  Tracked:  %d\n", r.Posted, r.Pending, r.Tracked)
	if r.Tracked == 0 {
		warn(out, "No performance data recorded this week")
		return nil
	}
	fmt.Fprintf(out, "  Impressions: %d (avg %.0f)\n  Engagements: %d\n\n", r.Impressions, r.AvgImpressions, r.Engagements)
	for i, m := range r.Best {
		printMetrics(out, i+1, m)
	}
	return nil
}

func runHashtagsSuggest(cmd *cobra.Command, args []string) error {
	topic := strings.Join(args, " ")
	tags := social.SuggestHashtags(topic, tweetCount)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Hashtags for %q:\n", topic)
	for i, t := range tags {
		fmt.Fprintf(out, "  %d. %s\n", i+1, t)
	}
	return nil
}

func runHashtagsAnalyze(cmd *cobra.Command, args []string) error {
	tags := social.ParseHashtags(strings.Join(args, " "))
	if len(tags) == 0 {
		return fmt.Errorf("no hashtags given")
	}
	a := social.AnalyzeHashtags(tags)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d hashtag(s), %d characters, ~%d left for content\n", len(a.Tags), a.TotalChars, a.Remaining)
	for _, t := range a.Tags {
		fmt.Fprintf(out, "  %-26s %s\n", t.Tag, t.Category)
	}
	for _, w := range a.Warnings {
		warn(out, "%s", w)
	}
	if len(a.Related) > 0 {
		fmt.Fprintf(out, "Related: %s\n", strings.Join(a.Related, " "))
	}
	return nil
}

func runHashtagsList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, c := range social.HashtagCategories {
		fmt.Fprintf(out, "%s\n  %s\n", c.Name, strings.Join(c.Tags, " "))
	}
	return nil
}
