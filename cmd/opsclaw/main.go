package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/opsclaw/internal/config"
	"github.com/stellarlinkco/opsclaw/internal/cron"
	"github.com/stellarlinkco/opsclaw/internal/gateway"
	"github.com/stellarlinkco/opsclaw/internal/leads"
	"github.com/stellarlinkco/opsclaw/internal/memory"
	"github.com/stellarlinkco/opsclaw/internal/news"
	"github.com/stellarlinkco/opsclaw/internal/skills"
	"github.com/stellarlinkco/opsclaw/internal/social"
)

var rootCmd = &cobra.Command{
	Use:           "opsclaw",
	Short:         "opsclaw - small business operations toolkit",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, reminder delivery, lead intake API and post queue",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directories",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show opsclaw status",
	RunE:  runStatus,
}

var serveIntakeAddr string

func init() {
	serveCmd.Flags().StringVar(&serveIntakeAddr, "intake-addr", "", "Lead intake listen address (\"-\" disables)")
	rootCmd.AddCommand(serveCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fail(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gw, err := gateway.NewWithOptions(cfg, gateway.Options{
		Out:        cmd.OutOrStdout(),
		IntakeAddr: serveIntakeAddr,
	})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		success(out, "Created config: %s", cfgPath)
	} else {
		info(out, "Config already exists: %s", cfgPath)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dirs := []string{
		cfg.SkillDataDir("leads"),
		cfg.SkillDataDir("cron"),
		cfg.SkillDataDir("news"),
		cfg.SkillDataDir("social"),
		cfg.SkillDataDir("analytics"),
		cfg.Memory.Dir,
		cfg.Skills.Dir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	journal := memory.NewJournal(cfg.Memory.Dir)
	writeIfNotExists(out, journal.MemoryFile(), defaultMemoryMD)
	writeIfNotExists(out, filepath.Join(filepath.Dir(cfg.Memory.Dir), "HEARTBEAT.md"), defaultHeartbeatMD)

	success(out, "Data ready: %s", cfg.DataDir)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to add API credentials\n", cfgPath)
	fmt.Fprintln(out, "  2. Or export TWITTER_*, RESEND_API_KEY, OPSCLAW_TELEGRAM_TOKEN, GA4_CREDENTIALS")
	fmt.Fprintln(out, "  3. Run 'opsclaw status' to check the setup")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fail(out, "Config: error (%v)", err)
		return nil
	}

	fmt.Fprintf(out, "Config:    %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Data:      %s\n", cfg.DataDir)
	fmt.Fprintf(out, "Memory:    %s\n", cfg.Memory.Dir)
	fmt.Fprintf(out, "Skills:    %s\n", cfg.Skills.Dir)

	fmt.Fprintln(out)
	if all, err := leads.NewRepository(cfg.DataFile("leads", "leads.json")).List(leads.Filter{}); err == nil {
		fmt.Fprintf(out, "Leads:     %d\n", len(all))
	}
	if jobs, err := cron.NewJobStore(cfg.DataFile("cron", "jobs.json")).List(cron.JobFilter{}); err == nil {
		fmt.Fprintf(out, "Cron jobs: %d\n", len(jobs))
	}
	if rs, err := cron.NewReminderStore(cfg.DataFile("cron", "reminders.json"), cfg.Cron.Channel).List(cron.ReminderActive); err == nil {
		fmt.Fprintf(out, "Reminders: %d active\n", len(rs))
	}
	if arts, err := news.NewArticleStore(cfg.DataFile("news", "articles.json")).List(news.ListFilter{}); err == nil {
		fmt.Fprintf(out, "Articles:  %d\n", len(arts))
	}
	if posts, err := social.NewScheduler(cfg.DataFile("social", "scheduled.json"), cfg.DataFile("social", "threads.json"), cfg.Social.Timezone).List(social.StatusScheduled); err == nil {
		fmt.Fprintf(out, "Posts:     %d scheduled\n", len(posts))
	}
	if files, err := memory.NewJournal(cfg.Memory.Dir).Files(0); err == nil {
		fmt.Fprintf(out, "Journal:   %d daily files\n", len(files))
	}
	if all, err := skills.LoadSkills(cfg.Skills.Dir); err == nil {
		fmt.Fprintf(out, "Skills:    %d installed\n", len(all))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Telegram:  %s\n", enabled(cfg.Telegram.Enabled && cfg.Telegram.Token != ""))
	fmt.Fprintf(out, "Email:     %s\n", enabled(cfg.Alerts.ResendAPIKey != "" && cfg.Alerts.Email != ""))
	fmt.Fprintf(out, "Webhook:   %s\n", enabled(cfg.Alerts.WebhookURL != ""))
	fmt.Fprintf(out, "Twitter:   %s\n", enabled(cfg.Social.Twitter.AccessToken != ""))
	fmt.Fprintf(out, "LinkedIn:  %s\n", enabled(cfg.Social.LinkedIn.AccessToken != ""))
	fmt.Fprintf(out, "Bluesky:   %s\n", enabled(cfg.Social.Bluesky.Handle != ""))
	if _, err := os.Stat(cfg.Analytics.CredentialsPath); err == nil {
		fmt.Fprintf(out, "Analytics: %s (%s)\n", enabled(true), cfg.Analytics.PropertyID)
	} else {
		fmt.Fprintf(out, "Analytics: %s\n", enabled(false))
	}
	return nil
}

func enabled(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func writeIfNotExists(out interface{ Write([]byte) (int, error) }, path, content string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return
		}
		_ = os.WriteFile(path, []byte(content), 0644)
		fmt.Fprintf(out, "  Created: %s\n", path)
	}
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

const defaultMemoryMD = `# MEMORY

## Key Decisions

## Lessons Learned

## Important Events

## Active Projects
`

const defaultHeartbeatMD = `# Heartbeat

- [ ] Check lead follow-ups (daily at 9am)
- [ ] Review news alerts (every 4 hours)
`
