package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/opsclaw/internal/analytics"
	"github.com/stellarlinkco/opsclaw/internal/config"
)

// newRunner is swapped in tests.
var newRunner = func(ctx context.Context, cfg *config.Config) (analytics.Runner, error) {
	return analytics.NewGARunner(ctx, cfg.Analytics.PropertyID, cfg.Analytics.CredentialsPath)
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Google Analytics 4 traffic reports",
}

var analyticsDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Traffic summary for the last N days",
	RunE:  runAnalyticsDaily,
}

var analyticsWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "This week compared with the previous week",
	RunE:  runAnalyticsWeekly,
}

var analyticsMonthlyCmd = &cobra.Command{
	Use:   "monthly",
	Short: "One month compared with the month before",
	RunE:  runAnalyticsMonthly,
}

var analyticsSourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Traffic source breakdown",
	RunE:  runAnalyticsSource,
}

var (
	gaFormat   string
	gaOutput   string
	gaProperty string
	gaDays     int
	gaRange    int
	gaMonth    string
)

func init() {
	for _, c := range []*cobra.Command{analyticsDailyCmd, analyticsWeeklyCmd, analyticsMonthlyCmd, analyticsSourceCmd} {
		c.Flags().StringVar(&gaFormat, "format", analytics.FormatConsole, "console, markdown or json")
		c.Flags().StringVarP(&gaOutput, "output", "o", "", "Write the report to a file")
		c.Flags().StringVar(&gaProperty, "property", "", "GA4 property id (default from config)")
	}
	analyticsDailyCmd.Flags().IntVar(&gaDays, "days", 1, "Days to cover")
	analyticsSourceCmd.Flags().IntVar(&gaRange, "days", 30, "Days to cover")
	analyticsMonthlyCmd.Flags().StringVar(&gaMonth, "month", "", "YYYY-MM (default previous month)")

	analyticsCmd.AddCommand(analyticsDailyCmd, analyticsWeeklyCmd, analyticsMonthlyCmd, analyticsSourceCmd)
	rootCmd.AddCommand(analyticsCmd)
}

func reporter(ctx context.Context) (*analytics.Reporter, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if gaProperty != "" {
		cfg.Analytics.PropertyID = gaProperty
	}
	runner, err := newRunner(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return analytics.NewReporter(runner, cfg.Analytics.PropertyID), nil
}

func emit(cmd *cobra.Command, rep analytics.Report) error {
	if gaOutput == "" {
		return analytics.Render(cmd.OutOrStdout(), rep, gaFormat)
	}
	if err := analytics.WriteFile(gaOutput, rep, gaFormat); err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Report written to %s", gaOutput)
	return nil
}

func runAnalyticsDaily(cmd *cobra.Command, args []string) error {
	rp, err := reporter(cmd.Context())
	if err != nil {
		return err
	}
	rep, err := rp.Daily(cmd.Context(), gaDays)
	if err != nil {
		return err
	}
	return emit(cmd, rep)
}

func runAnalyticsWeekly(cmd *cobra.Command, args []string) error {
	rp, err := reporter(cmd.Context())
	if err != nil {
		return err
	}
	rep, err := rp.Weekly(cmd.Context())
	if err != nil {
		return err
	}
	return emit(cmd, rep)
}

func runAnalyticsMonthly(cmd *cobra.Command, args []string) error {
	var (
		year  int
		month time.Month
	)
	if gaMonth != "" {
		t, err := time.Parse("2006-01", gaMonth)
		if err != nil {
			return fmt.Errorf("invalid month %q (want YYYY-MM)", gaMonth)
		}
		year, month = t.Year(), t.Month()
	}
	rp, err := reporter(cmd.Context())
	if err != nil {
		return err
	}
	rep, err := rp.Monthly(cmd.Context(), year, month)
	if err != nil {
		return err
	}
	return emit(cmd, rep)
}

func runAnalyticsSource(cmd *cobra.Command, args []string) error {
	rp, err := reporter(cmd.Context())
	if err != nil {
		return err
	}
	rep, err := rp.Source(cmd.Context(), gaRange)
	if err != nil {
		return err
	}
	return emit(cmd, rep)
}
