package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/opsclaw/internal/config"
	"github.com/stellarlinkco/opsclaw/internal/cron"
	"github.com/stellarlinkco/opsclaw/internal/gateway"
)

// crontab is swapped in tests.
var crontab cron.Crontab = cron.SystemCrontab{}

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Manage scheduled jobs",
}

var cronAddCmd = &cobra.Command{
	Use:   "add <name> <schedule> <command>",
	Short: "Add a job (schedule may be plain English, e.g. \"every day at 9am\")",
	Args:  cobra.ExactArgs(3),
	RunE:  runCronAdd,
}

var cronListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE:  runCronList,
}

var cronRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronRemove,
}

var cronUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Update a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronUpdate,
}

var cronEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a job",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setJobEnabled(cmd, args[0], true) },
}

var cronDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a job",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setJobEnabled(cmd, args[0], false) },
}

var cronRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a job now and record the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronRun,
}

var cronHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show run history",
	RunE:  runCronHistory,
}

var cronExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history as json or csv",
	RunE:  runCronExport,
}

var cronHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check job health",
	RunE:  runCronHealth,
}

var cronValidateCmd = &cobra.Command{
	Use:   "validate <expr>",
	Short: "Validate a cron expression",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronValidate,
}

var cronExplainCmd = &cobra.Command{
	Use:   "explain <expr>",
	Short: "Describe a cron expression",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronExplain,
}

var cronTranslateCmd = &cobra.Command{
	Use:   "translate <phrase>",
	Short: "Translate an English schedule to cron",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCronTranslate,
}

var cronNextCmd = &cobra.Command{
	Use:   "next <expr>",
	Short: "Show the next run times",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronNext,
}

var cronInstallCmd = &cobra.Command{
	Use:   "install <name>",
	Short: "Install a job into the system crontab",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronInstall,
}

var cronUninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Remove a job from the system crontab",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronUninstall,
}

var cronHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat [file]",
	Short: "Parse a HEARTBEAT.md checklist",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCronHeartbeat,
}

var cronServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and reminder delivery in the foreground",
	RunE:  runCronServe,
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Manage reminders",
}

var remindAddCmd = &cobra.Command{
	Use:   "add <message>",
	Short: "Add a reminder",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemindAdd,
}

var remindListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
	RunE:  runRemindList,
}

var remindCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a reminder",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemindCancel,
}

var remindCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a reminder done",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemindComplete,
}

var remindDueCmd = &cobra.Command{
	Use:   "due",
	Short: "Show reminders due now",
	RunE:  runRemindDue,
}

var (
	cronDescription string
	cronCategory    string
	cronTags        string
	cronDisabled    bool
	cronInstall     bool
	cronTag         string
	cronEnabledOnly bool
	cronJSON        bool
	cronSchedule    string
	cronCommand     string
	cronRemoveTags  string
	cronJob         string
	cronStatus      string
	cronSince       string
	cronLimit       int
	cronFormat      string
	cronOutput      string
	cronCount       int
	cronTimeout     int

	remindWhen    string
	remindChannel string
	remindTarget  string
	remindRelated string
	remindStatus  string
)

func init() {
	f := cronAddCmd.Flags()
	f.StringVar(&cronDescription, "description", "", "Job description")
	f.StringVar(&cronCategory, "category", "", "Job category")
	f.StringVar(&cronTags, "tags", "", "Comma-separated tags")
	f.BoolVar(&cronDisabled, "disabled", false, "Create the job disabled")
	f.BoolVar(&cronInstall, "install", false, "Also install into the system crontab")

	f = cronListCmd.Flags()
	f.StringVar(&cronTag, "tag", "", "Filter by tag")
	f.StringVar(&cronCategory, "category", "", "Filter by category")
	f.BoolVar(&cronEnabledOnly, "enabled", false, "Only enabled jobs")
	f.BoolVar(&cronJSON, "json", false, "Output JSON")

	f = cronUpdateCmd.Flags()
	f.StringVar(&cronSchedule, "schedule", "", "New schedule")
	f.StringVar(&cronCommand, "command", "", "New command")
	f.StringVar(&cronDescription, "description", "", "New description")
	f.StringVar(&cronCategory, "category", "", "New category")
	f.StringVar(&cronTags, "add-tags", "", "Comma-separated tags to add")
	f.StringVar(&cronRemoveTags, "remove-tags", "", "Comma-separated tags to remove")

	cronEnableCmd.Flags().BoolVar(&cronInstall, "install", false, "Also install into the system crontab")

	cronRunCmd.Flags().IntVar(&cronTimeout, "timeout", 0, "Timeout in seconds (default from config)")

	f = cronHistoryCmd.Flags()
	f.StringVar(&cronJob, "job", "", "Filter by job name")
	f.StringVar(&cronStatus, "status", "", "success or failed")
	f.StringVar(&cronSince, "since", "", "Only runs newer than Nh, Nd or Nw")
	f.IntVar(&cronLimit, "limit", 20, "Maximum runs")
	f.BoolVar(&cronJSON, "json", false, "Output JSON")

	f = cronExportCmd.Flags()
	f.StringVar(&cronFormat, "format", "json", "json or csv")
	f.StringVarP(&cronOutput, "output", "o", "", "Output file (default stdout)")

	cronHealthCmd.Flags().BoolVar(&cronJSON, "json", false, "Output JSON")
	cronNextCmd.Flags().IntVarP(&cronCount, "count", "n", 5, "Number of run times")

	cronCmd.AddCommand(cronAddCmd, cronListCmd, cronRemoveCmd, cronUpdateCmd, cronEnableCmd, cronDisableCmd,
		cronRunCmd, cronHistoryCmd, cronExportCmd, cronHealthCmd, cronValidateCmd, cronExplainCmd,
		cronTranslateCmd, cronNextCmd, cronInstallCmd, cronUninstallCmd, cronHeartbeatCmd, cronServeCmd)

	f = remindAddCmd.Flags()
	f.StringVar(&remindWhen, "when", "", "+30m, +2h, +1d, \"YYYY-MM-DD HH:MM\", HH:MM, hourly, daily, weekly or \"every N minutes\"")
	f.StringVar(&remindChannel, "channel", "", "Delivery channel (default from config)")
	f.StringVar(&remindTarget, "target", "", "Channel target, e.g. a chat id")
	f.StringVar(&remindRelated, "related-to", "", "Related job or lead")
	_ = remindAddCmd.MarkFlagRequired("when")

	remindListCmd.Flags().StringVar(&remindStatus, "status", "", "active, completed or cancelled")

	remindCmd.AddCommand(remindAddCmd, remindListCmd, remindCancelCmd, remindCompleteCmd, remindDueCmd)
	rootCmd.AddCommand(cronCmd, remindCmd)
}

func cronStores() (*config.Config, *cron.JobStore, *cron.HistoryStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, cron.NewJobStore(cfg.DataFile("cron", "jobs.json")), cron.NewHistoryStore(cfg.DataFile("cron", "history.json")), nil
}

func reminderStore() (*cron.ReminderStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cron.NewReminderStore(cfg.DataFile("cron", "reminders.json"), cfg.Cron.Channel), nil
}

func runCronAdd(cmd *cobra.Command, args []string) error {
	cfg, jobs, _, err := cronStores()
	if err != nil {
		return err
	}
	job, err := cron.NewJob(args[0], args[1], args[2], time.Now().UTC())
	if err != nil {
		return err
	}
	job.Description = cronDescription
	job.Category = cronCategory
	job.Tags = splitList(cronTags)
	job.Enabled = !cronDisabled
	if err := jobs.Add(job); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	success(out, "Added job %q [%s] %s", job.Name, job.ID, job.Schedule)
	if desc, err := cron.Explain(job.Schedule); err == nil {
		info(out, "%s", desc)
	}
	if cronInstall || cfg.Cron.SystemCrontab {
		added, err := cron.InstallJob(cmd.Context(), crontab, job)
		if err != nil {
			return fmt.Errorf("install crontab: %w", err)
		}
		if added {
			success(out, "Installed into crontab")
		}
	}
	return nil
}

func runCronList(cmd *cobra.Command, args []string) error {
	_, jobs, _, err := cronStores()
	if err != nil {
		return err
	}
	list, err := jobs.List(cron.JobFilter{Tag: cronTag, Category: cronCategory, EnabledOnly: cronEnabledOnly})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if cronJSON {
		return writeJSON(out, list)
	}
	if len(list) == 0 {
		info(out, "No jobs")
		return nil
	}
	for _, j := range list {
		state := "enabled"
		if !j.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(out, "%-20s %-16s %-8s runs=%-4d %s\n", j.Name, j.Schedule, state, j.RunCount, j.Command)
		if j.Description != "" {
			fmt.Fprintf(out, "  %s\n", j.Description)
		}
		if len(j.Tags) > 0 || j.Category != "" {
			fmt.Fprintf(out, "  category=%s tags=%s\n", j.Category, strings.Join(j.Tags, ","))
		}
	}
	return nil
}

func runCronRemove(cmd *cobra.Command, args []string) error {
	_, jobs, _, err := cronStores()
	if err != nil {
		return err
	}
	job, err := jobs.Remove(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	success(out, "Removed job %q", job.Name)
	removed, err := cron.UninstallJob(cmd.Context(), crontab, job)
	switch {
	case err != nil:
		warn(out, "crontab not updated: %v", err)
	case removed:
		success(out, "Removed from crontab")
	}
	return nil
}

func runCronUpdate(cmd *cobra.Command, args []string) error {
	_, jobs, _, err := cronStores()
	if err != nil {
		return err
	}
	var u cron.JobUpdate
	f := cmd.Flags()
	if f.Changed("schedule") {
		u.Schedule = &cronSchedule
	}
	if f.Changed("command") {
		u.Command = &cronCommand
	}
	if f.Changed("description") {
		u.Description = &cronDescription
	}
	if f.Changed("category") {
		u.Category = &cronCategory
	}
	u.AddTags = splitList(cronTags)
	u.RemoveTags = splitList(cronRemoveTags)
	old, err := jobs.Get(args[0])
	if err != nil {
		return err
	}
	job, err := jobs.Update(args[0], u)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	success(out, "Updated job %q (%s)", job.Name, job.Schedule)
	changed, err := cron.ReplaceJob(cmd.Context(), crontab, old, job)
	switch {
	case err != nil:
		warn(out, "crontab not updated: %v", err)
	case changed:
		success(out, "Crontab updated")
	}
	return nil
}

func setJobEnabled(cmd *cobra.Command, name string, enabled bool) error {
	cfg, jobs, _, err := cronStores()
	if err != nil {
		return err
	}
	job, err := jobs.SetEnabled(name, enabled)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !job.Enabled {
		success(out, "Disabled job %q", job.Name)
		removed, err := cron.UninstallJob(cmd.Context(), crontab, job)
		switch {
		case err != nil:
			warn(out, "crontab not updated: %v", err)
		case removed:
			success(out, "Removed from crontab")
		}
		return nil
	}
	success(out, "Enabled job %q", job.Name)
	if cronInstall || cfg.Cron.SystemCrontab {
		added, err := cron.InstallJob(cmd.Context(), crontab, job)
		if err != nil {
			return fmt.Errorf("install crontab: %w", err)
		}
		if added {
			success(out, "Installed into crontab")
		}
	}
	return nil
}

func runCronRun(cmd *cobra.Command, args []string) error {
	cfg, jobs, history, err := cronStores()
	if err != nil {
		return err
	}
	job, err := jobs.Get(args[0])
	if err != nil {
		return err
	}
	timeout := cronTimeout
	if timeout <= 0 {
		timeout = cfg.Cron.CommandTimeout
	}
	run := cron.Execute(cmd.Context(), job.Name, job.Command, time.Duration(timeout)*time.Second)
	if err := history.Record(run); err != nil {
		return err
	}
	if _, err := jobs.RecordRun(job.Name); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if run.Output != "" {
		fmt.Fprintln(out, strings.TrimRight(run.Output, "\n"))
	}
	if run.Status != cron.RunSuccess {
		return fmt.Errorf("job %q failed (exit %d): %s", job.Name, run.ExitCode, run.Error)
	}
	success(out, "Job %q finished in %dms", job.Name, run.DurationMs)
	return nil
}

func historyFilter() (cron.HistoryFilter, error) {
	f := cron.HistoryFilter{Job: cronJob, Status: cronStatus, Limit: cronLimit}
	if cronSince != "" {
		d, err := cron.ParseSince(cronSince)
		if err != nil {
			return f, err
		}
		f.Since = d
	}
	return f, nil
}

func runCronHistory(cmd *cobra.Command, args []string) error {
	_, _, history, err := cronStores()
	if err != nil {
		return err
	}
	filter, err := historyFilter()
	if err != nil {
		return err
	}
	runs, err := history.Query(filter, time.Now().UTC())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if cronJSON {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		info(out, "No runs recorded")
		return nil
	}
	for _, r := range runs {
		mark := "✓"
		if r.Status != cron.RunSuccess {
			mark = "✗"
		}
		fmt.Fprintf(out, "%s %s %-20s exit=%d %dms\n", mark, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.JobName, r.ExitCode, r.DurationMs)
		if r.Error != "" {
			fmt.Fprintf(out, "    %s\n", r.Error)
		}
	}
	return nil
}

func runCronExport(cmd *cobra.Command, args []string) error {
	_, _, history, err := cronStores()
	if err != nil {
		return err
	}
	runs, err := history.All()
	if err != nil {
		return err
	}
	var w io.Writer = cmd.OutOrStdout()
	if cronOutput != "" {
		f, err := os.Create(cronOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", cronOutput, err)
		}
		defer f.Close()
		w = f
	}
	if err := cron.ExportRuns(w, runs, cronFormat); err != nil {
		return err
	}
	if cronOutput != "" {
		success(cmd.OutOrStdout(), "Exported %d run(s) to %s", len(runs), cronOutput)
	}
	return nil
}

func runCronHealth(cmd *cobra.Command, args []string) error {
	_, jobs, history, err := cronStores()
	if err != nil {
		return err
	}
	list, err := jobs.List(cron.JobFilter{})
	if err != nil {
		return err
	}
	runs, err := history.All()
	if err != nil {
		return err
	}
	rep := cron.CheckHealth(list, runs, time.Now().UTC())
	out := cmd.OutOrStdout()
	if cronJSON {
		return writeJSON(out, rep)
	}
	fmt.Fprintf(out, "Checked %d enabled job(s)\n", rep.Checked)
	for _, name := range rep.Healthy {
		success(out, "%s", name)
	}
	for _, is := range rep.Issues {
		if is.Severity == cron.SeverityError {
			fail(out, "%s: %s", is.Job, is.Issue)
		} else {
			warn(out, "%s: %s", is.Job, is.Issue)
		}
	}
	if n := len(rep.Critical()); n > 0 {
		return fmt.Errorf("%d job(s) unhealthy", n)
	}
	return nil
}

func runCronValidate(cmd *cobra.Command, args []string) error {
	expr := cron.Translate(args[0])
	if err := cron.Validate(expr); err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Valid: %s", expr)
	return nil
}

func runCronExplain(cmd *cobra.Command, args []string) error {
	desc, err := cron.Explain(cron.Translate(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), desc)
	return nil
}

func runCronTranslate(cmd *cobra.Command, args []string) error {
	phrase := strings.Join(args, " ")
	expr, rule := cron.TranslateRule(phrase)
	out := cmd.OutOrStdout()
	if rule == "" {
		warn(out, "No translation for %q", phrase)
	}
	fmt.Fprintln(out, expr)
	return nil
}

func runCronNext(cmd *cobra.Command, args []string) error {
	expr := cron.Translate(args[0])
	times, err := cron.NextRuns(expr, time.Now(), cronCount)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for i, t := range times {
		fmt.Fprintf(out, "%2d. %s\n", i+1, t.Format("Mon 2006-01-02 15:04"))
	}
	return nil
}

func runCronInstall(cmd *cobra.Command, args []string) error {
	_, jobs, _, err := cronStores()
	if err != nil {
		return err
	}
	job, err := jobs.Get(args[0])
	if err != nil {
		return err
	}
	added, err := cron.InstallJob(cmd.Context(), crontab, job)
	if err != nil {
		return err
	}
	if added {
		success(cmd.OutOrStdout(), "Installed %q into crontab", job.Name)
	} else {
		info(cmd.OutOrStdout(), "%q already in crontab", job.Name)
	}
	return nil
}

func runCronUninstall(cmd *cobra.Command, args []string) error {
	_, jobs, _, err := cronStores()
	if err != nil {
		return err
	}
	job, err := jobs.Get(args[0])
	if err != nil {
		return err
	}
	removed, err := cron.UninstallJob(cmd.Context(), crontab, job)
	if err != nil {
		return err
	}
	if removed {
		success(cmd.OutOrStdout(), "Removed %q from crontab", job.Name)
	} else {
		info(cmd.OutOrStdout(), "%q not in crontab", job.Name)
	}
	return nil
}

func runCronHeartbeat(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = filepath.Join(filepath.Dir(cfg.Memory.Dir), "HEARTBEAT.md")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read heartbeat: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, t := range cron.ParseHeartbeat(string(data)) {
		box := "[ ]"
		if t.Completed {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %s", box, t.Description)
		if t.Frequency != "" {
			line += fmt.Sprintf(" (%s)", t.Frequency)
		}
		if t.Schedule != "" {
			line += " → " + t.Schedule
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runCronServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gw, err := gateway.NewWithOptions(cfg, gateway.Options{Out: cmd.OutOrStdout(), IntakeAddr: "-"})
	if err != nil {
		return err
	}
	return gw.Run(context.Background())
}

func runRemindAdd(cmd *cobra.Command, args []string) error {
	rs, err := reminderStore()
	if err != nil {
		return err
	}
	when, err := cron.ParseWhen(remindWhen, time.Now())
	if err != nil {
		return err
	}
	r, err := rs.Add(cron.NewReminder{
		Message:   args[0],
		When:      when,
		Channel:   remindChannel,
		Target:    remindTarget,
		RelatedTo: remindRelated,
	})
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Reminder %s set for %s via %s", r.ID, r.NextAt.Local().Format("2006-01-02 15:04"), r.Channel)
	return nil
}

func printReminder(w io.Writer, r cron.Reminder) {
	when := r.NextAt.Local().Format("2006-01-02 15:04")
	if r.Recurring != nil {
		when += fmt.Sprintf(" (every %d %s)", r.Recurring.Interval, r.Recurring.Unit)
	}
	fmt.Fprintf(w, "%-10s %-10s %-22s %-9s %s\n", r.ID, r.Status, when, r.Channel, r.Message)
}

func runRemindList(cmd *cobra.Command, args []string) error {
	rs, err := reminderStore()
	if err != nil {
		return err
	}
	list, err := rs.List(remindStatus)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		info(out, "No reminders")
		return nil
	}
	for _, r := range list {
		printReminder(out, r)
	}
	return nil
}

func runRemindCancel(cmd *cobra.Command, args []string) error {
	rs, err := reminderStore()
	if err != nil {
		return err
	}
	r, err := rs.Cancel(args[0])
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Cancelled reminder %s", r.ID)
	return nil
}

func runRemindComplete(cmd *cobra.Command, args []string) error {
	rs, err := reminderStore()
	if err != nil {
		return err
	}
	r, err := rs.Complete(args[0])
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Completed reminder %s", r.ID)
	return nil
}

func runRemindDue(cmd *cobra.Command, args []string) error {
	rs, err := reminderStore()
	if err != nil {
		return err
	}
	due, err := rs.Due(time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(due) == 0 {
		info(out, "Nothing due")
		return nil
	}
	for _, r := range due {
		printReminder(out, r)
	}
	return nil
}
