package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/opsclaw/internal/leads"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Track sales leads",
}

var leadsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new lead",
	RunE:  runLeadsAdd,
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads",
	RunE:  runLeadsList,
}

var leadsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one lead",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeadsGet,
}

var leadsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a lead",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeadsUpdate,
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a lead",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeadsDelete,
}

var leadsFollowUpCmd = &cobra.Command{
	Use:   "followup <id>",
	Short: "Schedule a follow-up",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeadsFollowUp,
}

var leadsFollowUpsCmd = &cobra.Command{
	Use:   "followups",
	Short: "List pending follow-ups",
	RunE:  runLeadsFollowUps,
}

var leadsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Pipeline report",
	RunE:  runLeadsReport,
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads as csv, json or salesforce",
	RunE:  runLeadsExport,
}

var leadsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import leads from csv or json",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeadsImport,
}

var leadsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lead intake HTTP API",
	RunE:  runLeadsServe,
}

var (
	leadName     string
	leadEmail    string
	leadPhone    string
	leadCompany  string
	leadSource   string
	leadStatus   string
	leadNotes    string
	leadMinScore int
	leadLimit    int
	leadJSON     bool
	leadDays     int
	leadDue      bool
	leadUpcoming int
	leadPeriod   string
	leadFormat   string
	leadOutput   string
	leadAddr     string

	leadFilterSource string
	leadImportFormat string
)

func init() {
	f := leadsAddCmd.Flags()
	f.StringVar(&leadName, "name", "", "Lead name (required)")
	f.StringVar(&leadEmail, "email", "", "Email address (required)")
	f.StringVar(&leadPhone, "phone", "", "Phone number")
	f.StringVar(&leadCompany, "company", "", "Company name")
	f.StringVar(&leadSource, "source", leads.DefaultSource, "Lead source")
	f.StringVar(&leadNotes, "notes", "", "Notes")
	_ = leadsAddCmd.MarkFlagRequired("name")
	_ = leadsAddCmd.MarkFlagRequired("email")

	f = leadsListCmd.Flags()
	f.StringVar(&leadStatus, "status", "", "Filter by status")
	f.StringVar(&leadFilterSource, "source", "", "Filter by source")
	f.IntVar(&leadMinScore, "min-score", 0, "Minimum score")
	f.IntVar(&leadLimit, "limit", 0, "Maximum leads to show")
	f.BoolVar(&leadJSON, "json", false, "Output JSON")

	leadsGetCmd.Flags().BoolVar(&leadJSON, "json", false, "Output JSON")

	f = leadsUpdateCmd.Flags()
	f.StringVar(&leadStatus, "status", "", "New status ("+strings.Join(leads.Statuses, ", ")+")")
	f.StringVar(&leadPhone, "phone", "", "New phone")
	f.StringVar(&leadCompany, "company", "", "New company")
	f.StringVar(&leadNotes, "note", "", "Append a dated note")

	f = leadsFollowUpCmd.Flags()
	f.IntVar(&leadDays, "days", leads.DefaultFollowUpDays, "Days from now")
	f.StringVar(&leadNotes, "note", "", "Follow-up note")

	f = leadsFollowUpsCmd.Flags()
	f.BoolVar(&leadDue, "due", false, "Only due or overdue")
	f.IntVar(&leadUpcoming, "upcoming", leads.DefaultUpcomingDays, "Days ahead to include")

	f = leadsReportCmd.Flags()
	f.StringVar(&leadPeriod, "period", "all", "all, weekly, monthly or quarterly")
	f.BoolVar(&leadJSON, "json", false, "Output JSON")

	f = leadsExportCmd.Flags()
	f.StringVar(&leadFormat, "format", "csv", "csv, json or salesforce")
	f.StringVarP(&leadOutput, "output", "o", "", "Output file (default stdout)")
	f.StringVar(&leadStatus, "status", "", "Filter by status")

	leadsImportCmd.Flags().StringVar(&leadImportFormat, "format", "", "csv or json (default from extension)")

	leadsServeCmd.Flags().StringVar(&leadAddr, "addr", "", "Listen address (default from config)")

	leadsCmd.AddCommand(leadsAddCmd, leadsListCmd, leadsGetCmd, leadsUpdateCmd, leadsDeleteCmd,
		leadsFollowUpCmd, leadsFollowUpsCmd, leadsReportCmd, leadsExportCmd, leadsImportCmd, leadsServeCmd)
	rootCmd.AddCommand(leadsCmd)
}

func leadRepo() (*leads.Repository, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return leads.NewRepository(cfg.DataFile("leads", "leads.json")), nil
}

func parseLeadID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid lead id %q", s)
	}
	return id, nil
}

func runLeadsAdd(cmd *cobra.Command, args []string) error {
	repo, err := leadRepo()
	if err != nil {
		return err
	}
	l, err := repo.Add(leads.NewLead{
		Name:    leadName,
		Email:   leadEmail,
		Phone:   leadPhone,
		Company: leadCompany,
		Source:  leadSource,
		Notes:   leadNotes,
	})
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Added lead #%d: %s (score: %d)", l.ID, l.Name, l.Score)
	return nil
}

func runLeadsList(cmd *cobra.Command, args []string) error {
	repo, err := leadRepo()
	if err != nil {
		return err
	}
	all, err := repo.List(leads.Filter{Status: leadStatus, Source: leadFilterSource, MinScore: leadMinScore, Limit: leadLimit})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if leadJSON {
		return writeJSON(out, all)
	}
	if len(all) == 0 {
		info(out, "No leads found")
		return nil
	}
	fmt.Fprintf(out, "%-4s %-20s %-28s %-18s %-10s %5s\n", "ID", "NAME", "EMAIL", "COMPANY", "STATUS", "SCORE")
	for _, l := range all {
		fmt.Fprintf(out, "%-4d %-20s %-28s %-18s %-10s %5d\n",
			l.ID, clip(l.Name, 20), clip(l.Email, 28), clip(l.Company, 18), l.Status, l.Score)
	}
	fmt.Fprintf(out, "\n%d lead(s)\n", len(all))
	return nil
}

func runLeadsGet(cmd *cobra.Command, args []string) error {
	id, err := parseLeadID(args[0])
	if err != nil {
		return err
	}
	repo, err := leadRepo()
	if err != nil {
		return err
	}
	l, err := repo.Get(id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if leadJSON {
		return writeJSON(out, l)
	}
	printLead(out, l)
	return nil
}

func printLead(w io.Writer, l leads.Lead) {
	fmt.Fprintf(w, "Lead #%d\n", l.ID)
	fmt.Fprintf(w, "  Name:     %s\n", l.Name)
	fmt.Fprintf(w, "  Email:    %s\n", l.Email)
	if l.Phone != "" {
		fmt.Fprintf(w, "  Phone:    %s\n", l.Phone)
	}
	if l.Company != "" {
		fmt.Fprintf(w, "  Company:  %s\n", l.Company)
	}
	fmt.Fprintf(w, "  Source:   %s\n", l.Source)
	fmt.Fprintf(w, "  Status:   %s\n", l.Status)
	fmt.Fprintf(w, "  Score:    %d\n", l.Score)
	fmt.Fprintf(w, "  Created:  %s\n", l.CreatedAt.Format("2006-01-02 15:04"))
	if l.FollowUpDate != nil {
		fmt.Fprintf(w, "  Follow-up: %s %s\n", l.FollowUpDate.Format("2006-01-02"), l.FollowUpNote)
	}
	if l.Notes != "" {
		fmt.Fprintf(w, "  Notes:\n    %s\n", strings.ReplaceAll(l.Notes, "\n", "\n    "))
	}
}

func runLeadsUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseLeadID(args[0])
	if err != nil {
		return err
	}
	repo, err := leadRepo()
	if err != nil {
		return err
	}
	var p leads.Patch
	f := cmd.Flags()
	if f.Changed("status") {
		p.Status = &leadStatus
	}
	if f.Changed("phone") {
		p.Phone = &leadPhone
	}
	if f.Changed("company") {
		p.Company = &leadCompany
	}
	p.Note = leadNotes
	l, err := repo.Update(id, p)
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Updated lead #%d (status: %s, score: %d)", l.ID, l.Status, l.Score)
	return nil
}

func runLeadsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseLeadID(args[0])
	if err != nil {
		return err
	}
	repo, err := leadRepo()
	if err != nil {
		return err
	}
	l, err := repo.Delete(id)
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Deleted lead #%d: %s", l.ID, l.Name)
	return nil
}

func runLeadsFollowUp(cmd *cobra.Command, args []string) error {
	id, err := parseLeadID(args[0])
	if err != nil {
		return err
	}
	repo, err := leadRepo()
	if err != nil {
		return err
	}
	l, err := repo.SetFollowUp(id, leadDays, leadNotes)
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Follow-up for %s on %s: %s", l.Name, l.FollowUpDate.Format("2006-01-02"), l.FollowUpNote)
	return nil
}

func runLeadsFollowUps(cmd *cobra.Command, args []string) error {
	repo, err := leadRepo()
	if err != nil {
		return err
	}
	fus, err := repo.FollowUps(leadDue, leadUpcoming)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(fus) == 0 {
		info(out, "No pending follow-ups")
		return nil
	}
	for _, fu := range fus {
		var when string
		switch {
		case fu.DaysUntil < 0:
			when = fmt.Sprintf("OVERDUE by %d day(s)", -fu.DaysUntil)
		case fu.DaysUntil == 0:
			when = "today"
		default:
			when = fmt.Sprintf("in %d day(s)", fu.DaysUntil)
		}
		line := fmt.Sprintf("#%d %s <%s> %s: %s", fu.Lead.ID, fu.Lead.Name, fu.Lead.Email, when, fu.Lead.FollowUpNote)
		if fu.DaysUntil < 0 {
			warn(out, "%s", line)
		} else {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	return nil
}

func runLeadsReport(cmd *cobra.Command, args []string) error {
	repo, err := leadRepo()
	if err != nil {
		return err
	}
	all, err := repo.List(leads.Filter{})
	if err != nil {
		return err
	}
	rep, err := leads.BuildReport(all, leadPeriod, time.Now().UTC())
	if err != nil {
		return err
	}
	if leadJSON {
		return writeJSON(cmd.OutOrStdout(), rep)
	}
	leads.WriteReport(cmd.OutOrStdout(), rep)
	return nil
}

func runLeadsExport(cmd *cobra.Command, args []string) error {
	repo, err := leadRepo()
	if err != nil {
		return err
	}
	all, err := repo.List(leads.Filter{Status: leadStatus})
	if err != nil {
		return err
	}
	if leadOutput == "" {
		return leads.Export(cmd.OutOrStdout(), all, leadFormat)
	}
	f, err := os.Create(leadOutput)
	if err != nil {
		return fmt.Errorf("create %s: %w", leadOutput, err)
	}
	if err := leads.Export(f, all, leadFormat); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Exported %d lead(s) to %s", len(all), leadOutput)
	return nil
}

func runLeadsImport(cmd *cobra.Command, args []string) error {
	format := leadImportFormat
	if format == "" {
		format = "csv"
		if strings.HasSuffix(strings.ToLower(args[0]), ".json") {
			format = "json"
		}
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()
	records, err := leads.Import(f, format)
	if err != nil {
		return err
	}
	repo, err := leadRepo()
	if err != nil {
		return err
	}
	imported, skipped, err := repo.ImportLeads(records)
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Imported %d lead(s), skipped %d", imported, skipped)
	return nil
}

func runLeadsServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := leadAddr
	if addr == "" {
		addr = cfg.Leads.IntakeAddr
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	info(cmd.OutOrStdout(), "Lead intake listening on %s", addr)
	return leads.Serve(ctx, addr, leads.NewRepository(cfg.DataFile("leads", "leads.json")))
}

// clip shortens s to n runes for table output.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
