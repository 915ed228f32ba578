package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/opsclaw/internal/skills"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Manage skill bundles",
}

var skillsListCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List installed skills",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSkillsList,
}

var skillsInfoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show one skill",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsInfo,
}

var skillsValidateCmd = &cobra.Command{
	Use:   "validate [name]",
	Short: "Validate one skill, or every installed skill",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSkillsValidate,
}

var skillsDepsCmd = &cobra.Command{
	Use:   "deps [name]",
	Short: "Check skill dependencies",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSkillsDeps,
}

var skillsTreeCmd = &cobra.Command{
	Use:   "tree <name>",
	Short: "Print the dependency tree of a skill",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsTree,
}

var skillsPackageCmd = &cobra.Command{
	Use:   "package <dir>",
	Short: "Package a skill directory into a .skill archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsPackage,
}

var skillsInstallCmd = &cobra.Command{
	Use:   "install <package>",
	Short: "Install a .skill archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsInstall,
}

var skillsUninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Remove an installed skill",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsUninstall,
}

var skillsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Scaffold a new skill",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsCreate,
}

var skillsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the skill registry",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSkillsSearch,
}

var skillsDocsCmd = &cobra.Command{
	Use:   "docs <name>",
	Short: "Read a skill's SKILL.md",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsDocs,
}

var skillsRegistryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Maintain the local skill registry",
}

var skillsRegistryRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild registry.json from installed skills",
	RunE:  runSkillsRegistryRebuild,
}

var (
	skillStrict      bool
	skillOutput      string
	skillRegister    bool
	skillForce       bool
	skillDescription string
	skillTemplate    string
	skillTag         string
	skillSource      string
	skillSection     string
	skillQuery       string
	skillTOC         bool
	skillJSON        bool
)

func init() {
	skillsListCmd.Flags().BoolVar(&skillJSON, "json", false, "Output JSON")
	skillsValidateCmd.Flags().BoolVar(&skillStrict, "strict", false, "Treat warnings as errors")

	f := skillsPackageCmd.Flags()
	f.StringVarP(&skillOutput, "output", "o", "", "Archive path (default ./<name>.skill)")
	f.BoolVar(&skillRegister, "register", false, "Add the package to the registry")

	skillsInstallCmd.Flags().BoolVar(&skillForce, "force", false, "Replace an existing installation")

	f = skillsCreateCmd.Flags()
	f.StringVar(&skillDescription, "description", "", "Skill description")
	f.StringVar(&skillTemplate, "template", "basic", "Template ("+strings.Join(skills.Templates, ", ")+")")

	f = skillsSearchCmd.Flags()
	f.StringVar(&skillTag, "tag", "", "Exact tag")
	f.StringVar(&skillSource, "source", skills.SourceAll, "all, local or remote")

	f = skillsDocsCmd.Flags()
	f.StringVar(&skillSection, "section", "", "Print one section")
	f.StringVar(&skillQuery, "search", "", "Search the docs")
	f.BoolVar(&skillTOC, "toc", false, "Print the table of contents")

	skillsRegistryCmd.AddCommand(skillsRegistryRebuildCmd)
	skillsCmd.AddCommand(skillsListCmd, skillsInfoCmd, skillsValidateCmd, skillsDepsCmd, skillsTreeCmd,
		skillsPackageCmd, skillsInstallCmd, skillsUninstallCmd, skillsCreateCmd, skillsSearchCmd,
		skillsDocsCmd, skillsRegistryCmd)
	rootCmd.AddCommand(skillsCmd)
}

func runSkillsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	filter := ""
	if len(args) == 1 {
		filter = args[0]
	}
	list, err := skills.List(cfg.Skills.Dir, filter)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if skillJSON {
		return writeJSON(out, list)
	}
	if len(list) == 0 {
		info(out, "No skills in %s", cfg.Skills.Dir)
		return nil
	}
	for _, s := range list {
		fmt.Fprintf(out, "%-24s %-8s %8s  %s\n", s.Name, s.Version, skills.FormatSize(s.Size), clip(s.Description, 60))
	}
	return nil
}

func runSkillsInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := skills.Get(cfg.Skills.Dir, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", s.Name, s.Version)
	fmt.Fprintf(out, "  %s\n", s.Description)
	if s.Author != "" {
		fmt.Fprintf(out, "  Author:       %s\n", s.Author)
	}
	if len(s.Tags) > 0 {
		fmt.Fprintf(out, "  Tags:         %s\n", strings.Join(s.Tags, ", "))
	}
	if len(s.Dependencies) > 0 {
		fmt.Fprintf(out, "  Dependencies: %s\n", strings.Join(s.Dependencies, ", "))
	}
	fmt.Fprintf(out, "  Path:         %s\n", s.Path)
	fmt.Fprintf(out, "  Size:         %s\n", skills.FormatSize(s.Size))
	return nil
}

func runSkillsValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var results []skills.Result
	if len(args) == 1 {
		dir := args[0]
		if !strings.ContainsAny(dir, `/\`) {
			dir = filepath.Join(cfg.Skills.Dir, dir)
		}
		results = []skills.Result{skills.Validate(dir, skillStrict)}
	} else {
		results, err = skills.ValidateAll(cfg.Skills.Dir, skillStrict)
		if err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	invalid := 0
	for _, r := range results {
		if r.Valid() {
			success(out, "%s", r.Skill)
		} else {
			invalid++
			fail(out, "%s", r.Skill)
		}
		for _, e := range r.Errors {
			fmt.Fprintf(out, "    error: %s\n", e)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "    warning: %s\n", w)
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d skill(s) invalid", invalid, len(results))
	}
	return nil
}

func printDeps(cmd *cobra.Command, name string, statuses []skills.DepStatus) {
	out := cmd.OutOrStdout()
	if len(statuses) == 0 {
		fmt.Fprintf(out, "%s: no dependencies\n", name)
		return
	}
	fmt.Fprintf(out, "%s:\n", name)
	for _, st := range statuses {
		switch st.State {
		case skills.DepOK:
			success(out, "  %s (installed %s)", st.Spec, st.Installed)
		case skills.DepMismatch:
			warn(out, "  %s (installed %s)", st.Spec, st.Installed)
		default:
			fail(out, "  %s (%s)", st.Spec, st.State)
		}
	}
}

func runSkillsDeps(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	g, err := skills.LoadGraph(cfg.Skills.Dir)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		statuses, err := g.Check(args[0])
		if err != nil {
			return err
		}
		printDeps(cmd, args[0], statuses)
		if deps := g.Dependents(args[0]); len(deps) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Required by: %s\n", strings.Join(deps, ", "))
		}
		if !skills.Satisfied(statuses) {
			return errors.New("unsatisfied dependencies")
		}
		return nil
	}
	all := g.CheckAll()
	broken := 0
	for _, name := range g.Names() {
		printDeps(cmd, name, all[name])
		if !skills.Satisfied(all[name]) {
			broken++
		}
	}
	if broken > 0 {
		return fmt.Errorf("%d skill(s) with unsatisfied dependencies", broken)
	}
	return nil
}

func runSkillsTree(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	g, err := skills.LoadGraph(cfg.Skills.Dir)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), g.Tree(args[0]).Render())
	return nil
}

func runSkillsPackage(cmd *cobra.Command, args []string) error {
	path, m, err := skills.Package(args[0], skillOutput, time.Now().UTC())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	success(out, "Packaged %s %s → %s (%d files)", m.Name, m.Version, path, len(m.Files))
	if skillRegister {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if err := skills.NewRegistry(cfg.RegistryPath()).Put(skills.EntryFor(m, abs)); err != nil {
			return err
		}
		success(out, "Registered %s", m.Name)
	}
	return nil
}

func runSkillsInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := skills.Install(args[0], cfg.Skills.Dir, skillForce)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	success(out, "Installed %s %s into %s", m.Name, m.Version, filepath.Join(cfg.Skills.Dir, m.Name))
	reg := skills.NewRegistry(cfg.RegistryPath())
	e := skills.EntryFor(m, filepath.Join(cfg.Skills.Dir, m.Name))
	e.Installed = true
	if err := reg.Put(e); err != nil {
		warn(out, "registry not updated: %v", err)
	}
	g, err := skills.LoadGraph(cfg.Skills.Dir)
	if err == nil {
		if statuses, err := g.Check(m.Name); err == nil && !skills.Satisfied(statuses) {
			printDeps(cmd, m.Name, statuses)
		}
	}
	return nil
}

func runSkillsUninstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if g, err := skills.LoadGraph(cfg.Skills.Dir); err == nil {
		if deps := g.Dependents(args[0]); len(deps) > 0 {
			warn(out, "Required by: %s", strings.Join(deps, ", "))
		}
	}
	if err := skills.Uninstall(cfg.Skills.Dir, args[0]); err != nil {
		return err
	}
	if _, err := skills.NewRegistry(cfg.RegistryPath()).Remove(args[0]); err != nil {
		warn(out, "registry not updated: %v", err)
	}
	success(out, "Uninstalled %s", args[0])
	return nil
}

func runSkillsCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := skills.Create(cfg.Skills.Dir, args[0], skillDescription, skillTemplate, time.Now())
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Created %s", dir)
	return nil
}

func runSkillsSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	entries, err := skills.NewRegistry(cfg.RegistryPath()).Search(query, skillTag, skillSource)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		info(out, "No matching skills (try 'opsclaw skills registry rebuild')")
		return nil
	}
	for _, e := range entries {
		mark := " "
		if e.Installed {
			mark = "✓"
		}
		fmt.Fprintf(out, "%s %-24s %-8s %s\n", mark, e.Name, e.Version, clip(e.Description, 60))
	}
	return nil
}

func runSkillsDocs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := skills.Get(cfg.Skills.Dir, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch {
	case skillTOC:
		for _, h := range skills.Headings(s.Body) {
			fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", h.Level-2), h.Title)
		}
	case skillSection != "":
		text, ok := skills.Section(s.Body, skillSection)
		if !ok {
			return fmt.Errorf("section %q not found", skillSection)
		}
		fmt.Fprintln(out, text)
	case skillQuery != "":
		matches, total := skills.SearchDocs(s.Body, skillQuery, 10)
		fmt.Fprintf(out, "%d match(es) for %q\n", total, skillQuery)
		for _, m := range matches {
			fmt.Fprintf(out, "\nline %d:\n", m.Line)
			for _, l := range m.Context {
				fmt.Fprintf(out, "  %s\n", l)
			}
		}
	default:
		fmt.Fprintln(out, s.Body)
	}
	return nil
}

func runSkillsRegistryRebuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	n, err := skills.NewRegistry(cfg.RegistryPath()).Rebuild(cfg.Skills.Dir)
	if err != nil {
		return err
	}
	success(cmd.OutOrStdout(), "Registry rebuilt with %d skill(s)", n)
	return nil
}
