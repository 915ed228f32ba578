package skills

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSkill(t *testing.T, root, dir, content string) string {
	t.Helper()
	skillPath := filepath.Join(root, dir, skillFileName)
	if err := os.MkdirAll(filepath.Dir(skillPath), 0o755); err != nil {
		t.Fatalf("mkdir skill dir: %v", err)
	}
	if err := os.WriteFile(skillPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write skill file: %v", err)
	}
	return filepath.Dir(skillPath)
}

func TestLoadSkills_LoadSingleSkill(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSkill(t, root, "writer", "---\nname: writer\ndescription: writing helper\nversion: 1.2.0\ntags: [content, blog]\ndependencies: [seo-reporter >= 1.0]\nkeywords: [Write, draft, write]\n---\n# Writer\nUse this skill for writing tasks.\n")

	skills, err := LoadSkills(root)
	if err != nil {
		t.Fatalf("load skills: %v", err)
	}
	if len(skills) != 1 {
		t.Fatalf("skill count = %d, want 1", len(skills))
	}

	s := skills[0]
	if s.Name != "writer" || s.Description != "writing helper" || s.Version != "1.2.0" {
		t.Fatalf("skill = %+v", s)
	}
	if s.Author != "unknown" {
		t.Fatalf("author = %q, want unknown", s.Author)
	}
	if strings.Join(s.Tags, ",") != "content,blog" {
		t.Fatalf("tags = %q", s.Tags)
	}
	if len(s.Dependencies) != 1 || s.Dependencies[0] != "seo-reporter >= 1.0" {
		t.Fatalf("dependencies = %q", s.Dependencies)
	}
	if strings.Join(s.Keywords, ",") != "draft,write" {
		t.Fatalf("keywords = %q, want draft,write", s.Keywords)
	}
	if s.Body != "# Writer\nUse this skill for writing tasks." {
		t.Fatalf("unexpected body: %q", s.Body)
	}
	if s.Size == 0 {
		t.Fatal("size = 0, want file bytes counted")
	}
}

func TestLoadSkills_DirNotFound(t *testing.T) {
	t.Parallel()

	skills, err := LoadSkills(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("load skills from missing dir: %v", err)
	}
	if len(skills) != 0 {
		t.Fatalf("skill count = %d, want 0", len(skills))
	}
}

func TestLoadSkills_DuplicateName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSkill(t, root, "a", "---\nname: same\ndescription: one\n---\n")
	writeSkill(t, root, "b", "---\nname: same\ndescription: two\n---\n")

	_, err := LoadSkills(root)
	if err == nil || !strings.Contains(err.Error(), `duplicate skill name "same"`) {
		t.Fatalf("err = %v, want duplicate error", err)
	}
}

func TestLoadSkills_SkipInvalidYAML(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "bad", "---\nname: [unclosed\n---\nbody\n")
	writeSkill(t, root, "good", "---\nname: good\ndescription: fine skill\n---\n")

	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)

	skills, err := LoadSkills(root)
	if err != nil {
		t.Fatalf("load skills: %v", err)
	}
	if len(skills) != 1 || skills[0].Name != "good" {
		t.Fatalf("skills = %+v, want only good", skills)
	}
	if !strings.Contains(buf.String(), "skip invalid YAML skill") {
		t.Fatalf("log = %q, want warning", buf.String())
	}
}

func TestParseFrontmatter_ScalarList(t *testing.T) {
	t.Parallel()

	meta, body, err := ParseFrontmatter([]byte("\uFEFF---\nname: x\ntags: alpha, beta\n---\nhello"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if strings.Join(meta.Tags, "|") != "alpha|beta" {
		t.Fatalf("tags = %q", meta.Tags)
	}
	if body != "hello" {
		t.Fatalf("body = %q, want hello", body)
	}

	if _, _, err := ParseFrontmatter([]byte("# no header")); !errors.Is(err, errNoFrontmatter) {
		t.Fatalf("err = %v, want errNoFrontmatter", err)
	}
	if _, _, err := ParseFrontmatter([]byte("---\nname: x\n")); !errors.Is(err, errOpenFrontmatter) {
		t.Fatalf("err = %v, want errOpenFrontmatter", err)
	}
}

func TestList_Filter(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSkill(t, root, "lead-tracker", "---\nname: lead-tracker\ndescription: Track sales leads\n---\n")
	writeSkill(t, root, "news-monitor", "---\nname: news-monitor\ndescription: Watch RSS feeds\n---\n")

	got, err := List(root, "RSS")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Name != "news-monitor" {
		t.Fatalf("filtered = %+v", got)
	}

	if _, err := Get(root, "missing"); !errors.Is(err, ErrSkillNotFound) {
		t.Fatalf("err = %v, want ErrSkillNotFound", err)
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		512:             "512.0 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range cases {
		if got := FormatSize(in); got != want {
			t.Fatalf("FormatSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := writeSkill(t, root, "checker", "---\nname: other\ndescription: short\n---\nSee [guide](docs/guide.md) and [site](https://example.com).\n")
	if err := os.MkdirAll(filepath.Join(dir, "scripts"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scripts", "run.py"), []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFileName), []byte(`{"name": "checker"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	r := Validate(dir, false)
	if len(r.Errors) != 0 {
		t.Fatalf("errors = %q, want none", r.Errors)
	}
	want := []string{
		"Frontmatter name 'other' doesn't match directory 'checker'",
		"Description is too short (minimum 10 characters)",
		"Broken reference: docs/guide.md",
		"Script run.py missing shebang (#!/...)",
		"Script run.py is not executable",
		"manifest.json missing 'version' field",
	}
	if strings.Join(r.Warnings, "\n") != strings.Join(want, "\n") {
		t.Fatalf("warnings = %q\nwant %q", r.Warnings, want)
	}
	if !r.Valid() {
		t.Fatal("non-strict result with only warnings should be valid")
	}
	if Validate(dir, true).Valid() {
		t.Fatal("strict result with warnings should be invalid")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	missing := filepath.Join(root, "empty")
	if err := os.MkdirAll(missing, 0o755); err != nil {
		t.Fatal(err)
	}
	if r := Validate(missing, false); len(r.Errors) != 1 || r.Errors[0] != "SKILL.md is missing" {
		t.Fatalf("errors = %q", r.Errors)
	}

	noHeader := writeSkill(t, root, "plain", "# Just markdown\n")
	if r := Validate(noHeader, false); r.Valid() || !strings.Contains(r.Errors[0], "missing frontmatter") {
		t.Fatalf("errors = %q", r.Errors)
	}

	noDesc := writeSkill(t, root, "nodesc", "---\nname: nodesc\n---\n")
	if err := os.WriteFile(filepath.Join(noDesc, manifestFileName), []byte("{bad"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := Validate(noDesc, false)
	if len(r.Errors) != 2 {
		t.Fatalf("errors = %q, want description and manifest errors", r.Errors)
	}
}

func TestParseDependency(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Dependency
	}{
		{"lead-tracker", Dependency{Name: "lead-tracker"}},
		{"lead-tracker >= 1.2.0", Dependency{"lead-tracker", ">=", "1.2.0"}},
		{"lead-tracker>2", Dependency{"lead-tracker", ">", "2"}},
		{"lead-tracker = 1.0.0", Dependency{"lead-tracker", "=", "1.0.0"}},
		{"lead-tracker 1.0", Dependency{"lead-tracker", ">=", "1.0"}},
	}
	for _, tc := range cases {
		got, err := ParseDependency(tc.in)
		if err != nil {
			t.Fatalf("ParseDependency(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDependency(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"foo <2.0", "foo <= 2.0", "foo >== 1.0", "foo => 1.0"} {
		if _, err := ParseDependency(bad); err == nil {
			t.Errorf("ParseDependency(%q) should fail", bad)
		}
	}
	if _, err := ParseDependency("x >= 1 2"); err == nil {
		t.Fatal("expected error for trailing garbage")
	}
}

func TestCompareVersions(t *testing.T) {
	t.Parallel()

	if CompareVersions("1.10.0", "1.9.0") <= 0 {
		t.Fatal("1.10.0 should sort after 1.9.0")
	}
	if CompareVersions("v2.0", "2.0.0") != 0 {
		t.Fatal("v2.0 should equal 2.0.0")
	}
	if CompareVersions("unknown", "1.0") <= 0 {
		t.Fatal("non-semver versions compare lexically")
	}
}

func TestGraph(t *testing.T) {
	t.Parallel()

	g := NewGraph([]Skill{
		{Name: "blog", Version: "1.0.0", Dependencies: []string{"seo >= 2.0.0", "writer", "images"}},
		{Name: "seo", Version: "1.5.0", Dependencies: []string{"blog"}},
		{Name: "writer", Version: "1.10.0", Dependencies: []string{"seo > 1.0"}},
	})

	statuses, err := g.Check("blog")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	states := make([]string, len(statuses))
	for i, s := range statuses {
		states[i] = s.State
	}
	if strings.Join(states, ",") != "mismatch,ok,missing" {
		t.Fatalf("states = %q", states)
	}
	if Satisfied(statuses) {
		t.Fatal("blog deps should not be satisfied")
	}
	if statuses[0].Installed != "1.5.0" {
		t.Fatalf("installed = %q, want 1.5.0", statuses[0].Installed)
	}

	all := g.CheckAll()
	if !Satisfied(all["writer"]) {
		t.Fatalf("writer deps = %+v, want satisfied", all["writer"])
	}

	tree := g.Tree("blog")
	if len(tree.Children) != 3 {
		t.Fatalf("children = %d, want 3", len(tree.Children))
	}
	seo := tree.Children[0]
	if len(seo.Children) != 1 || !seo.Children[0].Circular {
		t.Fatalf("seo subtree = %+v, want circular back-edge", seo.Children)
	}
	if !tree.Children[2].Missing {
		t.Fatal("images should be missing")
	}
	rendered := tree.Render()
	for _, want := range []string{"blog (1.0.0)\n", "  └── seo (1.5.0)\n", "    ↻ blog (circular)\n", "  ✗ images (not installed)\n"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("render missing %q:\n%s", want, rendered)
		}
	}

	if got := strings.Join(g.Dependents("seo"), ","); got != "blog,writer" {
		t.Fatalf("dependents = %q, want blog,writer", got)
	}
	if _, err := g.Check("nope"); !errors.Is(err, ErrSkillNotFound) {
		t.Fatalf("err = %v, want ErrSkillNotFound", err)
	}
}

func TestPackageInstallUninstall(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dir := writeSkill(t, src, "blog-writer", "---\nname: blog-writer\ndescription: Draft blog posts\nversion: 2.1.0\nauthor: ops\ntags: [content]\n---\n# Blog\n")
	if err := os.MkdirAll(filepath.Join(dir, "scripts"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scripts", "draft.py"), []byte("#!/usr/bin/env python3\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".secret"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := filepath.Join(t.TempDir(), "blog-writer"+PackageExt)
	pkg, m, err := Package(dir, out, now)
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	if m.Version != "2.1.0" || m.Author != "ops" || strings.Join(m.Files, ",") != "SKILL.md,scripts/draft.py" {
		t.Fatalf("manifest = %+v", m)
	}

	read, err := ReadManifest(pkg)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if read.Name != "blog-writer" || !read.Created.Equal(now) {
		t.Fatalf("read manifest = %+v", read)
	}

	skillsDir := t.TempDir()
	if _, err := Install(pkg, skillsDir, false); err != nil {
		t.Fatalf("install: %v", err)
	}
	installed := filepath.Join(skillsDir, "blog-writer")
	if _, err := os.Stat(filepath.Join(installed, "scripts", "draft.py")); err != nil {
		t.Fatalf("installed script missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(installed, ".secret")); !os.IsNotExist(err) {
		t.Fatal("hidden file should not be packaged")
	}
	if _, err := os.Stat(filepath.Join(installed, manifestFileName)); err != nil {
		t.Fatalf("manifest not installed: %v", err)
	}

	if _, err := Install(pkg, skillsDir, false); !errors.Is(err, ErrSkillExists) {
		t.Fatalf("err = %v, want ErrSkillExists", err)
	}
	if _, err := Install(pkg, skillsDir, true); err != nil {
		t.Fatalf("force install: %v", err)
	}

	if err := Uninstall(skillsDir, "blog-writer"); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if _, err := os.Stat(installed); !os.IsNotExist(err) {
		t.Fatal("skill dir still present after uninstall")
	}
	if err := Uninstall(skillsDir, "blog-writer"); !errors.Is(err, ErrSkillNotFound) {
		t.Fatalf("err = %v, want ErrSkillNotFound", err)
	}
	if err := Uninstall(skillsDir, "../etc"); err == nil {
		t.Fatal("expected error for path-like name")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(filepath.Join(t.TempDir(), "registry.json"))
	if err := reg.Put(RegistryEntry{Name: "blog", Version: "1.0.0", Description: "Blog drafts", Tags: []string{"content"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := reg.Put(RegistryEntry{Name: "blog", Version: "1.1.0", Description: "Blog drafts", Tags: []string{"content"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := reg.Put(RegistryEntry{Name: "seo", Version: "1.0.0", Description: "Search reports", Installed: true}); err != nil {
		t.Fatalf("put: %v", err)
	}

	entries, err := reg.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 || entries[0].Version != "1.1.0" {
		t.Fatalf("entries = %+v", entries)
	}

	if got, _ := reg.Search("BLOG", "", SourceAll); len(got) != 1 {
		t.Fatalf("query search = %+v", got)
	}
	if got, _ := reg.Search("", "content", SourceAll); len(got) != 1 || got[0].Name != "blog" {
		t.Fatalf("tag search = %+v", got)
	}
	if got, _ := reg.Search("", "", SourceLocal); len(got) != 1 || got[0].Name != "seo" {
		t.Fatalf("local search = %+v", got)
	}

	removed, err := reg.Remove("blog")
	if err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}

	root := t.TempDir()
	writeSkill(t, root, "one", "---\nname: one\ndescription: first skill\n---\n")
	n, err := reg.Rebuild(root)
	if err != nil || n != 1 {
		t.Fatalf("rebuild = %d, %v", n, err)
	}
	entries, _ = reg.Entries()
	if len(entries) != 1 || !entries[0].Installed {
		t.Fatalf("rebuilt entries = %+v", entries)
	}
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Skill-My Tool!": "my-tool",
		"skill_news":     "news",
		"--a  b--":       "a-b",
		"ok_name":        "ok_name",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	now := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	dir, err := Create(root, "Weekly Report", "Summarize the week's numbers", "python", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(dir) != "weekly-report" {
		t.Fatalf("dir = %q, want weekly-report", dir)
	}
	for _, f := range []string{"SKILL.md", "scripts/main.py", "scripts/utils.py", "requirements.txt", "manifest.json"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Fatalf("%s missing: %v", f, err)
		}
	}
	r := Validate(dir, true)
	if !r.Valid() {
		t.Fatalf("scaffold should validate strictly: errors=%q warnings=%q", r.Errors, r.Warnings)
	}
	s, err := Get(root, "weekly-report")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(s.Body, "# Weekly Report") || !strings.Contains(s.Body, "### v1.0.0 (2026-04-02)") {
		t.Fatalf("body = %q", s.Body)
	}

	if _, err := Create(root, "weekly report", "again", "basic", now); !errors.Is(err, ErrSkillExists) {
		t.Fatalf("err = %v, want ErrSkillExists", err)
	}
	if _, err := Create(root, "x", "", "rust", now); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("err = %v, want ErrUnknownTemplate", err)
	}

	nodeDir, err := Create(root, "notifier", "Send node notifications", "node", now)
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	if _, err := os.Stat(filepath.Join(nodeDir, "scripts", "main.js")); err != nil {
		t.Fatalf("main.js missing: %v", err)
	}
}

func TestDocs(t *testing.T) {
	t.Parallel()

	body := "# Tool\n\n## Quick Start\nrun it\n\n## Usage\nuse flags\n### Example\nexample here\n## Configuration\nset env\n"

	hs := Headings(body)
	if len(hs) != 4 || hs[2].Level != 3 || hs[2].Title != "Example" {
		t.Fatalf("headings = %+v", hs)
	}
	sec, ok := Section(body, "usage")
	if !ok || sec != "## Usage\nuse flags" {
		t.Fatalf("section = %q, %v", sec, ok)
	}
	if _, ok := Section(body, "missing"); ok {
		t.Fatal("missing section found")
	}
	last, ok := Section(body, "config")
	if !ok || last != "## Configuration\nset env" {
		t.Fatalf("last section = %q", last)
	}

	matches, total := SearchDocs(body, "EXAMPLE", 1)
	if total != 2 || len(matches) != 1 || matches[0].Line != 8 {
		t.Fatalf("matches = %+v total = %d", matches, total)
	}
}
