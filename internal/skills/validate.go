package skills

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Result is the outcome of validating one skill directory.
type Result struct {
	Skill    string
	Errors   []string
	Warnings []string
	Strict   bool
}

// Valid reports no errors, and no warnings either in strict mode.
func (r Result) Valid() bool {
	return len(r.Errors) == 0 && (!r.Strict || len(r.Warnings) == 0)
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

var markdownLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// Validate checks the structure of the skill directory dir.
func Validate(dir string, strict bool) Result {
	r := Result{Skill: filepath.Base(dir), Strict: strict}

	content, err := os.ReadFile(filepath.Join(dir, skillFileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.errorf("SKILL.md is missing")
	case err != nil:
		r.errorf("SKILL.md is not readable: %v", err)
	default:
		checkFrontmatter(&r, content)
		checkLinks(&r, dir, string(content))
	}
	checkScripts(&r, dir)
	checkManifest(&r, dir)
	checkPermissions(&r, dir)
	return r
}

func checkFrontmatter(r *Result, content []byte) {
	meta, _, err := ParseFrontmatter(content)
	switch {
	case errors.Is(err, errNoFrontmatter):
		r.errorf("SKILL.md missing frontmatter (must start with ---)")
		return
	case errors.Is(err, errOpenFrontmatter):
		r.errorf("SKILL.md has incomplete frontmatter")
		return
	case err != nil:
		r.errorf("SKILL.md frontmatter is invalid: %v", err)
		return
	}

	name := strings.TrimSpace(meta.Name)
	desc := strings.TrimSpace(meta.Description)
	if name == "" {
		r.errorf("SKILL.md frontmatter missing required field: name")
	} else if name != r.Skill {
		r.warnf("Frontmatter name '%s' doesn't match directory '%s'", name, r.Skill)
	}
	switch n := len([]rune(desc)); {
	case desc == "":
		r.errorf("SKILL.md frontmatter missing required field: description")
	case n < 10:
		r.warnf("Description is too short (minimum 10 characters)")
	case n > 200:
		r.warnf("Description is too long (maximum 200 characters)")
	}
}

func checkLinks(r *Result, dir, content string) {
	for _, m := range markdownLink.FindAllStringSubmatch(content, -1) {
		target := m[2]
		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") ||
			strings.HasPrefix(target, "mailto:") || strings.HasPrefix(target, "#") {
			continue
		}
		path := target
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			r.warnf("Broken reference: %s", target)
		}
	}
}

func checkScripts(r *Result, dir string) {
	scripts := filepath.Join(dir, "scripts")
	info, err := os.Stat(scripts)
	if err != nil {
		return
	}
	if !info.IsDir() {
		r.errorf("scripts exists but is not a directory")
		return
	}
	entries, err := os.ReadDir(scripts)
	if err != nil {
		r.errorf("read scripts: %v", err)
		return
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(scripts, e.Name())
		if !hasShebang(path) {
			r.warnf("Script %s missing shebang (#!/...)", e.Name())
		}
		switch filepath.Ext(e.Name()) {
		case ".py", ".sh", ".js":
			if fi, err := e.Info(); err == nil && fi.Mode().Perm()&0o111 == 0 {
				r.warnf("Script %s is not executable", e.Name())
			}
		}
	}
}

func hasShebang(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()
	buf := make([]byte, 2)
	n, _ := f.Read(buf)
	return n == 2 && string(buf) == "#!"
}

func checkManifest(r *Result, dir string) {
	b, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		return
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		r.errorf("manifest.json is invalid JSON: %v", err)
		return
	}
	if name, ok := m["name"]; !ok {
		r.warnf("manifest.json missing 'name' field")
	} else if name != r.Skill {
		r.warnf("manifest.json name '%v' doesn't match directory", name)
	}
	if _, ok := m["version"]; !ok {
		r.warnf("manifest.json missing 'version' field")
	}
}

func checkPermissions(r *Result, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Mode().Perm()&0o002 != 0 {
			rel, _ := filepath.Rel(dir, path)
			r.warnf("File is world-writable: %s", rel)
		}
		return nil
	})
}

// ValidateAll validates every skill directory under skillDir.
func ValidateAll(skillDir string, strict bool) ([]Result, error) {
	entries, err := os.ReadDir(skillDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read skills dir %q: %w", skillDir, err)
	}
	var out []Result
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, Validate(filepath.Join(skillDir, e.Name()), strict))
		}
	}
	return out, nil
}
