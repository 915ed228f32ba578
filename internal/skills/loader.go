// Package skills manages skill bundles: directories holding a SKILL.md with
// YAML front matter plus optional scripts and a manifest.json.
package skills

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	skillFileName    = "SKILL.md"
	manifestFileName = "manifest.json"
)

var (
	ErrSkillNotFound   = errors.New("skill not found")
	errInvalidYAML     = errors.New("invalid skill YAML frontmatter")
	errNoFrontmatter   = errors.New("missing YAML frontmatter")
	errOpenFrontmatter = errors.New("missing closing frontmatter separator")
)

// Frontmatter is the YAML header of SKILL.md.
type Frontmatter struct {
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description"`
	Version      string     `yaml:"version"`
	Author       string     `yaml:"author"`
	Tags         stringList `yaml:"tags"`
	Dependencies stringList `yaml:"dependencies"`
	Keywords     stringList `yaml:"keywords"`
}

// stringList accepts either a YAML sequence or a single comma separated
// scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
	case yaml.ScalarNode:
		var out []string
		for _, part := range strings.Split(node.Value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*l = out
	default:
		return fmt.Errorf("line %d: expected list or string", node.Line)
	}
	return nil
}

// Skill is one installed skill directory.
type Skill struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Version      string   `json:"version"`
	Author       string   `json:"author"`
	Tags         []string `json:"tags"`
	Dependencies []string `json:"dependencies"`
	Keywords     []string `json:"keywords,omitempty"`
	Path         string   `json:"path"`
	Size         int64    `json:"size"`
	Body         string   `json:"-"`
}

// ParseFrontmatter splits SKILL.md content into its YAML header and the
// markdown body.
func ParseFrontmatter(content []byte) (Frontmatter, string, error) {
	text := strings.TrimPrefix(string(content), "\uFEFF")
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return Frontmatter{}, "", errNoFrontmatter
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return Frontmatter{}, "", errOpenFrontmatter
	}

	frontmatter := strings.Join(lines[1:end], "\n")
	body := strings.Join(lines[end+1:], "\n")

	var meta Frontmatter
	if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
		return Frontmatter{}, "", fmt.Errorf("%w: %v", errInvalidYAML, err)
	}
	return meta, body, nil
}

// LoadSkills reads every skill directory under skillDir in name order. A
// missing directory yields no skills. Skills with unparseable YAML are
// skipped with a warning; two skills declaring the same name is an error.
func LoadSkills(skillDir string) ([]Skill, error) {
	skillDir = strings.TrimSpace(skillDir)
	if skillDir == "" {
		return nil, nil
	}

	info, err := os.Stat(skillDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat skills dir %q: %w", skillDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("skills path is not a directory: %s", skillDir)
	}

	entries, err := os.ReadDir(skillDir)
	if err != nil {
		return nil, fmt.Errorf("read skills dir %q: %w", skillDir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	skills := make([]Skill, 0, len(entries))
	seen := make(map[string]string, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dir := filepath.Join(skillDir, entry.Name())
		skill, skip, err := loadSkill(dir)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		if prevPath, exists := seen[skill.Name]; exists {
			return nil, fmt.Errorf("duplicate skill name %q in %s (already in %s)", skill.Name, dir, prevPath)
		}
		seen[skill.Name] = dir
		skills = append(skills, skill)
	}
	return skills, nil
}

// loadSkill reads one skill directory. skip reports directories without a
// SKILL.md or with YAML that does not parse.
func loadSkill(dir string) (Skill, bool, error) {
	path := filepath.Join(dir, skillFileName)
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Skill{}, true, nil
		}
		return Skill{}, false, fmt.Errorf("read skill %q: %w", path, err)
	}

	skill := Skill{
		Name:        filepath.Base(dir),
		Description: "No description available",
		Version:     "unknown",
		Author:      "unknown",
		Path:        dir,
	}
	meta, body, err := ParseFrontmatter(content)
	switch {
	case errors.Is(err, errInvalidYAML):
		log.Printf("[skills] warning: skip invalid YAML skill %s: %v", path, err)
		return Skill{}, true, nil
	case err != nil:
		// Plain markdown without a header still lists under its directory name.
		body = string(content)
	default:
		if v := strings.TrimSpace(meta.Name); v != "" {
			skill.Name = v
		}
		if v := strings.TrimSpace(meta.Description); v != "" {
			skill.Description = v
		}
		if v := strings.TrimSpace(meta.Version); v != "" {
			skill.Version = v
		}
		if v := strings.TrimSpace(meta.Author); v != "" {
			skill.Author = v
		}
		skill.Tags = []string(meta.Tags)
		skill.Dependencies = []string(meta.Dependencies)
		skill.Keywords = sanitizeKeywords(meta.Keywords)
	}
	skill.Body = strings.TrimSpace(body)

	size, err := dirSize(dir)
	if err != nil {
		return Skill{}, false, err
	}
	skill.Size = size
	return skill, false, nil
}

// List returns installed skills whose name or description contains
// filter, case-insensitively.
func List(skillDir, filter string) ([]Skill, error) {
	all, err := LoadSkills(skillDir)
	if err != nil {
		return nil, err
	}
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return all, nil
	}
	var out []Skill
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Name), filter) || strings.Contains(strings.ToLower(s.Description), filter) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Get returns the installed skill called name.
func Get(skillDir, name string) (Skill, error) {
	all, err := LoadSkills(skillDir)
	if err != nil {
		return Skill{}, err
	}
	for _, s := range all {
		if s.Name == name {
			return s, nil
		}
	}
	return Skill{}, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("size of %s: %w", dir, err)
	}
	return total, nil
}

// FormatSize renders a byte count as "12.3 KB".
func FormatSize(size int64) string {
	v := float64(size)
	for _, unit := range []string{"B", "KB", "MB"} {
		if v < 1024 {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.1f GB", v)
}

func sanitizeKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)

	return out
}
