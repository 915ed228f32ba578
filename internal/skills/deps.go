package skills

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Dependency is one "name [op version]" entry, e.g. "lead-tracker >= 1.2.0".
type Dependency struct {
	Name    string
	Op      string
	Version string
}

func (d Dependency) String() string {
	if d.Op == "" {
		return d.Name
	}
	return d.Name + " " + d.Op + " " + d.Version
}

// ParseDependency accepts "name", "name >= 1.0", "name>=1.0" and
// "name 1.0" (treated as >=). Any other operator, such as "<", is rejected.
func ParseDependency(spec string) (Dependency, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Dependency{}, fmt.Errorf("empty dependency")
	}
	cut := strings.IndexAny(spec, " \t<>=")
	if cut < 0 {
		return Dependency{Name: spec}, nil
	}
	d := Dependency{Name: spec[:cut]}
	rest := strings.TrimSpace(spec[cut:])
	if rest == "" {
		return d, nil
	}
	for _, op := range []string{">=", ">", "="} {
		if strings.HasPrefix(rest, op) {
			d.Op = op
			rest = strings.TrimSpace(rest[len(op):])
			break
		}
	}
	if d.Op == "" {
		d.Op = ">="
	}
	if rest == "" || strings.ContainsAny(rest, " \t<>=") {
		return Dependency{}, fmt.Errorf("invalid dependency %q", spec)
	}
	d.Version = rest
	return d, nil
}

// CompareVersions orders two version strings semantically when both parse
// as semver (with or without a leading "v") and lexically otherwise.
func CompareVersions(a, b string) int {
	va, vb := canonical(a), canonical(b)
	if semver.IsValid(va) && semver.IsValid(vb) {
		return semver.Compare(va, vb)
	}
	return strings.Compare(a, b)
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// Satisfied reports whether installed meets d's constraint.
func (d Dependency) Satisfied(installed string) bool {
	if d.Op == "" {
		return true
	}
	c := CompareVersions(installed, d.Version)
	switch d.Op {
	case ">=":
		return c >= 0
	case ">":
		return c > 0
	default:
		return c == 0
	}
}

const (
	DepOK       = "ok"
	DepMissing  = "missing"
	DepMismatch = "mismatch"
	DepInvalid  = "invalid"
)

// DepStatus is the state of one dependency of a skill.
type DepStatus struct {
	Spec      string
	Dep       Dependency
	Installed string
	State     string
}

// Graph is the dependency view over a set of installed skills.
type Graph struct {
	skills map[string]Skill
}

func NewGraph(skills []Skill) *Graph {
	g := &Graph{skills: make(map[string]Skill, len(skills))}
	for _, s := range skills {
		g.skills[s.Name] = s
	}
	return g
}

// LoadGraph builds a Graph from the skills installed in skillDir.
func LoadGraph(skillDir string) (*Graph, error) {
	skills, err := LoadSkills(skillDir)
	if err != nil {
		return nil, err
	}
	return NewGraph(skills), nil
}

func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.skills))
	for n := range g.skills {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (g *Graph) deps(s Skill) []Dependency {
	var out []Dependency
	for _, spec := range s.Dependencies {
		if d, err := ParseDependency(spec); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// Check resolves every dependency of the named skill.
func (g *Graph) Check(name string) ([]DepStatus, error) {
	s, ok := g.skills[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	out := make([]DepStatus, 0, len(s.Dependencies))
	for _, spec := range s.Dependencies {
		st := DepStatus{Spec: spec}
		d, err := ParseDependency(spec)
		if err != nil {
			st.State = DepInvalid
			out = append(out, st)
			continue
		}
		st.Dep = d
		dep, ok := g.skills[d.Name]
		switch {
		case !ok:
			st.State = DepMissing
		case !d.Satisfied(dep.Version):
			st.State = DepMismatch
			st.Installed = dep.Version
		default:
			st.State = DepOK
			st.Installed = dep.Version
		}
		out = append(out, st)
	}
	return out, nil
}

// Satisfied reports whether every status is ok.
func Satisfied(statuses []DepStatus) bool {
	for _, s := range statuses {
		if s.State != DepOK {
			return false
		}
	}
	return true
}

// CheckAll runs Check for every installed skill.
func (g *Graph) CheckAll() map[string][]DepStatus {
	out := make(map[string][]DepStatus, len(g.skills))
	for _, name := range g.Names() {
		out[name], _ = g.Check(name)
	}
	return out
}

// Node is one entry in a dependency tree.
type Node struct {
	Name     string
	Version  string
	Missing  bool
	Circular bool
	Children []*Node
}

// Tree expands the dependencies of name depth first. A skill already on
// the current path is marked Circular and not expanded again.
func (g *Graph) Tree(name string) *Node {
	return g.tree(name, map[string]bool{})
}

func (g *Graph) tree(name string, path map[string]bool) *Node {
	if path[name] {
		return &Node{Name: name, Circular: true}
	}
	s, ok := g.skills[name]
	if !ok {
		return &Node{Name: name, Missing: true}
	}
	n := &Node{Name: name, Version: s.Version}
	path[name] = true
	for _, d := range g.deps(s) {
		n.Children = append(n.Children, g.tree(d.Name, path))
	}
	delete(path, name)
	return n
}

// Render draws the tree with two-space indentation per level.
func (n *Node) Render() string {
	var b strings.Builder
	n.render(&b, 0)
	return b.String()
}

func (n *Node) render(b *strings.Builder, level int) {
	indent := strings.Repeat("  ", level)
	switch {
	case n.Circular:
		fmt.Fprintf(b, "%s↻ %s (circular)\n", indent, n.Name)
		return
	case n.Missing:
		fmt.Fprintf(b, "%s✗ %s (not installed)\n", indent, n.Name)
		return
	case level == 0:
		fmt.Fprintf(b, "%s (%s)\n", n.Name, n.Version)
	default:
		fmt.Fprintf(b, "%s└── %s (%s)\n", indent, n.Name, n.Version)
	}
	for _, c := range n.Children {
		c.render(b, level+1)
	}
}

// Dependents lists skills that depend on name, sorted.
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, s := range g.skills {
		for _, d := range g.deps(s) {
			if d.Name == name {
				out = append(out, s.Name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
