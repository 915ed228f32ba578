package skills

import (
	"strings"
)

// Heading is one "##"-or-deeper markdown heading of a skill's docs.
type Heading struct {
	Level int
	Title string
}

// Headings lists level-2 and deeper headings in body order.
func Headings(body string) []Heading {
	var out []Heading
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "##") {
			continue
		}
		level := len(line) - len(strings.TrimLeft(line, "#"))
		out = append(out, Heading{Level: level, Title: strings.TrimSpace(line[level:])})
	}
	return out
}

// Section returns the text from the first heading that starts with name
// (case-insensitive) up to the next "##" heading.
func Section(body, name string) (string, bool) {
	lines := strings.Split(body, "\n")
	want := strings.ToLower(strings.TrimSpace(name))
	start := -1
	for i, line := range lines {
		if !strings.HasPrefix(line, "##") {
			continue
		}
		if start >= 0 {
			return strings.TrimRight(strings.Join(lines[start:i], "\n"), "\n"), true
		}
		title := strings.ToLower(strings.TrimSpace(strings.TrimLeft(line, "#")))
		if strings.HasPrefix(title, want) {
			start = i
		}
	}
	if start < 0 {
		return "", false
	}
	return strings.TrimRight(strings.Join(lines[start:], "\n"), "\n"), true
}

// DocMatch is a line matching a docs search with two lines of context on
// either side.
type DocMatch struct {
	Line    int
	Context []string
}

// SearchDocs finds lines containing query, case-insensitively, at most
// limit of them.
func SearchDocs(body, query string, limit int) (matches []DocMatch, total int) {
	q := strings.ToLower(query)
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), q) {
			continue
		}
		total++
		if limit > 0 && len(matches) >= limit {
			continue
		}
		lo, hi := max(0, i-2), min(len(lines), i+3)
		matches = append(matches, DocMatch{Line: i + 1, Context: lines[lo:hi]})
	}
	return matches, total
}
