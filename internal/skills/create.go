package skills

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"
)

var ErrUnknownTemplate = errors.New("unknown template")

// Templates lists the scaffolds Create understands.
var Templates = []string{"basic", "python", "node"}

var (
	skillPrefix = regexp.MustCompile(`(?i)^skill[-_]`)
	invalidName = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	hyphenRuns  = regexp.MustCompile(`-+`)
)

// SanitizeName turns "Skill My Tool!" into "my-tool".
func SanitizeName(name string) string {
	name = skillPrefix.ReplaceAllString(name, "")
	name = invalidName.ReplaceAllString(name, "-")
	name = strings.ToLower(name)
	name = hyphenRuns.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}

type scaffold struct {
	path string
	mode os.FileMode
	body string
}

var scaffolds = map[string][]scaffold{
	"basic": {
		{"SKILL.md", 0644, basicSkillMD},
		{"scripts/main.py", 0755, pythonMain},
		{"manifest.json", 0644, manifestJSON},
	},
	"python": {
		{"SKILL.md", 0644, basicSkillMD},
		{"scripts/main.py", 0755, pythonMain},
		{"scripts/utils.py", 0755, pythonUtils},
		{"requirements.txt", 0644, requirementsTxt},
		{"manifest.json", 0644, manifestJSON},
	},
	"node": {
		{"SKILL.md", 0644, nodeSkillMD},
		{"scripts/package.json", 0644, packageJSON},
		{"scripts/main.js", 0755, nodeMain},
		{"manifest.json", 0644, manifestJSON},
	},
}

type scaffoldData struct {
	Name        string
	Title       string
	Description string
	Date        string
	Entry       string
	Tags        string
}

// Create scaffolds a new skill under skillDir from one of Templates and
// returns its directory. The name is sanitized first; an existing
// directory is an error.
func Create(skillDir, name, description, tmpl string, now time.Time) (string, error) {
	files, ok := scaffolds[tmpl]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, tmpl)
	}
	clean := SanitizeName(name)
	if clean == "" {
		return "", fmt.Errorf("invalid skill name %q", name)
	}
	if description == "" {
		description = "A new skill"
	}
	dir := filepath.Join(skillDir, clean)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("%w: %s", ErrSkillExists, clean)
	}

	data := scaffoldData{
		Name:        clean,
		Title:       titleCase(strings.ReplaceAll(clean, "-", " ")),
		Description: description,
		Date:        now.Format("2006-01-02"),
		Entry:       "scripts/main.py",
		Tags:        "[]",
	}
	if tmpl == "node" {
		data.Entry = "scripts/main.js"
		data.Tags = `["nodejs"]`
	}

	for _, f := range files {
		t, err := template.New(f.path).Parse(f.body)
		if err != nil {
			return "", fmt.Errorf("template %s: %w", f.path, err)
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("render %s: %w", f.path, err)
		}
		dest := filepath.Join(dir, filepath.FromSlash(f.path))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return "", fmt.Errorf("create skill dir: %w", err)
		}
		if err := os.WriteFile(dest, buf.Bytes(), f.mode); err != nil {
			return "", fmt.Errorf("write %s: %w", f.path, err)
		}
		// WriteFile honours the umask; scripts must end up executable.
		if err := os.Chmod(dest, f.mode); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

const basicSkillMD = `---
name: {{.Name}}
description: {{.Description}}
version: 1.0.0
author: Your Name
tags: []
dependencies: []
---

# {{.Title}}

{{.Description}}

## Quick Start

Describe how to use this skill quickly.

## Features

- Feature 1
- Feature 2
- Feature 3

## Usage

### Example Command

` + "```bash" + `
# Add example usage here
` + "```" + `

## Configuration

Describe any configuration options.

## Resources

List any resources or references.

## Changelog

### v1.0.0 ({{.Date}})
- Initial release
`

const nodeSkillMD = `---
name: {{.Name}}
description: {{.Description}}
version: 1.0.0
author: Your Name
tags: [nodejs]
dependencies: []
---

# {{.Title}}

{{.Description}}

## Quick Start

` + "```bash" + `
cd scripts
npm install
node main.js
` + "```" + `

## Usage

` + "```bash" + `
node scripts/main.js --example value
` + "```" + `

## Configuration

Describe any configuration options.
`

const pythonMain = `#!/usr/bin/env python3
"""{{.Name}} - {{.Description}}"""

import argparse


def main():
    parser = argparse.ArgumentParser(description="{{.Description}}")
    parser.add_argument("--example", help="Example argument")
    args = parser.parse_args()

    print("Hello from {{.Name}}!")
    if args.example:
        print(f"Example: {args.example}")


if __name__ == "__main__":
    main()
`

const pythonUtils = `#!/usr/bin/env python3
"""Utility functions for {{.Name}}."""

import json


def load_data(filename):
    try:
        with open(filename) as f:
            return json.load(f)
    except FileNotFoundError:
        return {}


def save_data(data, filename):
    with open(filename, "w") as f:
        json.dump(data, f, indent=2)
`

const requirementsTxt = `# Python dependencies for {{.Name}}
# requests>=2.28.0
`

const packageJSON = `{
  "name": "{{.Name}}",
  "version": "1.0.0",
  "description": "{{.Description}}",
  "main": "main.js",
  "scripts": {
    "start": "node main.js"
  },
  "author": "Your Name",
  "license": "MIT",
  "dependencies": {}
}
`

const nodeMain = `#!/usr/bin/env node
// {{.Name}} - {{.Description}}

const args = process.argv.slice(2);

function main() {
  console.log('Hello from {{.Name}}!');
  const i = args.indexOf('--example');
  if (i !== -1 && args[i + 1]) {
    console.log(` + "`Example: ${args[i + 1]}`" + `);
  }
}

main();
`

const manifestJSON = `{
  "name": "{{.Name}}",
  "version": "1.0.0",
  "description": "{{.Description}}",
  "author": "Your Name",
  "license": "MIT",
  "entryPoint": "{{.Entry}}",
  "dependencies": [],
  "tags": {{.Tags}}
}
`
