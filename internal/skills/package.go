package skills

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/stellarlinkco/opsclaw/internal/store"
)

// PackageExt is the extension of packaged skills.
const PackageExt = ".skill"

var ErrSkillExists = errors.New("skill already installed")

// Manifest is the manifest.json written into every package.
type Manifest struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Description  string    `json:"description"`
	Author       string    `json:"author"`
	License      string    `json:"license"`
	Created      time.Time `json:"created"`
	Dependencies []string  `json:"dependencies"`
	Tags         []string  `json:"tags"`
	Files        []string  `json:"files"`
}

// BuildManifest describes the skill in dir from its front matter and the
// non-hidden files under it.
func BuildManifest(dir string, now time.Time) (Manifest, error) {
	m := Manifest{
		Name:         filepath.Base(dir),
		Version:      "1.0.0",
		Author:       "unknown",
		License:      "MIT",
		Created:      now,
		Dependencies: []string{},
		Tags:         []string{},
	}
	if content, err := os.ReadFile(filepath.Join(dir, skillFileName)); err == nil {
		if meta, _, err := ParseFrontmatter(content); err == nil {
			if v := strings.TrimSpace(meta.Name); v != "" {
				m.Name = v
			}
			if v := strings.TrimSpace(meta.Version); v != "" {
				m.Version = v
			}
			if v := strings.TrimSpace(meta.Author); v != "" {
				m.Author = v
			}
			m.Description = strings.TrimSpace(meta.Description)
			if len(meta.Dependencies) > 0 {
				m.Dependencies = meta.Dependencies
			}
			if len(meta.Tags) > 0 {
				m.Tags = meta.Tags
			}
		}
	}

	files, err := packageFiles(dir)
	if err != nil {
		return Manifest{}, err
	}
	m.Files = files
	return m, nil
}

// packageFiles lists regular files under dir relative to it, slash
// separated, skipping anything hidden and a stale manifest.json.
func packageFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel != manifestFileName {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list skill files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Package writes dir as a gzip tar to out, every entry under "<name>/",
// with a freshly generated manifest.json. An empty out means
// "./<name>.skill".
func Package(dir, out string, now time.Time) (string, Manifest, error) {
	m, err := BuildManifest(dir, now)
	if err != nil {
		return "", Manifest{}, err
	}
	name := m.Name
	if out == "" {
		out = name + PackageExt
	}

	f, err := os.Create(out)
	if err != nil {
		return "", Manifest{}, fmt.Errorf("create package: %w", err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, rel := range m.Files {
		if err := addFile(tw, filepath.Join(dir, filepath.FromSlash(rel)), path.Join(name, rel)); err != nil {
			return "", Manifest{}, err
		}
	}
	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", Manifest{}, fmt.Errorf("encode manifest: %w", err)
	}
	hdr := &tar.Header{Name: path.Join(name, manifestFileName), Mode: 0644, Size: int64(len(manifest)), ModTime: now}
	if err := tw.WriteHeader(hdr); err != nil {
		return "", Manifest{}, fmt.Errorf("write manifest: %w", err)
	}
	if _, err := tw.Write(manifest); err != nil {
		return "", Manifest{}, fmt.Errorf("write manifest: %w", err)
	}

	if err := tw.Close(); err != nil {
		return "", Manifest{}, fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", Manifest{}, fmt.Errorf("close gzip: %w", err)
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		abs = out
	}
	return abs, m, f.Close()
}

func addFile(tw *tar.Writer, src, name string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadManifest returns the manifest.json inside a package.
func ReadManifest(pkg string) (Manifest, error) {
	var m Manifest
	found := false
	err := walkPackage(pkg, func(hdr *tar.Header, r io.Reader) error {
		if found || path.Base(hdr.Name) != manifestFileName {
			return nil
		}
		found = true
		if err := json.NewDecoder(r).Decode(&m); err != nil {
			return fmt.Errorf("decode manifest: %w", err)
		}
		return nil
	})
	if err != nil {
		return Manifest{}, err
	}
	if !found {
		return Manifest{}, fmt.Errorf("invalid %s file: no manifest.json found", PackageExt)
	}
	if strings.TrimSpace(m.Name) == "" {
		return Manifest{}, fmt.Errorf("invalid %s file: manifest has no name", PackageExt)
	}
	if strings.ContainsAny(m.Name, `/\`) || m.Name == "." || m.Name == ".." {
		return Manifest{}, fmt.Errorf("invalid %s file: bad skill name %q", PackageExt, m.Name)
	}
	return m, nil
}

func walkPackage(pkg string, fn func(*tar.Header, io.Reader) error) error {
	f, err := os.Open(pkg)
	if err != nil {
		return fmt.Errorf("open package: %w", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read package: %w", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read package: %w", err)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// Install extracts the package into skillDir/<manifest name>. An existing
// installation is an error unless force, which replaces it.
func Install(pkg, skillDir string, force bool) (Manifest, error) {
	m, err := ReadManifest(pkg)
	if err != nil {
		return Manifest{}, err
	}
	target := filepath.Join(skillDir, m.Name)
	if _, err := os.Stat(target); err == nil {
		if !force {
			return Manifest{}, fmt.Errorf("%w: %s", ErrSkillExists, m.Name)
		}
		if err := os.RemoveAll(target); err != nil {
			return Manifest{}, fmt.Errorf("remove existing %s: %w", m.Name, err)
		}
	}

	err = walkPackage(pkg, func(hdr *tar.Header, r io.Reader) error {
		rel, ok := strings.CutPrefix(path.Clean(hdr.Name), m.Name+"/")
		if !ok || rel == "" || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
			return nil
		}
		dest := filepath.Join(target, filepath.FromSlash(rel))
		switch hdr.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(dest, 0755)
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, r); err != nil {
				out.Close()
				return err
			}
			return out.Close()
		}
		return nil
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("install %s: %w", m.Name, err)
	}
	return m, nil
}

// Uninstall removes skillDir/name.
func Uninstall(skillDir, name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid skill name %q", name)
	}
	target := filepath.Join(skillDir, name)
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("uninstall %s: %w", name, err)
	}
	return nil
}

// RegistryEntry is one skill known to the local registry.
type RegistryEntry struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
	Path        string   `json:"path"`
	Installed   bool     `json:"installed"`
}

type registryDoc struct {
	Version     string          `json:"version"`
	LastUpdated time.Time       `json:"lastUpdated,omitzero"`
	Skills      []RegistryEntry `json:"skills"`
}

// Registry is registry.json, the index of packaged and installed skills.
type Registry struct {
	file *store.JSONFile[registryDoc]
	now  func() time.Time
}

func NewRegistry(path string) *Registry {
	return &Registry{
		file: store.NewJSONFile(path, func() registryDoc { return registryDoc{Version: "1.0", Skills: []RegistryEntry{}} }),
		now:  time.Now,
	}
}

func (r *Registry) Entries() ([]RegistryEntry, error) {
	doc, err := r.file.Load()
	if err != nil {
		return nil, err
	}
	return doc.Skills, nil
}

// Put adds e, replacing any entry with the same name.
func (r *Registry) Put(e RegistryEntry) error {
	return r.file.Update(func(doc *registryDoc) error {
		kept := doc.Skills[:0]
		for _, s := range doc.Skills {
			if s.Name != e.Name {
				kept = append(kept, s)
			}
		}
		doc.Skills = append(kept, e)
		doc.LastUpdated = r.now()
		return nil
	})
}

// Remove drops name and reports whether it was present.
func (r *Registry) Remove(name string) (bool, error) {
	removed := false
	err := r.file.Update(func(doc *registryDoc) error {
		kept := doc.Skills[:0]
		for _, s := range doc.Skills {
			if s.Name == name {
				removed = true
				continue
			}
			kept = append(kept, s)
		}
		doc.Skills = kept
		doc.LastUpdated = r.now()
		return nil
	})
	return removed, err
}

// Rebuild replaces the registry with the skills installed in skillDir.
func (r *Registry) Rebuild(skillDir string) (int, error) {
	skills, err := LoadSkills(skillDir)
	if err != nil {
		return 0, err
	}
	err = r.file.Update(func(doc *registryDoc) error {
		doc.Skills = doc.Skills[:0]
		for _, s := range skills {
			doc.Skills = append(doc.Skills, RegistryEntry{
				Name:        s.Name,
				Version:     s.Version,
				Description: s.Description,
				Author:      s.Author,
				Tags:        s.Tags,
				Path:        s.Path,
				Installed:   true,
			})
		}
		doc.LastUpdated = r.now()
		return nil
	})
	return len(skills), err
}

const (
	SourceAll    = "all"
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Search filters registry entries by a case-insensitive query over name
// and description, an exact tag, and source (installed or not).
func (r *Registry) Search(query, tag, source string) ([]RegistryEntry, error) {
	entries, err := r.Entries()
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var out []RegistryEntry
	for _, e := range entries {
		if source == SourceLocal && !e.Installed || source == SourceRemote && e.Installed {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(e.Name), query) && !strings.Contains(strings.ToLower(e.Description), query) {
			continue
		}
		if tag != "" && !slices.Contains(e.Tags, tag) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// EntryFor builds the registry entry for a freshly written package.
func EntryFor(m Manifest, pkgPath string) RegistryEntry {
	return RegistryEntry{
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		Author:      m.Author,
		Tags:        m.Tags,
		Path:        pkgPath,
	}
}
