package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"slip/interpreter-go/pkg/runtime"
)

// ManifestFileName is looked up next to a script or in the working
// directory.
const ManifestFileName = "slip.yml"

// Manifest represents the parsed contents of slip.yml: runtime limits plus
// the prelude libraries loaded into the global environment before user
// code.
type Manifest struct {
	Path      string
	Runtime   RuntimeSpec
	Libraries []*LibrarySpec
}

// RuntimeSpec carries the interpreter limits.
type RuntimeSpec struct {
	GCThreshold int
	MaxObjects  int
	MaxSteps    int
}

// Config converts the manifest's runtime section into a heap config.
func (s RuntimeSpec) Config() runtime.Config {
	return runtime.Config{
		GCThreshold: s.GCThreshold,
		MaxObjects:  s.MaxObjects,
		MaxSteps:    s.MaxSteps,
	}
}

// LibrarySpec describes one prelude source: either a local path or a git
// repository with an optional rev/tag/branch and a file path inside the
// checkout.
type LibrarySpec struct {
	Name   string
	Path   string
	Git    string
	Rev    string
	Tag    string
	Branch string
	File   string
}

// ValidationError aggregates manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

type manifestFile struct {
	Runtime struct {
		GCThreshold int `yaml:"gc_threshold"`
		MaxObjects  int `yaml:"max_objects"`
		MaxSteps    int `yaml:"max_steps"`
	} `yaml:"runtime"`
	Libraries map[string]*librarySpecFile `yaml:"libraries"`
}

type librarySpecFile struct {
	Path   string `yaml:"path"`
	Git    string `yaml:"git"`
	Rev    string `yaml:"rev"`
	Tag    string `yaml:"tag"`
	Branch string `yaml:"branch"`
	File   string `yaml:"file"`
}

// LoadManifest parses slip.yml from disk, returning a validated manifest.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw manifestFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest: %s is empty", absPath)
		}
		return nil, fmt.Errorf("manifest: parse %s: %w", absPath, err)
	}

	manifest := raw.toManifest(absPath)
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (f *manifestFile) toManifest(path string) *Manifest {
	m := &Manifest{
		Path: path,
		Runtime: RuntimeSpec{
			GCThreshold: f.Runtime.GCThreshold,
			MaxObjects:  f.Runtime.MaxObjects,
			MaxSteps:    f.Runtime.MaxSteps,
		},
	}
	for name, spec := range f.Libraries {
		m.Libraries = append(m.Libraries, &LibrarySpec{
			Name:   name,
			Path:   spec.Path,
			Git:    spec.Git,
			Rev:    spec.Rev,
			Tag:    spec.Tag,
			Branch: spec.Branch,
			File:   spec.File,
		})
	}
	sortLibraries(m.Libraries)
	return m
}

func sortLibraries(libs []*LibrarySpec) {
	sort.Slice(libs, func(i, j int) bool { return libs[i].Name < libs[j].Name })
}

func (m *Manifest) validate() error {
	var issues []string
	if m.Runtime.GCThreshold < 0 {
		issues = append(issues, "runtime.gc_threshold must not be negative")
	}
	if m.Runtime.MaxObjects < 0 {
		issues = append(issues, "runtime.max_objects must not be negative")
	}
	if m.Runtime.MaxSteps < 0 {
		issues = append(issues, "runtime.max_steps must not be negative")
	}
	if m.Runtime.MaxObjects > 0 && m.Runtime.GCThreshold > m.Runtime.MaxObjects {
		issues = append(issues, "runtime.gc_threshold must not exceed runtime.max_objects")
	}
	for _, lib := range m.Libraries {
		prefix := fmt.Sprintf("libraries.%s", lib.Name)
		switch {
		case lib.Path == "" && lib.Git == "":
			issues = append(issues, prefix+": requires either path or git")
		case lib.Path != "" && lib.Git != "":
			issues = append(issues, prefix+": path and git are mutually exclusive")
		}
		if lib.Git == "" {
			if lib.Rev != "" || lib.Tag != "" || lib.Branch != "" {
				issues = append(issues, prefix+": rev/tag/branch require git")
			}
			if lib.File != "" {
				issues = append(issues, prefix+": file requires git")
			}
		} else {
			pinned := 0
			for _, v := range []string{lib.Rev, lib.Tag, lib.Branch} {
				if v != "" {
					pinned++
				}
			}
			if pinned > 1 {
				issues = append(issues, prefix+": rev, tag, and branch are mutually exclusive")
			}
			if lib.File == "" {
				issues = append(issues, prefix+": git libraries require file")
			}
		}
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// Dir returns the directory holding the manifest, the base for relative
// library paths.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// FindManifest walks upward from dir looking for slip.yml.
func FindManifest(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("manifest: resolve %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(current, ManifestFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", os.ErrNotExist
		}
		current = parent
	}
}
