package driver

import (
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Fetcher resolves manifest libraries to source files on disk, cloning git
// libraries into a cache directory.
type Fetcher struct {
	CacheDir string
}

// NewFetcher uses cacheDir for git checkouts, creating it on demand.
func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{CacheDir: cacheDir}
}

// Resolve returns the source file path for one library, fetching it first
// when it lives in a git repository. Local paths are resolved relative to
// the manifest directory.
func (f *Fetcher) Resolve(m *Manifest, lib *LibrarySpec) (string, error) {
	if lib.Path != "" {
		path := lib.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.Dir(), path)
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("library %s: %w", lib.Name, err)
		}
		return path, nil
	}

	checkout, err := f.fetch(lib)
	if err != nil {
		return "", err
	}
	path := filepath.Join(checkout, filepath.FromSlash(lib.File))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("library %s: %s missing from checkout: %w", lib.Name, lib.File, err)
	}
	return path, nil
}

// ResolveAll resolves every library in manifest order.
func (f *Fetcher) ResolveAll(m *Manifest) ([]string, error) {
	paths := make([]string, 0, len(m.Libraries))
	for _, lib := range m.Libraries {
		path, err := f.Resolve(m, lib)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// fetch clones the library repository into the cache, reusing an existing
// checkout, and moves it to the pinned rev/tag/branch when one is given.
func (f *Fetcher) fetch(lib *LibrarySpec) (string, error) {
	if err := os.MkdirAll(f.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("library %s: create cache: %w", lib.Name, err)
	}
	dir := filepath.Join(f.CacheDir, lib.Name)

	repo, err := git.PlainOpen(dir)
	if err == git.ErrRepositoryNotExists {
		repo, err = git.PlainClone(dir, false, &git.CloneOptions{URL: lib.Git})
	}
	if err != nil {
		return "", fmt.Errorf("library %s: clone %s: %w", lib.Name, lib.Git, err)
	}

	ref := checkoutOptions(lib)
	if ref == nil {
		return dir, nil
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("library %s: worktree: %w", lib.Name, err)
	}
	if err := worktree.Checkout(ref); err != nil {
		return "", fmt.Errorf("library %s: checkout: %w", lib.Name, err)
	}
	return dir, nil
}

func checkoutOptions(lib *LibrarySpec) *git.CheckoutOptions {
	switch {
	case lib.Rev != "":
		return &git.CheckoutOptions{Hash: plumbing.NewHash(lib.Rev)}
	case lib.Tag != "":
		return &git.CheckoutOptions{Branch: plumbing.NewTagReferenceName(lib.Tag)}
	case lib.Branch != "":
		return &git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(lib.Branch)}
	default:
		return nil
	}
}
