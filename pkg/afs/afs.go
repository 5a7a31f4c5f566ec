// Package afs implements the Filesystem contract (spec §6) against
// spf13/afero, so the on-disk layout of the function-metadata tree is
// swappable onto an in-memory filesystem in tests without touching the
// rest of the module.
package afs

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Filesystem is the contract the function-metadata manager and command
// driver depend on.
type Filesystem interface {
	Exists(path string) (bool, error)
	DirectoryExists(path string) (bool, error)
	EnsureDirectory(path string) error
	DeleteDirectorySafe(path string) error
	DeleteDirectoryContentsSafe(path string) error
	DeleteFileSafe(path string) error
	GetDirectories(path string) ([]string, error)
	GetFiles(path, pattern string, topOnly bool) ([]string, error)
	ReadAllText(path string) (string, error)
	WriteAllText(path, content string) error
}

// AferoFS adapts an afero.Fs to the Filesystem contract.
type AferoFS struct {
	fs afero.Fs
}

// New wraps fs as a Filesystem.
func New(fs afero.Fs) *AferoFS {
	return &AferoFS{fs: fs}
}

// NewOS returns a Filesystem backed by the real operating-system filesystem.
func NewOS() *AferoFS {
	return New(afero.NewOsFs())
}

// NewMemory returns a Filesystem backed by an in-memory filesystem, for
// tests.
func NewMemory() *AferoFS {
	return New(afero.NewMemMapFs())
}

func (a *AferoFS) Exists(path string) (bool, error) {
	return afero.Exists(a.fs, path)
}

func (a *AferoFS) DirectoryExists(path string) (bool, error) {
	return afero.DirExists(a.fs, path)
}

func (a *AferoFS) EnsureDirectory(path string) error {
	return a.fs.MkdirAll(path, 0o755)
}

// DeleteDirectorySafe removes path and everything under it. A missing path
// is not an error.
func (a *AferoFS) DeleteDirectorySafe(path string) error {
	if err := a.fs.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteDirectoryContentsSafe removes everything inside path but leaves the
// directory itself in place.
func (a *AferoFS) DeleteDirectoryContentsSafe(path string) error {
	entries, err := afero.ReadDir(a.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := a.fs.RemoveAll(filepath.Join(path, e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// DeleteFileSafe removes a single file. A missing file is not an error.
func (a *AferoFS) DeleteFileSafe(path string) error {
	if err := a.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetDirectories returns the immediate subdirectories of path, in the
// order the opened directory's Readdir returns them — directory-iteration
// order, not re-sorted (afero.ReadDir would sort by name), per the
// manager's ordering guarantee.
func (a *AferoFS) GetDirectories(path string) ([]string, error) {
	dir, err := a.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer dir.Close()
	entries, err := dir.Readdir(-1)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(path, e.Name()))
		}
	}
	return out, nil
}

// GetFiles returns files directly under path (or, when topOnly is false,
// recursively beneath it) whose base name matches pattern (a
// filepath.Match-style glob; "" or "*" matches everything).
func (a *AferoFS) GetFiles(path, pattern string, topOnly bool) ([]string, error) {
	var out []string
	if topOnly {
		entries, err := afero.ReadDir(a.fs, path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if ok, _ := matchPattern(pattern, e.Name()); ok {
				out = append(out, filepath.Join(path, e.Name()))
			}
		}
		return out, nil
	}

	err := afero.Walk(a.fs, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ok, _ := matchPattern(pattern, filepath.Base(p)); ok {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func matchPattern(pattern, name string) (bool, error) {
	if pattern == "" || pattern == "*" {
		return true, nil
	}
	return filepath.Match(pattern, name)
}

func (a *AferoFS) ReadAllText(path string) (string, error) {
	b, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *AferoFS) WriteAllText(path, content string) error {
	if err := a.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(a.fs, path, []byte(content), 0o644)
}
