package fs

import (
	"fmt"
	"sync"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"tt-go/internal/tt"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	ignore []string

	mu       sync.Mutex
	matchers map[string]*IgnoreMatcher // by directory root
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
// ignore holds the configured patterns applied below every directory root.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{
		ignore:   ignore,
		matchers: make(map[string]*IgnoreMatcher),
	}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*tt.Path, error) {
	// Convert to absolute path
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	// Stat the path
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	}
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return tt.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *tt.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path *tt.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// FindFiles discovers regular files under the given directory path.
func (m *OSFilesystemManager) FindFiles(path *tt.Path, recursive bool) ([]*tt.Path, error) {
	if !path.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", path.String())
	}

	var paths []*tt.Path

	if recursive {
		err := filepath.WalkDir(path.String(), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", p, err)
			}
			paths = append(paths, tt.NewPath(p, false, info))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking directory: %w", err)
		}
	} else {
		entries, err := os.ReadDir(path.String())
		if err != nil {
			return nil, fmt.Errorf("reading directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
			}
			fullPath := filepath.Join(path.String(), entry.Name())
			paths = append(paths, tt.NewPath(fullPath, false, info))
		}
	}

	return paths, nil
}

// IsIgnored reports whether path, located below root, matches the configured
// patterns, root's .ttignore file or the default patterns. The .ttignore file
// is read once per root.
func (m *OSFilesystemManager) IsIgnored(path *tt.Path, root string) (bool, error) {
	matcher, err := m.matcherFor(root)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(root, path.String())
	if err != nil {
		return false, fmt.Errorf("calculating relative path: %w", err)
	}
	return matcher.Match(rel), nil
}

func (m *OSFilesystemManager) matcherFor(root string) (*IgnoreMatcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if matcher, ok := m.matchers[root]; ok {
		return matcher, nil
	}

	fromFile, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	patterns := append(append(append([]string{}, defaultIgnorePatterns...), m.ignore...), fromFile...)
	matcher := NewIgnoreMatcher(patterns)
	m.matchers[root] = matcher
	return matcher, nil
}

// Compile-time check that OSFilesystemManager implements tt.FilesystemManager interface
var _ tt.FilesystemManager = (*OSFilesystemManager)(nil)
