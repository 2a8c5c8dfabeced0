package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"tt-go/internal/tt"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. It counts
// Open calls so tests can tell whether content was read.
type MockFilesystemManager struct {
	mu      sync.Mutex
	files   map[string]*MockFile
	ignored map[string]bool // basenames
	opens   int
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:   make(map[string]*MockFile),
		ignored: map[string]bool{".ttignore": true},
	}
}

// AddFile adds a file to the mock filesystem with a fixed modification time.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileWithModTime(path, content, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// AddFileWithModTime adds a file with the given modification time.
func (m *MockFilesystemManager) AddFileWithModTime(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     modTime,
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{
		Permissions: 0755,
		ModTime:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsDirectory: true,
	}
}

// Remove deletes a file from the mock filesystem.
func (m *MockFilesystemManager) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// Ignore makes IsIgnored report files with the given basename.
func (m *MockFilesystemManager) Ignore(basename string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored[basename] = true
}

// Opens returns the number of Open calls so far.
func (m *MockFilesystemManager) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

func (m *MockFilesystemManager) lookup(path string) (*MockFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s: %w", path, fs.ErrNotExist)
	}
	return file, nil
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*tt.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}
	file, err := m.lookup(absPath)
	if err != nil {
		return nil, err
	}
	return tt.NewPath(absPath, file.IsDirectory, infoOf(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *tt.Path) (io.ReadCloser, error) {
	file, err := m.lookup(path.String())
	if err != nil {
		return nil, err
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	m.mu.Lock()
	m.opens++
	m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path *tt.Path) (fs.FileInfo, error) {
	file, err := m.lookup(path.String())
	if err != nil {
		return nil, err
	}
	return infoOf(path.String(), file), nil
}

func (m *MockFilesystemManager) FindFiles(path *tt.Path, recursive bool) ([]*tt.Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := path.String() + "/"
	var out []*tt.Path
	for p, file := range m.files {
		if file.IsDirectory || !strings.HasPrefix(p, prefix) {
			continue
		}
		if !recursive && strings.Contains(p[len(prefix):], "/") {
			continue
		}
		out = append(out, tt.NewPath(p, false, infoOf(p, file)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (m *MockFilesystemManager) IsIgnored(path *tt.Path, root string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignored[filepath.Base(path.String())], nil
}

func infoOf(path string, file *MockFile) fs.FileInfo {
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(file.Content)),
		mode:    file.Permissions,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ tt.FilesystemManager = (*MockFilesystemManager)(nil)

// WriteFile writes data to rel below dir, creating parent directories, and
// returns the absolute path.
func WriteFile(t *testing.T, dir, rel string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("creating parent of %s: %v", rel, err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
	return p
}
