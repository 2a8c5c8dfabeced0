package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("creating dir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", rel, err)
		}
	}
}

func TestOSFilesystemManager_Resolve(t *testing.T) {
	t.Run("file and directory", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{"a.txt": "hello"})
		m := NewOSFilesystemManager(nil)

		file, err := m.Resolve(filepath.Join(root, "a.txt"))
		if err != nil {
			t.Fatalf("Resolve(file) error = %v", err)
		}
		if file.IsDir() {
			t.Error("file resolved as directory")
		}
		if file.Info().Size() != 5 {
			t.Errorf("Size = %d, want 5", file.Info().Size())
		}

		dir, err := m.Resolve(root)
		if err != nil {
			t.Fatalf("Resolve(dir) error = %v", err)
		}
		if !dir.IsDir() {
			t.Error("directory not resolved as directory")
		}
	})

	t.Run("missing path wraps ErrNotExist", func(t *testing.T) {
		t.Parallel()
		m := NewOSFilesystemManager(nil)
		_, err := m.Resolve(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, iofs.ErrNotExist) {
			t.Errorf("Resolve() error = %v, want ErrNotExist", err)
		}
	})
}

func TestOSFilesystemManager_FindFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":         "a",
		"sub/b.txt":     "b",
		"sub/deep/c.go": "c",
	})
	m := NewOSFilesystemManager(nil)
	dir, err := m.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	names := func(recursive bool) []string {
		paths, err := m.FindFiles(dir, recursive)
		if err != nil {
			t.Fatalf("FindFiles() error = %v", err)
		}
		var out []string
		for _, p := range paths {
			rel, _ := filepath.Rel(root, p.String())
			out = append(out, filepath.ToSlash(rel))
		}
		sort.Strings(out)
		return out
	}

	if got := names(false); len(got) != 1 || got[0] != "a.txt" {
		t.Errorf("non-recursive = %v, want [a.txt]", got)
	}
	got := names(true)
	want := []string{"a.txt", "sub/b.txt", "sub/deep/c.go"}
	if len(got) != len(want) {
		t.Fatalf("recursive = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("recursive[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOSFilesystemManager_IsIgnored(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		IgnoreFileName:   "*.tmp\nbuild/*\n",
		"keep.txt":       "k",
		"scratch.tmp":    "s",
		"app.log":        "l",
		"build/out.o":    "o",
		"src/build/x.go": "x",
	})
	m := NewOSFilesystemManager([]string{"*.log"})

	tests := []struct {
		rel  string
		want bool
	}{
		{"keep.txt", false},
		{"scratch.tmp", true},     // from .ttignore
		{"app.log", true},         // from config
		{IgnoreFileName, true},    // always
		{"build/out.o", true},     // path pattern
		{"src/build/x.go", false}, // path pattern anchors at the root
	}
	for _, tc := range tests {
		p, err := m.Resolve(filepath.Join(root, tc.rel))
		if err != nil {
			t.Fatalf("Resolve(%s) error = %v", tc.rel, err)
		}
		got, err := m.IsIgnored(p, root)
		if err != nil {
			t.Fatalf("IsIgnored(%s) error = %v", tc.rel, err)
		}
		if got != tc.want {
			t.Errorf("IsIgnored(%s) = %v, want %v", tc.rel, got, tc.want)
		}
	}
}
