package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-directory ignore file read from a directory root.
// It is itself never archived.
const IgnoreFileName = ".ttignore"

// defaultIgnorePatterns are always applied regardless of config or .ttignore.
var defaultIgnorePatterns = []string{IgnoreFileName}

// ignorePattern is one parsed line of an ignore list.
type ignorePattern struct {
	pattern   string
	matchPath bool // match against the relative path rather than the basename
	dirOnly   bool // trailing '/': match any directory on the way to the file
	negate    bool // leading '!': re-include what earlier patterns excluded
}

func (p ignorePattern) matches(normalized string) bool {
	if p.dirOnly {
		dirs := strings.Split(normalized, "/")
		dirs = dirs[:len(dirs)-1]
		if p.matchPath {
			for i := range dirs {
				if ok, _ := filepath.Match(p.pattern, strings.Join(dirs[:i+1], "/")); ok {
					return true
				}
			}
			return false
		}
		for _, d := range dirs {
			if ok, _ := filepath.Match(p.pattern, d); ok {
				return true
			}
		}
		return false
	}

	target := normalized
	if !p.matchPath {
		target = normalized[strings.LastIndex(normalized, "/")+1:]
	}
	// A malformed pattern never matches.
	ok, _ := filepath.Match(p.pattern, target)
	return ok
}

// IgnoreMatcher decides which files of a directory stay out of its archive.
// Patterns without '/' match the file's basename, patterns with '/' match
// the path relative to the directory root. A trailing '/' matches
// directories, and a leading '!' re-includes files. The last matching
// pattern wins.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		var p ignorePattern
		if strings.HasPrefix(raw, "!") {
			p.negate = true
			raw = raw[1:]
		}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimSuffix(raw, "/")
		}
		if raw == "" {
			continue
		}
		p.pattern = raw
		p.matchPath = strings.Contains(raw, "/")
		patterns = append(patterns, p)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the file at relativePath, relative to the directory
// root, should be left out.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	normalized := filepath.ToSlash(relativePath)
	ignored := false
	for _, p := range m.patterns {
		if p.negate == ignored && p.matches(normalized) {
			ignored = !p.negate
		}
	}
	return ignored
}

// ParseIgnoreFile reads a .ttignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
