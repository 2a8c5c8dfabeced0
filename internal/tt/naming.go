package tt

import (
	"path/filepath"
	"unicode/utf8"

	"tt-go/internal/chunker"
	"tt-go/internal/database/sqlc"
)

// baseName is the display name of a source: its file name, or the directory
// name with a .tar extension for tapes.
func baseName(source *sqlc.SourceContent) string {
	name := filepath.Base(source.Path)
	if source.Kind == KindDirectory {
		name += ".tar"
	}
	return name
}

// unitName returns the name a unit is sent under.
func unitName(source *sqlc.SourceContent, plan UnitPlan, sequence, total int) string {
	name := baseName(source)
	if plan.Strategy() == StrategyChunked {
		name = chunker.ChunkName(name, sequence+1, total)
	}
	return name
}

// displayName shortens names over limit characters to the unit hash plus the
// original extension. The true name is returned as the caption in that case.
func displayName(name, checksum string, limit int) (display, caption string) {
	if limit <= 0 || utf8.RuneCountInString(name) <= limit {
		return name, ""
	}
	return checksum + filepath.Ext(name), name
}
