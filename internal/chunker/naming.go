package chunker

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// virtualPrefix marks units that only exist as a window over a tape.
const virtualPrefix = "tape://"

// ChunkName returns the deterministic name of chunk index (1-based) out of
// total for a file called name, e.g. ChunkName("movie.mp4", 2, 3) is
// "movie_2-3.mp4".
func ChunkName(name string, index, total int) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%d-%d%s", stem, index, total, ext)
}

// ParseChunkName recovers the original name, the 1-based index and the total
// from a name produced by ChunkName.
func ParseChunkName(chunkName string) (name string, index, total int, ok bool) {
	ext := filepath.Ext(chunkName)
	stem := strings.TrimSuffix(chunkName, ext)

	sep := strings.LastIndex(stem, "_")
	if sep < 0 {
		return "", 0, 0, false
	}
	left, right, found := strings.Cut(stem[sep+1:], "-")
	if !found {
		return "", 0, 0, false
	}
	index, err := strconv.Atoi(left)
	if err != nil {
		return "", 0, 0, false
	}
	total, err = strconv.Atoi(right)
	if err != nil {
		return "", 0, 0, false
	}
	if index < 1 || total < 1 || index > total {
		return "", 0, 0, false
	}
	return stem[:sep] + ext, index, total, true
}

// VirtualPath returns the placeholder temp path for volume index of a tape.
func VirtualPath(index int) string {
	return virtualPrefix + strconv.Itoa(index)
}

// IsVirtualPath reports whether path is a tape placeholder rather than a file.
func IsVirtualPath(path string) bool {
	return strings.HasPrefix(path, virtualPrefix)
}
