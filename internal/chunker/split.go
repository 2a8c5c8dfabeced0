package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// readBufferSize bounds the memory used while copying, independent of the
// chunk size.
const readBufferSize = 1024 * 1024

// ErrNoSplitNeeded is returned when the requested chunk size is not smaller
// than the file being split.
var ErrNoSplitNeeded = errors.New("chunk size is not smaller than file size")

// Chunk is one physical piece of a split file.
type Chunk struct {
	Index    int // 0-based sequence index
	Path     string
	Range    Range
	Checksum string // SHA-256 of the chunk bytes
}

// Split is the result of splitting a file.
type Split struct {
	Chunks   []Chunk
	Checksum string // SHA-256 of the whole source, computed in the same pass
}

// HashReader returns the hex SHA-256 of everything read from r and the byte count.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.CopyBuffer(h, r, make([]byte, readBufferSize))
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// HashFile returns the hex SHA-256 and size of the file at path.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return HashReader(f)
}

// SplitFile splits the file at src into chunkSize pieces written to outDir.
// Chunks are named with ChunkName so their order can be recovered from the
// name alone. On error, chunks already written are removed.
func SplitFile(src, outDir string, chunkSize int64) (*Split, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if chunkSize <= 0 || chunkSize >= info.Size() {
		return nil, fmt.Errorf("splitting %s (%d bytes) into %d byte chunks: %w", src, info.Size(), chunkSize, ErrNoSplitNeeded)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating chunk directory: %w", err)
	}

	ranges := SplitRanges(info.Size(), chunkSize)
	base := filepath.Base(src)
	whole := sha256.New()
	buf := make([]byte, readBufferSize)

	split := &Split{Chunks: make([]Chunk, 0, len(ranges))}
	for i, r := range ranges {
		path := filepath.Join(outDir, ChunkName(base, i+1, len(ranges)))
		checksum, err := writeRange(f, path, r, buf, whole)
		if err != nil {
			for _, c := range split.Chunks {
				os.Remove(c.Path)
			}
			return nil, fmt.Errorf("writing chunk %d/%d: %w", i+1, len(ranges), err)
		}
		split.Chunks = append(split.Chunks, Chunk{
			Index:    i,
			Path:     path,
			Range:    r,
			Checksum: checksum,
		})
	}

	split.Checksum = hex.EncodeToString(whole.Sum(nil))
	return split, nil
}

// ExtractRange copies r from src into a new file at dst and returns the
// SHA-256 of the copied bytes. It is used to regenerate a single chunk.
func ExtractRange(src, dst string, r Range) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("creating chunk directory: %w", err)
	}

	return writeRange(f, dst, r, make([]byte, readBufferSize), nil)
}

// writeRange streams r from f into a new file at path, feeding extra (if set)
// with the same bytes.
func writeRange(f *os.File, path string, r Range, buf []byte, extra io.Writer) (string, error) {
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating chunk file: %w", err)
	}

	h := sha256.New()
	writers := []io.Writer{out, h}
	if extra != nil {
		writers = append(writers, extra)
	}

	n, err := io.CopyBuffer(io.MultiWriter(writers...), io.NewSectionReader(f, r.Start, r.Size()), buf)
	if err == nil && n != r.Size() {
		err = fmt.Errorf("short read: got %d bytes, want %d", n, r.Size())
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
