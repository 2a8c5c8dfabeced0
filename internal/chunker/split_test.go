package chunker

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*31 + i/7)
	}
	path := filepath.Join(t.TempDir(), "source.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing source: %v", err)
	}
	return path, data
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func TestSplitFile(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunkSize int64
		wantParts int
	}{
		{name: "exact division", size: 4096, chunkSize: 1024, wantParts: 4},
		{name: "remainder", size: 4100, chunkSize: 1024, wantParts: 5},
		{name: "larger than read buffer", size: 3*readBufferSize + 17, chunkSize: 2*readBufferSize + 1, wantParts: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, data := writeTestFile(t, tt.size)
			outDir := filepath.Join(t.TempDir(), "chunks")

			split, err := SplitFile(src, outDir, tt.chunkSize)
			if err != nil {
				t.Fatalf("SplitFile() error = %v", err)
			}
			if len(split.Chunks) != tt.wantParts {
				t.Fatalf("len(Chunks) = %d, want %d", len(split.Chunks), tt.wantParts)
			}
			if split.Checksum != sha256Hex(data) {
				t.Errorf("Checksum = %s, want %s", split.Checksum, sha256Hex(data))
			}

			var joined bytes.Buffer
			for i, c := range split.Chunks {
				if c.Index != i {
					t.Errorf("chunk %d has Index %d", i, c.Index)
				}
				_, index, total, ok := ParseChunkName(filepath.Base(c.Path))
				if !ok || index != i+1 || total != tt.wantParts {
					t.Errorf("chunk name %q does not encode %d/%d", filepath.Base(c.Path), i+1, tt.wantParts)
				}
				part, err := os.ReadFile(c.Path)
				if err != nil {
					t.Fatalf("reading chunk: %v", err)
				}
				if int64(len(part)) != c.Range.Size() {
					t.Errorf("chunk %d size = %d, want %d", i, len(part), c.Range.Size())
				}
				if c.Checksum != sha256Hex(part) {
					t.Errorf("chunk %d checksum mismatch", i)
				}
				joined.Write(part)
			}

			if !bytes.Equal(joined.Bytes(), data) {
				t.Error("concatenated chunks differ from source")
			}
		})
	}
}

func TestSplitFile_Errors(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		_, err := SplitFile(filepath.Join(t.TempDir(), "missing"), t.TempDir(), 10)
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("SplitFile() error = %v, want fs.ErrNotExist", err)
		}
	})

	t.Run("chunk size not smaller than file", func(t *testing.T) {
		src, _ := writeTestFile(t, 100)
		_, err := SplitFile(src, t.TempDir(), 100)
		if !errors.Is(err, ErrNoSplitNeeded) {
			t.Errorf("SplitFile() error = %v, want ErrNoSplitNeeded", err)
		}
	})
}

func TestExtractRange(t *testing.T) {
	src, data := writeTestFile(t, 1000)
	dst := filepath.Join(t.TempDir(), "sub", "part")

	checksum, err := ExtractRange(src, dst, Range{Start: 300, End: 650})
	if err != nil {
		t.Fatalf("ExtractRange() error = %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading extracted range: %v", err)
	}
	if !bytes.Equal(got, data[300:650]) {
		t.Error("extracted bytes differ from source range")
	}
	if checksum != sha256Hex(data[300:650]) {
		t.Error("checksum does not match extracted bytes")
	}
}

func TestHashFile(t *testing.T) {
	src, data := writeTestFile(t, 5000)
	checksum, size, err := HashFile(src)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if size != int64(len(data)) {
		t.Errorf("size = %d, want %d", size, len(data))
	}
	if checksum != sha256Hex(data) {
		t.Errorf("checksum = %s, want %s", checksum, sha256Hex(data))
	}
}
