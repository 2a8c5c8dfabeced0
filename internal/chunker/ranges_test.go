package chunker

import (
	"reflect"
	"testing"
)

func TestSplitRanges(t *testing.T) {
	tests := []struct {
		name      string
		fileSize  int64
		chunkSize int64
		want      []Range
	}{
		{
			name:      "remainder",
			fileSize:  10,
			chunkSize: 3,
			want:      []Range{{0, 3}, {3, 6}, {6, 9}, {9, 10}},
		},
		{
			name:      "exact division",
			fileSize:  10 * 1024 * 1024,
			chunkSize: 5 * 1024 * 1024,
			want:      []Range{{0, 5242880}, {5242880, 10485760}},
		},
		{
			name:      "chunk larger than file",
			fileSize:  5,
			chunkSize: 100,
			want:      []Range{{0, 5}},
		},
		{
			name:      "empty file",
			fileSize:  0,
			chunkSize: 3,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitRanges(tt.fileSize, tt.chunkSize)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitRanges(%d, %d) = %v, want %v", tt.fileSize, tt.chunkSize, got, tt.want)
			}
			if n := CountRanges(tt.fileSize, tt.chunkSize); n != len(tt.want) {
				t.Errorf("CountRanges(%d, %d) = %d, want %d", tt.fileSize, tt.chunkSize, n, len(tt.want))
			}
		})
	}
}

func TestSplitRanges_Properties(t *testing.T) {
	for fileSize := int64(1); fileSize <= 200; fileSize += 7 {
		for chunkSize := int64(1); chunkSize < fileSize; chunkSize += 3 {
			ranges := SplitRanges(fileSize, chunkSize)

			want := int((fileSize + chunkSize - 1) / chunkSize)
			if len(ranges) != want {
				t.Fatalf("SplitRanges(%d, %d) returned %d ranges, want %d", fileSize, chunkSize, len(ranges), want)
			}
			if ranges[0].Start != 0 {
				t.Fatalf("SplitRanges(%d, %d) first range starts at %d", fileSize, chunkSize, ranges[0].Start)
			}
			for i := 1; i < len(ranges); i++ {
				if ranges[i].Start != ranges[i-1].End {
					t.Fatalf("SplitRanges(%d, %d) gap between %v and %v", fileSize, chunkSize, ranges[i-1], ranges[i])
				}
			}
			if last := ranges[len(ranges)-1]; last.End != fileSize {
				t.Fatalf("SplitRanges(%d, %d) last range ends at %d", fileSize, chunkSize, last.End)
			}
		}
	}
}

func TestChunkName_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		index int
		total int
		want  string
	}{
		{name: "movie.mp4", index: 2, total: 3, want: "movie_2-3.mp4"},
		{name: "archive.tar", index: 10, total: 12, want: "archive_10-12.tar"},
		{name: "noext", index: 1, total: 1, want: "noext_1-1"},
		{name: "my_file_v2.bin", index: 1, total: 2, want: "my_file_v2_1-2.bin"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := ChunkName(tt.name, tt.index, tt.total)
			if got != tt.want {
				t.Fatalf("ChunkName() = %q, want %q", got, tt.want)
			}

			name, index, total, ok := ParseChunkName(got)
			if !ok {
				t.Fatalf("ParseChunkName(%q) failed", got)
			}
			if name != tt.name || index != tt.index || total != tt.total {
				t.Errorf("ParseChunkName(%q) = (%q, %d, %d), want (%q, %d, %d)", got, name, index, total, tt.name, tt.index, tt.total)
			}
		})
	}

	for _, bad := range []string{"movie.mp4", "movie_x-3.mp4", "movie_4-3.mp4", "movie_2.mp4"} {
		if _, _, _, ok := ParseChunkName(bad); ok {
			t.Errorf("ParseChunkName(%q) ok = true, want false", bad)
		}
	}
}

func TestVirtualPath(t *testing.T) {
	p := VirtualPath(3)
	if !IsVirtualPath(p) {
		t.Errorf("IsVirtualPath(%q) = false", p)
	}
	if IsVirtualPath("/tmp/chunk_1-2.bin") {
		t.Error("IsVirtualPath() = true for a real path")
	}
}
