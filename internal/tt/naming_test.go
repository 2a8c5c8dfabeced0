package tt

import (
	"strings"
	"testing"

	"tt-go/internal/database/sqlc"
)

func TestDisplayName(t *testing.T) {
	checksum := strings.Repeat("ab", 32)

	tests := []struct {
		name        string
		limit       int
		wantDisplay string
		wantCaption string
	}{
		{"short.txt", 60, "short.txt", ""},
		{"short.txt", 0, "short.txt", ""},
		{"exactly-ten", 11, "exactly-ten", ""},
		{"a-rather-long-report-name.pdf", 10, checksum + ".pdf", "a-rather-long-report-name.pdf"},
		{"ñandú-ñandú", 11, "ñandú-ñandú", ""},
		{"no-extension-at-all", 5, checksum, "no-extension-at-all"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			display, caption := displayName(tc.name, checksum, tc.limit)
			if display != tc.wantDisplay || caption != tc.wantCaption {
				t.Errorf("displayName(%q, %d) = %q, %q, want %q, %q",
					tc.name, tc.limit, display, caption, tc.wantDisplay, tc.wantCaption)
			}
		})
	}
}

func TestUnitName(t *testing.T) {
	file := &sqlc.SourceContent{Kind: KindFile, Path: "/data/movie.mp4"}
	dir := &sqlc.SourceContent{Kind: KindDirectory, Path: "/data/photos"}

	tests := []struct {
		source   *sqlc.SourceContent
		plan     UnitPlan
		sequence int
		total    int
		want     string
	}{
		{file, singleUnitPlan{}, 0, 1, "movie.mp4"},
		{file, chunkedUnitPlan{chunkSize: 10}, 1, 3, "movie_2-3.mp4"},
		{dir, singleUnitPlan{}, 0, 1, "photos.tar"},
		{dir, chunkedUnitPlan{chunkSize: 10}, 0, 2, "photos_1-2.tar"},
	}
	for _, tc := range tests {
		if got := unitName(tc.source, tc.plan, tc.sequence, tc.total); got != tc.want {
			t.Errorf("unitName(%s, %s, %d, %d) = %q, want %q",
				tc.source.Path, tc.plan.Strategy(), tc.sequence, tc.total, got, tc.want)
		}
	}
}

func TestLayoutOf(t *testing.T) {
	if layoutOf("single", 100) != layoutOf("single", 200) {
		t.Error("single layouts differ by chunk size")
	}
	if layoutOf("chunked", 100) == layoutOf("chunked", 200) {
		t.Error("chunked layouts with different chunk sizes are equal")
	}
}
