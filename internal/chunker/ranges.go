package chunker

// Range is a half-open byte range [Start, End) within a file or tape.
type Range struct {
	Start int64
	End   int64
}

// Size returns the number of bytes covered by the range.
func (r Range) Size() int64 {
	return r.End - r.Start
}

// SplitRanges divides fileSize bytes into consecutive ranges of chunkSize bytes.
// The last range is truncated to fileSize. A chunkSize that is not smaller than
// fileSize yields a single range covering the whole file, and an empty file
// yields no ranges.
//
// For example, SplitRanges(10, 3) returns [0,3) [3,6) [6,9) [9,10).
func SplitRanges(fileSize, chunkSize int64) []Range {
	if fileSize <= 0 {
		return nil
	}
	if chunkSize <= 0 || chunkSize >= fileSize {
		return []Range{{Start: 0, End: fileSize}}
	}

	count := (fileSize + chunkSize - 1) / chunkSize
	ranges := make([]Range, 0, count)
	for start := int64(0); start < fileSize; start += chunkSize {
		end := start + chunkSize
		if end > fileSize {
			end = fileSize
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}

// CountRanges returns len(SplitRanges(fileSize, chunkSize)) without allocating.
func CountRanges(fileSize, chunkSize int64) int {
	if fileSize <= 0 {
		return 0
	}
	if chunkSize <= 0 || chunkSize >= fileSize {
		return 1
	}
	return int((fileSize + chunkSize - 1) / chunkSize)
}
