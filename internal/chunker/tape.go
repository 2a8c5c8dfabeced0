package chunker

import (
	"errors"
	"io"
	"math"
)

// errWindowFilled stops a tape generator once the recorder's window has been
// fully written. Generators propagate it like any other write error.
var errWindowFilled = errors.New("recorder window filled")

// Tape is a logical archive stream that is never materialized. Record writes
// the complete stream, from offset 0, into rec. Calling Record again must
// produce byte-identical output.
type Tape interface {
	Record(rec *Recorder) error
}

// Entry marks where one logical file starts and ends on a tape.
type Entry struct {
	Name  string
	Start int64
	End   int64 // -1 while the entry is still being written
}

// Overlaps reports whether the entry has bytes inside r.
func (e Entry) Overlaps(r Range) bool {
	end := e.End
	if end < 0 {
		end = math.MaxInt64
	}
	return e.Start < r.End && end > r.Start
}

// Recorder is the io.Writer a Tape writes into. It tracks the global write
// cursor over the tape and forwards only the portion of each block that
// overlaps its [start, end) window to the sink.
type Recorder struct {
	sink    io.Writer
	start   int64
	end     int64
	cursor  int64
	entries []Entry
}

// NewRecorder creates a recorder forwarding bytes in [start, end) to sink.
func NewRecorder(sink io.Writer, start, end int64) *Recorder {
	return &Recorder{sink: sink, start: start, end: end}
}

// NewUnboundedRecorder creates a recorder forwarding the whole tape to sink.
func NewUnboundedRecorder(sink io.Writer) *Recorder {
	return NewRecorder(sink, 0, math.MaxInt64)
}

// Write clips p to the recorder window. Once the cursor reaches the end of the
// window it returns errWindowFilled so the generator can stop early.
func (r *Recorder) Write(p []byte) (int, error) {
	blockStart := r.cursor
	blockEnd := r.cursor + int64(len(p))
	r.cursor = blockEnd

	lo := max(blockStart, r.start)
	hi := min(blockEnd, r.end)
	if lo < hi {
		if _, err := r.sink.Write(p[lo-blockStart : hi-blockStart]); err != nil {
			return 0, err
		}
	}

	if r.cursor >= r.end {
		return len(p), errWindowFilled
	}
	return len(p), nil
}

// Cursor returns the number of tape bytes generated so far.
func (r *Recorder) Cursor() int64 {
	return r.cursor
}

// Begin records the start of a logical file at the current cursor.
func (r *Recorder) Begin(name string) {
	r.entries = append(r.entries, Entry{Name: name, Start: r.cursor, End: -1})
}

// End closes the most recently begun entry at the current cursor.
func (r *Recorder) End() {
	if n := len(r.entries); n > 0 && r.entries[n-1].End < 0 {
		r.entries[n-1].End = r.cursor
	}
}

// Entries returns a copy of the entries recorded so far.
func (r *Recorder) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// isWindowFilled reports whether err is the recorder's early stop signal.
func isWindowFilled(err error) bool {
	return errors.Is(err, errWindowFilled)
}
