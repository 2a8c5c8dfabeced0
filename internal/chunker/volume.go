package chunker

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrSeekUnsupported is returned for any seek other than a rewind to offset 0.
var ErrSeekUnsupported = errors.New("volume supports only rewinding to offset 0")

var errVolumeClosed = errors.New("volume closed")

// Volume reads one fixed-size window of a Tape. The window is produced by
// replaying the tape generator through a Recorder, so only the bytes handed to
// the caller are ever buffered. A Volume is not safe for concurrent use and must
// be closed if it is abandoned before EOF.
type Volume struct {
	tape  Tape
	start int64
	size  int64
	index int

	pos  int64
	pr   *io.PipeReader
	done chan struct{}

	mu      sync.Mutex
	entries []Entry
}

// NewVolume creates the volume starting at startOffset of a tape of totalSize
// bytes. Its effective size is min(maxSize, totalSize-startOffset).
func NewVolume(tape Tape, startOffset, maxSize, totalSize int64, index int) *Volume {
	size := min(maxSize, totalSize-startOffset)
	if size < 0 {
		size = 0
	}
	return &Volume{
		tape:  tape,
		start: startOffset,
		size:  size,
		index: index,
	}
}

// Size returns the effective number of bytes in the volume.
func (v *Volume) Size() int64 {
	return v.size
}

// Index returns the volume's 0-based position on the tape.
func (v *Volume) Index() int {
	return v.index
}

// Range returns the tape window covered by the volume.
func (v *Volume) Range() Range {
	return Range{Start: v.start, End: v.start + v.size}
}

// Read implements io.Reader.
func (v *Volume) Read(p []byte) (int, error) {
	if v.pos >= v.size {
		return 0, io.EOF
	}
	if v.pr == nil {
		v.generate()
	}

	if remaining := v.size - v.pos; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := v.pr.Read(p)
	v.pos += int64(n)

	if err == io.EOF {
		if v.pos < v.size {
			return n, fmt.Errorf("volume %d ended at %d of %d bytes: %w", v.index, v.pos, v.size, io.ErrUnexpectedEOF)
		}
		if n > 0 {
			return n, nil
		}
	}
	return n, err
}

// Seek supports rewinding to offset 0, which replays the tape from scratch,
// and reporting the current offset. Everything else fails.
func (v *Volume) Seek(offset int64, whence int) (int64, error) {
	switch {
	case whence == io.SeekStart && offset == 0:
		v.stop()
		v.pos = 0
		return 0, nil
	case whence == io.SeekCurrent && offset == 0:
		return v.pos, nil
	default:
		return v.pos, ErrSeekUnsupported
	}
}

// Close stops the tape generator if it is still running.
func (v *Volume) Close() error {
	v.stop()
	return nil
}

// Entries reports the logical files that overlap this volume, with absolute
// tape offsets. An End of -1 means the file continues into the next volume.
// The result is complete once the volume has been read to EOF.
func (v *Volume) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

func (v *Volume) generate() {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	window := v.Range()
	rec := NewRecorder(pw, window.Start, window.End)

	go func() {
		defer close(done)
		err := v.tape.Record(rec)
		if isWindowFilled(err) {
			err = nil
		}
		if err == nil && rec.Cursor() < window.End {
			err = io.ErrUnexpectedEOF
		}

		var overlapping []Entry
		for _, e := range rec.Entries() {
			if e.Overlaps(window) {
				if e.End > window.End {
					e.End = -1
				}
				overlapping = append(overlapping, e)
			}
		}
		v.mu.Lock()
		v.entries = overlapping
		v.mu.Unlock()

		pw.CloseWithError(err)
	}()

	v.pr = pr
	v.done = done
}

func (v *Volume) stop() {
	if v.pr == nil {
		return
	}
	v.pr.CloseWithError(errVolumeClosed)
	<-v.done
	v.pr = nil
	v.done = nil
}
