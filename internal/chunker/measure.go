package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// VolumeLayout describes one volume of a measured tape.
type VolumeLayout struct {
	Index    int
	Range    Range
	Checksum string
	Files    []string // logical files with bytes in this volume
}

// TapeLayout is the result of a single measuring pass over a tape.
type TapeLayout struct {
	Size     int64
	Checksum string
	Volumes  []VolumeLayout
	Entries  []Entry
}

// VolumesOf returns the indexes of the volumes holding bytes of the named file.
func (l *TapeLayout) VolumesOf(name string) []int {
	var out []int
	for _, v := range l.Volumes {
		for _, f := range v.Files {
			if f == name {
				out = append(out, v.Index)
				break
			}
		}
	}
	return out
}

// MeasureTape replays tape once, discarding the bytes, and returns its total
// size and hash together with the per-volume hashes for volumes of volumeSize
// bytes. A volumeSize of 0 or less puts the whole tape in one volume.
func MeasureTape(tape Tape, volumeSize int64) (*TapeLayout, error) {
	m := &volumeHasher{volumeSize: volumeSize, whole: sha256.New()}
	rec := NewUnboundedRecorder(m)
	if err := tape.Record(rec); err != nil {
		return nil, fmt.Errorf("measuring tape: %w", err)
	}
	m.finish()

	layout := &TapeLayout{
		Size:     rec.Cursor(),
		Checksum: hex.EncodeToString(m.whole.Sum(nil)),
		Entries:  rec.Entries(),
	}

	for i, r := range SplitRanges(layout.Size, volumeSize) {
		v := VolumeLayout{Index: i, Range: r, Checksum: m.sums[i]}
		for _, e := range layout.Entries {
			if e.Overlaps(r) {
				v.Files = append(v.Files, e.Name)
			}
		}
		layout.Volumes = append(layout.Volumes, v)
	}
	return layout, nil
}

// volumeHasher hashes a stream as a whole and in volumeSize windows.
type volumeHasher struct {
	volumeSize int64
	whole      hash.Hash
	current    hash.Hash
	filled     int64
	sums       []string
}

func (m *volumeHasher) Write(p []byte) (int, error) {
	m.whole.Write(p)

	rest := p
	for len(rest) > 0 {
		if m.current == nil {
			m.current = sha256.New()
			m.filled = 0
		}
		take := int64(len(rest))
		if m.volumeSize > 0 && m.filled+take > m.volumeSize {
			take = m.volumeSize - m.filled
		}
		m.current.Write(rest[:take])
		m.filled += take
		rest = rest[take:]

		if m.volumeSize > 0 && m.filled == m.volumeSize {
			m.sums = append(m.sums, hex.EncodeToString(m.current.Sum(nil)))
			m.current = nil
		}
	}
	return len(p), nil
}

func (m *volumeHasher) finish() {
	if m.current != nil && m.filled > 0 {
		m.sums = append(m.sums, hex.EncodeToString(m.current.Sum(nil)))
		m.current = nil
	}
}
