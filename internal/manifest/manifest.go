// Package manifest reads and writes placement manifests: compressed JSON
// snapshots of where every unit of a transferred file lives, used to recover a
// contract from its destination alone.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Version is the schema version written by Encode.
const Version = 1

// Extension is appended to manifest file names.
const Extension = ".manifest.json.zst"

var (
	ErrUnsupportedVersion = errors.New("unsupported manifest version")
	ErrMalformed          = errors.New("malformed manifest")
)

type Source struct {
	// Kind is "file" or "directory"; empty means file.
	Kind      string `json:"kind,omitempty"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Checksum  string `json:"checksum"`
	MediaType string `json:"media_type"`
}

type Part struct {
	Sequence      int    `json:"sequence"`
	MessageID     int64  `json:"message_id"`
	DestinationID int64  `json:"destination_id"`
	Link          string `json:"link"`
	Filename      string `json:"filename"`
	Size          int64  `json:"size"`
	Checksum      string `json:"checksum"`
}

// Document is one manifest. Parts are kept in ascending sequence order.
type Document struct {
	Version   int    `json:"version"`
	Strategy  string `json:"strategy"`
	ChunkSize int64  `json:"chunk_size,omitempty"`
	Source    Source `json:"source"`
	Parts     []Part `json:"parts"`
}

// Filename returns the conventional file name for a manifest of doc.
func Filename(doc *Document) string {
	return doc.Source.Filename + Extension
}

// Validate checks that the parts form the contiguous sequence 0..n-1 and that
// their sizes add up to the source size.
func (d *Document) Validate() error {
	if d.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}
	if d.Source.Checksum == "" {
		return fmt.Errorf("%w: missing source checksum", ErrMalformed)
	}
	if len(d.Parts) == 0 {
		return fmt.Errorf("%w: no parts", ErrMalformed)
	}

	var total int64
	for i, p := range d.Parts {
		if p.Sequence != i {
			return fmt.Errorf("%w: part %d has sequence %d", ErrMalformed, i, p.Sequence)
		}
		total += p.Size
	}
	if total != d.Source.Size {
		return fmt.Errorf("%w: parts hold %d bytes, source has %d", ErrMalformed, total, d.Source.Size)
	}
	return nil
}

// Encode writes doc as zstd-compressed JSON.
func Encode(w io.Writer, doc *Document) error {
	sorted := *doc
	sorted.Parts = make([]Part, len(doc.Parts))
	copy(sorted.Parts, doc.Parts)
	sort.Slice(sorted.Parts, func(i, j int) bool {
		return sorted.Parts[i].Sequence < sorted.Parts[j].Sequence
	})

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	je := json.NewEncoder(enc)
	je.SetIndent("", "  ")
	if err := je.Encode(&sorted); err != nil {
		enc.Close()
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flushing manifest: %w", err)
	}
	return nil
}

// Decode reads a manifest written by Encode and validates it.
func Decode(r io.Reader) (*Document, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	var doc Document
	if err := json.NewDecoder(dec).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}
