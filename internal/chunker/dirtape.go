package chunker

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DirectoryTape is a tar stream of a set of regular files below a root
// directory. Headers are normalized (no owner names, second-precision mtime) so
// that replaying the tape yields identical bytes while the files are unchanged.
type DirectoryTape struct {
	root  string
	files []string
}

// NewDirectoryTape creates a tape over files, given relative to root. The file
// order is sorted so the tape layout does not depend on discovery order.
func NewDirectoryTape(root string, files []string) *DirectoryTape {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)
	return &DirectoryTape{root: root, files: sorted}
}

// Root returns the directory the tape archives.
func (t *DirectoryTape) Root() string {
	return t.root
}

// Files returns the relative paths on the tape, in tape order.
func (t *DirectoryTape) Files() []string {
	return t.files
}

// Record writes the tar stream into rec.
func (t *DirectoryTape) Record(rec *Recorder) error {
	tw := tar.NewWriter(rec)
	buf := make([]byte, 64*1024)

	for _, rel := range t.files {
		if err := t.recordFile(tw, rec, rel, buf); err != nil {
			return err
		}
	}
	return tw.Close()
}

func (t *DirectoryTape) recordFile(tw *tar.Writer, rec *Recorder, rel string, buf []byte) error {
	full := filepath.Join(t.root, rel)
	f, err := os.Open(full)
	if err != nil {
		return fmt.Errorf("opening %s: %w", rel, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", rel, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", rel)
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     filepath.ToSlash(rel),
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  info.ModTime().UTC().Truncate(time.Second),
		Format:   tar.FormatPAX,
	}

	rec.Begin(hdr.Name)
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	n, err := io.CopyBuffer(tw, io.LimitReader(f, info.Size()), buf)
	if err != nil {
		return err
	}
	if n != info.Size() {
		return fmt.Errorf("%s changed while recording: read %d of %d bytes", rel, n, info.Size())
	}
	rec.End()
	return nil
}
