package chunker

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// memTape writes a fixed set of files as uneven blocks, recording entries.
type memTape struct {
	files []memFile
	block int
}

type memFile struct {
	name string
	data []byte
}

func (m *memTape) Record(rec *Recorder) error {
	for _, f := range m.files {
		rec.Begin(f.name)
		for off := 0; off < len(f.data); off += m.block {
			end := min(off+m.block, len(f.data))
			if _, err := rec.Write(f.data[off:end]); err != nil {
				return err
			}
		}
		rec.End()
	}
	return nil
}

func (m *memTape) bytes() []byte {
	var buf bytes.Buffer
	for _, f := range m.files {
		buf.Write(f.data)
	}
	return buf.Bytes()
}

func newMemTape() *memTape {
	fill := func(n int, seed byte) []byte {
		b := make([]byte, n)
		for i := range b {
			b[i] = seed + byte(i%251)
		}
		return b
	}
	return &memTape{
		block: 13,
		files: []memFile{
			{name: "a.txt", data: fill(100, 1)},
			{name: "b.bin", data: fill(250, 2)},
			{name: "c.log", data: fill(7, 3)},
			{name: "d.dat", data: fill(400, 4)},
		},
	}
}

func readVolumes(t *testing.T, tape Tape, totalSize, volumeSize int64) ([]byte, []*Volume) {
	t.Helper()
	var all bytes.Buffer
	var volumes []*Volume
	for i, r := range SplitRanges(totalSize, volumeSize) {
		v := NewVolume(tape, r.Start, volumeSize, totalSize, i)
		if v.Size() != r.Size() {
			t.Fatalf("volume %d Size() = %d, want %d", i, v.Size(), r.Size())
		}
		n, err := io.Copy(&all, v)
		if err != nil {
			t.Fatalf("reading volume %d: %v", i, err)
		}
		if n != v.Size() {
			t.Fatalf("volume %d yielded %d bytes, want %d", i, n, v.Size())
		}
		v.Close()
		volumes = append(volumes, v)
	}
	return all.Bytes(), volumes
}

func TestVolume_CoversTape(t *testing.T) {
	tape := newMemTape()
	want := tape.bytes()
	total := int64(len(want))

	var unbounded bytes.Buffer
	if err := tape.Record(NewUnboundedRecorder(&unbounded)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !bytes.Equal(unbounded.Bytes(), want) {
		t.Fatal("unbounded recorder does not reproduce the tape")
	}

	for _, size := range []int64{1, 7, 13, 64, 100, 333, total - 1, total, total + 50} {
		got, _ := readVolumes(t, tape, total, size)
		if !bytes.Equal(got, want) {
			t.Errorf("volume size %d: concatenated volumes differ from tape", size)
		}
	}
}

func TestVolume_Entries(t *testing.T) {
	tape := newMemTape()
	total := int64(len(tape.bytes()))

	// 300-byte volumes: a.txt [0,100) and b.bin [100,350) start in volume 0,
	// b.bin continues into volume 1.
	_, volumes := readVolumes(t, tape, total, 300)

	first := volumes[0].Entries()
	if len(first) != 2 || first[0].Name != "a.txt" || first[1].Name != "b.bin" {
		t.Fatalf("volume 0 entries = %+v", first)
	}
	if first[1].End != -1 {
		t.Errorf("b.bin in volume 0 End = %d, want -1 (continues)", first[1].End)
	}

	second := volumes[1].Entries()
	if len(second) == 0 || second[0].Name != "b.bin" || second[0].Start != 100 {
		t.Fatalf("volume 1 entries = %+v, want b.bin first", second)
	}
}

func TestVolume_Rewind(t *testing.T) {
	tape := newMemTape()
	data := tape.bytes()
	v := NewVolume(tape, 50, 200, int64(len(data)), 0)
	defer v.Close()

	head := make([]byte, 30)
	if _, err := io.ReadFull(v, head); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if pos, _ := v.Seek(0, io.SeekCurrent); pos != 30 {
		t.Errorf("Seek(0, SeekCurrent) = %d, want 30", pos)
	}

	if _, err := v.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("rewind error = %v", err)
	}
	got, err := io.ReadAll(v)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, data[50:250]) {
		t.Error("rewound volume does not replay its window")
	}
}

func TestVolume_SeekUnsupported(t *testing.T) {
	tape := newMemTape()
	v := NewVolume(tape, 0, 100, int64(len(tape.bytes())), 0)
	defer v.Close()

	for _, tc := range []struct {
		offset int64
		whence int
	}{
		{10, io.SeekStart},
		{0, io.SeekEnd},
		{5, io.SeekCurrent},
	} {
		if _, err := v.Seek(tc.offset, tc.whence); !errors.Is(err, ErrSeekUnsupported) {
			t.Errorf("Seek(%d, %d) error = %v, want ErrSeekUnsupported", tc.offset, tc.whence, err)
		}
	}
}

func TestVolume_LastVolumeTruncated(t *testing.T) {
	tape := newMemTape()
	total := int64(len(tape.bytes()))
	v := NewVolume(tape, 700, 100, total, 7)
	if v.Size() != total-700 {
		t.Errorf("Size() = %d, want %d", v.Size(), total-700)
	}
}

func TestDirectoryTape_MeasureAndVolumes(t *testing.T) {
	root := t.TempDir()
	files := map[string][]byte{
		"a.txt":       bytes.Repeat([]byte("a"), 1500),
		"sub/b.bin":   bytes.Repeat([]byte{0xb}, 9000),
		"sub/c/d.txt": []byte("tiny"),
	}
	var names []string
	for name, data := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, data, 0644); err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}

	tape := NewDirectoryTape(root, names)

	var stream bytes.Buffer
	if err := tape.Record(NewUnboundedRecorder(&stream)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	layout, err := MeasureTape(tape, 4096)
	if err != nil {
		t.Fatalf("MeasureTape() error = %v", err)
	}
	if layout.Size != int64(stream.Len()) {
		t.Fatalf("layout.Size = %d, want %d", layout.Size, stream.Len())
	}
	if layout.Checksum != sha256Hex(stream.Bytes()) {
		t.Error("layout.Checksum does not match stream")
	}
	if len(layout.Volumes) != CountRanges(layout.Size, 4096) {
		t.Fatalf("len(Volumes) = %d, want %d", len(layout.Volumes), CountRanges(layout.Size, 4096))
	}
	if got := layout.VolumesOf("sub/b.bin"); len(got) < 2 {
		t.Errorf("VolumesOf(sub/b.bin) = %v, want it to span volumes", got)
	}

	joined, volumes := readVolumes(t, tape, layout.Size, 4096)
	if !bytes.Equal(joined, stream.Bytes()) {
		t.Fatal("volumes differ from the unbounded stream")
	}
	for i, v := range volumes {
		r := v.Range()
		if sha256Hex(stream.Bytes()[r.Start:r.End]) != layout.Volumes[i].Checksum {
			t.Errorf("volume %d checksum mismatch", i)
		}
	}

	tr := tar.NewReader(bytes.NewReader(joined))
	seen := map[string]bool{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading tar: %v", err)
		}
		body, _ := io.ReadAll(tr)
		if !bytes.Equal(body, files[hdr.Name]) {
			t.Errorf("tar entry %s has wrong content", hdr.Name)
		}
		seen[hdr.Name] = true
	}
	if len(seen) != len(files) {
		t.Errorf("tar has %d entries, want %d", len(seen), len(files))
	}
}
