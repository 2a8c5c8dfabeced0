package throttle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestNewReader_Unlimited(t *testing.T) {
	src := bytes.NewReader([]byte("abc"))
	if r := NewReader(context.Background(), src, 0); r != io.Reader(src) {
		t.Error("NewReader with rate 0 should return the source reader")
	}
}

func TestReader_PassesBytesThrough(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100*1024)
	r := NewReader(context.Background(), bytes.NewReader(data), 1<<30)

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("throttled reader altered the stream")
	}
}

func TestReader_ClampsToBurst(t *testing.T) {
	r := NewReader(context.Background(), bytes.NewReader(make([]byte, 4096)), 1000)

	buf := make([]byte, 4096)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n > 1000 {
		t.Errorf("Read() returned %d bytes, want at most the burst of 1000", n)
	}
}

func TestReader_Slows(t *testing.T) {
	// The first 8 KiB burst is free, the remaining 4 KiB takes about 0.5s.
	data := make([]byte, 12*1024)
	r := NewReader(context.Background(), bytes.NewReader(data), 8*1024)

	start := time.Now()
	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("12 KiB at 8 KiB/s took %v, want at least 400ms", elapsed)
	}
}

func TestReader_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReader(ctx, bytes.NewReader(make([]byte, 4096)), 10)
	buf := make([]byte, 4096)
	if _, err := r.Read(buf); !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
}
