package ioread

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestOpenReportsSize(t *testing.T) {
	path := writeTempFile(t, []byte("hello world"))
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if f.Size() != 11 {
		t.Errorf("Size() = %d, want 11", f.Size())
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestMapReturnsFileContents(t *testing.T) {
	want := []byte("the quick brown fox")
	path := writeTempFile(t, want)
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	m, err := f.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if string(m) != string(want) {
		t.Errorf("Map() = %q, want %q", m, want)
	}

	// A second call returns the same mapping rather than remapping.
	m2, err := f.Map()
	if err != nil {
		t.Fatalf("second Map: %v", err)
	}
	if &m[0] != &m2[0] {
		t.Error("expected Map to be idempotent and return the same backing slice")
	}
}

func TestMapEmptyFile(t *testing.T) {
	path := writeTempFile(t, nil)
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	m, err := f.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if m != nil {
		t.Errorf("Map() on an empty file = %v, want nil", m)
	}
}

func TestReadAtReadsExactRange(t *testing.T) {
	path := writeTempFile(t, []byte("0123456789"))
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 4)
	n, err := f.ReadAt(context.Background(), buf, 3)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 4 || string(buf) != "3456" {
		t.Errorf("ReadAt = (%d, %q), want (4, %q)", n, buf, "3456")
	}
}

func TestReadAtRejectsCancelledContext(t *testing.T) {
	path := writeTempFile(t, []byte("0123456789"))
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := make([]byte, 4)
	if _, err := f.ReadAt(ctx, buf, 0); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestReadAtPastEndOfFile(t *testing.T) {
	path := writeTempFile(t, []byte("short"))
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 4)
	if _, err := f.ReadAt(context.Background(), buf, 100); err == nil {
		t.Fatal("expected an error reading past the end of the file")
	}
}

func TestPoolReadAllFillsEveryRequest(t *testing.T) {
	path := writeTempFile(t, []byte("abcdefghij"))
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	reqs := []*Request{
		{Offset: 0, Buf: make([]byte, 2)},
		{Offset: 4, Buf: make([]byte, 3)},
		{Offset: 8, Buf: make([]byte, 2)},
	}
	p := NewPool(2)
	if err := p.ReadAll(context.Background(), f, reqs); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []string{"ab", "efg", "ij"}
	for i, req := range reqs {
		if req.Err != nil {
			t.Errorf("request %d: %v", i, req.Err)
		}
		if string(req.Buf) != want[i] {
			t.Errorf("request %d buf = %q, want %q", i, req.Buf, want[i])
		}
	}
}

func TestPoolReadAllStopsOnCancelledContext(t *testing.T) {
	path := writeTempFile(t, []byte("abcdefghij"))
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reqs := []*Request{{Offset: 0, Buf: make([]byte, 2)}}
	p := NewPool(1)
	if err := p.ReadAll(ctx, f, reqs); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestNewPoolClampsNonPositiveConcurrency(t *testing.T) {
	p := NewPool(0)
	if cap(p.sem) != 1 {
		t.Errorf("NewPool(0) semaphore capacity = %d, want 1", cap(p.sem))
	}
}
