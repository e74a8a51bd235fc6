// Package ioread is the lowest layer: it turns an opened file into the
// two access patterns everything above it needs — a byte-mapped view of
// the whole file for box parsing, and scattered positioned reads
// over the mdat region for pulling individual samples without copying
// the whole file into memory.
//
// Reads fan out across a bare goroutine-per-task pool rather than a
// channel-based abstraction, bounded so a single HTTP request touching
// hundreds of samples doesn't spawn hundreds of unbounded goroutines.
// Mmap is built on golang.org/x/sys/unix rather than the stdlib syscall
// package, since unix is already pulled in indirectly via zerolog.
package ioread

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"mp4engine/internal/errs"
)

// File is an open source file, memory-mapped in full once Map is called,
// with its data region available for positioned reads.
type File struct {
	f    *os.File
	size int64
	mmap []byte // nil until Map is called
}

func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "open "+path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.Io, "stat "+path, err)
	}
	return &File{f: f, size: st.Size()}, nil
}

func (r *File) Close() error {
	if r.mmap != nil {
		unix.Munmap(r.mmap)
		r.mmap = nil
	}
	return r.f.Close()
}

func (r *File) Size() int64 { return r.size }

// Map memory-maps the entire file read-only and returns the mapping.
// The box layer walks this slice directly; mdat payload bytes inside it
// are indexed by offset, never copied out.
func (r *File) Map() ([]byte, error) {
	if r.mmap != nil {
		return r.mmap, nil
	}
	if r.size == 0 {
		return nil, nil
	}
	m, err := unix.Mmap(int(r.f.Fd()), 0, int(r.size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "mmap", err)
	}
	r.mmap = m
	return m, nil
}

// ReadAt performs a single positioned read, honoring ctx cancellation by
// checking it before issuing the syscall (the read itself is not
// interruptible mid-flight).
func (r *File) ReadAt(ctx context.Context, buf []byte, offset int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := r.f.ReadAt(buf, offset)
	if err != nil {
		return n, errs.Wrap(errs.Io, fmt.Sprintf("read at %d", offset), err)
	}
	return n, nil
}

// Request is one scatter-gather read: fill Buf from the file at Offset.
type Request struct {
	Offset int64
	Buf    []byte
	Err    error
}

// Pool bounds how many positioned reads run concurrently against one
// file, so a request touching thousands of samples doesn't spawn
// thousands of goroutines at once.
type Pool struct {
	sem chan struct{}
}

func NewPool(concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{sem: make(chan struct{}, concurrency)}
}

// ReadAll runs every request against f concurrently, bounded by p, and
// waits for all of them to finish or ctx to be cancelled. Each request's
// own Err field carries its outcome; the returned error is only non-nil
// if ctx was cancelled before all requests completed.
func (p *Pool) ReadAll(ctx context.Context, f *File, reqs []*Request) error {
	var wg sync.WaitGroup
	for _, req := range reqs {
		req := req
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-p.sem }()
			_, req.Err = f.ReadAt(ctx, req.Buf, req.Offset)
		}()
	}
	wg.Wait()
	return ctx.Err()
}
