package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mp4engine/internal/box"
)

func writeFixtureMP4(t *testing.T) string {
	t.Helper()
	movie := &box.Movie{
		Header: &box.MovieHeader{TimeScale: 1000, NextTrackID: 2},
		Tracks: []*box.Track{{
			Header: &box.TrackHeader{TrackID: 1},
			Media: &box.Media{
				Header:  &box.MediaHeader{TimeScale: 90000, Duration: 90000},
				Handler: &box.HandlerRef{HandlerType: box.HandlerVideo},
				Info: &box.MediaInfo{
					Sample: &box.SampleTable{
						TimeToSample:      &box.TimeToSample{Entries: []box.TimeToSampleEntry{{Count: 1, Duration: 90000}}},
						SampleSize:        &box.SampleSize{Entries: []uint32{4}},
						SampleToChunk:     &box.SampleToChunk{Entries: []box.SampleToChunkEntry{{FirstChunk: 1, SamplesPerChunk: 1, SampleDescID: 1}}},
						ChunkOffset:       &box.ChunkOffset{Entries: []uint64{0}},
						SampleDesc:        &box.SampleDescription{Entries: []box.Dummy{{Tag_: box.Tag(0x61766331)}}},
					},
				},
			},
		}},
	}

	ft := box.DefaultFileType()
	buf := make([]byte, ft.Len()+movie.Len())
	n := ft.Marshal(buf)
	movie.Marshal(buf[n:])

	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.mp4")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestCacheGetParsesAndBuildsModels(t *testing.T) {
	path := writeFixtureMP4(t)
	c := New(4)

	e, err := c.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer e.Release(c)

	if e.Movie == nil || len(e.Movie.Tracks) != 1 {
		t.Fatalf("Movie = %+v", e.Movie)
	}
	if m, ok := e.Models[1]; !ok || len(m.Samples) != 1 {
		t.Fatalf("Models[1] = %+v", e.Models[1])
	}
}

func TestCacheGetReusesLiveEntry(t *testing.T) {
	path := writeFixtureMP4(t)
	c := New(4)

	e1, err := c.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	e2, err := c.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e1 != e2 {
		t.Fatal("expected the second Get to return the same entry as the first")
	}
	e1.Release(c)
	e2.Release(c)
}

func TestCacheEvictsOnlyZeroRefEntriesOverCapacity(t *testing.T) {
	paths := make([]string, 3)
	for i := range paths {
		paths[i] = writeFixtureMP4(t)
	}
	c := New(1)

	held, err := c.Get(context.Background(), paths[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	for _, p := range paths[1:] {
		e, err := c.Get(context.Background(), p)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		e.Release(c)
	}

	if len(c.entries) < 1 {
		t.Fatalf("expected at least the held entry to survive eviction, got %d entries", len(c.entries))
	}
	if _, ok := c.entries[held.key]; !ok {
		t.Fatal("held entry with outstanding refs was evicted")
	}
	held.Release(c)
}

func TestCacheGetMissingFile(t *testing.T) {
	c := New(4)
	if _, err := c.Get(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatal("expected an error for a nonexistent path")
	}
}

func TestCacheGetRejectsFileWithoutMoov(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "no-moov.mp4")
	ft := box.DefaultFileType()
	buf := make([]byte, ft.Len())
	ft.Marshal(buf)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := New(4)
	if _, err := c.Get(context.Background(), path); err == nil {
		t.Fatal("expected an error for a file with no moov box")
	}
}
