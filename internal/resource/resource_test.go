package resource

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mp4engine/internal/box"
	"mp4engine/internal/cache"
)

func TestSplitURL(t *testing.T) {
	cases := []struct {
		in, wantSource, wantTail string
		wantErr                  bool
	}{
		{"/movie.mp4", "/movie.mp4", "", false},
		{"/movie.mp4/main.m3u8", "/movie.mp4", "/main.m3u8", false},
		{"/dir/movie.mp4/v/c.1.0-3.mp4", "/dir/movie.mp4", "/v/c.1.0-3.mp4", false},
		{"/movie.txt", "", "", true},
	}
	for _, c := range cases {
		source, tail, err := splitURL(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("splitURL(%q) err = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if err == nil && (source != c.wantSource || tail != c.wantTail) {
			t.Errorf("splitURL(%q) = (%q, %q), want (%q, %q)", c.in, source, tail, c.wantSource, c.wantTail)
		}
	}
}

func TestParseTrackQuerySkipsUnparseable(t *testing.T) {
	got := parseTrackQuery([]string{"1", "x", "3"})
	want := []uint32{1, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLanguageTag(t *testing.T) {
	// "eng" packed per ISO-639-2/T: each letter is (code - 0x60) in 5 bits.
	packed := int16(((('e' - 0x60) & 0x1F) << 10) | ((('n' - 0x60) & 0x1F) << 5) | (('g' - 0x60) & 0x1F))
	if got := languageTag(packed); got != "eng" {
		t.Errorf("languageTag(%d) = %q, want %q", packed, got, "eng")
	}
	if got := languageTag(0); got != "" {
		t.Errorf("languageTag(0) = %q, want empty", got)
	}
}

func buildFixtureFile(t *testing.T) (dir, name string) {
	t.Helper()
	movie := &box.Movie{
		Header: &box.MovieHeader{TimeScale: 1000},
		Tracks: []*box.Track{{
			Header: &box.TrackHeader{TrackID: 1},
			Media: &box.Media{
				Header:  &box.MediaHeader{TimeScale: 1000},
				Handler: &box.HandlerRef{HandlerType: box.HandlerVideo},
				Info: &box.MediaInfo{
					Sample: &box.SampleTable{
						TimeToSample: &box.TimeToSample{Entries: []box.TimeToSampleEntry{{Count: 2, Duration: 10}}},
						SampleSize:   &box.SampleSize{Entries: []uint32{4, 4}},
						SampleToChunk: &box.SampleToChunk{Entries: []box.SampleToChunkEntry{
							{FirstChunk: 1, SamplesPerChunk: 2, SampleDescID: 1},
						}},
						ChunkOffset: &box.ChunkOffset{Entries: []uint64{0}}, // patched below once header size is known
						SyncSample:  &box.SyncSample{Entries: []uint32{1}},
						SampleDesc:  &box.SampleDescription{Entries: []box.Dummy{{Tag_: box.Tag(0x61766331)}}},
					},
				},
			},
		}},
	}

	ft := box.DefaultFileType()
	headerLen := ft.Len() + movie.Len()
	stco := movie.Tracks[0].Media.Info.Sample.ChunkOffset
	stco.Entries[0] = uint64(headerLen + 8) // past the mdat header

	// Re-measure: patching stco in place doesn't change moov's length
	// since entry count is unchanged, so headerLen above still holds.
	buf := make([]byte, headerLen+16)
	n := ft.Marshal(buf)
	movie.Marshal(buf[n:])
	copy(buf[headerLen:], []byte{0, 0, 0, 16, 'm', 'd', 'a', 't'})
	copy(buf[headerLen+8:], "abcd")
	copy(buf[headerLen+12:], "efgh")

	dir = t.TempDir()
	name = "movie.mp4"
	if err := os.WriteFile(filepath.Join(dir, name), buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return dir, name
}

func newTestHandler(dir string) *Handler {
	return &Handler{
		Root:  dir,
		Cache: cache.New(4),
		Log:   zerolog.New(io.Discard),
	}
}

func doRequest(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRewriteOptionsZeroWindowPreservesChunking(t *testing.T) {
	h := &Handler{InterleaveWindow: 0}
	opts := h.rewriteOptions(nil)
	if opts.Interleave {
		t.Error("InterleaveWindow of 0 must disable interleaving, not fall back to DefaultOptions' 500ms window")
	}
}

func TestRewriteOptionsNonZeroWindowInterleaves(t *testing.T) {
	h := &Handler{InterleaveWindow: 200 * time.Millisecond}
	opts := h.rewriteOptions(nil)
	if !opts.Interleave || opts.InterleaveWindow != 200*time.Millisecond {
		t.Errorf("opts = %+v, want Interleave=true, InterleaveWindow=200ms", opts)
	}
}

func TestServeHTTPRemux(t *testing.T) {
	dir, name := buildFixtureFile(t)
	h := newTestHandler(dir)

	rec := doRequest(t, h, "/"+name)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q", ct)
	}
	out, err := box.Parse(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("box.Parse(remuxed output): %v", err)
	}
	if out.Movie == nil || len(out.Movie.Tracks) != 1 {
		t.Fatalf("remuxed moov tracks = %+v", out.Movie)
	}
}

func TestServeHTTPMasterPlaylist(t *testing.T) {
	dir, name := buildFixtureFile(t)
	h := newTestHandler(dir)

	rec := doRequest(t, h, "/"+name+"/main.m3u8")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := rec.Body.String(); body == "" || body[:6] != "#EXTM3" {
		t.Errorf("master playlist body = %q", body)
	}
}

func TestServeHTTPInitSegment(t *testing.T) {
	dir, name := buildFixtureFile(t)
	h := newTestHandler(dir)

	rec := doRequest(t, h, "/"+name+"/init.1.mp4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	out, err := box.Parse(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("box.Parse(init segment): %v", err)
	}
	if out.FileType == nil || out.Movie == nil || out.Movie.MovieExtend == nil {
		t.Fatalf("init segment missing ftyp/moov/mvex: %+v", out)
	}
}

func TestServeHTTPMediaSegment(t *testing.T) {
	dir, name := buildFixtureFile(t)
	h := newTestHandler(dir)

	rec := doRequest(t, h, "/"+name+"/v/c.1.0-1.mp4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	out, err := box.Parse(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("box.Parse(media segment): %v", err)
	}
	if out.SegmentType == nil {
		t.Errorf("media segment missing styp")
	}
	if len(out.MediaDatas) != 1 {
		t.Fatalf("media segment mdat count = %d, want 1", len(out.MediaDatas))
	}
}

func TestServeHTTPUnknownTrackIs404(t *testing.T) {
	dir, name := buildFixtureFile(t)
	h := newTestHandler(dir)

	rec := doRequest(t, h, "/"+name+"/init.9.mp4")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServeHTTPNonMP4PathIsRejected(t *testing.T) {
	dir, _ := buildFixtureFile(t)
	h := newTestHandler(dir)

	rec := doRequest(t, h, "/movie.txt")
	if rec.Code == http.StatusOK {
		t.Errorf("status = %d, want a non-200 for a non-.mp4 resource path", rec.Code)
	}
}

func TestServeHTTPMissingSourceFile(t *testing.T) {
	dir := t.TempDir()
	h := newTestHandler(dir)

	rec := doRequest(t, h, "/missing.mp4")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 for a missing source file", rec.Code)
	}
}
