package resource

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// errSatisfied is returned by partialWriter once it has written every byte
// the client asked for; the emitting layer (rewrite.Rewrite or
// fragment.MediaSegment) treats it like any other write error and aborts
// mid-stream, the same as any other cancelled emission.
var errSatisfied = errors.New("partial response satisfied")

// partialWriter enforces a Safari partial-response policy: a Range
// request from a Safari user agent is capped to capBytes, and the
// actual byte range served is reported via a 206 response. Bytes outside
// the window are discarded rather than written, but the underlying
// emission still computes them — this trades some wasted scatter-gather
// reads for not needing random access into the middle of an analytically
// laid-out but not-yet-materialized output stream.
type partialWriter struct {
	w            http.ResponseWriter
	start, end   int64 // inclusive byte range actually served
	cur          int64
	wroteHeaders bool
}

func newPartialWriter(w http.ResponseWriter, r *http.Request, capBytes int64) io.Writer {
	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" || !isSafari(r.Header.Get("User-Agent")) {
		return w
	}
	start, end, ok := parseRange(rangeHeader)
	if !ok {
		return w
	}
	if capBytes <= 0 {
		capBytes = 2 << 20
	}
	if end < 0 || end-start+1 > capBytes {
		end = start + capBytes - 1
	}
	pw := &partialWriter{w: w, start: start, end: end}
	return pw
}

func (p *partialWriter) Write(b []byte) (int, error) {
	n := len(b)
	chunkStart := p.cur
	chunkEnd := p.cur + int64(len(b)) // exclusive
	p.cur = chunkEnd

	lo := max64(chunkStart, p.start)
	hi := min64(chunkEnd, p.end+1)
	if lo < hi {
		if !p.wroteHeaders {
			p.w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(p.start, 10)+"-"+strconv.FormatInt(p.end, 10)+"/*")
			p.w.WriteHeader(http.StatusPartialContent)
			p.wroteHeaders = true
		}
		if _, err := p.w.Write(b[lo-chunkStart : hi-chunkStart]); err != nil {
			return n, err
		}
	}
	if chunkStart >= p.end+1 {
		return n, errSatisfied
	}
	return n, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// parseRange parses a "bytes=start-end" Range header (end may be absent,
// meaning "to EOF", reported here as -1).
func parseRange(h string) (start, end int64, ok bool) {
	h = strings.TrimPrefix(h, "bytes=")
	parts := strings.SplitN(h, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if parts[1] == "" {
		return s, -1, true
	}
	e, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return s, e, true
}
