// Package resource implements the net/http.Handler that resolves a
// source file's URL into calls against the rewrite/fragment/hls/
// subtitle layers, entirely from the URL itself — no server-side session
// state is needed to decode a request back into (track, first, last).
//
// Grounded on bgentry-mp4_stream/src/cmd/mp4_stream/mp4_stream.go's
// flag-driven main() for the overall "parse request, open file, stream
// result" shape, generalized from a CLI's os.Args into an http.Handler's
// *http.Request and regexp-based route table below.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mp4engine/internal/cache"
	"mp4engine/internal/errs"
	"mp4engine/internal/fragment"
	"mp4engine/internal/hls"
	"mp4engine/internal/rewrite"
	"mp4engine/internal/segment"
	"mp4engine/internal/subtitle"
	"mp4engine/internal/track"
)

var (
	reMediaPlaylist = regexp.MustCompile(`^/media\.(\d+)\.m3u8$`)
	reInitSegment   = regexp.MustCompile(`^/init\.(\d+)\.mp4$`)
	reVideoSegment  = regexp.MustCompile(`^/v/c\.(\d+)\.(\d+)-(\d+)\.mp4$`)
	reAudioSegment  = regexp.MustCompile(`^/a/c\.(\d+)\.(\d+)-(\d+)\.m4a$`)
	reSubSegment    = regexp.MustCompile(`^/s/c\.(\d+)\.(\d+)-(\d+)\.vtt$`)
	reSourceSplit   = regexp.MustCompile(`^(.*?\.mp4)(/.*)?$`)
)

// Handler serves the resource grammar below against files rooted
// at Root, using Cache to share opened sources across requests.
type Handler struct {
	Root            string // filesystem prefix prepended to the URL's source path
	Cache           *cache.Cache
	SegmentDuration time.Duration
	// InterleaveWindow is the Rewriter's rolling bucket size for the plain
	// remux route; 0 means no re-interleaving (each track written as one
	// contiguous run; the source's chunk layout is not kept), not "fall back
	// to the Rewriter's own default".
	InterleaveWindow         time.Duration
	SafariPartialResponseCap int64
	Log                      zerolog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sourcePath, tail, err := splitURL(r.URL.Path)
	if err != nil {
		h.writeError(w, err)
		return
	}

	entry, err := h.Cache.Get(r.Context(), h.Root+sourcePath)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer entry.Release(h.Cache)

	ctx := r.Context()
	switch {
	case tail == "" || tail == "/":
		h.serveRemux(ctx, w, r, entry)
	case tail == "/main.m3u8":
		h.serveMaster(w, entry)
	case reMediaPlaylist.MatchString(tail):
		h.serveMediaPlaylist(w, entry, reMediaPlaylist.FindStringSubmatch(tail))
	case reInitSegment.MatchString(tail):
		h.serveInit(w, entry, reInitSegment.FindStringSubmatch(tail))
	case reVideoSegment.MatchString(tail):
		h.serveFragment(ctx, w, r, entry, reVideoSegment.FindStringSubmatch(tail), "video/mp4")
	case reAudioSegment.MatchString(tail):
		h.serveFragment(ctx, w, r, entry, reAudioSegment.FindStringSubmatch(tail), "audio/mp4")
	case reSubSegment.MatchString(tail):
		h.serveSubtitleSegment(w, entry, reSubSegment.FindStringSubmatch(tail))
	default:
		http.NotFound(w, r)
	}
}

func splitURL(urlPath string) (sourcePath, tail string, err error) {
	m := reSourceSplit.FindStringSubmatch(urlPath)
	if m == nil {
		return "", "", errs.New(errs.OutOfRange, "url does not reference a .mp4 resource")
	}
	return m[1], m[2], nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errSatisfied) {
		return
	}
	status := http.StatusInternalServerError
	logLevel := h.Log.Error()
	switch errs.KindOf(err) {
	case errs.Io:
		status = http.StatusInternalServerError
	case errs.Malformed:
		status = http.StatusBadGateway
	case errs.UnsupportedVersion, errs.UnsupportedEditList:
		status = http.StatusNotImplemented
	case errs.UnknownTrack:
		status = http.StatusNotFound
	case errs.OutOfRange:
		status = http.StatusRequestedRangeNotSatisfiable
	case errs.Encoding:
		status = http.StatusUnprocessableEntity
		logLevel = h.Log.Warn()
	}
	logLevel.Err(err).Msg("resource request failed")
	http.Error(w, err.Error(), status)
}

func (h *Handler) rewriteOptions(ids []uint32) rewrite.Options {
	opts := rewrite.DefaultOptions()
	if h.InterleaveWindow == 0 {
		// 0 means no re-interleaving at all, not "use the rewriter's own
		// 500ms default".
		opts.Interleave = false
	} else {
		opts.InterleaveWindow = h.InterleaveWindow
	}
	if len(ids) > 0 {
		opts.TrackIDs = ids
	}
	return opts
}

func (h *Handler) serveRemux(ctx context.Context, w http.ResponseWriter, r *http.Request, entry *cache.Entry) {
	ids := parseTrackQuery(r.URL.Query()["track"])
	w.Header().Set("Content-Type", "video/mp4")
	opts := h.rewriteOptions(ids)
	ww := newPartialWriter(w, r, h.SafariPartialResponseCap)
	if err := rewrite.Rewrite(ctx, entry.File, entry.Models, entry.Reader, ww, opts); err != nil {
		h.writeError(w, err)
	}
}

func parseTrackQuery(vals []string) []uint32 {
	var ids []uint32
	for _, v := range vals {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			ids = append(ids, uint32(n))
		}
	}
	return ids
}

func (h *Handler) movieTimescale(entry *cache.Entry) uint32 {
	if entry.Movie != nil && entry.Movie.Header != nil {
		return entry.Movie.Header.TimeScale
	}
	return 1000
}

func (h *Handler) serveMaster(w http.ResponseWriter, entry *cache.Entry) {
	var video, audio, subs []hls.Rendition
	for id, m := range entry.Models {
		r := hls.Rendition{TrackID: id, Model: m, Language: languageTag(m.Language)}
		switch m.Kind {
		case track.KindVideo:
			video = append(video, r)
		case track.KindAudio:
			audio = append(audio, r)
		case track.KindSubtitle:
			subs = append(subs, r)
		}
	}
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	fmt.Fprint(w, hls.MasterPlaylist(video, audio, subs))
}

func languageTag(packed int16) string {
	if packed == 0 {
		return ""
	}
	b := []byte{
		byte(((packed >> 10) & 0x1F) + 0x60),
		byte(((packed >> 5) & 0x1F) + 0x60),
		byte((packed & 0x1F) + 0x60),
	}
	return string(b)
}

func (h *Handler) serveMediaPlaylist(w http.ResponseWriter, entry *cache.Entry, m []string) {
	trackID, _ := strconv.ParseUint(m[1], 10, 32)
	model, ok := entry.Models[uint32(trackID)]
	if !ok {
		h.writeError(w, errs.ForTrack(errs.UnknownTrack, "track not found", uint32(trackID)))
		return
	}
	ranges := h.rangesFor(entry, model)
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	fmt.Fprint(w, hls.MediaPlaylist(uint32(trackID), model.Kind, ranges, model.Timescale))
}

// rangesFor computes a track's segment boundaries: video and any
// sync-table-bearing track cut on sync samples; everything else (most
// audio tracks included) reuses a video track's cut points so it segments
// at the same wall-clock boundaries. With several video tracks, which one
// is used follows map iteration order. Only when the presentation has no
// video track does such a track fall back to BySyncPoint's "no stss ->
// fixed duration" cutting.
func (h *Handler) rangesFor(entry *cache.Entry, model *track.Model) []segment.Range {
	targetUnits := int64(h.segmentDuration().Seconds() * float64(orOne(model.Timescale)))
	if model.Kind == track.KindVideo || model.HasSyncTable {
		return segment.BySyncPoint(model, targetUnits)
	}
	for _, other := range entry.Models {
		if other.Kind == track.KindVideo {
			video := segment.BySyncPoint(other, int64(h.segmentDuration().Seconds()*float64(orOne(other.Timescale))))
			return segment.Timed(model, video, other.Timescale)
		}
	}
	return segment.BySyncPoint(model, targetUnits)
}

func (h *Handler) segmentDuration() time.Duration {
	if h.SegmentDuration > 0 {
		return h.SegmentDuration
	}
	return 4 * time.Second
}

func orOne(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

func (h *Handler) serveInit(w http.ResponseWriter, entry *cache.Entry, m []string) {
	trackID, _ := strconv.ParseUint(m[1], 10, 32)
	model, ok := entry.Models[uint32(trackID)]
	if !ok {
		h.writeError(w, errs.ForTrack(errs.UnknownTrack, "track not found", uint32(trackID)))
		return
	}
	data, err := fragment.InitSegment(entry.Movie, []*track.Model{model})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Write(data)
}

func (h *Handler) serveFragment(ctx context.Context, w http.ResponseWriter, r *http.Request, entry *cache.Entry, m []string, contentType string) {
	trackID, _ := strconv.ParseUint(m[1], 10, 32)
	first, _ := strconv.Atoi(m[2])
	last, _ := strconv.Atoi(m[3])
	model, ok := entry.Models[uint32(trackID)]
	if !ok {
		h.writeError(w, errs.ForTrack(errs.UnknownTrack, "track not found", uint32(trackID)))
		return
	}
	offsets := track.PresentationOffsets(entry.Models, h.movieTimescale(entry))
	w.Header().Set("Content-Type", contentType)
	ww := newPartialWriter(w, r, h.SafariPartialResponseCap)
	err := fragment.MediaSegment(ctx, model, uint32(trackID), first, last+1, uint32(first), offsets[uint32(trackID)], entry.Reader, true, ww)
	if err != nil {
		h.writeError(w, err)
	}
}

func (h *Handler) serveSubtitleSegment(w http.ResponseWriter, entry *cache.Entry, m []string) {
	trackID, _ := strconv.ParseUint(m[1], 10, 32)
	first, _ := strconv.Atoi(m[2])
	last, _ := strconv.Atoi(m[3])
	model, ok := entry.Models[uint32(trackID)]
	if !ok {
		h.writeError(w, errs.ForTrack(errs.UnknownTrack, "track not found", uint32(trackID)))
		return
	}
	cues, err := subtitle.CuesFromTX3G(model, func(i int) ([]byte, error) {
		s := &model.Samples[i]
		buf := make([]byte, s.Size)
		_, err := entry.Reader.ReadAt(context.Background(), buf, s.Offset)
		return buf, err
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	var inRange []subtitle.Cue
	lo := time.Duration(model.Samples[first].CompositionTime) * time.Second / time.Duration(orOne(model.Timescale))
	hi := time.Duration(model.Samples[last].CompositionTime+int64(model.Samples[last].Duration)) * time.Second / time.Duration(orOne(model.Timescale))
	for _, c := range cues {
		if c.End > lo && c.Start < hi {
			inRange = append(inRange, c)
		}
	}
	w.Header().Set("Content-Type", "text/vtt")
	if err := subtitle.WriteWebVTT(w, inRange); err != nil {
		h.writeError(w, err)
	}
}

func isSafari(userAgent string) bool {
	return strings.Contains(userAgent, "Safari") && !strings.Contains(userAgent, "Chrome")
}
