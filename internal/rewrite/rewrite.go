// Package rewrite builds a progressive (non-fragmented) MP4 from a parsed
// source file and its derived track models: filtering/renumbering tracks,
// optionally re-interleaving samples across tracks by a rolling time
// window, and streaming the result to a writer without ever holding the
// whole output in memory.
//
// Grounded on format/mp4f/muxer.go's GetInit/moov-construction shape
// (build a fresh Movie from scratch, fill one Track per stream, marshal
// once its exact length is known) and on original_source/src/rewrite.go's
// movie_at_front two-pass offset-patching idea, generalized here into a
// single forward pass that never needs to shift bytes after the fact:
// since a rewrite only changes WHERE samples live, never their sizes or
// per-track timing (stts/ctts/stsz/stss are copied untouched), the sample
// offsets for the new layout can be computed analytically before a single
// output byte is written, exactly once chunking is flattened to one
// sample per chunk.
package rewrite

import (
	"context"
	"io"
	"time"

	"mp4engine/internal/box"
	"mp4engine/internal/errs"
	"mp4engine/internal/ioread"
	"mp4engine/internal/track"
)

type Options struct {
	// TrackIDs restricts output to these original track IDs, in the order
	// given; nil or empty keeps every track in its original order.
	TrackIDs []uint32
	// Interleave groups samples from every kept track into rolling
	// InterleaveWindow buckets (ties broken by original track order)
	// instead of writing each track's samples as one contiguous run.
	Interleave        bool
	InterleaveWindow  time.Duration
	// FreePadding inserts a free box of this many payload bytes between
	// moov and mdat; 0 omits it.
	FreePadding int
}

func DefaultOptions() Options {
	return Options{Interleave: true, InterleaveWindow: 500 * time.Millisecond}
}

type plan struct {
	trak   *box.Track
	model  *track.Model
	newID  uint32
	offset []uint64 // filled in by layout(), one entry per sample
}

type emission struct {
	track  int
	sample int
}

// Rewrite streams a progressive MP4 to w. models is keyed by original
// track ID (the same IDs srcFile.Movie.Tracks carry in their tkhd).
func Rewrite(ctx context.Context, srcFile *box.File, models map[uint32]*track.Model, reader *ioread.File, w io.Writer, opts Options) error {
	if srcFile.Movie == nil {
		return errs.New(errs.Malformed, "no moov in source file")
	}
	plans, err := selectTracks(srcFile, models, opts.TrackIDs)
	if err != nil {
		return err
	}
	order := buildOrder(plans, opts)

	wide := make([]bool, len(plans))
	var ftypeBytes, moovBytes, freeBytes []byte
	var mdatStart int64

	for pass := 0; pass < 3; pass++ {
		moov := buildMoov(srcFile.Movie, plans, wide)
		ft := box.DefaultFileType()
		ftypeBytes = make([]byte, ft.Len())
		ft.Marshal(ftypeBytes)
		moovLen := moov.Len()
		if opts.FreePadding > 0 {
			fr := box.NewFree(opts.FreePadding)
			freeBytes = make([]byte, fr.Len())
			fr.Marshal(freeBytes)
		} else {
			freeBytes = nil
		}
		mdatStart = int64(len(ftypeBytes) + moovLen + len(freeBytes) + 8)

		cur := mdatStart
		overflow := false
		for _, p := range plans {
			p.offset = make([]uint64, len(p.model.Samples))
		}
		for _, e := range order {
			s := &plans[e.track].model.Samples[e.sample]
			plans[e.track].offset[e.sample] = uint64(cur)
			if uint64(cur) > 0xFFFFFFFF && !wide[e.track] {
				overflow = true
			}
			cur += int64(s.Size)
		}
		if !overflow {
			break
		}
		for i := range wide {
			wide[i] = true
		}
	}
	// moov's length depends only on each stco's width, so marshalling it
	// now with the offsets just computed keeps mdatStart valid.
	moov := buildMoov(srcFile.Movie, plans, wide)
	moovBytes = make([]byte, moov.Len())
	moov.Marshal(moovBytes)

	if _, err := w.Write(ftypeBytes); err != nil {
		return errs.Wrap(errs.Io, "write ftyp", err)
	}
	if _, err := w.Write(moovBytes); err != nil {
		return errs.Wrap(errs.Io, "write moov", err)
	}
	if freeBytes != nil {
		if _, err := w.Write(freeBytes); err != nil {
			return errs.Wrap(errs.Io, "write free", err)
		}
	}

	totalPayload := int64(0)
	for _, e := range order {
		totalPayload += int64(plans[e.track].model.Samples[e.sample].Size)
	}
	mdatHeader := make([]byte, 8)
	mdatSize := uint64(8 + totalPayload)
	if mdatSize > 0xFFFFFFFF {
		return errs.New(errs.OutOfRange, "mdat exceeds 32-bit size; 64-bit mdat not supported by this rewriter")
	}
	putU32BE(mdatHeader, uint32(mdatSize))
	copy(mdatHeader[4:], "mdat")
	if _, err := w.Write(mdatHeader); err != nil {
		return errs.Wrap(errs.Io, "write mdat header", err)
	}

	buf := make([]byte, 0, 1<<20)
	for _, e := range order {
		s := &plans[e.track].model.Samples[e.sample]
		if cap(buf) < int(s.Size) {
			buf = make([]byte, s.Size)
		}
		buf = buf[:s.Size]
		if _, err := reader.ReadAt(ctx, buf, s.Offset); err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return errs.Wrap(errs.Io, "write sample", err)
		}
	}
	return nil
}

func putU32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func selectTracks(srcFile *box.File, models map[uint32]*track.Model, ids []uint32) ([]*plan, error) {
	var plans []*plan
	order := srcFile.Movie.Tracks
	if len(ids) > 0 {
		byID := map[uint32]*box.Track{}
		for _, t := range srcFile.Movie.Tracks {
			if t.Header != nil {
				byID[t.Header.TrackID] = t
			}
		}
		order = nil
		for _, id := range ids {
			t, ok := byID[id]
			if !ok {
				return nil, errs.ForTrack(errs.UnknownTrack, "track not found in source", id)
			}
			order = append(order, t)
		}
	}
	for i, t := range order {
		m, ok := models[t.Header.TrackID]
		if !ok {
			return nil, errs.ForTrack(errs.UnknownTrack, "no derived model for track", t.Header.TrackID)
		}
		plans = append(plans, &plan{trak: t, model: m, newID: uint32(i + 1)})
	}
	return plans, nil
}

func buildOrder(plans []*plan, opts Options) []emission {
	if !opts.Interleave {
		var order []emission
		for i, p := range plans {
			for s := range p.model.Samples {
				order = append(order, emission{i, s})
			}
		}
		return order
	}

	windowNs := int64(opts.InterleaveWindow)
	if windowNs <= 0 {
		windowNs = int64(500 * time.Millisecond)
	}
	cursors := make([]int, len(plans))
	var order []emission
	for {
		minNs, any := int64(0), false
		for i, p := range plans {
			if cursors[i] >= len(p.model.Samples) {
				continue
			}
			ns := toNs(p.model.Samples[cursors[i]].DecodeTime, p.model.Timescale)
			if !any || ns < minNs {
				minNs, any = ns, true
			}
		}
		if !any {
			break
		}
		windowEnd := minNs + windowNs
		for {
			progressed := false
			for i, p := range plans {
				for cursors[i] < len(p.model.Samples) {
					ns := toNs(p.model.Samples[cursors[i]].DecodeTime, p.model.Timescale)
					if ns >= windowEnd {
						break
					}
					order = append(order, emission{i, cursors[i]})
					cursors[i]++
					progressed = true
				}
			}
			if !progressed {
				break
			}
		}
	}
	return order
}

func toNs(t uint64, timescale uint32) int64 {
	if timescale == 0 {
		return int64(t)
	}
	return int64(t) * int64(time.Second) / int64(timescale)
}

// buildMoov assembles the output moov: per-track stsc/stco are rebuilt
// flat (one sample per chunk, renumbered offsets); every other box is
// carried over from the source track unchanged. No mvex is emitted —
// this is always a progressive, non-fragmented file.
func buildMoov(src *box.Movie, plans []*plan, wide []bool) *box.Movie {
	out := &box.Movie{Header: copyMovieHeader(src.Header, uint32(len(plans)+1))}
	for i, p := range plans {
		out.Tracks = append(out.Tracks, buildTrack(p, wide[i]))
	}
	out.Unknowns = src.Unknowns
	return out
}

func copyMovieHeader(h *box.MovieHeader, nextTrackID uint32) *box.MovieHeader {
	if h == nil {
		return &box.MovieHeader{TimeScale: 1000, NextTrackID: nextTrackID}
	}
	cp := *h
	cp.NextTrackID = nextTrackID
	return &cp
}

func buildTrack(p *plan, wide bool) *box.Track {
	srcStbl := p.trak.Media.Info.Sample
	n := len(p.model.Samples)
	stco := &box.ChunkOffset{Wide: wide, Entries: make([]uint64, n)}
	for i, off := range p.offset {
		stco.Entries[i] = off
	}
	stsc := &box.SampleToChunk{Entries: make([]box.SampleToChunkEntry, n)}
	for i := 0; i < n; i++ {
		stsc.Entries[i] = box.SampleToChunkEntry{FirstChunk: uint32(i + 1), SamplesPerChunk: 1, SampleDescID: 1}
	}

	stbl := &box.SampleTable{
		SampleDesc:        srcStbl.SampleDesc,
		TimeToSample:      srcStbl.TimeToSample,
		CompositionOffset: srcStbl.CompositionOffset,
		SampleToChunk:     stsc,
		SampleSize:        srcStbl.SampleSize,
		ChunkOffset:       stco,
		SyncSample:        srcStbl.SyncSample,
		SampleDependency:  srcStbl.SampleDependency,
		Unknowns:          srcStbl.Unknowns,
	}

	header := *p.trak.Header
	header.TrackID = p.newID

	info := *p.trak.Media.Info
	info.Sample = stbl

	media := *p.trak.Media
	media.Info = &info

	return &box.Track{
		Header:   &header,
		Edit:     p.trak.Edit,
		Media:    &media,
		Unknowns: p.trak.Unknowns,
	}
}
