// Package fragment builds CMAF-style init and media segments: an init
// segment carries ftyp+moov with empty sample tables and mvex/trex
// defaults, a media segment carries styp+sidx?+moof+mdat for one run of
// samples from one track.
//
// Grounded on format/mp4f/muxer.go's GetInit/moof-building shape
// (buildMvex/buildTrex, moof.Len() precomputed before Marshal to fill in
// trun's DataOffset) generalized from vdk's single-hardcoded-trex-per-
// track to the trex-defaults rule in original_source/src/fragment.go's
// track_extends: a track with an stss gets sample_depends_on=1 plus a
// non-sync default (most samples aren't sync points); a track with no
// stss at all gets sample_depends_on=2 ("no dependencies", i.e. every
// sample is equivalent — true for audio).
package fragment

import (
	"context"
	"io"

	"mp4engine/internal/box"
	"mp4engine/internal/errs"
	"mp4engine/internal/ioread"
	"mp4engine/internal/track"
)

// InitSegment builds ftyp+moov (empty stbl, populated mvex/trex) for the
// given tracks, renumbered sequentially starting at 1 in the order given.
func InitSegment(srcMovie *box.Movie, models []*track.Model) ([]byte, error) {
	if srcMovie == nil || len(models) == 0 {
		return nil, errs.New(errs.Malformed, "no tracks to build an init segment from")
	}
	srcByID := map[uint32]*box.Track{}
	for _, t := range srcMovie.Tracks {
		if t.Header != nil {
			srcByID[t.Header.TrackID] = t
		}
	}

	moov := &box.Movie{
		Header: copyMovieHeader(srcMovie.Header, uint32(len(models)+1)),
		MovieExtend: &box.MovieExtend{},
	}
	for i, m := range models {
		srcTrak, ok := srcByID[m.TrackID]
		if !ok {
			return nil, errs.ForTrack(errs.UnknownTrack, "no source track for model", m.TrackID)
		}
		newID := uint32(i + 1)
		moov.Tracks = append(moov.Tracks, buildInitTrack(srcTrak, m, newID))
		moov.MovieExtend.Tracks = append(moov.MovieExtend.Tracks, buildTrex(m, newID))
	}

	ft := box.DefaultFileType()
	out := make([]byte, ft.Len()+moov.Len())
	n := ft.Marshal(out)
	moov.Marshal(out[n:])
	return out, nil
}

func copyMovieHeader(h *box.MovieHeader, nextTrackID uint32) *box.MovieHeader {
	if h == nil {
		return &box.MovieHeader{TimeScale: 1000, NextTrackID: nextTrackID}
	}
	cp := *h
	cp.NextTrackID = nextTrackID
	return &cp
}

// buildInitTrack carries stsd/handler/mdhd/tkhd forward unchanged but
// empties the sample table: an init segment describes codec parameters,
// never sample data.
func buildInitTrack(src *box.Track, m *track.Model, newID uint32) *box.Track {
	header := *src.Header
	header.TrackID = newID

	mediaHeader := *src.Media.Header

	info := *src.Media.Info
	info.Sample = &box.SampleTable{SampleDesc: src.Media.Info.Sample.SampleDesc}

	media := *src.Media
	media.Header = &mediaHeader
	media.Info = &info

	return &box.Track{Header: &header, Media: &media}
}

func buildTrex(m *track.Model, newID uint32) *box.TrackExtend {
	dependsOn := box.SampleDependsOnNoOthers
	isNonSync := false
	if m.HasSyncTable {
		dependsOn = box.SampleDependsOnOthers
		isNonSync = true
	}
	var defaultDuration uint32
	if len(m.Samples) > 0 {
		defaultDuration = m.Samples[0].Duration
	}
	return &box.TrackExtend{
		TrackID:               newID,
		DefaultSampleDescIdx:  1,
		DefaultSampleDuration: defaultDuration,
		DefaultSampleFlags:    box.BuildSampleFlags(dependsOn, isNonSync),
	}
}

// MediaSegment streams styp+sidx?+moof+mdat for samples [start,end) of
// model to w, under trackID (the renumbered ID used in the init segment).
// presentationOffset (track.PresentationOffsets) is added to the segment's
// tfdt to carry a whole-file edit-list dwell/skip across segment
// boundaries that no longer have an edit list to express it in.
func MediaSegment(ctx context.Context, model *track.Model, trackID uint32, start, end int, sequenceNum uint32, presentationOffset int64, reader *ioread.File, withSidx bool, w io.Writer) error {
	if start < 0 || end > len(model.Samples) || start >= end {
		return errs.ForTrack(errs.OutOfRange, "sample range out of bounds", model.TrackID)
	}

	traf := buildTraf(model, trackID, start, end, presentationOffset)
	moof := &box.MovieFrag{
		Header: &box.MovieFragHeader{SequenceNum: sequenceNum},
		Tracks: []*box.TrackFrag{traf},
	}

	// trun's DataOffset is relative to the moof start and must point past
	// moof+mdat's header to the first sample byte (format/mp4f/muxer.go's
	// Finalize sets this the same way, after moof.Len() is known). The
	// flag is set before the first Len() call since it changes the box's
	// size; the value itself does not.
	traf.Runs[0].Flags |= box.TrunDataOffset
	moofLen := moof.Len()
	traf.Runs[0].DataOffset = int32(moofLen + 8)

	var totalSize int64
	for i := start; i < end; i++ {
		totalSize += int64(model.Samples[i].Size)
	}

	var segDuration uint32
	for i := start; i < end; i++ {
		segDuration += model.Samples[i].Duration
	}

	var sidxBytes []byte
	if withSidx {
		sidx := &box.SegmentIndex{
			Version:             1,
			ReferenceID:         trackID,
			Timescale:           model.Timescale,
			EarliestPresentTime: model.Samples[start].DecodeTime,
			Entries: []box.SegmentIndexEntry{{
				ReferencedSize:     uint32(moofLen + 8 + int(totalSize)),
				SubsegmentDuration: segDuration,
				StartsWithSAP:      true,
				SAPType:            1,
			}},
		}
		sidxBytes = make([]byte, sidx.Len())
		sidx.Marshal(sidxBytes)
	}

	st := box.DefaultSegmentType()
	stypBytes := make([]byte, st.Len())
	st.Marshal(stypBytes)

	moofBytes := make([]byte, moofLen)
	moof.Marshal(moofBytes)
	mdatHeader := make([]byte, 8)
	putU32BE(mdatHeader, uint32(8+totalSize))
	copy(mdatHeader[4:], "mdat")

	for _, chunk := range [][]byte{stypBytes, sidxBytes, moofBytes, mdatHeader} {
		if chunk == nil {
			continue
		}
		if _, err := w.Write(chunk); err != nil {
			return errs.Wrap(errs.Io, "write segment header", err)
		}
	}

	buf := make([]byte, 0, 1<<20)
	for i := start; i < end; i++ {
		s := &model.Samples[i]
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

func buildTraf(model *track.Model, trackID uint32, start, end int, presentationOffset int64) *box.TrackFrag {
	run := &box.TrackFragRun{
		Version: 1,
		Flags:   box.TrunSampleDuration | box.TrunSampleSize | box.TrunSampleFlags | box.TrunSampleCtsOffset,
	}
	base := uint64(int64(model.Samples[start].DecodeTime) + presentationOffset)
	for i := start; i < end; i++ {
		s := &model.Samples[i]
		dependsOn := box.SampleDependsOnOthers
		if s.IsSync {
			dependsOn = box.SampleDependsOnNoOthers
		}
		run.Entries = append(run.Entries, box.TrunEntry{
			SampleDuration: s.Duration,
			SampleSize:     s.Size,
			SampleFlags:    box.BuildSampleFlags(dependsOn, !s.IsSync),
			CtsOffset:      int32(s.CompositionTime - int64(s.DecodeTime)),
		})
	}
	return &box.TrackFrag{
		Header: &box.TrackFragHeader{
			Flags:   box.TfhdDefaultBaseIsMoof,
			TrackID: trackID,
		},
		DecodeTime: &box.TrackFragDecodeTime{Version: 1, BaseMediaDecodeTime: base},
		Runs:       []*box.TrackFragRun{run},
	}
}

func putU32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
