// Package track derives a flat per-sample model from a trak's box tree:
// decode time, composition time, file offset and size for every sample,
// plus the sync/dependency flags fragments need.
//
// Grounded on original_source/src/sample_info.go's SampleInfoIterator,
// which is the only place that actually walks stsz/stts/stsc/ctts/stss
// together into per-sample records (fmp4io only defines the boxes, never
// derives anything from them); the derivation algorithm is carried over
// from sample_info.rs while the Go shape (plain exported struct,
// constructor function, no iterator protocol) builds one
// fully-materialised slice rather than a lazy iterator.
package track

import (
	"mp4engine/internal/box"
	"mp4engine/internal/errs"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindVideo
	KindAudio
	KindSubtitle
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindSubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

func kindOf(h *box.HandlerRef) Kind {
	if h == nil {
		return KindUnknown
	}
	switch h.HandlerType {
	case box.HandlerVideo:
		return KindVideo
	case box.HandlerSound:
		return KindAudio
	case box.HandlerSubtitle, box.Handler3GSub:
		return KindSubtitle
	default:
		return KindUnknown
	}
}

// Sample is one fully-resolved sample: where it lives in the source file,
// how big it is, and when it decodes/presents.
type Sample struct {
	Index           uint32 // 1-based, matches stss numbering
	DecodeTime      uint64 // cumulative, media timescale units
	Duration        uint32 // this sample's stts duration
	CompositionTime int64  // DecodeTime + ctts offset, shifted by edit list
	Offset          int64  // absolute file offset
	Size            uint32
	IsSync          bool
	ChunkIndex      int // 0-based
}

// Model is the derived per-track view the rewrite/fragment/hls/subtitle
// layers all build on; none of them touch *box.Track directly.
type Model struct {
	TrackID    uint32
	Kind       Kind
	Timescale  uint32
	Duration   uint64
	Language   int16
	SampleDesc *box.SampleDescription
	Samples    []Sample
	Edit       EditResult
	// HasSyncTable reports whether the source stbl carried an stss; the
	// fragment layer's trex default-sample-depends-on value depends on
	// this rather than on any individual sample's flag (fragment.go's
	// track_extends rule in original_source).
	HasSyncTable bool
}

// Build derives a Model from a parsed trak. It takes no movie timescale;
// callers converting between movie time and media time read it from mvhd.
func Build(trak *box.Track) (*Model, error) {
	if trak.Header == nil || trak.Media == nil || trak.Media.Info == nil || trak.Media.Info.Sample == nil {
		return nil, errs.ForTrack(errs.Malformed, "track missing header/media/sample table", trackIDOf(trak))
	}
	stbl := trak.Media.Info.Sample
	m := &Model{
		TrackID:      trak.Header.TrackID,
		Kind:         kindOf(trak.Media.Handler),
		SampleDesc:   stbl.SampleDesc,
		HasSyncTable: stbl.SyncSample != nil,
	}
	if trak.Media.Header != nil {
		m.Timescale = trak.Media.Header.TimeScale
		m.Duration = uint64(trak.Media.Header.Duration)
		m.Language = trak.Media.Header.Language
	}

	var editList *box.EditList
	if trak.Edit != nil {
		editList = trak.Edit.List
	}
	edit, err := classifyEdit(editList)
	if err != nil {
		return nil, errs.ForTrack(errs.KindOf(err), err.Error(), m.TrackID)
	}
	m.Edit = edit

	samples, err := deriveSamples(stbl, edit.MediaTimeShift)
	if err != nil {
		return nil, errs.ForTrack(errs.KindOf(err), err.Error(), m.TrackID)
	}
	m.Samples = samples
	return m, nil
}

func trackIDOf(trak *box.Track) uint32 {
	if trak.Header != nil {
		return trak.Header.TrackID
	}
	return 0
}

func deriveSamples(stbl *box.SampleTable, mediaTimeShift int64) ([]Sample, error) {
	if stbl.TimeToSample == nil || stbl.SampleSize == nil || stbl.SampleToChunk == nil || stbl.ChunkOffset == nil {
		return nil, errs.New(errs.Malformed, "sample table missing stts/stsz/stsc/stco")
	}

	total := 0
	for _, e := range stbl.TimeToSample.Entries {
		total += int(e.Count)
	}

	sizes, err := expandSizes(stbl.SampleSize, total)
	if err != nil {
		return nil, err
	}
	if len(sizes) != total {
		return nil, errs.New(errs.Malformed, "stsz sample count does not match stts")
	}

	samples := make([]Sample, total)

	// Decode time + duration, from stts.
	var dt uint64
	idx := 0
	for _, e := range stbl.TimeToSample.Entries {
		for i := uint32(0); i < e.Count && idx < total; i++ {
			samples[idx].DecodeTime = dt
			samples[idx].Duration = e.Duration
			dt += uint64(e.Duration)
			idx++
		}
	}

	// Composition offset, from ctts (defaults to 0, i.e. equal to decode
	// time, when the track has no ctts at all).
	if stbl.CompositionOffset != nil {
		idx = 0
		for _, e := range stbl.CompositionOffset.Entries {
			for i := uint32(0); i < e.Count && idx < total; i++ {
				samples[idx].CompositionTime = int64(samples[idx].DecodeTime) + int64(e.Offset) - mediaTimeShift
				idx++
			}
		}
		for ; idx < total; idx++ {
			samples[idx].CompositionTime = int64(samples[idx].DecodeTime) - mediaTimeShift
		}
	} else {
		for i := range samples {
			samples[i].CompositionTime = int64(samples[i].DecodeTime) - mediaTimeShift
		}
	}

	// Offsets, from stsc (chunk layout) + stco/co64 (chunk base offsets) +
	// sizes (intra-chunk stepping).
	if err := fillOffsets(samples, sizes, stbl.SampleToChunk, stbl.ChunkOffset); err != nil {
		return nil, err
	}

	for i := range samples {
		samples[i].Index = uint32(i + 1)
		samples[i].Size = sizes[i]
		samples[i].IsSync = stbl.SyncSample.IsSync(samples[i].Index)
	}

	return samples, nil
}

func expandSizes(sz *box.SampleSize, total int) ([]uint32, error) {
	if sz.SampleSize != 0 {
		sizes := make([]uint32, total)
		for i := range sizes {
			sizes[i] = sz.SampleSize
		}
		return sizes, nil
	}
	return sz.Entries, nil
}

func fillOffsets(samples []Sample, sizes []uint32, stsc *box.SampleToChunk, stco *box.ChunkOffset) error {
	if len(stsc.Entries) == 0 {
		return errs.New(errs.Malformed, "stsc has no entries")
	}
	sampleIdx := 0
	chunkCount := len(stco.Entries)
	for run := 0; run < len(stsc.Entries); run++ {
		firstChunk := int(stsc.Entries[run].FirstChunk)
		samplesPerChunk := int(stsc.Entries[run].SamplesPerChunk)
		var lastChunk int
		if run+1 < len(stsc.Entries) {
			lastChunk = int(stsc.Entries[run+1].FirstChunk) - 1
		} else {
			lastChunk = chunkCount
		}
		for chunk := firstChunk; chunk <= lastChunk; chunk++ {
			if chunk-1 >= chunkCount {
				return errs.New(errs.Malformed, "stsc references chunk beyond stco")
			}
			offset := int64(stco.Entries[chunk-1])
			for i := 0; i < samplesPerChunk; i++ {
				if sampleIdx >= len(samples) {
					return errs.New(errs.Malformed, "stsc/stsz sample count mismatch")
				}
				samples[sampleIdx].Offset = offset
				samples[sampleIdx].ChunkIndex = chunk - 1
				offset += int64(sizes[sampleIdx])
				sampleIdx++
			}
		}
	}
	if sampleIdx != len(samples) {
		return errs.New(errs.Malformed, "stsc did not account for every sample")
	}
	return nil
}
