// Package segment cuts a track's samples into the ranges the fragmenter
// and HLS manifest layers hand out as individual HTTP resources.
//
// Grounded on original_source/mp4lib/src/streaming/segment.go's
// track_to_segments (cut on sync samples, target a duration, let the last
// range absorb the remainder) and track_to_segments_timed (reuse another
// track's cut points, converted across timescales, for tracks with no
// sync table of their own). The upstream squish/squish_subtitle merge
// passes that coalesce short trailing ranges are not carried over; this
// engine accepts the occasional short final segment instead.
package segment

import "mp4engine/internal/track"

// Range is a half-open sample index range, [Start, End), with its
// presentation span in the track's own media timescale.
type Range struct {
	Start, End int
	StartTime  int64
	Duration   int64
}

// BySyncPoint cuts model into ranges starting at sync samples (model.Samples
// IsSync) that each target roughly targetUnits of media-timescale duration,
// never splitting mid-GOP. Tracks with no sync table (every sample is
// considered sync, per SyncSample.IsSync's nil-receiver rule) are cut on
// fixed duration boundaries instead.
func BySyncPoint(model *track.Model, targetUnits int64) []Range {
	if len(model.Samples) == 0 {
		return nil
	}
	var ranges []Range
	segStart := 0
	segDuration := int64(0)
	for i := range model.Samples {
		s := &model.Samples[i]
		if i > segStart && s.IsSync && segDuration >= targetUnits {
			ranges = append(ranges, Range{
				Start:     segStart,
				End:       i,
				StartTime: int64(model.Samples[segStart].DecodeTime),
				Duration:  segDuration,
			})
			segStart = i
			segDuration = 0
		}
		segDuration += int64(s.Duration)
	}
	ranges = append(ranges, Range{
		Start:     segStart,
		End:       len(model.Samples),
		StartTime: int64(model.Samples[segStart].DecodeTime),
		Duration:  segDuration,
	})
	return ranges
}

// Timed re-derives ranges for model using another track's cut points
// (typically the video track's BySyncPoint output), converting each
// boundary's presentation time from fromTimescale into model's own
// timescale. Used to segment audio at the same wall-clock points as video
// without requiring audio to carry its own sync table.
func Timed(model *track.Model, timing []Range, fromTimescale uint32) []Range {
	if len(model.Samples) == 0 || len(timing) == 0 {
		return nil
	}
	to := model.Timescale
	boundaries := make([]int64, 0, len(timing)+1)
	for _, r := range timing {
		boundaries = append(boundaries, convert(r.StartTime, fromTimescale, to))
	}
	boundaries = append(boundaries, convert(timing[len(timing)-1].StartTime+timing[len(timing)-1].Duration, fromTimescale, to))

	var ranges []Range
	sampleIdx := 0
	for b := 0; b+1 < len(boundaries); b++ {
		start := sampleIdx
		for sampleIdx < len(model.Samples) && int64(model.Samples[sampleIdx].DecodeTime) < boundaries[b+1] {
			sampleIdx++
		}
		if b == len(boundaries)-2 {
			sampleIdx = len(model.Samples)
		}
		if sampleIdx <= start {
			continue
		}
		ranges = append(ranges, Range{
			Start:     start,
			End:       sampleIdx,
			StartTime: int64(model.Samples[start].DecodeTime),
			Duration:  int64(model.Samples[sampleIdx-1].DecodeTime) + int64(model.Samples[sampleIdx-1].Duration) - int64(model.Samples[start].DecodeTime),
		})
	}
	return ranges
}

func convert(v int64, from, to uint32) int64 {
	if from == 0 || to == 0 || from == to {
		return v
	}
	return v * int64(to) / int64(from)
}
