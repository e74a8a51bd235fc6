package track

import (
	"mp4engine/internal/box"
	"mp4engine/internal/errs"
)

// EditShape names which of the three edit-list patterns this engine
// understands a track's elst reduces to. Anything else is rejected with
// UnsupportedEditList rather than guessed at.
type EditShape int

const (
	EditNone EditShape = iota
	// EditDwell is a single empty entry: the track's presentation is
	// delayed by SegmentDuration movie-time units before any media
	// plays, but no sample's media-time mapping changes.
	EditDwell
	// EditShift is a single non-empty, whole-track entry: every sample's
	// composition time is shifted by MediaTime (the common case for an
	// audio track whose encoder priming samples must be skipped).
	EditShift
	// EditDwellShift combines both: an initial empty entry followed by
	// exactly one non-empty entry.
	EditDwellShift
)

type EditResult struct {
	Shape          EditShape
	DwellDuration  int64 // movie-timescale units; 0 unless Shape has a dwell
	MediaTimeShift int64 // media-timescale units subtracted from every ctts offset
}

// classifyEdit reduces an elst to one of the three shapes above, or
// returns an UnsupportedEditList error: anything else fails fast rather
// than silently mis-rendering A/V sync.
func classifyEdit(list *box.EditList) (EditResult, error) {
	if list == nil || len(list.Entries) == 0 {
		return EditResult{Shape: EditNone}, nil
	}
	entries := list.Entries

	if len(entries) == 1 {
		e := entries[0]
		if e.IsEmpty() {
			return EditResult{Shape: EditDwell, DwellDuration: e.SegmentDuration}, nil
		}
		return EditResult{Shape: EditShift, MediaTimeShift: e.MediaTime}, nil
	}

	if len(entries) == 2 && entries[0].IsEmpty() && !entries[1].IsEmpty() {
		return EditResult{
			Shape:          EditDwellShift,
			DwellDuration:  entries[0].SegmentDuration,
			MediaTimeShift: entries[1].MediaTime,
		}, nil
	}

	return EditResult{}, errs.New(errs.UnsupportedEditList, "edit list does not reduce to dwell/shift/dwell+shift")
}
