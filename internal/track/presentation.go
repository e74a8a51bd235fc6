package track

// PresentationOffsets computes, for every track in models, the constant
// number of that track's own media-timescale units to add to every
// fragment's base decode time so a whole-file edit list's presentation
// delay survives translation into a run of constant-rate segments, which
// have no room for an edit list of their own.
//
// Grounded on the three edit-list shapes this engine recognizes (edit.go):
// a dwell at the head of the presentation (EditDwell/EditDwellShift)
// becomes a constant offset added to every one of that track's segments,
// not just the first, so its decode timeline stays monotonic across
// segment boundaries. An audio track's own lead-in skip — EditShift with a
// positive MediaTimeShift, the common "skip encoder priming samples" case —
// becomes an equivalent delay applied to every OTHER track instead, since
// the audio track's own samples already start at its own zero once
// deriveSamples has subtracted MediaTimeShift from its composition times.
func PresentationOffsets(models map[uint32]*Model, movieTimescale uint32) map[uint32]int64 {
	offsets := make(map[uint32]int64, len(models))

	var audioSkipMovieUnits int64
	var audioSkipTrack uint32
	for id, m := range models {
		if m.Kind != KindAudio {
			continue
		}
		if m.Edit.Shape == EditShift && m.Edit.MediaTimeShift > 0 {
			u := convertTimescale(m.Edit.MediaTimeShift, m.Timescale, movieTimescale)
			if u > audioSkipMovieUnits {
				audioSkipMovieUnits = u
				audioSkipTrack = id
			}
		}
	}

	for id, m := range models {
		var movieUnits int64
		if m.Edit.Shape == EditDwell || m.Edit.Shape == EditDwellShift {
			movieUnits += m.Edit.DwellDuration
		}
		if audioSkipMovieUnits > 0 && id != audioSkipTrack {
			movieUnits += audioSkipMovieUnits
		}
		offsets[id] = convertTimescale(movieUnits, movieTimescale, m.Timescale)
	}
	return offsets
}

func convertTimescale(v int64, from, to uint32) int64 {
	if from == 0 || to == 0 || from == to {
		return v
	}
	return v * int64(to) / int64(from)
}
