package subtitle

import (
	"time"

	"mp4engine/internal/track"
)

// CuesFromTX3G decodes a tx3g subtitle track's samples into Cues. raw
// must return the exact on-disk bytes for sample index i (0-based, same
// indexing as model.Samples); an empty-text sample (TX3G's convention for
// "no cue currently showing") is dropped rather than emitted as a blank
// cue, grounded on subtitle.rs's `if subt.text.as_str() == "" { continue }`.
func CuesFromTX3G(model *track.Model, raw func(i int) ([]byte, error)) ([]Cue, error) {
	var cues []Cue
	for i := range model.Samples {
		data, err := raw(i)
		if err != nil {
			return nil, err
		}
		text, err := TX3GToCueText(data)
		if err != nil {
			return nil, err
		}
		if text == "" {
			continue
		}
		s := &model.Samples[i]
		cues = append(cues, Cue{
			Start: timeOf(s.CompositionTime, model.Timescale),
			End:   timeOf(s.CompositionTime+int64(s.Duration), model.Timescale),
			Text:  text,
		})
	}
	return cues, nil
}

func timeOf(units int64, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	return time.Duration(units) * time.Second / time.Duration(timescale)
}
