package subtitle

import (
	"fmt"
	"io"

	"mp4engine/internal/errs"
)

// WriteSRT serializes cues as SubRip: a 1-based sequence number, a
// comma-separated timestamp line, the cue text, and a blank separator
// line. Grounded on subtitle.rs's `cue` function's SRT branch (CRLF line
// endings, sequence numbers, comma millisecond separator); <b>/<i>/<u>
// pass through unchanged since SRT tolerates the same inline tags WebVTT
// does — this is pure reuse of the Cue model's already-resolved text, no
// new markup translation.
func WriteSRT(w io.Writer, cues []Cue) error {
	for i, c := range cues {
		_, err := fmt.Fprintf(w, "%d\r\n%s --> %s\r\n%s\r\n\r\n", i+1, srtTimestamp(c.Start), srtTimestamp(c.End), c.Text)
		if err != nil {
			return errs.Wrap(errs.Io, "write srt cue", err)
		}
	}
	return nil
}
