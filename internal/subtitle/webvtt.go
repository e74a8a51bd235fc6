package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mp4engine/internal/errs"
)

// WriteWebVTT serializes cues as a WebVTT file: "WEBVTT" header, a blank
// line, then one timestamp line + text block per cue, no cue identifiers
// (grounded on subtitle.rs's extract path, which never emits VTT cue
// numbers, only SRT's do).
func WriteWebVTT(w io.Writer, cues []Cue) error {
	if _, err := io.WriteString(w, "WEBVTT\n\n"); err != nil {
		return errs.Wrap(errs.Io, "write webvtt header", err)
	}
	for _, c := range cues {
		line := fmt.Sprintf("%s --> %s\n%s\n\n", vttTimestamp(c.Start), vttTimestamp(c.End), c.Text)
		if _, err := io.WriteString(w, line); err != nil {
			return errs.Wrap(errs.Io, "write webvtt cue", err)
		}
	}
	return nil
}

func vttTimestamp(d time.Duration) string {
	return formatTimestamp(d, '.')
}

func srtTimestamp(d time.Duration) string {
	return formatTimestamp(d, ',')
}

func formatTimestamp(d time.Duration, sep byte) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hh := ms / 3600000
	ms -= hh * 3600000
	mm := ms / 60000
	ms -= mm * 60000
	ss := ms / 1000
	ms -= ss * 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hh, mm, ss, sep, ms)
}

// ParseWebVTT reads a WebVTT file into Cues: cue identifiers and cue
// settings (position/line/align/size) are accepted but discarded, a
// leading BOM is stripped, and named entities &amp; &lt; &gt; are left
// as-is in cue text (the shared Cue model's text is always in this
// escaped form — see subtitle.go).
func ParseWebVTT(r io.Reader) ([]Cue, error) {
	sc := bufio.NewScanner(stripBOM(r))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var cues []Cue
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(errs.Io, "read webvtt", err)
	}

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) != "WEBVTT" {
		i++
	}
	i++ // past header line

	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}
		if strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE") || strings.HasPrefix(line, "REGION") {
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
				i++
			}
			continue
		}
		timingLine := line
		if !strings.Contains(timingLine, "-->") {
			// this line was a cue identifier; the timing line follows.
			i++
			if i >= len(lines) {
				break
			}
			timingLine = strings.TrimSpace(lines[i])
		}
		start, end, ok := parseVTTTiming(timingLine)
		if !ok {
			i++
			continue
		}
		i++
		var textLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			textLines = append(textLines, lines[i])
			i++
		}
		cues = append(cues, Cue{Start: start, End: end, Text: strings.Join(textLines, "\n")})
	}
	return cues, nil
}

func parseVTTTiming(line string) (start, end time.Duration, ok bool) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	startStr := strings.TrimSpace(parts[0])
	endField := strings.TrimSpace(parts[1])
	endStr := endField
	if sp := strings.IndexAny(endField, " \t"); sp >= 0 {
		endStr = endField[:sp]
	}
	s, err1 := parseTimestamp(startStr)
	e, err2 := parseTimestamp(endStr)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return s, e, true
}

func parseTimestamp(s string) (time.Duration, error) {
	s = strings.ReplaceAll(s, ",", ".")
	var hh, mm int
	var rest string
	switch strings.Count(s, ":") {
	case 2:
		fields := strings.SplitN(s, ":", 3)
		hh64, _ := strconv.Atoi(fields[0])
		mm64, _ := strconv.Atoi(fields[1])
		hh, mm, rest = hh64, mm64, fields[2]
	case 1:
		fields := strings.SplitN(s, ":", 2)
		mm64, _ := strconv.Atoi(fields[0])
		mm, rest = mm64, fields[1]
	default:
		return 0, errs.New(errs.Malformed, "malformed timestamp")
	}
	secParts := strings.SplitN(rest, ".", 2)
	ss, err := strconv.Atoi(secParts[0])
	if err != nil {
		return 0, errs.Wrap(errs.Malformed, "malformed timestamp seconds", err)
	}
	ms := 0
	if len(secParts) == 2 {
		msStr := secParts[1]
		for len(msStr) < 3 {
			msStr += "0"
		}
		ms, _ = strconv.Atoi(msStr[:3])
	}
	total := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second + time.Duration(ms)*time.Millisecond
	return total, nil
}

type bomStrippingReader struct {
	r     *bufio.Reader
	first bool
}

func stripBOM(r io.Reader) io.Reader {
	return &bomStrippingReader{r: bufio.NewReader(r), first: true}
}

func (b *bomStrippingReader) Read(p []byte) (int, error) {
	if b.first {
		b.first = false
		peek, err := b.r.Peek(3)
		if err == nil && len(peek) == 3 && peek[0] == 0xEF && peek[1] == 0xBB && peek[2] == 0xBF {
			b.r.Discard(3)
		}
	}
	return b.r.Read(p)
}

// ConcatSegmented resolves an m3u8 referencing multiple .vtt files into a
// single cue list: each subsequent file's timestamps are offset by the
// cumulative duration of the files before it. A discontinuity marker
// between files is treated as a zero-gap continuation and has no effect
// on the offset.
func ConcatSegmented(files [][]Cue, durations []time.Duration) []Cue {
	var out []Cue
	var offset time.Duration
	for i, cues := range files {
		for _, c := range cues {
			out = append(out, Cue{Start: c.Start + offset, End: c.End + offset, Text: c.Text})
		}
		if i < len(durations) {
			offset += durations[i]
		}
	}
	return out
}
