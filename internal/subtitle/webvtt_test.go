package subtitle

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWriteWebVTTAndParseRoundTrip(t *testing.T) {
	cues := []Cue{
		{Start: 0, End: 2500 * time.Millisecond, Text: "hello"},
		{Start: 3 * time.Second, End: 4200 * time.Millisecond, Text: "a &amp; b"},
	}

	var buf bytes.Buffer
	if err := WriteWebVTT(&buf, cues); err != nil {
		t.Fatalf("WriteWebVTT: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "WEBVTT\n\n") {
		t.Fatalf("missing WEBVTT header: %q", buf.String())
	}

	got, err := ParseWebVTT(&buf)
	if err != nil {
		t.Fatalf("ParseWebVTT: %v", err)
	}
	if len(got) != len(cues) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(cues))
	}
	for i, c := range cues {
		if got[i].Start != c.Start || got[i].End != c.End || got[i].Text != c.Text {
			t.Errorf("cue %d = %+v, want %+v", i, got[i], c)
		}
	}
}

func TestParseWebVTTStripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFWEBVTT\n\n00:00:00.000 --> 00:00:01.000\nhi\n\n"
	cues, err := ParseWebVTT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseWebVTT: %v", err)
	}
	if len(cues) != 1 || cues[0].Text != "hi" {
		t.Fatalf("cues = %+v", cues)
	}
}

func TestParseWebVTTAcceptsCueIdentifiers(t *testing.T) {
	input := "WEBVTT\n\n1\n00:00:01.000 --> 00:00:02.000\nfirst line\nsecond line\n\n"
	cues, err := ParseWebVTT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseWebVTT: %v", err)
	}
	if len(cues) != 1 {
		t.Fatalf("len(cues) = %d, want 1", len(cues))
	}
	if cues[0].Text != "first line\nsecond line" {
		t.Errorf("text = %q", cues[0].Text)
	}
	if cues[0].Start != time.Second || cues[0].End != 2*time.Second {
		t.Errorf("timing = %v..%v", cues[0].Start, cues[0].End)
	}
}

func TestParseWebVTTSkipsNoteAndStyleBlocks(t *testing.T) {
	input := "WEBVTT\n\nNOTE this is a comment\nspanning lines\n\n" +
		"STYLE\n::cue { color: red }\n\n" +
		"00:00:00.000 --> 00:00:01.000\nreal cue\n\n"
	cues, err := ParseWebVTT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseWebVTT: %v", err)
	}
	if len(cues) != 1 || cues[0].Text != "real cue" {
		t.Fatalf("cues = %+v", cues)
	}
}

func TestParseWebVTTIgnoresCueSettings(t *testing.T) {
	input := "WEBVTT\n\n00:00:00.000 --> 00:00:01.000 position:50% line:0\nhi\n\n"
	cues, err := ParseWebVTT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseWebVTT: %v", err)
	}
	if len(cues) != 1 || cues[0].Text != "hi" {
		t.Fatalf("cues = %+v", cues)
	}
	if cues[0].End != time.Second {
		t.Errorf("End = %v, want 1s", cues[0].End)
	}
}

func TestFormatTimestampHoursMinutesSeconds(t *testing.T) {
	d := 1*time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond
	if got := vttTimestamp(d); got != "01:02:03.456" {
		t.Errorf("vttTimestamp = %q", got)
	}
	if got := srtTimestamp(d); got != "01:02:03,456" {
		t.Errorf("srtTimestamp = %q", got)
	}
}

func TestConcatSegmentedOffsetsSubsequentFiles(t *testing.T) {
	files := [][]Cue{
		{{Start: 0, End: time.Second, Text: "a"}},
		{{Start: 0, End: time.Second, Text: "b"}},
	}
	durations := []time.Duration{2 * time.Second}

	got := ConcatSegmented(files, durations)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Start != 0 || got[0].End != time.Second {
		t.Errorf("first file unaffected, got %+v", got[0])
	}
	if got[1].Start != 2*time.Second || got[1].End != 3*time.Second {
		t.Errorf("second file offset by first file's duration, got %+v", got[1])
	}
}

func TestConcatSegmentedMissingDurationStopsAccumulating(t *testing.T) {
	files := [][]Cue{
		{{Start: 0, End: time.Second, Text: "a"}},
		{{Start: 0, End: time.Second, Text: "b"}},
	}
	got := ConcatSegmented(files, nil)
	if got[1].Start != 0 {
		t.Errorf("expected no offset without a duration entry, got %+v", got[1])
	}
}
