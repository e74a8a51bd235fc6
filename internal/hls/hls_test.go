package hls

import (
	"strings"
	"testing"

	"mp4engine/internal/box"
	"mp4engine/internal/segment"
	"mp4engine/internal/track"
)

func modelWithFourCC(kind track.Kind, fourcc box.Tag) *track.Model {
	return &track.Model{
		Kind:      kind,
		Timescale: 90000,
		Duration:  90000 * 10,
		SampleDesc: &box.SampleDescription{
			Entries: []box.Dummy{{Tag_: fourcc}},
		},
	}
}

func TestMasterPlaylistIncludesStreamInfAndMedia(t *testing.T) {
	video := []Rendition{{TrackID: 1, Model: modelWithFourCC(track.KindVideo, box.Tag(0x61766331))}}
	audio := []Rendition{{TrackID: 2, Model: modelWithFourCC(track.KindAudio, box.Tag(0x6d703461)), Language: "en"}}
	subs := []Rendition{{TrackID: 3, Model: modelWithFourCC(track.KindSubtitle, 0), Language: "fr", Name: "French"}}

	out := MasterPlaylist(video, audio, subs)

	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Fatalf("playlist does not start with #EXTM3U: %q", out)
	}
	if !strings.Contains(out, "#EXT-X-STREAM-INF:") {
		t.Error("missing EXT-X-STREAM-INF for video rendition")
	}
	if !strings.Contains(out, `AUDIO="audio"`) {
		t.Error("video stream-inf should reference the audio group since audio renditions exist")
	}
	if !strings.Contains(out, `SUBTITLES="subs"`) {
		t.Error("video stream-inf should reference the subs group since subtitle renditions exist")
	}
	if !strings.Contains(out, `TYPE=AUDIO`) {
		t.Error("missing EXT-X-MEDIA TYPE=AUDIO")
	}
	if !strings.Contains(out, `LANGUAGE="fr"`) {
		t.Error("missing subtitle LANGUAGE attribute")
	}
	if !strings.Contains(out, `NAME="French"`) {
		t.Error("missing subtitle NAME attribute")
	}
	if !strings.Contains(out, "media.1.m3u8") {
		t.Error("missing video media playlist URI")
	}
}

func TestMasterPlaylistOmitsGroupsWhenAbsent(t *testing.T) {
	video := []Rendition{{TrackID: 1, Model: modelWithFourCC(track.KindVideo, box.Tag(0x61766331))}}
	out := MasterPlaylist(video, nil, nil)
	if strings.Contains(out, "AUDIO=") {
		t.Error("should not reference an audio group when there is no audio")
	}
	if strings.Contains(out, "SUBTITLES=") {
		t.Error("should not reference a subs group when there are no subtitles")
	}
}

func TestMasterPlaylistFirstSubtitleIsDefault(t *testing.T) {
	subs := []Rendition{
		{TrackID: 3, Model: modelWithFourCC(track.KindSubtitle, 0), Language: "en"},
		{TrackID: 4, Model: modelWithFourCC(track.KindSubtitle, 0), Language: "fr"},
	}
	out := MasterPlaylist(nil, nil, subs)
	lines := strings.Split(out, "\n")
	var defaults []string
	for _, l := range lines {
		if strings.Contains(l, "TYPE=SUBTITLES") {
			defaults = append(defaults, l)
		}
	}
	if len(defaults) != 2 {
		t.Fatalf("expected 2 EXT-X-MEDIA subtitle lines, got %d", len(defaults))
	}
	if !strings.Contains(defaults[0], "DEFAULT=YES") {
		t.Error("first subtitle rendition should be DEFAULT=YES")
	}
	if !strings.Contains(defaults[1], "DEFAULT=NO") {
		t.Error("second subtitle rendition should be DEFAULT=NO")
	}
}

func TestMediaPlaylistVideoHasInitMapAndSegments(t *testing.T) {
	ranges := []segment.Range{
		{Start: 0, End: 30, Duration: 30000},
		{Start: 30, End: 60, Duration: 30000},
	}
	out := MediaPlaylist(1, track.KindVideo, ranges, 30000)
	if !strings.Contains(out, `#EXT-X-MAP:URI="init.1.mp4"`) {
		t.Error("video media playlist missing EXT-X-MAP")
	}
	if !strings.Contains(out, "v/c.1.0-29.mp4") {
		t.Error("missing first video segment URI")
	}
	if !strings.Contains(out, "v/c.1.30-59.mp4") {
		t.Error("missing second video segment URI")
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:1") {
		t.Errorf("expected target duration 1 (ceil of 1s segments), got: %s", out)
	}
	if !strings.HasSuffix(strings.TrimRight(out, "\n"), "#EXT-X-ENDLIST") {
		t.Error("media playlist should end with #EXT-X-ENDLIST")
	}
}

func TestMediaPlaylistSubtitleOmitsInitMap(t *testing.T) {
	ranges := []segment.Range{{Start: 0, End: 10, Duration: 10000}}
	out := MediaPlaylist(3, track.KindSubtitle, ranges, 1000)
	if strings.Contains(out, "EXT-X-MAP") {
		t.Error("subtitle media playlist should not reference an init segment")
	}
	if !strings.Contains(out, "s/c.3.0-9.vtt") {
		t.Error("missing subtitle segment URI")
	}
}

func TestExtensionAndPrefixPerKind(t *testing.T) {
	cases := []struct {
		kind   track.Kind
		ext    string
		prefix string
	}{
		{track.KindVideo, "mp4", "v"},
		{track.KindAudio, "m4a", "a"},
		{track.KindSubtitle, "vtt", "s"},
	}
	for _, c := range cases {
		if got := Extension(c.kind); got != c.ext {
			t.Errorf("Extension(%v) = %q, want %q", c.kind, got, c.ext)
		}
		if got := prefixFor(c.kind); got != c.prefix {
			t.Errorf("prefixFor(%v) = %q, want %q", c.kind, got, c.prefix)
		}
	}
}
