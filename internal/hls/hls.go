// Package hls renders HLS manifests — the master playlist and one
// per-track media playlist — over a movie's derived track models.
//
// Grounded on original_source/mp4lib/src/streaming/hls.rs's hls_master
// (EXT-X-MEDIA per audio/subtitle track, grouped by language, EXT-X-
// STREAM-INF per video rendition) and hls_track (EXT-X-MAP + one EXTINF/
// URI pair per segment.Range, target duration = ceiling of the longest
// segment). The ExtXMedia/ExtXStreamInf attribute writers follow that
// file's Display impls translated into Go string building; the upstream's
// filesystem-scanned external-subtitle discovery and name-based forced/
// SDH sniffing are out of scope here — subtitle sources are either
// embedded tx3g tracks or explicitly addressed WebVTT files, never
// directory scans.
package hls

import (
	"fmt"
	"math"
	"strings"

	"mp4engine/internal/segment"
	"mp4engine/internal/track"
)

const extM3U8Version = 6

// Rendition describes one track as it should be advertised in the master
// playlist: its renumbered ID (matching the init/media segment URIs) and
// display language.
type Rendition struct {
	TrackID  uint32
	Model    *track.Model
	Language string // BCP-47-ish tag, e.g. "en"; empty if unknown
	Name     string // display name, e.g. "English" or "Commentary"
}

// MasterPlaylist renders the #EXTM3U main.m3u8 playlist: EXT-X-MEDIA for every audio
// and subtitle rendition, grouped into "audio"/"subs" groups, followed by
// one EXT-X-STREAM-INF + URI pair per video rendition referencing that
// audio/subtitle group.
func MasterPlaylist(video, audio, subtitle []Rendition) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", extM3U8Version)

	hasAudio := len(audio) > 0
	hasSubs := len(subtitle) > 0

	for _, r := range audio {
		writeExtXMedia(&b, "AUDIO", "audio", r, false)
	}
	for i, r := range subtitle {
		writeExtXMedia(&b, "SUBTITLES", "subs", r, i == 0)
	}

	for _, r := range video {
		avgBandwidth := bandwidthOf(r.Model)
		b.WriteString("#EXT-X-STREAM-INF:")
		fmt.Fprintf(&b, "BANDWIDTH=%d,", avgBandwidth)
		if hasAudio {
			b.WriteString(`AUDIO="audio",`)
		}
		if hasSubs {
			b.WriteString(`SUBTITLES="subs",`)
		}
		fmt.Fprintf(&b, "CODECS=\"%s\"\n", codecTag(r.Model))
		fmt.Fprintf(&b, "media.%d.m3u8\n", r.TrackID)
	}
	return b.String()
}

func writeExtXMedia(b *strings.Builder, typ, groupID string, r Rendition, isDefault bool) {
	b.WriteString("#EXT-X-MEDIA:")
	fmt.Fprintf(b, "TYPE=%s,", typ)
	fmt.Fprintf(b, `GROUP-ID="%s",`, groupID)
	fmt.Fprintf(b, `NAME="%s",`, nameOrDefault(r.Name, r.Language))
	if r.Language != "" {
		fmt.Fprintf(b, `LANGUAGE="%s",`, r.Language)
	}
	fmt.Fprintf(b, "AUTOSELECT=%s,", yesNo(true))
	fmt.Fprintf(b, "DEFAULT=%s,", yesNo(isDefault))
	fmt.Fprintf(b, `URI="media.%d.m3u8"`, r.TrackID)
	b.WriteString("\n")
}

func nameOrDefault(name, lang string) string {
	if name != "" {
		return name
	}
	if lang != "" {
		return lang
	}
	return "Undetermined"
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

func bandwidthOf(m *track.Model) uint64 {
	var total uint64
	for i := range m.Samples {
		total += uint64(m.Samples[i].Size)
	}
	durSec := float64(m.Duration) / float64(orOne(m.Timescale))
	if durSec < 1 {
		durSec = 1
	}
	return uint64(float64(total*8) / durSec)
}

func orOne(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

func codecTag(m *track.Model) string {
	if m.SampleDesc == nil {
		return ""
	}
	return m.SampleDesc.FourCC().String()
}

// Extension returns the segment file suffix for a track's kind.
func Extension(k track.Kind) string {
	switch k {
	case track.KindVideo:
		return "mp4"
	case track.KindAudio:
		return "m4a"
	case track.KindSubtitle:
		return "vtt"
	default:
		return "mp4"
	}
}

func prefixFor(k track.Kind) string {
	switch k {
	case track.KindVideo:
		return "v"
	case track.KindAudio:
		return "a"
	case track.KindSubtitle:
		return "s"
	default:
		return "v"
	}
}

// MediaPlaylist renders a VOD per-track playlist: EXT-X-MAP pointing at
// the track's init segment (omitted for subtitle tracks, which have no
// init segment) followed by one EXTINF/URI pair per segment.Range.
func MediaPlaylist(trackID uint32, kind track.Kind, ranges []segment.Range, timescale uint32) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", extM3U8Version)
	b.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDuration(ranges, timescale))
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	if kind != track.KindSubtitle {
		fmt.Fprintf(&b, "#EXT-X-MAP:URI=\"init.%d.mp4\"\n", trackID)
	}

	prefix := prefixFor(kind)
	ext := Extension(kind)
	for _, r := range ranges {
		durSec := float64(r.Duration) / float64(orOne(timescale))
		fmt.Fprintf(&b, "#EXTINF:%.5f,\n", durSec)
		fmt.Fprintf(&b, "%s/c.%d.%d-%d.%s\n", prefix, trackID, r.Start, r.End-1, ext)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

func targetDuration(ranges []segment.Range, timescale uint32) int {
	var longest int64
	for _, r := range ranges {
		if r.Duration > longest {
			longest = r.Duration
		}
	}
	durSec := float64(longest) / float64(orOne(timescale))
	return int(math.Ceil(durSec))
}
