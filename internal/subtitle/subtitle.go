// Package subtitle converts between TX3G (ISO/IEC 14496-12 §12.6 / 3GPP TS
// 26.245 text samples), WebVTT, and SRT, all through a single timing-
// agnostic Cue model.
//
// Grounded on original_source/mp4lib/src/subtitle.go and
// original_source/mp4lib/src/streaming/subtitle.go's cue/ptime functions
// (timestamp formatting, &/</> escaping, VTT vs SRT end-of-line and
// separator differences) and on _examples/original_source/src/boxes/sbtl.rs
// for the TX3G sample/styl-box layout this package's decoder walks.
package subtitle

import "time"

// Cue is one subtitle entry, already free of any format's on-wire framing.
// Text may contain <b>/<i>/<u> inline tags and HTML-escaped &/</> but
// nothing else — the shared representation every format reads from or
// writes into.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

func escapeText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}

func unescapeText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		switch {
		case hasPrefixAt(s, i, "&amp;"):
			out = append(out, '&')
			i += 5
		case hasPrefixAt(s, i, "&lt;"):
			out = append(out, '<')
			i += 4
		case hasPrefixAt(s, i, "&gt;"):
			out = append(out, '>')
			i += 4
		default:
			out = append(out, s[i])
			i++
		}
	}
	return string(out)
}

func hasPrefixAt(s string, i int, prefix string) bool {
	return i+len(prefix) <= len(s) && s[i:i+len(prefix)] == prefix
}
