package subtitle

import (
	"encoding/binary"
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"mp4engine/internal/errs"
)

const (
	styleBold      = 1 << 0
	styleItalic    = 1 << 1
	styleUnderline = 1 << 2
)

type styleRun struct {
	start, end int // UTF-16 code-unit offsets into the decoded text, per styl's own units
	flags      uint8
}

// TX3GToCueText decodes one tx3g text sample (ETSI TS 126 245 §5.17): a
// 2-byte length-prefixed string followed by zero or more modifier boxes,
// of which only "styl" (§5.17.1.1) is honored. Returns escaped, tagged
// cue text ready to drop into a WebVTT or SRT cue body. An empty sample
// (length-prefix of 0, the "clear the previous cue" marker TX3G uses
// between cues) decodes to "" with no error.
func TX3GToCueText(data []byte) (string, error) {
	if len(data) < 2 {
		return "", errs.New(errs.Malformed, "tx3g sample too short for length prefix")
	}
	textLen := int(binary.BigEndian.Uint16(data))
	if 2+textLen > len(data) {
		return "", errs.New(errs.Malformed, "tx3g text length exceeds sample size")
	}
	raw := data[2 : 2+textLen]
	text := decodeTx3gText(raw)
	if text == "" {
		return "", nil
	}

	offsets := utf16ByteOffsets(text)
	unitCount := len(offsets) - 1

	var runs []styleRun
	pos := 2 + textLen
	for pos+8 <= len(data) {
		boxSize := int(binary.BigEndian.Uint32(data[pos:]))
		fourcc := string(data[pos+4 : pos+8])
		if boxSize < 8 || pos+boxSize > len(data) {
			break
		}
		if fourcc == "styl" {
			runs = append(runs, parseStylBox(data[pos+8:pos+boxSize], unitCount)...)
		}
		pos += boxSize
	}

	return renderWithStyles(text, offsets, runs), nil
}

// utf16ByteOffsets maps each UTF-16 code-unit index of text, 0 through the
// total unit count inclusive, to the UTF-8 byte offset in text at which that
// unit starts. styl's start/end fields are counted in UTF-16 code units
// (ETSI TS 126 245 §5.17.1.1), not bytes, so a styled run can only be sliced
// out of the UTF-8 decoded text through this table. A surrogate pair's two
// units both map to the byte offset of the rune they jointly encode, since
// UTF-8 has no representation for "half a character".
func utf16ByteOffsets(text string) []int {
	offsets := make([]int, 0, len(text)+1)
	byteIdx := 0
	for _, r := range text {
		units := 1
		if r > 0xFFFF {
			units = 2
		}
		for i := 0; i < units; i++ {
			offsets = append(offsets, byteIdx)
		}
		byteIdx += utf8.RuneLen(r)
	}
	return append(offsets, byteIdx)
}

// decodeTx3gText decodes raw per TX3G's convention: a leading 0xFEFF/0xFFFE
// byte-order mark means UTF-16 (big/little endian respectively), otherwise
// the bytes are UTF-8.
func decodeTx3gText(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		return decodeUTF16(raw[2:], binary.BigEndian)
	}
	if len(raw) >= 2 && raw[0] == 0xFF && raw[1] == 0xFE {
		return decodeUTF16(raw[2:], binary.LittleEndian)
	}
	return string(raw)
}

func decodeUTF16(raw []byte, order binary.ByteOrder) string {
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = order.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(units))
}

func parseStylBox(b []byte, unitCount int) []styleRun {
	if len(b) < 2 {
		return nil
	}
	count := int(binary.BigEndian.Uint16(b))
	var runs []styleRun
	off := 2
	for i := 0; i < count && off+12 <= len(b); i++ {
		start := int(binary.BigEndian.Uint16(b[off:]))
		end := int(binary.BigEndian.Uint16(b[off+2:]))
		faceStyle := b[off+6]
		off += 12
		if end > unitCount {
			end = unitCount
		}
		if start >= end {
			continue
		}
		var flags uint8
		if faceStyle&0x01 != 0 {
			flags |= styleBold
		}
		if faceStyle&0x02 != 0 {
			flags |= styleItalic
		}
		if faceStyle&0x04 != 0 {
			flags |= styleUnderline
		}
		if flags != 0 {
			runs = append(runs, styleRun{start: start, end: end, flags: flags})
		}
	}
	return runs
}

// renderWithStyles wraps each non-overlapping styleRun in <b>/<i>/<u> tags
// (outer-to-inner in that order) and HTML-escapes the whole text. Runs are
// assumed non-overlapping, as styl entries describe distinct spans. offsets
// converts each run's UTF-16 code-unit start/end into the UTF-8 byte offsets
// text is actually sliced on.
func renderWithStyles(text string, offsets []int, runs []styleRun) string {
	if len(runs) == 0 {
		return escapeText(text)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].start < runs[j].start })

	var out []byte
	cursor := 0
	for _, r := range runs {
		start, end := offsets[r.start], offsets[r.end]
		if start < cursor {
			continue
		}
		out = append(out, escapeText(text[cursor:start])...)
		out = append(out, openTags(r.flags)...)
		out = append(out, escapeText(text[start:end])...)
		out = append(out, closeTags(r.flags)...)
		cursor = end
	}
	out = append(out, escapeText(text[cursor:])...)
	return string(out)
}

func openTags(flags uint8) string {
	s := ""
	if flags&styleBold != 0 {
		s += "<b>"
	}
	if flags&styleItalic != 0 {
		s += "<i>"
	}
	if flags&styleUnderline != 0 {
		s += "<u>"
	}
	return s
}

func closeTags(flags uint8) string {
	s := ""
	if flags&styleUnderline != 0 {
		s += "</u>"
	}
	if flags&styleItalic != 0 {
		s += "</i>"
	}
	if flags&styleBold != 0 {
		s += "</b>"
	}
	return s
}
