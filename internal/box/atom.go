// Package box implements the ISO-BMFF box tree: parsing, serialisation and
// a size-without-materialising contract (Len) needed to precompute
// stco/co64 offsets before a single output byte is written.
//
// The shape is grounded on the deepch/vdk fmp4io package's Atom interface
// (Marshal/Unmarshal/Len/Children, with a Dummy passthrough for unknown
// box kinds); it is generalized here to cover the full moov/trak/edts/stbl
// family, signed version-1 ctts, a co64 variant of stco, and the
// moof/traf fragment family needed by the fragmenter.
package box

import (
	"fmt"
	"strings"

	"mp4engine/internal/errs"
)

// Tag is a four-character-code box type, packed into a uint32.
type Tag uint32

func (t Tag) String() string {
	var b [4]byte
	putU32be(b[:], uint32(t))
	for i := range b {
		if b[i] == 0 {
			b[i] = ' '
		}
	}
	return string(b[:])
}

func StringToTag(s string) Tag {
	var b [4]byte
	copy(b[:], s)
	return Tag(u32be(b[:]))
}

// Atom is satisfied by every in-memory box that can round-trip through
// Marshal/Unmarshal. MediaDataBox deliberately does not implement it: its
// payload is addressed by offset and streamed, never materialised.
type Atom interface {
	Pos() (offset, size int)
	Tag() Tag
	Marshal(b []byte) int
	Unmarshal(b []byte, offset int) (int, error)
	Len() int
	Children() []Atom
}

type AtomPos struct {
	Offset int
	Size   int
}

func (a AtomPos) Pos() (int, int) { return a.Offset, a.Size }

func (a *AtomPos) setPos(offset, size int) { a.Offset, a.Size = offset, size }

// Dummy preserves an unrecognised box kind opaquely so it round-trips
// byte-exact; unknown box kinds are never an error.
type Dummy struct {
	Tag_ Tag
	Data []byte
	AtomPos
}

func (a Dummy) Tag() Tag          { return a.Tag_ }
func (a Dummy) Len() int          { return len(a.Data) }
func (a Dummy) Children() []Atom  { return nil }
func (a Dummy) Marshal(b []byte) int {
	copy(b, a.Data)
	return len(a.Data)
}
func (a *Dummy) Unmarshal(b []byte, offset int) (int, error) {
	a.setPos(offset, len(b))
	a.Data = append([]byte(nil), b...)
	return len(b), nil
}

// FullAtom is the common (version, flags) header of a "full box".
type FullAtom struct {
	Version uint8
	Flags   uint32
	AtomPos
}

func (f FullAtom) marshalAtom(b []byte, tag Tag) int {
	putU32be(b[4:], uint32(tag))
	putU8(b[8:], f.Version)
	putU24be(b[9:], f.Flags)
	return 12
}

func (f FullAtom) atomLen() int { return 12 }

func (f *FullAtom) unmarshalAtom(b []byte, offset int) (int, error) {
	f.setPos(offset, len(b))
	if len(b) < 12 {
		return 0, errs.At(errs.Malformed, "full box header truncated", int64(offset))
	}
	f.Version = u8(b[8:])
	f.Flags = u24be(b[9:])
	return 12, nil
}

// FindChildren performs a depth-first search for the first descendant
// (including root) with the given tag.
func FindChildren(root Atom, tag Tag) Atom {
	if root.Tag() == tag {
		return root
	}
	for _, c := range root.Children() {
		if r := FindChildren(c, tag); r != nil {
			return r
		}
	}
	return nil
}

func FindChildrenByName(root Atom, name string) Atom {
	return FindChildren(root, StringToTag(name))
}

func parseErr(what string, offset int, cause error) error {
	if cause != nil {
		return errs.Wrap(errs.Malformed, what, cause)
	}
	return errs.At(errs.Malformed, what, int64(offset))
}

func FprintAtom(sb *strings.Builder, root Atom, depth int) {
	offset, size := root.Pos()
	fmt.Fprintf(sb, "%s%s offset=%d size=%d\n", strings.Repeat(" ", depth*2), root.Tag(), offset, size)
	for _, c := range root.Children() {
		FprintAtom(sb, c, depth+1)
	}
}
