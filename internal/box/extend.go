package box

// MovieExtend (mvex) and TrackExtend (trex) mark a moov as fragmented and
// carry per-track sample-flag defaults for fragments that omit them.
// Grounded on fmp4io/extend.go, generalized only insofar as TrackExtend's
// DefaultSampleFlags value is computed by the fragment layer per the
// trex-defaults rule in fragment.rs's track_extends (stss present ->
// depends_on=1 + non-sync default; absent -> depends_on=2, "no dependencies").
const MVEX = Tag(0x6d766578)

type MovieExtend struct {
	Tracks   []*TrackExtend
	Unknowns []Atom
	AtomPos
}

func (a MovieExtend) Tag() Tag { return MVEX }

func (a MovieExtend) Children() (r []Atom) {
	for _, t := range a.Tracks {
		r = append(r, t)
	}
	return append(r, a.Unknowns...)
}

func (a MovieExtend) Len() (n int) {
	n = 8
	for _, t := range a.Tracks {
		n += t.Len()
	}
	for _, u := range a.Unknowns {
		n += u.Len()
	}
	return
}

func (a MovieExtend) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(MVEX))
	n = 8
	for _, t := range a.Tracks {
		n += t.Marshal(b[n:])
	}
	for _, u := range a.Unknowns {
		n += u.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}

func (a *MovieExtend) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	n = 8
	for n+8 <= len(b) {
		size := int(u32be(b[n:]))
		tag := Tag(u32be(b[n+4:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("mvex child size invalid", n+offset, nil)
		}
		child := b[n : n+size]
		switch tag {
		case TREX:
			t := &TrackExtend{}
			if _, err = t.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("trex", n+offset, err)
			}
			a.Tracks = append(a.Tracks, t)
		default:
			d := &Dummy{}
			d.Unmarshal(child, offset+n)
			a.Unknowns = append(a.Unknowns, d)
		}
		n += size
	}
	return n, nil
}

const TREX = Tag(0x74726578)

type TrackExtend struct {
	Version               uint8
	Flags                 uint32
	TrackID               uint32
	DefaultSampleDescIdx  uint32
	DefaultSampleDuration uint32
	DefaultSampleSize     uint32
	DefaultSampleFlags    uint32
	AtomPos
}

func (a TrackExtend) Tag() Tag         { return TREX }
func (a TrackExtend) Children() []Atom { return nil }
func (a TrackExtend) Len() int         { return 32 }

func (a TrackExtend) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(TREX))
	n = 8
	putU8(b[n:], a.Version)
	n++
	putU24be(b[n:], a.Flags)
	n += 3
	putU32be(b[n:], a.TrackID)
	n += 4
	putU32be(b[n:], a.DefaultSampleDescIdx)
	n += 4
	putU32be(b[n:], a.DefaultSampleDuration)
	n += 4
	putU32be(b[n:], a.DefaultSampleSize)
	n += 4
	putU32be(b[n:], a.DefaultSampleFlags)
	n += 4
	putU32be(b, uint32(n))
	return
}

func (a *TrackExtend) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 32 {
		return 0, parseErr("trex truncated", offset, nil)
	}
	n = 8
	a.Version = u8(b[n:])
	n++
	a.Flags = u24be(b[n:])
	n += 3
	a.TrackID = u32be(b[n:])
	n += 4
	a.DefaultSampleDescIdx = u32be(b[n:])
	n += 4
	a.DefaultSampleDuration = u32be(b[n:])
	n += 4
	a.DefaultSampleSize = u32be(b[n:])
	n += 4
	a.DefaultSampleFlags = u32be(b[n:])
	n += 4
	return n, nil
}
