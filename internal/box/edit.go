package box

// EditBox (edts) and EditList (elst) have no equivalent in fmp4io; they
// are written here in the same box-family idiom as movie.go/media.go
// (plain child-switch Unmarshal, precomputed Len, single-pass Marshal),
// since faithful edit-list handling drives A/V sync across the whole
// engine.
const EDTS = Tag(0x65647473)

type EditBox struct {
	List *EditList
	AtomPos
}

func (a EditBox) Tag() Tag { return EDTS }
func (a EditBox) Children() []Atom {
	if a.List != nil {
		return []Atom{a.List}
	}
	return nil
}

func (a EditBox) Len() (n int) {
	n = 8
	if a.List != nil {
		n += a.List.Len()
	}
	return
}

func (a EditBox) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(EDTS))
	n = 8
	if a.List != nil {
		n += a.List.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}

func (a *EditBox) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	n = 8
	for n+8 <= len(b) {
		size := int(u32be(b[n:]))
		tag := Tag(u32be(b[n+4:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("edts child size invalid", n+offset, nil)
		}
		if tag == ELST {
			l := &EditList{}
			if _, err = l.Unmarshal(b[n:n+size], offset+n); err != nil {
				return 0, parseErr("elst", n+offset, err)
			}
			a.List = l
		}
		n += size
	}
	return n, nil
}

const ELST = Tag(0x656c7374)

// EditEntry is one (segment_duration, media_time, media_rate) triple.
// MediaTime == -1 denotes an empty edit (dwell); track.classifyEdit
// reduces sequences of these to one of three recognised shapes.
type EditEntry struct {
	SegmentDuration int64
	MediaTime       int64
	MediaRateInt    int16
	MediaRateFrac   int16
}

func (e EditEntry) IsEmpty() bool { return e.MediaTime == -1 }

type EditList struct {
	Version  uint8
	Flags    uint32
	Entries  []EditEntry
	AtomPos
}

func (a EditList) Tag() Tag         { return ELST }
func (a EditList) Children() []Atom { return nil }

func (a EditList) entrySize() int {
	if a.Version == 1 {
		return 8 + 8 + 4
	}
	return 4 + 4 + 4
}

func (a EditList) Len() int { return 8 + 4 + a.entrySize()*len(a.Entries) }

func (a EditList) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(ELST))
	putU8(b[8:], a.Version)
	putU24be(b[9:], a.Flags)
	n = 12
	putU32be(b[n:], uint32(len(a.Entries)))
	n += 4
	for _, e := range a.Entries {
		if a.Version == 1 {
			putU64be(b[n:], uint64(e.SegmentDuration))
			n += 8
			putU64be(b[n:], uint64(e.MediaTime))
			n += 8
		} else {
			putU32be(b[n:], uint32(e.SegmentDuration))
			n += 4
			putI32be(b[n:], int32(e.MediaTime))
			n += 4
		}
		putI16be(b[n:], e.MediaRateInt)
		n += 2
		putI16be(b[n:], e.MediaRateFrac)
		n += 2
	}
	putU32be(b, uint32(n))
	return
}

func (a *EditList) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("elst truncated", offset, nil)
	}
	a.Version = u8(b[8:])
	a.Flags = u24be(b[9:])
	if a.Version > 1 {
		return 0, &versionErr{tag: ELST, version: a.Version, offset: offset}
	}
	n = 12
	count := int(u32be(b[n:]))
	n += 4
	sz := a.entrySize()
	if len(b) < n+sz*count {
		return 0, parseErr("elst entries truncated", offset+n, nil)
	}
	a.Entries = make([]EditEntry, count)
	for i := range a.Entries {
		e := &a.Entries[i]
		if a.Version == 1 {
			e.SegmentDuration = int64(u64be(b[n:]))
			n += 8
			e.MediaTime = int64(u64be(b[n:]))
			n += 8
		} else {
			e.SegmentDuration = int64(u32be(b[n:]))
			n += 4
			e.MediaTime = int64(i32be(b[n:]))
			n += 4
		}
		e.MediaRateInt = i16be(b[n:])
		n += 2
		e.MediaRateFrac = i16be(b[n:])
		n += 2
	}
	return n, nil
}
