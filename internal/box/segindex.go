package box

// SegmentIndex (sidx) lets a player fetch one HLS/CMAF media segment's
// byte range without scanning moof/mdat first. Grounded on
// fmp4io/segindex.go's SAP bit-packing (starts_with_sap always true for
// the fragments this engine produces, since every fragment begins at a
// sample boundary it controls).
const SIDX = Tag(0x73696478)

type SegmentIndexEntry struct {
	ReferenceType      uint8 // 0: media, 1: index
	ReferencedSize     uint32
	SubsegmentDuration uint32
	StartsWithSAP      bool
	SAPType            uint8
	SAPDeltaTime       uint32
}

type SegmentIndex struct {
	Version              uint8
	Flags                uint32
	ReferenceID          uint32
	Timescale            uint32
	EarliestPresentTime  uint64
	FirstOffset          uint64
	Entries              []SegmentIndexEntry
	AtomPos
}

func (a SegmentIndex) Tag() Tag         { return SIDX }
func (a SegmentIndex) Children() []Atom { return nil }

func (a SegmentIndex) Len() int {
	n := 20
	if a.Version == 1 {
		n += 16
	} else {
		n += 8
	}
	n += 4 // reserved + reference_count
	return n + 12*len(a.Entries)
}

func (a SegmentIndex) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(SIDX))
	n = 8
	putU8(b[n:], a.Version)
	n++
	putU24be(b[n:], a.Flags)
	n += 3
	putU32be(b[n:], a.ReferenceID)
	n += 4
	putU32be(b[n:], a.Timescale)
	n += 4
	if a.Version == 1 {
		putU64be(b[n:], a.EarliestPresentTime)
		n += 8
		putU64be(b[n:], a.FirstOffset)
		n += 8
	} else {
		putU32be(b[n:], uint32(a.EarliestPresentTime))
		n += 4
		putU32be(b[n:], uint32(a.FirstOffset))
		n += 4
	}
	n += 2 // reserved
	putU16be(b[n:], uint16(len(a.Entries)))
	n += 2
	for _, e := range a.Entries {
		refType := uint32(e.ReferenceType&1) << 31
		putU32be(b[n:], refType|(e.ReferencedSize&0x7fffffff))
		n += 4
		putU32be(b[n:], e.SubsegmentDuration)
		n += 4
		sap := uint32(0)
		if e.StartsWithSAP {
			sap |= 1 << 31
		}
		sap |= uint32(e.SAPType&0x7) << 28
		sap |= e.SAPDeltaTime & 0x0fffffff
		putU32be(b[n:], sap)
		n += 4
	}
	putU32be(b, uint32(n))
	return
}

func (a *SegmentIndex) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 20 {
		return 0, parseErr("sidx truncated", offset, nil)
	}
	n = 8
	a.Version = u8(b[n:])
	n++
	a.Flags = u24be(b[n:])
	n += 3
	a.ReferenceID = u32be(b[n:])
	n += 4
	a.Timescale = u32be(b[n:])
	n += 4
	if a.Version == 1 {
		if len(b) < n+20 {
			return 0, parseErr("sidx truncated", offset, nil)
		}
		a.EarliestPresentTime = u64be(b[n:])
		n += 8
		a.FirstOffset = u64be(b[n:])
		n += 8
	} else {
		a.EarliestPresentTime = uint64(u32be(b[n:]))
		n += 4
		a.FirstOffset = uint64(u32be(b[n:]))
		n += 4
	}
	n += 2
	count := int(u16be(b[n:]))
	n += 2
	if len(b) < n+12*count {
		return 0, parseErr("sidx entries truncated", offset+n, nil)
	}
	a.Entries = make([]SegmentIndexEntry, count)
	for i := range a.Entries {
		e := &a.Entries[i]
		v := u32be(b[n:])
		n += 4
		e.ReferenceType = uint8(v >> 31)
		e.ReferencedSize = v & 0x7fffffff
		e.SubsegmentDuration = u32be(b[n:])
		n += 4
		sap := u32be(b[n:])
		n += 4
		e.StartsWithSAP = sap>>31 != 0
		e.SAPType = uint8((sap >> 28) & 0x7)
		e.SAPDeltaTime = sap & 0x0fffffff
	}
	return n, nil
}
