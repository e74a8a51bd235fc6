package box

// Movie-fragment boxes (moof/mfhd/traf/tfhd/tfdt/trun). Grounded on
// fmp4io/fragment.go and fmp4io/sampleflags.go; this is the box-codec
// layer only — fragment construction (default values, per-sample flag
// derivation from stss/sdtp) lives in the fragment package, not here.
const MOOF = Tag(0x6d6f6f66)

type MovieFrag struct {
	Header   *MovieFragHeader
	Tracks   []*TrackFrag
	Unknowns []Atom
	AtomPos
}

func (a MovieFrag) Tag() Tag { return MOOF }

func (a MovieFrag) Children() (r []Atom) {
	if a.Header != nil {
		r = append(r, a.Header)
	}
	for _, t := range a.Tracks {
		r = append(r, t)
	}
	return append(r, a.Unknowns...)
}

func (a MovieFrag) Len() (n int) {
	n = 8
	if a.Header != nil {
		n += a.Header.Len()
	}
	for _, t := range a.Tracks {
		n += t.Len()
	}
	for _, u := range a.Unknowns {
		n += u.Len()
	}
	return
}

func (a MovieFrag) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(MOOF))
	n = 8
	if a.Header != nil {
		n += a.Header.Marshal(b[n:])
	}
	for _, t := range a.Tracks {
		n += t.Marshal(b[n:])
	}
	for _, u := range a.Unknowns {
		n += u.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}

func (a *MovieFrag) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	n = 8
	for n+8 <= len(b) {
		size := int(u32be(b[n:]))
		tag := Tag(u32be(b[n+4:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("moof child size invalid", n+offset, nil)
		}
		child := b[n : n+size]
		switch tag {
		case MFHD:
			h := &MovieFragHeader{}
			if _, err = h.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("mfhd", n+offset, err)
			}
			a.Header = h
		case TRAF:
			t := &TrackFrag{}
			if _, err = t.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("traf", n+offset, err)
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

const MFHD = Tag(0x6d666864)

type MovieFragHeader struct {
	Version     uint8
	Flags       uint32
	SequenceNum uint32
	AtomPos
}

func (a MovieFragHeader) Tag() Tag         { return MFHD }
func (a MovieFragHeader) Children() []Atom { return nil }
func (a MovieFragHeader) Len() int         { return 16 }

func (a MovieFragHeader) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(MFHD))
	n = 8
	putU8(b[n:], a.Version)
	n++
	putU24be(b[n:], a.Flags)
	n += 3
	putU32be(b[n:], a.SequenceNum)
	n += 4
	putU32be(b, uint32(n))
	return
}

func (a *MovieFragHeader) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("mfhd truncated", offset, nil)
	}
	n = 8
	a.Version = u8(b[n:])
	n++
	a.Flags = u24be(b[n:])
	n += 3
	a.SequenceNum = u32be(b[n:])
	n += 4
	return n, nil
}

const TRAF = Tag(0x74726166)

type TrackFrag struct {
	Header       *TrackFragHeader
	DecodeTime   *TrackFragDecodeTime
	Runs         []*TrackFragRun
	Unknowns     []Atom
	AtomPos
}

func (a TrackFrag) Tag() Tag { return TRAF }

func (a TrackFrag) Children() (r []Atom) {
	if a.Header != nil {
		r = append(r, a.Header)
	}
	if a.DecodeTime != nil {
		r = append(r, a.DecodeTime)
	}
	for _, run := range a.Runs {
		r = append(r, run)
	}
	return append(r, a.Unknowns...)
}

func (a TrackFrag) Len() (n int) {
	n = 8
	if a.Header != nil {
		n += a.Header.Len()
	}
	if a.DecodeTime != nil {
		n += a.DecodeTime.Len()
	}
	for _, run := range a.Runs {
		n += run.Len()
	}
	for _, u := range a.Unknowns {
		n += u.Len()
	}
	return
}

func (a TrackFrag) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(TRAF))
	n = 8
	if a.Header != nil {
		n += a.Header.Marshal(b[n:])
	}
	if a.DecodeTime != nil {
		n += a.DecodeTime.Marshal(b[n:])
	}
	for _, run := range a.Runs {
		n += run.Marshal(b[n:])
	}
	for _, u := range a.Unknowns {
		n += u.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}

func (a *TrackFrag) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	n = 8
	for n+8 <= len(b) {
		size := int(u32be(b[n:]))
		tag := Tag(u32be(b[n+4:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("traf child size invalid", n+offset, nil)
		}
		child := b[n : n+size]
		switch tag {
		case TFHD:
			h := &TrackFragHeader{}
			if _, err = h.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("tfhd", n+offset, err)
			}
			a.Header = h
		case TFDT:
			d := &TrackFragDecodeTime{}
			if _, err = d.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("tfdt", n+offset, err)
			}
			a.DecodeTime = d
		case TRUN:
			r := &TrackFragRun{}
			if _, err = r.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("trun", n+offset, err)
			}
			a.Runs = append(a.Runs, r)
		default:
			d := &Dummy{}
			d.Unmarshal(child, offset+n)
			a.Unknowns = append(a.Unknowns, d)
		}
		n += size
	}
	return n, nil
}

const TFHD = Tag(0x74666864)

const (
	TfhdBaseDataOffset        uint32 = 0x000001
	TfhdSampleDescIdx         uint32 = 0x000002
	TfhdDefaultSampleDuration uint32 = 0x000008
	TfhdDefaultSampleSize     uint32 = 0x000010
	TfhdDefaultSampleFlags    uint32 = 0x000020
	TfhdDurationIsEmpty       uint32 = 0x010000
	TfhdDefaultBaseIsMoof     uint32 = 0x020000
)

type TrackFragHeader struct {
	Version               uint8
	Flags                 uint32
	TrackID               uint32
	BaseDataOffset        uint64
	SampleDescIdx         uint32
	DefaultSampleDuration uint32
	DefaultSampleSize     uint32
	DefaultSampleFlags    uint32
	AtomPos
}

func (a TrackFragHeader) Tag() Tag         { return TFHD }
func (a TrackFragHeader) Children() []Atom { return nil }

func (a TrackFragHeader) Len() int {
	n := 16
	if a.Flags&TfhdBaseDataOffset != 0 {
		n += 8
	}
	if a.Flags&TfhdSampleDescIdx != 0 {
		n += 4
	}
	if a.Flags&TfhdDefaultSampleDuration != 0 {
		n += 4
	}
	if a.Flags&TfhdDefaultSampleSize != 0 {
		n += 4
	}
	if a.Flags&TfhdDefaultSampleFlags != 0 {
		n += 4
	}
	return n
}

func (a TrackFragHeader) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(TFHD))
	n = 8
	putU8(b[n:], a.Version)
	n++
	putU24be(b[n:], a.Flags)
	n += 3
	putU32be(b[n:], a.TrackID)
	n += 4
	if a.Flags&TfhdBaseDataOffset != 0 {
		putU64be(b[n:], a.BaseDataOffset)
		n += 8
	}
	if a.Flags&TfhdSampleDescIdx != 0 {
		putU32be(b[n:], a.SampleDescIdx)
		n += 4
	}
	if a.Flags&TfhdDefaultSampleDuration != 0 {
		putU32be(b[n:], a.DefaultSampleDuration)
		n += 4
	}
	if a.Flags&TfhdDefaultSampleSize != 0 {
		putU32be(b[n:], a.DefaultSampleSize)
		n += 4
	}
	if a.Flags&TfhdDefaultSampleFlags != 0 {
		putU32be(b[n:], a.DefaultSampleFlags)
		n += 4
	}
	putU32be(b, uint32(n))
	return
}

func (a *TrackFragHeader) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("tfhd truncated", offset, nil)
	}
	n = 8
	a.Version = u8(b[n:])
	n++
	a.Flags = u24be(b[n:])
	n += 3
	a.TrackID = u32be(b[n:])
	n += 4
	if a.Flags&TfhdBaseDataOffset != 0 {
		a.BaseDataOffset = u64be(b[n:])
		n += 8
	}
	if a.Flags&TfhdSampleDescIdx != 0 {
		a.SampleDescIdx = u32be(b[n:])
		n += 4
	}
	if a.Flags&TfhdDefaultSampleDuration != 0 {
		a.DefaultSampleDuration = u32be(b[n:])
		n += 4
	}
	if a.Flags&TfhdDefaultSampleSize != 0 {
		a.DefaultSampleSize = u32be(b[n:])
		n += 4
	}
	if a.Flags&TfhdDefaultSampleFlags != 0 {
		a.DefaultSampleFlags = u32be(b[n:])
		n += 4
	}
	return n, nil
}

const TFDT = Tag(0x74666474)

type TrackFragDecodeTime struct {
	Version    uint8
	Flags      uint32
	BaseMediaDecodeTime uint64
	AtomPos
}

func (a TrackFragDecodeTime) Tag() Tag         { return TFDT }
func (a TrackFragDecodeTime) Children() []Atom { return nil }

func (a TrackFragDecodeTime) Len() int {
	if a.Version == 1 {
		return 20
	}
	return 16
}

func (a TrackFragDecodeTime) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(TFDT))
	n = 8
	putU8(b[n:], a.Version)
	n++
	putU24be(b[n:], a.Flags)
	n += 3
	if a.Version == 1 {
		putU64be(b[n:], a.BaseMediaDecodeTime)
		n += 8
	} else {
		putU32be(b[n:], uint32(a.BaseMediaDecodeTime))
		n += 4
	}
	putU32be(b, uint32(n))
	return
}

func (a *TrackFragDecodeTime) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("tfdt truncated", offset, nil)
	}
	n = 8
	a.Version = u8(b[n:])
	n++
	a.Flags = u24be(b[n:])
	n += 3
	if a.Version == 1 {
		if len(b) < 20 {
			return 0, parseErr("tfdt truncated", offset, nil)
		}
		a.BaseMediaDecodeTime = u64be(b[n:])
		n += 8
	} else {
		a.BaseMediaDecodeTime = uint64(u32be(b[n:]))
		n += 4
	}
	return n, nil
}

const TRUN = Tag(0x7472756e)

const (
	TrunDataOffset       uint32 = 0x000001
	TrunFirstSampleFlags uint32 = 0x000004
	TrunSampleDuration   uint32 = 0x000100
	TrunSampleSize       uint32 = 0x000200
	TrunSampleFlags      uint32 = 0x000400
	TrunSampleCtsOffset  uint32 = 0x000800
)

type TrunEntry struct {
	SampleDuration uint32
	SampleSize     uint32
	SampleFlags    uint32
	CtsOffset      int32
}

type TrackFragRun struct {
	Version          uint8
	Flags            uint32
	DataOffset       int32
	FirstSampleFlags uint32
	Entries          []TrunEntry
	AtomPos
}

func (a TrackFragRun) Tag() Tag         { return TRUN }
func (a TrackFragRun) Children() []Atom { return nil }

func (a TrackFragRun) entrySize() int {
	n := 0
	if a.Flags&TrunSampleDuration != 0 {
		n += 4
	}
	if a.Flags&TrunSampleSize != 0 {
		n += 4
	}
	if a.Flags&TrunSampleFlags != 0 {
		n += 4
	}
	if a.Flags&TrunSampleCtsOffset != 0 {
		n += 4
	}
	return n
}

func (a TrackFragRun) Len() int {
	n := 16
	if a.Flags&TrunDataOffset != 0 {
		n += 4
	}
	if a.Flags&TrunFirstSampleFlags != 0 {
		n += 4
	}
	return n + a.entrySize()*len(a.Entries)
}

func (a TrackFragRun) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(TRUN))
	n = 8
	putU8(b[n:], a.Version)
	n++
	putU24be(b[n:], a.Flags)
	n += 3
	putU32be(b[n:], uint32(len(a.Entries)))
	n += 4
	if a.Flags&TrunDataOffset != 0 {
		putI32be(b[n:], a.DataOffset)
		n += 4
	}
	if a.Flags&TrunFirstSampleFlags != 0 {
		putU32be(b[n:], a.FirstSampleFlags)
		n += 4
	}
	for _, e := range a.Entries {
		if a.Flags&TrunSampleDuration != 0 {
			putU32be(b[n:], e.SampleDuration)
			n += 4
		}
		if a.Flags&TrunSampleSize != 0 {
			putU32be(b[n:], e.SampleSize)
			n += 4
		}
		if a.Flags&TrunSampleFlags != 0 {
			putU32be(b[n:], e.SampleFlags)
			n += 4
		}
		if a.Flags&TrunSampleCtsOffset != 0 {
			if a.Version == 1 {
				putI32be(b[n:], e.CtsOffset)
			} else {
				putU32be(b[n:], uint32(e.CtsOffset))
			}
			n += 4
		}
	}
	putU32be(b, uint32(n))
	return
}

func (a *TrackFragRun) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("trun truncated", offset, nil)
	}
	n = 8
	a.Version = u8(b[n:])
	n++
	a.Flags = u24be(b[n:])
	n += 3
	count := int(u32be(b[n:]))
	n += 4
	if a.Flags&TrunDataOffset != 0 {
		a.DataOffset = i32be(b[n:])
		n += 4
	}
	if a.Flags&TrunFirstSampleFlags != 0 {
		a.FirstSampleFlags = u32be(b[n:])
		n += 4
	}
	sz := a.entrySize()
	if len(b) < n+sz*count {
		return 0, parseErr("trun entries truncated", offset+n, nil)
	}
	a.Entries = make([]TrunEntry, count)
	for i := range a.Entries {
		e := &a.Entries[i]
		if a.Flags&TrunSampleDuration != 0 {
			e.SampleDuration = u32be(b[n:])
			n += 4
		}
		if a.Flags&TrunSampleSize != 0 {
			e.SampleSize = u32be(b[n:])
			n += 4
		}
		if a.Flags&TrunSampleFlags != 0 {
			e.SampleFlags = u32be(b[n:])
			n += 4
		}
		if a.Flags&TrunSampleCtsOffset != 0 {
			if a.Version == 1 {
				e.CtsOffset = i32be(b[n:])
			} else {
				e.CtsOffset = int32(u32be(b[n:]))
			}
			n += 4
		}
	}
	return n, nil
}

// Sample-flags bit layout (reused verbatim from fmp4io/sampleflags.go).
const (
	SampleDependsOnShift    = 24
	SampleIsNonSync  uint32 = 0x00010000
)

// SampleDependsOn values per ISO/IEC 14496-12 §8.8.3.1.
const (
	SampleDependsOnUnknown    uint32 = 0
	SampleDependsOnOthers     uint32 = 1
	SampleDependsOnNoOthers   uint32 = 2
)

func BuildSampleFlags(dependsOn uint32, isNonSync bool) uint32 {
	f := dependsOn << SampleDependsOnShift
	if isNonSync {
		f |= SampleIsNonSync
	}
	return f
}
