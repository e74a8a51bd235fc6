package box

// Sample-table boxes. Grounded on fmp4io/sampletable.go, generalized in
// two places fmp4io did not need: CompositionOffset now carries signed
// int32 offsets and a version flag (v0 unsigned / v1 signed), and
// ChunkOffset gains a co64 (64-bit) sibling selected at serialisation
// time by whichever caller builds the table — the choice between co64
// and stco lives in the track/rewrite layers, not here, since this type
// only knows how to carry either width.

const STBL = Tag(0x7374626c)

type SampleTable struct {
	SampleDesc        *SampleDescription
	TimeToSample      *TimeToSample
	CompositionOffset *CompositionOffset
	SampleToChunk     *SampleToChunk
	SampleSize        *SampleSize
	ChunkOffset       *ChunkOffset
	SyncSample        *SyncSample
	SampleDependency  *SampleDependency
	Unknowns          []Atom
	AtomPos
}

func (a SampleTable) Tag() Tag { return STBL }

func (a SampleTable) Children() (r []Atom) {
	if a.SampleDesc != nil {
		r = append(r, a.SampleDesc)
	}
	if a.TimeToSample != nil {
		r = append(r, a.TimeToSample)
	}
	if a.CompositionOffset != nil {
		r = append(r, a.CompositionOffset)
	}
	if a.SampleToChunk != nil {
		r = append(r, a.SampleToChunk)
	}
	if a.SampleSize != nil {
		r = append(r, a.SampleSize)
	}
	if a.ChunkOffset != nil {
		r = append(r, a.ChunkOffset)
	}
	if a.SyncSample != nil {
		r = append(r, a.SyncSample)
	}
	if a.SampleDependency != nil {
		r = append(r, a.SampleDependency)
	}
	return append(r, a.Unknowns...)
}

func (a SampleTable) Len() (n int) {
	n = 8
	for _, c := range a.Children() {
		n += c.Len()
	}
	return
}

func (a SampleTable) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(STBL))
	n = 8
	for _, c := range a.Children() {
		n += c.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}

func (a *SampleTable) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	n = 8
	for n+8 <= len(b) {
		size := int(u32be(b[n:]))
		tag := Tag(u32be(b[n+4:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("stbl child size invalid", n+offset, nil)
		}
		child := b[n : n+size]
		switch tag {
		case STSD:
			s := &SampleDescription{}
			if _, err = s.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("stsd", n+offset, err)
			}
			a.SampleDesc = s
		case STTS:
			s := &TimeToSample{}
			if _, err = s.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("stts", n+offset, err)
			}
			a.TimeToSample = s
		case CTTS:
			c := &CompositionOffset{}
			if _, err = c.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("ctts", n+offset, err)
			}
			a.CompositionOffset = c
		case STSC:
			s := &SampleToChunk{}
			if _, err = s.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("stsc", n+offset, err)
			}
			a.SampleToChunk = s
		case STSZ, STZ2:
			s := &SampleSize{}
			if _, err = s.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("stsz", n+offset, err)
			}
			a.SampleSize = s
		case STCO, CO64:
			c := &ChunkOffset{}
			if _, err = c.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("stco", n+offset, err)
			}
			a.ChunkOffset = c
		case STSS:
			s := &SyncSample{}
			if _, err = s.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("stss", n+offset, err)
			}
			a.SyncSample = s
		case SDTP:
			s := &SampleDependency{}
			s.Unmarshal(child, offset+n)
			a.SampleDependency = s
		default:
			d := &Dummy{}
			d.Unmarshal(child, offset+n)
			a.Unknowns = append(a.Unknowns, d)
		}
		n += size
	}
	return n, nil
}

const STSD = Tag(0x73747364)

// SampleDescription holds one opaque entry per codec configuration
// ("avc1", "mp4a", "tx3g", ...). This engine never decodes or encodes
// sample-entry internals, so each entry is preserved byte-exact rather
// than parsed into codec-specific fields.
type SampleDescription struct {
	Version uint8
	Flags   uint32
	Entries []Dummy
	AtomPos
}

func (a SampleDescription) Tag() Tag         { return STSD }
func (a SampleDescription) Children() []Atom { return nil }

func (a SampleDescription) Len() (n int) {
	n = 16
	for _, e := range a.Entries {
		n += e.Len()
	}
	return
}

func (a SampleDescription) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(STSD))
	putU8(b[8:], a.Version)
	putU24be(b[9:], a.Flags)
	putU32be(b[12:], uint32(len(a.Entries)))
	n = 16
	for _, e := range a.Entries {
		n += e.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}

func (a *SampleDescription) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("stsd truncated", offset, nil)
	}
	a.Version = u8(b[8:])
	a.Flags = u24be(b[9:])
	count := int(u32be(b[12:]))
	n = 16
	for i := 0; i < count && n+8 <= len(b); i++ {
		size := int(u32be(b[n:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("stsd entry size invalid", n+offset, nil)
		}
		var e Dummy
		e.Tag_ = Tag(u32be(b[n+4:]))
		e.Unmarshal(b[n:n+size], offset+n)
		a.Entries = append(a.Entries, e)
		n += size
	}
	return n, nil
}

// FourCC returns the codec fourcc of the first (only) sample entry, or 0.
func (a SampleDescription) FourCC() Tag {
	if len(a.Entries) == 0 {
		return 0
	}
	return a.Entries[0].Tag_
}

const STTS = Tag(0x73747473)

type TimeToSampleEntry struct {
	Count    uint32
	Duration uint32
}

type TimeToSample struct {
	Version uint8
	Flags   uint32
	Entries []TimeToSampleEntry
	AtomPos
}

func (a TimeToSample) Tag() Tag         { return STTS }
func (a TimeToSample) Children() []Atom { return nil }
func (a TimeToSample) Len() int         { return 16 + 8*len(a.Entries) }

func (a TimeToSample) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(STTS))
	putU8(b[8:], a.Version)
	putU24be(b[9:], a.Flags)
	putU32be(b[12:], uint32(len(a.Entries)))
	n = 16
	for _, e := range a.Entries {
		putU32be(b[n:], e.Count)
		n += 4
		putU32be(b[n:], e.Duration)
		n += 4
	}
	putU32be(b, uint32(n))
	return
}

func (a *TimeToSample) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("stts truncated", offset, nil)
	}
	a.Version = u8(b[8:])
	a.Flags = u24be(b[9:])
	count := int(u32be(b[12:]))
	n = 16
	if len(b) < n+8*count {
		return 0, parseErr("stts entries truncated", offset+n, nil)
	}
	a.Entries = make([]TimeToSampleEntry, count)
	for i := range a.Entries {
		a.Entries[i].Count = u32be(b[n:])
		n += 4
		a.Entries[i].Duration = u32be(b[n:])
		n += 4
	}
	return n, nil
}

const CTTS = Tag(0x63747473)

type CompositionOffsetEntry struct {
	Count  uint32
	Offset int32 // always signed here; v0 unsigned values fit losslessly
}

// CompositionOffset is ctts; version 0 offsets are unsigned on the wire
// but never negative, so a shared signed Go field covers both versions
// without a second type.
type CompositionOffset struct {
	Version uint8
	Flags   uint32
	Entries []CompositionOffsetEntry
	AtomPos
}

func (a CompositionOffset) Tag() Tag         { return CTTS }
func (a CompositionOffset) Children() []Atom { return nil }
func (a CompositionOffset) Len() int         { return 16 + 8*len(a.Entries) }

func (a CompositionOffset) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(CTTS))
	putU8(b[8:], a.Version)
	putU24be(b[9:], a.Flags)
	putU32be(b[12:], uint32(len(a.Entries)))
	n = 16
	for _, e := range a.Entries {
		putU32be(b[n:], e.Count)
		n += 4
		if a.Version == 1 {
			putI32be(b[n:], e.Offset)
		} else {
			putU32be(b[n:], uint32(e.Offset))
		}
		n += 4
	}
	putU32be(b, uint32(n))
	return
}

func (a *CompositionOffset) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("ctts truncated", offset, nil)
	}
	a.Version = u8(b[8:])
	a.Flags = u24be(b[9:])
	if a.Version > 1 {
		return 0, &versionErr{tag: CTTS, version: a.Version, offset: offset}
	}
	count := int(u32be(b[12:]))
	n = 16
	if len(b) < n+8*count {
		return 0, parseErr("ctts entries truncated", offset+n, nil)
	}
	a.Entries = make([]CompositionOffsetEntry, count)
	for i := range a.Entries {
		a.Entries[i].Count = u32be(b[n:])
		n += 4
		if a.Version == 1 {
			a.Entries[i].Offset = i32be(b[n:])
		} else {
			a.Entries[i].Offset = int32(u32be(b[n:]))
		}
		n += 4
	}
	return n, nil
}

const STSC = Tag(0x73747363)

type SampleToChunkEntry struct {
	FirstChunk      uint32
	SamplesPerChunk uint32
	SampleDescID    uint32
}

type SampleToChunk struct {
	Version uint8
	Flags   uint32
	Entries []SampleToChunkEntry
	AtomPos
}

func (a SampleToChunk) Tag() Tag         { return STSC }
func (a SampleToChunk) Children() []Atom { return nil }
func (a SampleToChunk) Len() int         { return 16 + 12*len(a.Entries) }

func (a SampleToChunk) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(STSC))
	putU8(b[8:], a.Version)
	putU24be(b[9:], a.Flags)
	putU32be(b[12:], uint32(len(a.Entries)))
	n = 16
	for _, e := range a.Entries {
		putU32be(b[n:], e.FirstChunk)
		n += 4
		putU32be(b[n:], e.SamplesPerChunk)
		n += 4
		putU32be(b[n:], e.SampleDescID)
		n += 4
	}
	putU32be(b, uint32(n))
	return
}

func (a *SampleToChunk) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("stsc truncated", offset, nil)
	}
	a.Version = u8(b[8:])
	a.Flags = u24be(b[9:])
	count := int(u32be(b[12:]))
	n = 16
	if len(b) < n+12*count {
		return 0, parseErr("stsc entries truncated", offset+n, nil)
	}
	a.Entries = make([]SampleToChunkEntry, count)
	for i := range a.Entries {
		a.Entries[i].FirstChunk = u32be(b[n:])
		n += 4
		a.Entries[i].SamplesPerChunk = u32be(b[n:])
		n += 4
		a.Entries[i].SampleDescID = u32be(b[n:])
		n += 4
	}
	return n, nil
}

const (
	STSZ = Tag(0x7374737a)
	STZ2 = Tag(0x73747a32)
)

// SampleSize is stsz; stz2 (compact sizes) is accepted on parse and
// normalised into the same uint32 slice, then always re-emitted as stsz
// (this engine never needs the sub-byte compactness stz2 buys an encoder).
type SampleSize struct {
	Version     uint8
	Flags       uint32
	SampleSize  uint32 // nonzero means every sample has this size
	Entries     []uint32
	AtomPos
}

func (a SampleSize) Tag() Tag         { return STSZ }
func (a SampleSize) Children() []Atom { return nil }

func (a SampleSize) Len() int {
	if a.SampleSize != 0 {
		return 20
	}
	return 20 + 4*len(a.Entries)
}

func (a SampleSize) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(STSZ))
	putU8(b[8:], a.Version)
	putU24be(b[9:], a.Flags)
	putU32be(b[12:], a.SampleSize)
	n = 16
	if a.SampleSize != 0 {
		putU32be(b[n:], 0)
		n += 4
		putU32be(b, uint32(n))
		return
	}
	putU32be(b[n:], uint32(len(a.Entries)))
	n += 4
	for _, sz := range a.Entries {
		putU32be(b[n:], sz)
		n += 4
	}
	putU32be(b, uint32(n))
	return
}

func (a *SampleSize) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 20 {
		return 0, parseErr("stsz truncated", offset, nil)
	}
	a.Version = u8(b[8:])
	a.Flags = u24be(b[9:])
	if Tag(u32be(b[4:])) == STZ2 {
		bits, count := int(b[15]), int(u32be(b[16:]))
		if n = 20 + (bits*count+7)/8; (bits != 4 && bits != 8 && bits != 16) || len(b) < n {
			return 0, parseErr("stz2 entries truncated or bad field size", offset+20, nil)
		}
		a.Entries = make([]uint32, count)
		for i := range a.Entries {
			v := uint32(b[20+i*bits/8])
			if bits == 16 {
				v = v<<8 | uint32(b[21+i*2])
			}
			a.Entries[i] = v >> (uint(bits%8) * uint(1-i%2)) & (1<<uint(bits) - 1)
		}
		return n, nil
	}
	a.SampleSize = u32be(b[12:])
	count := int(u32be(b[16:]))
	n = 20
	if a.SampleSize == 0 {
		if len(b) < n+4*count {
			return 0, parseErr("stsz entries truncated", offset+n, nil)
		}
		a.Entries = make([]uint32, count)
		for i := range a.Entries {
			a.Entries[i] = u32be(b[n:])
			n += 4
		}
	}
	return n, nil
}

const (
	STCO = Tag(0x7374636f)
	CO64 = Tag(0x636f3634)
)

// ChunkOffset carries either stco (32-bit) or co64 (64-bit) entries; the
// 64-bit flag is decided by the caller that builds the table (spec
// §4.2's stco/co64 overflow rule lives in the rewrite/fragment layers,
// which know the final file layout before this box is ever marshaled).
type ChunkOffset struct {
	Wide    bool
	Entries []uint64
	AtomPos
}

func (a ChunkOffset) Tag() Tag {
	if a.Wide {
		return CO64
	}
	return STCO
}
func (a ChunkOffset) Children() []Atom { return nil }

func (a ChunkOffset) Len() int {
	if a.Wide {
		return 16 + 8*len(a.Entries)
	}
	return 16 + 4*len(a.Entries)
}

func (a ChunkOffset) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(a.Tag()))
	putU32be(b[8:], 0) // version/flags, always 0
	putU32be(b[12:], uint32(len(a.Entries)))
	n = 16
	for _, o := range a.Entries {
		if a.Wide {
			putU64be(b[n:], o)
			n += 8
		} else {
			putU32be(b[n:], uint32(o))
			n += 4
		}
	}
	putU32be(b, uint32(n))
	return
}

func (a *ChunkOffset) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("stco truncated", offset, nil)
	}
	a.Wide = Tag(u32be(b[4:])) == CO64
	count := int(u32be(b[12:]))
	n = 16
	width := 4
	if a.Wide {
		width = 8
	}
	if len(b) < n+width*count {
		return 0, parseErr("stco entries truncated", offset+n, nil)
	}
	a.Entries = make([]uint64, count)
	for i := range a.Entries {
		if a.Wide {
			a.Entries[i] = u64be(b[n:])
			n += 8
		} else {
			a.Entries[i] = uint64(u32be(b[n:]))
			n += 4
		}
	}
	return n, nil
}

// NeedsWide reports whether any offset exceeds 32-bit range.
func NeedsWide(offsets []uint64) bool {
	for _, o := range offsets {
		if o > 0xFFFFFFFF {
			return true
		}
	}
	return false
}

const STSS = Tag(0x73747373)

type SyncSample struct {
	Version uint8
	Flags   uint32
	Entries []uint32 // 1-based sample numbers
	AtomPos
}

func (a SyncSample) Tag() Tag         { return STSS }
func (a SyncSample) Children() []Atom { return nil }
func (a SyncSample) Len() int         { return 16 + 4*len(a.Entries) }

func (a SyncSample) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(STSS))
	putU8(b[8:], a.Version)
	putU24be(b[9:], a.Flags)
	putU32be(b[12:], uint32(len(a.Entries)))
	n = 16
	for _, e := range a.Entries {
		putU32be(b[n:], e)
		n += 4
	}
	putU32be(b, uint32(n))
	return
}

func (a *SyncSample) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("stss truncated", offset, nil)
	}
	a.Version = u8(b[8:])
	a.Flags = u24be(b[9:])
	count := int(u32be(b[12:]))
	n = 16
	if len(b) < n+4*count {
		return 0, parseErr("stss entries truncated", offset+n, nil)
	}
	a.Entries = make([]uint32, count)
	for i := range a.Entries {
		a.Entries[i] = u32be(b[n:])
		n += 4
	}
	return n, nil
}

// IsSync reports whether the 1-based sample index appears in stss.
func (a *SyncSample) IsSync(sampleIdx1 uint32) bool {
	if a == nil {
		return true // no stss: every sample is sync
	}
	for _, e := range a.Entries {
		if e == sampleIdx1 {
			return true
		}
	}
	return false
}

const SDTP = Tag(0x73647470)

// SampleDependency (sdtp) refines sample-flag derivation beyond stss when
// present, carrying sample_depends_on / sample_has_redundancy bits.
type SampleDependency struct {
	Entries []byte // one packed dependency byte per sample
	AtomPos
}

func (a SampleDependency) Tag() Tag         { return SDTP }
func (a SampleDependency) Children() []Atom { return nil }
func (a SampleDependency) Len() int         { return 12 + len(a.Entries) }

func (a SampleDependency) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(SDTP))
	n = 12
	copy(b[n:], a.Entries)
	n += len(a.Entries)
	putU32be(b, uint32(n))
	return
}

func (a *SampleDependency) Unmarshal(b []byte, offset int) (int, error) {
	a.setPos(offset, len(b))
	if len(b) > 12 {
		a.Entries = append([]byte(nil), b[12:]...)
	}
	return len(b), nil
}
