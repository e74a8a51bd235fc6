package box

import (
	"bytes"
	"time"
)

const MDIA = Tag(0x6d646961)

type Media struct {
	Header   *MediaHeader
	Handler  *HandlerRef
	Info     *MediaInfo
	Unknowns []Atom
	AtomPos
}

func (a Media) Tag() Tag { return MDIA }

func (a Media) Children() (r []Atom) {
	if a.Header != nil {
		r = append(r, a.Header)
	}
	if a.Handler != nil {
		r = append(r, a.Handler)
	}
	if a.Info != nil {
		r = append(r, a.Info)
	}
	return append(r, a.Unknowns...)
}

func (a Media) Len() (n int) {
	n = 8
	if a.Header != nil {
		n += a.Header.Len()
	}
	if a.Handler != nil {
		n += a.Handler.Len()
	}
	if a.Info != nil {
		n += a.Info.Len()
	}
	for _, u := range a.Unknowns {
		n += u.Len()
	}
	return
}

func (a Media) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(MDIA))
	n = 8
	if a.Header != nil {
		n += a.Header.Marshal(b[n:])
	}
	if a.Handler != nil {
		n += a.Handler.Marshal(b[n:])
	}
	if a.Info != nil {
		n += a.Info.Marshal(b[n:])
	}
	for _, u := range a.Unknowns {
		n += u.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}

func (a *Media) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	n = 8
	for n+8 <= len(b) {
		size := int(u32be(b[n:]))
		tag := Tag(u32be(b[n+4:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("mdia child size invalid", n+offset, nil)
		}
		child := b[n : n+size]
		switch tag {
		case MDHD:
			h := &MediaHeader{}
			if _, err = h.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("mdhd", n+offset, err)
			}
			a.Header = h
		case HDLR:
			h := &HandlerRef{}
			if _, err = h.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("hdlr", n+offset, err)
			}
			a.Handler = h
		case MINF:
			m := &MediaInfo{}
			if _, err = m.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("minf", n+offset, err)
			}
			a.Info = m
		default:
			d := &Dummy{}
			d.Unmarshal(child, offset+n)
			a.Unknowns = append(a.Unknowns, d)
		}
		n += size
	}
	return n, nil
}

const MDHD = Tag(0x6d646864)

type MediaHeader struct {
	Version    uint8
	Flags      uint32
	CreateTime time.Time
	ModifyTime time.Time
	TimeScale  uint32
	Duration   uint32
	Language   int16
	AtomPos
}

func (a MediaHeader) Tag() Tag         { return MDHD }
func (a MediaHeader) Children() []Atom { return nil }
func (a MediaHeader) Len() int         { return 8 + 1 + 3 + 4 + 4 + 4 + 4 + 2 + 2 }

func (a MediaHeader) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(MDHD))
	n = 8
	putU8(b[n:], a.Version)
	n++
	putU24be(b[n:], a.Flags)
	n += 3
	putTime32(b[n:], a.CreateTime)
	n += 4
	putTime32(b[n:], a.ModifyTime)
	n += 4
	putU32be(b[n:], a.TimeScale)
	n += 4
	putU32be(b[n:], a.Duration)
	n += 4
	putI16be(b[n:], a.Language)
	n += 2
	n += 2 // quality
	putU32be(b, uint32(n))
	return
}

func (a *MediaHeader) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 32 {
		return 0, parseErr("mdhd truncated", offset, nil)
	}
	n = 8
	a.Version = u8(b[n:])
	n++
	a.Flags = u24be(b[n:])
	n += 3
	a.CreateTime = getTime32(b[n:])
	n += 4
	a.ModifyTime = getTime32(b[n:])
	n += 4
	a.TimeScale = u32be(b[n:])
	n += 4
	a.Duration = u32be(b[n:])
	n += 4
	a.Language = i16be(b[n:])
	n += 2
	n += 2
	return n, nil
}

const HDLR = Tag(0x68646c72)

const (
	HandlerVideo    = Tag(0x76696465) // vide
	HandlerSound    = Tag(0x736f756e) // soun
	HandlerSubtitle = Tag(0x73756274) // subt
	Handler3GSub    = Tag(0x7362746c) // sbtl
)

type HandlerRef struct {
	Version    uint8
	Flags      uint32
	HandlerType Tag
	Name        string
	AtomPos
}

func (a HandlerRef) Tag() Tag         { return HDLR }
func (a HandlerRef) Children() []Atom { return nil }
func (a HandlerRef) Len() int         { return 8 + 1 + 3 + 4 + 4 + 12 + len(a.Name) + 1 }

func (a HandlerRef) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(HDLR))
	n = 8
	putU8(b[n:], a.Version)
	n++
	putU24be(b[n:], a.Flags)
	n += 3
	n += 4 // pre_defined
	putU32be(b[n:], uint32(a.HandlerType))
	n += 4
	n += 12 // reserved
	copy(b[n:], a.Name)
	n += len(a.Name)
	b[n] = 0
	n++
	putU32be(b, uint32(n))
	return
}

func (a *HandlerRef) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 24 {
		return 0, parseErr("hdlr truncated", offset, nil)
	}
	n = 8
	a.Version = u8(b[n:])
	n++
	a.Flags = u24be(b[n:])
	n += 3
	n += 4
	a.HandlerType = Tag(u32be(b[n:]))
	n += 4
	n += 12
	if n < len(b) {
		if i := bytes.IndexByte(b[n:], 0); i >= 0 {
			a.Name = string(b[n : n+i])
			n += i + 1
		}
	}
	return n, nil
}

const MINF = Tag(0x6d696e66)

type MediaInfo struct {
	Video  *VideoMediaHeader
	Sound  *SoundMediaHeader
	Null   *NullMediaHeader
	Data   *DataInfo
	Sample *SampleTable
	Unknowns []Atom
	AtomPos
}

func (a MediaInfo) Tag() Tag { return MINF }

func (a MediaInfo) Children() (r []Atom) {
	if a.Video != nil {
		r = append(r, a.Video)
	}
	if a.Sound != nil {
		r = append(r, a.Sound)
	}
	if a.Null != nil {
		r = append(r, a.Null)
	}
	if a.Data != nil {
		r = append(r, a.Data)
	}
	if a.Sample != nil {
		r = append(r, a.Sample)
	}
	return append(r, a.Unknowns...)
}

func (a MediaInfo) Len() (n int) {
	n = 8
	if a.Video != nil {
		n += a.Video.Len()
	}
	if a.Sound != nil {
		n += a.Sound.Len()
	}
	if a.Null != nil {
		n += a.Null.Len()
	}
	if a.Data != nil {
		n += a.Data.Len()
	}
	if a.Sample != nil {
		n += a.Sample.Len()
	}
	for _, u := range a.Unknowns {
		n += u.Len()
	}
	return
}

func (a MediaInfo) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(MINF))
	n = 8
	if a.Video != nil {
		n += a.Video.Marshal(b[n:])
	}
	if a.Sound != nil {
		n += a.Sound.Marshal(b[n:])
	}
	if a.Null != nil {
		n += a.Null.Marshal(b[n:])
	}
	if a.Data != nil {
		n += a.Data.Marshal(b[n:])
	}
	if a.Sample != nil {
		n += a.Sample.Marshal(b[n:])
	}
	for _, u := range a.Unknowns {
		n += u.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}

func (a *MediaInfo) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	n = 8
	for n+8 <= len(b) {
		size := int(u32be(b[n:]))
		tag := Tag(u32be(b[n+4:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("minf child size invalid", n+offset, nil)
		}
		child := b[n : n+size]
		switch tag {
		case VMHD:
			v := &VideoMediaHeader{}
			v.Unmarshal(child, offset+n)
			a.Video = v
		case SMHD:
			s := &SoundMediaHeader{}
			s.Unmarshal(child, offset+n)
			a.Sound = s
		case NMHD:
			nm := &NullMediaHeader{}
			nm.Unmarshal(child, offset+n)
			a.Null = nm
		case DINF:
			d := &DataInfo{}
			if _, err = d.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("dinf", n+offset, err)
			}
			a.Data = d
		case STBL:
			s := &SampleTable{}
			if _, err = s.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("stbl", n+offset, err)
			}
			a.Sample = s
		default:
			d := &Dummy{}
			d.Unmarshal(child, offset+n)
			a.Unknowns = append(a.Unknowns, d)
		}
		n += size
	}
	return n, nil
}

const VMHD = Tag(0x766d6864)

type VideoMediaHeader struct {
	Flags uint32
	AtomPos
}

func (a VideoMediaHeader) Tag() Tag         { return VMHD }
func (a VideoMediaHeader) Children() []Atom { return nil }
func (a VideoMediaHeader) Len() int         { return 8 + 1 + 3 + 2 + 6 }
func (a VideoMediaHeader) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(VMHD))
	putU8(b[8:], 0)
	putU24be(b[9:], a.Flags|1)
	n = 12 + 2 + 6
	putU32be(b, uint32(n))
	return
}
func (a *VideoMediaHeader) Unmarshal(b []byte, offset int) (int, error) {
	a.setPos(offset, len(b))
	if len(b) >= 12 {
		a.Flags = u24be(b[9:])
	}
	return len(b), nil
}

const SMHD = Tag(0x736d6864)

type SoundMediaHeader struct{ AtomPos }

func (a SoundMediaHeader) Tag() Tag         { return SMHD }
func (a SoundMediaHeader) Children() []Atom { return nil }
func (a SoundMediaHeader) Len() int         { return 8 + 4 + 2 + 2 }
func (a SoundMediaHeader) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(SMHD))
	n = 16
	putU32be(b, uint32(n))
	return
}
func (a *SoundMediaHeader) Unmarshal(b []byte, offset int) (int, error) {
	a.setPos(offset, len(b))
	return len(b), nil
}

// NMHD (null media header) is used by subtitle/closed-caption tracks that
// carry no video/sound-specific header (grounded on track.rs's
// NullMediaHeaderBox/SubtitleMediaHeaderBox distinction in original_source).
const NMHD = Tag(0x6e6d6864)

type NullMediaHeader struct{ AtomPos }

func (a NullMediaHeader) Tag() Tag         { return NMHD }
func (a NullMediaHeader) Children() []Atom { return nil }
func (a NullMediaHeader) Len() int         { return 12 }
func (a NullMediaHeader) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(NMHD))
	n = 12
	putU32be(b, uint32(n))
	return
}
func (a *NullMediaHeader) Unmarshal(b []byte, offset int) (int, error) {
	a.setPos(offset, len(b))
	return len(b), nil
}

const DINF = Tag(0x64696e66)

type DataInfo struct {
	Refer *DataRef
	AtomPos
}

func (a DataInfo) Tag() Tag { return DINF }
func (a DataInfo) Children() []Atom {
	if a.Refer != nil {
		return []Atom{a.Refer}
	}
	return nil
}
func (a DataInfo) Len() (n int) {
	n = 8
	if a.Refer != nil {
		n += a.Refer.Len()
	}
	return
}
func (a DataInfo) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(DINF))
	n = 8
	if a.Refer != nil {
		n += a.Refer.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}
func (a *DataInfo) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	n = 8
	for n+8 <= len(b) {
		size := int(u32be(b[n:]))
		tag := Tag(u32be(b[n+4:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("dinf child size invalid", n+offset, nil)
		}
		if tag == DREF {
			d := &DataRef{}
			d.Unmarshal(b[n:n+size], offset+n)
			a.Refer = d
		}
		n += size
	}
	return n, nil
}

const DREF = Tag(0x64726566)

// DataRef always carries a single self-contained "url " entry; this engine
// never references external data files.
type DataRef struct{ AtomPos }

func (a DataRef) Tag() Tag         { return DREF }
func (a DataRef) Children() []Atom { return nil }
func (a DataRef) Len() int         { return 8 + 1 + 3 + 4 + 12 }
func (a DataRef) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(DREF))
	putU8(b[8:], 0)
	putU24be(b[9:], 0)
	n = 12
	putU32be(b[n:], 1)
	n += 4
	const url = Tag(0x75726c20)
	putU32be(b[n+4:], uint32(url))
	putU32be(b[n+8:], 1)
	putU32be(b[n:], 12)
	n += 12
	putU32be(b, uint32(n))
	return
}
func (a *DataRef) Unmarshal(b []byte, offset int) (int, error) {
	a.setPos(offset, len(b))
	return len(b), nil
}
