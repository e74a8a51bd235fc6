package box

import "time"

const MOOV = Tag(0x6d6f6f76)

// Movie is the moov box: movie header, one trak per track, optional mvex
// for fragmented output, and anything unrecognised preserved opaquely.
// Grounded on fmp4io/movie.go's Movie type, generalized with MovieExtend
// wiring already present there and carried through unchanged.
type Movie struct {
	Header      *MovieHeader
	MovieExtend *MovieExtend
	Tracks      []*Track
	Unknowns    []Atom
	AtomPos
}

func (a Movie) Tag() Tag { return MOOV }

func (a Movie) Children() (r []Atom) {
	if a.Header != nil {
		r = append(r, a.Header)
	}
	for _, t := range a.Tracks {
		r = append(r, t)
	}
	if a.MovieExtend != nil {
		r = append(r, a.MovieExtend)
	}
	return append(r, a.Unknowns...)
}

func (a Movie) Len() (n int) {
	n = 8
	if a.Header != nil {
		n += a.Header.Len()
	}
	for _, t := range a.Tracks {
		n += t.Len()
	}
	if a.MovieExtend != nil {
		n += a.MovieExtend.Len()
	}
	for _, u := range a.Unknowns {
		n += u.Len()
	}
	return
}

func (a Movie) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(MOOV))
	n = 8
	if a.Header != nil {
		n += a.Header.Marshal(b[n:])
	}
	for _, t := range a.Tracks {
		n += t.Marshal(b[n:])
	}
	if a.MovieExtend != nil {
		n += a.MovieExtend.Marshal(b[n:])
	}
	for _, u := range a.Unknowns {
		n += u.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}

func (a *Movie) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	n = 8
	for n+8 <= len(b) {
		size := int(u32be(b[n:]))
		tag := Tag(u32be(b[n+4:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("moov child size invalid", n+offset, nil)
		}
		child := b[n : n+size]
		switch tag {
		case MVHD:
			h := &MovieHeader{}
			if _, err = h.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("mvhd", n+offset, err)
			}
			a.Header = h
		case TRAK:
			t := &Track{}
			if _, err = t.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("trak", n+offset, err)
			}
			a.Tracks = append(a.Tracks, t)
		case MVEX:
			m := &MovieExtend{}
			if _, err = m.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("mvex", n+offset, err)
			}
			a.MovieExtend = m
		default:
			d := &Dummy{}
			d.Unmarshal(child, offset+n)
			a.Unknowns = append(a.Unknowns, d)
		}
		n += size
	}
	return n, nil
}

const MVHD = Tag(0x6d766864)

type MovieHeader struct {
	Version       uint8
	Flags         uint32
	CreateTime    time.Time
	ModifyTime    time.Time
	TimeScale     uint32
	Duration      uint32
	PreferredRate float64
	Matrix        [9]int32
	NextTrackID   uint32
	AtomPos
}

func (a MovieHeader) Tag() Tag         { return MVHD }
func (a MovieHeader) Children() []Atom { return nil }

func (a MovieHeader) Len() int { return 8 + 1 + 3 + 4 + 4 + 4 + 4 + 4 + 2 + 10 + 4*9 + 24 + 4 }

func (a MovieHeader) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(MVHD))
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
	putFixed32(b[n:], a.PreferredRate)
	n += 4
	putFixed16(b[n:], 1.0)
	n += 2
	n += 10 // reserved
	for _, m := range a.Matrix {
		putI32be(b[n:], m)
		n += 4
	}
	n += 24 // pre_defined
	putU32be(b[n:], a.NextTrackID)
	n += 4
	putU32be(b, uint32(n))
	return
}

func (a *MovieHeader) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 8+100 {
		return 0, parseErr("mvhd truncated", offset, nil)
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
	a.PreferredRate = getFixed32(b[n:])
	n += 4
	n += 2 + 10
	for i := range a.Matrix {
		a.Matrix[i] = i32be(b[n:])
		n += 4
	}
	n += 24
	a.NextTrackID = u32be(b[n:])
	n += 4
	return n, nil
}

const TRAK = Tag(0x7472616b)

// Track is the trak box: header, optional edit list, media sub-tree.
type Track struct {
	Header   *TrackHeader
	Edit     *EditBox
	Media    *Media
	Unknowns []Atom
	AtomPos
}

func (a Track) Tag() Tag { return TRAK }

func (a Track) Children() (r []Atom) {
	if a.Header != nil {
		r = append(r, a.Header)
	}
	if a.Edit != nil {
		r = append(r, a.Edit)
	}
	if a.Media != nil {
		r = append(r, a.Media)
	}
	return append(r, a.Unknowns...)
}

func (a Track) Len() (n int) {
	n = 8
	if a.Header != nil {
		n += a.Header.Len()
	}
	if a.Edit != nil {
		n += a.Edit.Len()
	}
	if a.Media != nil {
		n += a.Media.Len()
	}
	for _, u := range a.Unknowns {
		n += u.Len()
	}
	return
}

func (a Track) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(TRAK))
	n = 8
	if a.Header != nil {
		n += a.Header.Marshal(b[n:])
	}
	if a.Edit != nil {
		n += a.Edit.Marshal(b[n:])
	}
	if a.Media != nil {
		n += a.Media.Marshal(b[n:])
	}
	for _, u := range a.Unknowns {
		n += u.Marshal(b[n:])
	}
	putU32be(b, uint32(n))
	return
}

func (a *Track) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	n = 8
	for n+8 <= len(b) {
		size := int(u32be(b[n:]))
		tag := Tag(u32be(b[n+4:]))
		if size < 8 || len(b) < n+size {
			return 0, parseErr("trak child size invalid", n+offset, nil)
		}
		child := b[n : n+size]
		switch tag {
		case TKHD:
			h := &TrackHeader{}
			if _, err = h.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("tkhd", n+offset, err)
			}
			a.Header = h
		case EDTS:
			e := &EditBox{}
			if _, err = e.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("edts", n+offset, err)
			}
			a.Edit = e
		case MDIA:
			m := &Media{}
			if _, err = m.Unmarshal(child, offset+n); err != nil {
				return 0, parseErr("mdia", n+offset, err)
			}
			a.Media = m
		default:
			d := &Dummy{}
			d.Unmarshal(child, offset+n)
			a.Unknowns = append(a.Unknowns, d)
		}
		n += size
	}
	return n, nil
}

const TKHD = Tag(0x746b6864)

const (
	TrackEnabled   uint32 = 0x000001
	TrackInMovie   uint32 = 0x000002
	TrackInPreview uint32 = 0x000004
)

type TrackHeader struct {
	Version        uint8
	Flags          uint32
	CreateTime     time.Time
	ModifyTime     time.Time
	TrackID        uint32
	Duration       uint32
	Layer          int16
	AlternateGroup int16
	Volume         float64
	Matrix         [9]int32
	Width, Height  float64
	AtomPos
}

func (a TrackHeader) Tag() Tag         { return TKHD }
func (a TrackHeader) Children() []Atom { return nil }
func (a TrackHeader) Len() int         { return 8 + 1 + 3 + 4 + 4 + 4 + 4 + 4 + 8 + 2 + 2 + 2 + 2 + 4*9 + 4 + 4 }

func (a TrackHeader) Marshal(b []byte) (n int) {
	putU32be(b[4:], uint32(TKHD))
	n = 8
	putU8(b[n:], a.Version)
	n++
	putU24be(b[n:], a.Flags)
	n += 3
	putTime32(b[n:], a.CreateTime)
	n += 4
	putTime32(b[n:], a.ModifyTime)
	n += 4
	putU32be(b[n:], a.TrackID)
	n += 4
	n += 4 // reserved
	putU32be(b[n:], a.Duration)
	n += 4
	n += 8 // reserved
	putI16be(b[n:], a.Layer)
	n += 2
	putI16be(b[n:], a.AlternateGroup)
	n += 2
	putFixed16(b[n:], a.Volume)
	n += 2
	n += 2 // reserved
	for _, m := range a.Matrix {
		putI32be(b[n:], m)
		n += 4
	}
	putFixed32(b[n:], a.Width)
	n += 4
	putFixed32(b[n:], a.Height)
	n += 4
	putU32be(b, uint32(n))
	return
}

func (a *TrackHeader) Unmarshal(b []byte, offset int) (n int, err error) {
	a.setPos(offset, len(b))
	if len(b) < 92 {
		return 0, parseErr("tkhd truncated", offset, nil)
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
	a.TrackID = u32be(b[n:])
	n += 4
	n += 4
	a.Duration = u32be(b[n:])
	n += 4
	n += 8
	a.Layer = i16be(b[n:])
	n += 2
	a.AlternateGroup = i16be(b[n:])
	n += 2
	a.Volume = getFixed16(b[n:])
	n += 2
	n += 2
	for i := range a.Matrix {
		a.Matrix[i] = i32be(b[n:])
		n += 4
	}
	a.Width = getFixed32(b[n:])
	n += 4
	a.Height = getFixed32(b[n:])
	n += 4
	return n, nil
}
