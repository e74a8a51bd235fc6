package box

// File is the top-level box sequence: ftyp, moov, one or more mdat, and
// any free/skip padding or boxes this engine doesn't care about. Parse
// walks box headers only — mdat payload is never copied into memory,
// only its offset and size are recorded.
//
// Written in the same header-then-dispatch idiom as movie.go's Unmarshal,
// adapted to handle the 64-bit "largesize" extension and the size==0
// ("to EOF") case that a real top-level walk must honor but a nested
// moov child never needs to.
type File struct {
	FileType    *FileType
	SegmentType *SegmentType
	Movie       *Movie
	MediaDatas  []MediaData
	Frees       []*Free
	Unknowns    []Atom
}

// Parse walks the top-level boxes of b, which must be the entire file
// (typically memory-mapped). It does not copy mdat payload bytes.
func Parse(b []byte) (*File, error) {
	f := &File{}
	pos := 0
	for pos+8 <= len(b) {
		hdrLen, size, tag, err := readHeader(b, pos)
		if err != nil {
			return nil, err
		}
		end := pos + size
		if size == 0 {
			end = len(b)
			size = end - pos
		}
		if end > len(b) {
			return nil, parseErr("top-level box overruns file", pos, nil)
		}
		switch tag {
		case FTYP:
			ft := &FileType{}
			if _, err := ft.Unmarshal(b[pos:end], pos); err != nil {
				return nil, parseErr("ftyp", pos, err)
			}
			f.FileType = ft
		case STYP:
			st := &SegmentType{}
			if _, err := st.Unmarshal(b[pos:end], pos); err != nil {
				return nil, parseErr("styp", pos, err)
			}
			f.SegmentType = st
		case MOOV:
			m := &Movie{}
			if _, err := m.Unmarshal(b[pos:end], pos); err != nil {
				return nil, parseErr("moov", pos, err)
			}
			f.Movie = m
		case MDAT:
			f.MediaDatas = append(f.MediaDatas, MediaData{
				Offset:        int64(pos),
				PayloadOffset: int64(pos + hdrLen),
				Size:          int64(size),
			})
		case FREE, SKIP:
			fr := &Free{}
			fr.Unmarshal(b[pos:end], pos)
			f.Frees = append(f.Frees, fr)
		default:
			d := &Dummy{Tag_: tag}
			d.Unmarshal(b[pos:end], pos)
			f.Unknowns = append(f.Unknowns, d)
		}
		pos = end
	}
	return f, nil
}

// readHeader reads a box header at pos, returning the header length (8
// or 16, for the 64-bit largesize form), the box's total size (including
// header; 0 means "extends to end of file"), and its tag.
func readHeader(b []byte, pos int) (hdrLen, size int, tag Tag, err error) {
	if pos+8 > len(b) {
		return 0, 0, 0, parseErr("box header truncated", pos, nil)
	}
	size32 := u32be(b[pos:])
	tag = Tag(u32be(b[pos+4:]))
	if size32 == 1 {
		if pos+16 > len(b) {
			return 0, 0, 0, parseErr("64-bit box header truncated", pos, nil)
		}
		large := u64be(b[pos+8:])
		if large > uint64(^uint(0)>>1) {
			return 0, 0, 0, parseErr("box size exceeds addressable range", pos, nil)
		}
		return 16, int(large), tag, nil
	}
	if size32 == 0 {
		return 8, 0, tag, nil
	}
	return 8, int(size32), tag, nil
}
