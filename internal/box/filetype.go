package box

// FileType and SegmentType both marshal brand lists; ftyp heads a
// progressive or init file, styp heads a media segment.
const (
	FTYP = Tag(0x66747970)
	STYP = Tag(0x73747970)
)

// Standard brands this engine always advertises.
var (
	BrandISOM = StringToTag("isom")
	BrandISO5 = StringToTag("iso5")
	BrandISO6 = StringToTag("iso6")
	BrandMP41 = StringToTag("mp41")
	BrandDASH = StringToTag("dash")
	BrandCMFC = StringToTag("cmfc")
	BrandAVC1 = StringToTag("avc1")
)

type brandList struct {
	MajorBrand       Tag
	MinorVersion     uint32
	CompatibleBrands []Tag
	AtomPos
}

func (f brandList) marshal(b []byte, tag Tag) int {
	l := 16 + 4*len(f.CompatibleBrands)
	putU32be(b, uint32(l))
	putU32be(b[4:], uint32(tag))
	putU32be(b[8:], uint32(f.MajorBrand))
	putU32be(b[12:], f.MinorVersion)
	for i, v := range f.CompatibleBrands {
		putU32be(b[16+4*i:], uint32(v))
	}
	return l
}

func (f brandList) length() int { return 16 + 4*len(f.CompatibleBrands) }

func (f *brandList) unmarshal(b []byte, offset int) (int, error) {
	f.setPos(offset, len(b))
	if len(b) < 16 {
		return 0, parseErr("brand list truncated", offset, nil)
	}
	f.MajorBrand = Tag(u32be(b[8:]))
	f.MinorVersion = u32be(b[12:])
	n := 16
	for n+4 <= len(b) {
		f.CompatibleBrands = append(f.CompatibleBrands, Tag(u32be(b[n:])))
		n += 4
	}
	return n, nil
}

func (f brandList) Children() []Atom { return nil }

type FileType struct{ brandList }

func (f FileType) Tag() Tag                             { return FTYP }
func (f FileType) Marshal(b []byte) int                 { return f.brandList.marshal(b, FTYP) }
func (f FileType) Len() int                              { return f.brandList.length() }
func (f *FileType) Unmarshal(b []byte, off int) (int, error) { return f.brandList.unmarshal(b, off) }

type SegmentType struct{ brandList }

func (f SegmentType) Tag() Tag                             { return STYP }
func (f SegmentType) Marshal(b []byte) int                 { return f.brandList.marshal(b, STYP) }
func (f SegmentType) Len() int                              { return f.brandList.length() }
func (f *SegmentType) Unmarshal(b []byte, off int) (int, error) { return f.brandList.unmarshal(b, off) }

// DefaultFileType is the brand set every progressive/init output emits.
func DefaultFileType() *FileType {
	return &FileType{brandList{
		MajorBrand:       BrandISOM,
		MinorVersion:      1,
		CompatibleBrands: []Tag{BrandISO5, BrandMP41, BrandDASH},
	}}
}

// DefaultSegmentType is the brand set every CMAF media segment emits.
func DefaultSegmentType() *SegmentType {
	return &SegmentType{brandList{
		MajorBrand:       BrandISO6,
		MinorVersion:      0,
		CompatibleBrands: []Tag{BrandDASH, BrandCMFC},
	}}
}
