package box

// Free is a padding box ("free" or "skip"), used by the Rewriter to align
// mdat to an implementation-chosen boundary.
const (
	FREE = Tag(0x66726565)
	SKIP = Tag(0x736b6970)
)

type Free struct {
	Tag_    Tag
	Padding int // payload bytes, always zero-filled
	AtomPos
}

func NewFree(paddingBytes int) *Free { return &Free{Tag_: FREE, Padding: paddingBytes} }

func (a Free) Tag() Tag         { return a.Tag_ }
func (a Free) Len() int         { return 8 + a.Padding }
func (a Free) Children() []Atom { return nil }

func (a Free) Marshal(b []byte) int {
	n := 8 + a.Padding
	putU32be(b, uint32(n))
	putU32be(b[4:], uint32(a.Tag_))
	for i := 8; i < n; i++ {
		b[i] = 0
	}
	return n
}

func (a *Free) Unmarshal(b []byte, offset int) (int, error) {
	a.setPos(offset, len(b))
	a.Tag_ = Tag(u32be(b[4:]))
	a.Padding = len(b) - 8
	return len(b), nil
}

// MediaData describes an "mdat" box by offset only; its payload is never
// materialised in memory during streaming emission.
type MediaData struct {
	Offset        int64 // offset of the box header, not the payload
	PayloadOffset int64
	Size          int64 // total box size including header
}

const MDAT = Tag(0x6d646174)
