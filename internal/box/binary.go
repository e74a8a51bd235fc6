package box

import "encoding/binary"

// Thin big-endian put/get helpers in the shape every fmp4io box file in the
// teacher pack calls through (PutU32BE, U32BE, PutU24BE, U24BE, ...). The
// pack's own github.com/deepch/vdk/utils/bits/pio package is not part of
// the retrieved checkout, so this reproduces its surface directly on top
// of encoding/binary rather than importing a package that does not exist.

func u8(b []byte) uint8  { return b[0] }
func putU8(b []byte, v uint8) { b[0] = v }

func u16be(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func putU16be(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }

func i16be(b []byte) int16 { return int16(binary.BigEndian.Uint16(b)) }
func putI16be(b []byte, v int16) { binary.BigEndian.PutUint16(b, uint16(v)) }

func u24be(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
func putU24be(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func u32be(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func putU32be(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

func i32be(b []byte) int32 { return int32(binary.BigEndian.Uint32(b)) }
func putI32be(b []byte, v int32) { binary.BigEndian.PutUint32(b, uint32(v)) }

func u64be(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
func putU64be(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }
