package box

import (
	"math"
	"time"
)

var macEpoch = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)

func getTime32(b []byte) (t time.Time) {
	sec := u32be(b)
	if sec != 0 {
		t = macEpoch.Add(time.Second * time.Duration(sec))
	}
	return
}

func putTime32(b []byte, t time.Time) {
	var sec uint32
	if !t.IsZero() {
		sec = uint32(t.Sub(macEpoch) / time.Second)
	}
	putU32be(b, sec)
}

func getFixed16(b []byte) float64 {
	return float64(int8(b[0])) + float64(b[1])/256.0
}

func putFixed16(b []byte, f float64) {
	ip, fp := math.Modf(f)
	b[0] = byte(int8(ip))
	b[1] = byte(fp * 256.0)
}

func getFixed32(b []byte) float64 {
	return float64(u16be(b[0:2])) + float64(u16be(b[2:4]))/65536.0
}

func putFixed32(b []byte, f float64) {
	ip, fp := math.Modf(f)
	putU16be(b[0:2], uint16(ip))
	putU16be(b[2:4], uint16(fp*65536.0))
}
