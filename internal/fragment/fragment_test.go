package fragment

import (
	"bytes"
	"context"
	"os"
	"testing"

	"mp4engine/internal/box"
	"mp4engine/internal/ioread"
	"mp4engine/internal/track"
)

func writeTempSamples(t *testing.T, payloads [][]byte) (*ioread.File, []int64) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "samples-*.bin")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	var offsets []int64
	var cur int64
	for _, p := range payloads {
		offsets = append(offsets, cur)
		if _, err := f.Write(p); err != nil {
			t.Fatalf("write sample: %v", err)
		}
		cur += int64(len(p))
	}

	reader, err := ioread.Open(f.Name())
	if err != nil {
		t.Fatalf("ioread.Open: %v", err)
	}
	t.Cleanup(func() { reader.Close() })
	return reader, offsets
}

func modelWithSamples(payloads [][]byte, offsets []int64, hasSyncTable bool) *track.Model {
	m := &track.Model{TrackID: 1, Timescale: 30000, HasSyncTable: hasSyncTable}
	var dt uint64
	for i, p := range payloads {
		m.Samples = append(m.Samples, track.Sample{
			Index:           uint32(i + 1),
			DecodeTime:      dt,
			Duration:        1000,
			CompositionTime: int64(dt),
			Offset:          offsets[i],
			Size:            uint32(len(p)),
			IsSync:          i == 0,
		})
		dt += 1000
	}
	return m
}

func TestMediaSegmentRoundTrips(t *testing.T) {
	payloads := [][]byte{
		[]byte("sample-one-bytes"),
		[]byte("sample-two-bytes-longer"),
		[]byte("sample-three"),
	}
	reader, offsets := writeTempSamples(t, payloads)
	model := modelWithSamples(payloads, offsets, true)

	var out bytes.Buffer
	err := MediaSegment(context.Background(), model, 7, 0, len(model.Samples), 42, 0, reader, false, &out)
	if err != nil {
		t.Fatalf("MediaSegment: %v", err)
	}

	data := out.Bytes()
	// styp
	stypSize := int(u32be(data))
	if box.Tag(u32be(data[4:])) != box.STYP {
		t.Fatalf("expected styp at offset 0")
	}

	moofStart := stypSize
	moofSize := int(u32be(data[moofStart:]))
	if box.Tag(u32be(data[moofStart+4:])) != box.MOOF {
		t.Fatalf("expected moof after styp")
	}
	var moof box.MovieFrag
	if _, err := moof.Unmarshal(data[moofStart:moofStart+moofSize], moofStart); err != nil {
		t.Fatalf("parse moof: %v", err)
	}
	if moof.Header == nil || moof.Header.SequenceNum != 42 {
		t.Fatalf("mfhd SequenceNum = %+v, want 42", moof.Header)
	}
	if len(moof.Tracks) != 1 {
		t.Fatalf("len(Tracks) = %d, want 1", len(moof.Tracks))
	}
	traf := moof.Tracks[0]
	if traf.Header.TrackID != 7 {
		t.Fatalf("tfhd TrackID = %d, want 7", traf.Header.TrackID)
	}
	if traf.DecodeTime.BaseMediaDecodeTime != 0 {
		t.Fatalf("tfdt BaseMediaDecodeTime = %d, want 0", traf.DecodeTime.BaseMediaDecodeTime)
	}
	if len(traf.Runs) != 1 || len(traf.Runs[0].Entries) != 3 {
		t.Fatalf("trun entries = %+v, want 3 entries in one run", traf.Runs)
	}
	for i, e := range traf.Runs[0].Entries {
		if int(e.SampleSize) != len(payloads[i]) {
			t.Errorf("entry %d SampleSize = %d, want %d", i, e.SampleSize, len(payloads[i]))
		}
	}

	mdatStart := moofStart + moofSize
	mdatSize := int(u32be(data[mdatStart:]))
	if string(data[mdatStart+4:mdatStart+8]) != "mdat" {
		t.Fatalf("expected mdat after moof")
	}
	mdatPayload := data[mdatStart+8 : mdatStart+mdatSize]
	var want []byte
	for _, p := range payloads {
		want = append(want, p...)
	}
	if string(mdatPayload) != string(want) {
		t.Fatalf("mdat payload = %q, want %q", mdatPayload, want)
	}
}

func TestMediaSegmentAppliesPresentationOffset(t *testing.T) {
	payloads := [][]byte{[]byte("abc")}
	reader, offsets := writeTempSamples(t, payloads)
	model := modelWithSamples(payloads, offsets, true)

	var out bytes.Buffer
	err := MediaSegment(context.Background(), model, 1, 0, 1, 1, 4500, reader, false, &out)
	if err != nil {
		t.Fatalf("MediaSegment: %v", err)
	}
	data := out.Bytes()
	moofStart := int(u32be(data))
	moofSize := int(u32be(data[moofStart:]))
	var moof box.MovieFrag
	if _, err := moof.Unmarshal(data[moofStart:moofStart+moofSize], moofStart); err != nil {
		t.Fatalf("parse moof: %v", err)
	}
	if moof.Tracks[0].DecodeTime.BaseMediaDecodeTime != 4500 {
		t.Fatalf("BaseMediaDecodeTime = %d, want 4500", moof.Tracks[0].DecodeTime.BaseMediaDecodeTime)
	}
}

func TestMediaSegmentRejectsOutOfRange(t *testing.T) {
	payloads := [][]byte{[]byte("a")}
	reader, offsets := writeTempSamples(t, payloads)
	model := modelWithSamples(payloads, offsets, true)

	var out bytes.Buffer
	err := MediaSegment(context.Background(), model, 1, 0, 5, 1, 0, reader, false, &out)
	if err == nil {
		t.Fatal("expected an error for an out-of-range sample range")
	}
}

func TestInitSegmentRenumbersTracks(t *testing.T) {
	srcMovie := &box.Movie{
		Header: &box.MovieHeader{TimeScale: 90000},
		Tracks: []*box.Track{{
			Header: &box.TrackHeader{TrackID: 9},
			Media: &box.Media{
				Header:  &box.MediaHeader{TimeScale: 30000},
				Handler: &box.HandlerRef{HandlerType: box.HandlerVideo},
				Info: &box.MediaInfo{
					Sample: &box.SampleTable{
						SampleDesc: &box.SampleDescription{Entries: []box.Dummy{{Tag_: box.Tag(0x61766331)}}},
					},
				},
			},
		}},
	}
	model := &track.Model{TrackID: 9, Kind: track.KindVideo, Timescale: 30000, HasSyncTable: true,
		Samples: []track.Sample{{Duration: 1000}}}

	data, err := InitSegment(srcMovie, []*track.Model{model})
	if err != nil {
		t.Fatalf("InitSegment: %v", err)
	}
	f, err := box.Parse(data)
	if err != nil {
		t.Fatalf("box.Parse: %v", err)
	}
	if f.FileType == nil {
		t.Fatal("init segment missing ftyp")
	}
	if f.Movie == nil || len(f.Movie.Tracks) != 1 {
		t.Fatalf("init segment moov has %d tracks, want 1", len(f.Movie.Tracks))
	}
	if f.Movie.Tracks[0].Header.TrackID != 1 {
		t.Fatalf("renumbered TrackID = %d, want 1", f.Movie.Tracks[0].Header.TrackID)
	}
	if f.Movie.MovieExtend == nil || len(f.Movie.MovieExtend.Tracks) != 1 {
		t.Fatal("init segment moov missing mvex/trex")
	}
}

func TestInitSegmentRejectsEmptyInput(t *testing.T) {
	if _, err := InitSegment(&box.Movie{}, nil); err == nil {
		t.Fatal("expected an error for zero models")
	}
}

func u32be(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
