// Command mp4cli performs one offline operation against an MP4 file and
// exits: print track info, remux to a progressive MP4, or fragment a
// track into a CMAF init segment + media segments on disk.
//
// Grounded on bgentry-mp4_stream/src/cmd/mp4_stream/mp4_stream.go's -i
// flag convention (parse flags in an explicit block, bail via
// flag.Usage() on missing required input rather than a subcommand
// framework — no CLI library appears anywhere in the pack).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"mp4engine/internal/box"
	"mp4engine/internal/fragment"
	"mp4engine/internal/ioread"
	"mp4engine/internal/rewrite"
	"mp4engine/internal/track"
)

func main() {
	var input, remuxOut, fragmentOutDir, trackList string
	var info bool
	flag.StringVar(&input, "i", "", "-i input.mp4")
	flag.BoolVar(&info, "info", false, "-info (print per-track summary)")
	flag.StringVar(&remuxOut, "remux", "", "-remux out.mp4 -track N[,M...]")
	flag.StringVar(&fragmentOutDir, "fragment", "", "-fragment out-dir -track N")
	flag.StringVar(&trackList, "track", "", "-track N[,M...]")
	flag.Parse()

	if input == "" {
		flag.Usage()
		os.Exit(1)
	}

	reader, err := ioread.Open(input)
	if err != nil {
		fatal(err)
	}
	defer reader.Close()

	header, err := reader.Map()
	if err != nil {
		fatal(err)
	}
	file, err := box.Parse(header)
	if err != nil {
		fatal(err)
	}
	if file.Movie == nil {
		fatal(fmt.Errorf("no moov box in %s", input))
	}

	models := map[uint32]*track.Model{}
	var order []uint32
	for _, trak := range file.Movie.Tracks {
		if trak.Header == nil {
			continue
		}
		m, err := track.Build(trak)
		if err != nil {
			fatal(err)
		}
		models[trak.Header.TrackID] = m
		order = append(order, trak.Header.TrackID)
	}

	switch {
	case info:
		printInfo(order, models)
	case remuxOut != "":
		doRemux(reader, file, models, remuxOut, trackList)
	case fragmentOutDir != "":
		doFragment(reader, file, models, fragmentOutDir, trackList)
	default:
		flag.Usage()
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func printInfo(order []uint32, models map[uint32]*track.Model) {
	for _, id := range order {
		m := models[id]
		fmt.Printf("track %d: %s, timescale=%d, samples=%d, duration=%.3fs\n",
			id, m.Kind, m.Timescale, len(m.Samples), float64(m.Duration)/float64(orOne(m.Timescale)))
	}
}

func orOne(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

func parseTrackList(s string) []uint32 {
	if s == "" {
		return nil
	}
	var ids []uint32
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(f), 10, 32)
		if err == nil {
			ids = append(ids, uint32(n))
		}
	}
	return ids
}

func doRemux(reader *ioread.File, file *box.File, models map[uint32]*track.Model, out, trackList string) {
	f, err := os.Create(out)
	if err != nil {
		fatal(err)
	}
	defer f.Close()

	opts := rewrite.DefaultOptions()
	opts.TrackIDs = parseTrackList(trackList)
	if err := rewrite.Rewrite(context.Background(), file, models, reader, f, opts); err != nil {
		fatal(err)
	}
}

func doFragment(reader *ioread.File, file *box.File, models map[uint32]*track.Model, outDir, trackList string) {
	ids := parseTrackList(trackList)
	if len(ids) == 0 {
		fatal(fmt.Errorf("-fragment requires -track N"))
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fatal(err)
	}

	var selected []*track.Model
	for _, id := range ids {
		m, ok := models[id]
		if !ok {
			fatal(fmt.Errorf("track %d not found", id))
		}
		selected = append(selected, m)
	}

	initData, err := fragment.InitSegment(file.Movie, selected)
	if err != nil {
		fatal(err)
	}
	if err := os.WriteFile(outDir+"/init.mp4", initData, 0o644); err != nil {
		fatal(err)
	}

	for i, m := range selected {
		renumbered := uint32(i + 1)
		path := fmt.Sprintf("%s/media.%d.m4s", outDir, renumbered)
		out, err := os.Create(path)
		if err != nil {
			fatal(err)
		}
		err = fragment.MediaSegment(context.Background(), m, renumbered, 0, len(m.Samples), 1, 0, reader, true, out)
		out.Close()
		if err != nil {
			fatal(err)
		}
	}
}
