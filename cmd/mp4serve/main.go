// Command mp4serve runs the HTTP server exposing the resource grammar
// over a directory of MP4 files.
//
// Grounded on bgentry-mp4_stream/src/cmd/mp4_stream/mp4_stream.go's
// flag.StringVar + flag.Usage convention, generalized from a one-shot
// inspector into a long-running server's startup flags.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"mp4engine/internal/cache"
	"mp4engine/internal/config"
	"mp4engine/internal/resource"
)

func main() {
	var configPath, root string
	flag.StringVar(&configPath, "config", "", "-config server.yaml")
	flag.StringVar(&root, "root", ".", "-root /path/to/media (prepended to every request's source path)")
	flag.Parse()

	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}

	h := &resource.Handler{
		Root:                     root,
		Cache:                    cache.New(cfg.CacheCapacity),
		SegmentDuration:          cfg.SegmentDuration,
		InterleaveWindow:         cfg.InterleaveWindow,
		SafariPartialResponseCap: cfg.SafariPartialResponseCap,
		Log:                      logger,
	}

	logger.Info().Str("listen", cfg.Listen).Str("root", root).Msg("starting mp4serve")
	if err := http.ListenAndServe(cfg.Listen, h); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
