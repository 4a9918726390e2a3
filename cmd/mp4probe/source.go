package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/silvermine/mp4probe/stream"
)

// openSource opens loc as a stream.Source, treating an http:// or
// https:// prefix as a remote URL and everything else as a local path.
// The returned closer is a no-op for HTTP sources.
func openSource(loc string) (stream.Source, func() error, error) {
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		return stream.NewHTTPSource(loc), func() error { return nil }, nil
	}
	f, err := stream.OpenLocal(loc)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func printStats(cmd *cli.Command, src stream.Source) {
	if !cmd.Bool("stats") {
		return
	}
	s := src.Stats()
	fmt.Fprintf(os.Stderr, "stats: requests=%d bytes_fetched=%d cache_hits=%d cache_misses=%d\n",
		s.Requests, s.BytesFetched, s.CacheHits, s.CacheMisses)
}

var statsFlag = &cli.BoolFlag{
	Name:  "stats",
	Usage: "print source request/byte counters to stderr after completion",
}

// timeoutFlag reads the "timeout" int flag (seconds) and converts it to
// a time.Duration, 0 meaning no deadline.
func timeoutFlag(cmd *cli.Command) time.Duration {
	secs := cmd.Int("timeout")
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
