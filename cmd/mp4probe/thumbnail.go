package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/silvermine/mp4probe/extract"
	"github.com/silvermine/mp4probe/sampletable"
	"github.com/silvermine/mp4probe/thumbnail"
)

func thumbnailCommand() *cli.Command {
	return &cli.Command{
		Name:      "thumbnail",
		Usage:     "extract evenly-spaced video thumbnails from a file or URL",
		ArgsUsage: "<path-or-url> <output-dir>",
		Flags: []cli.Flag{
			statsFlag,
			&cli.IntFlag{Name: "count", Value: 5, Usage: "number of thumbnails to extract"},
			&cli.IntFlag{Name: "max-width", Value: 320, Usage: "maximum output width in pixels"},
			&cli.IntFlag{Name: "max-height", Value: 320, Usage: "maximum output height in pixels"},
			&cli.IntFlag{Name: "quality", Value: 85, Usage: "JPEG quality, 1-100"},
			&cli.IntFlag{Name: "gap-threshold", Value: 4096, Usage: "byte gap below which adjacent sample ranges are coalesced"},
			&cli.IntFlag{Name: "timeout", Value: 60, Usage: "extraction deadline in seconds, 0 for none"},
		},
		Action: runThumbnail,
	}
}

func runThumbnail(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 2 {
		return errors.New("thumbnail: usage: thumbnail <path-or-url> <output-dir>")
	}
	loc := cmd.Args().First()
	outDir := cmd.Args().Get(1)

	src, closer, err := openSource(loc)
	if err != nil {
		return err
	}
	defer closer()

	ex, cancel := extract.New(ctx, timeoutFlag(cmd))
	defer cancel()

	thumbs, err := thumbnail.Extract(ex, src, thumbnail.Options{
		Count:        int(cmd.Int("count")),
		MaxWidth:     int(cmd.Int("max-width")),
		MaxHeight:    int(cmd.Int("max-height")),
		Quality:      int(cmd.Int("quality")),
		GapThreshold: int(cmd.Int("gap-threshold")),
		Timeout:      timeoutFlag(cmd),
		Decoder:      noopH264Decoder{},
		Transform:    noopImageTransform{},
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(err, "thumbnail: create output directory")
	}
	for _, th := range thumbs {
		name := filepath.Join(outDir, fmt.Sprintf("thumb-%04d.jpg", th.SampleIndex))
		if err := os.WriteFile(name, th.JPEG, 0o644); err != nil {
			return errors.Wrap(err, "thumbnail: write output")
		}
		fmt.Printf("%s  t=%.3fs  %dx%d\n", name, th.TimeSeconds, th.SourceWidth, th.SourceHeight)
	}

	printStats(cmd, src)
	return nil
}

// noopH264Decoder and noopImageTransform are placeholder collaborators:
// the H.264 decode and image resize/encode steps stay external to this
// module. A real deployment wires a decoder (e.g. a cgo binding) and an
// image transform here.
type noopH264Decoder struct{}

func (noopH264Decoder) Decode(avcc *sampletable.AvcC, sample []byte) (thumbnail.RawImage, error) {
	return thumbnail.RawImage{}, errors.New("thumbnail: no H.264 decoder wired, see --help")
}

type noopImageTransform struct{}

func (noopImageTransform) Transform(img thumbnail.RawImage, maxW, maxH, quality int) ([]byte, error) {
	return nil, errors.New("thumbnail: no image transform wired, see --help")
}
