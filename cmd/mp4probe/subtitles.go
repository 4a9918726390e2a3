package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/silvermine/mp4probe/extract"
	"github.com/silvermine/mp4probe/subtitle"
)

func subtitlesCommand() *cli.Command {
	return &cli.Command{
		Name:      "subtitles",
		Usage:     "extract subtitle cues from a file or URL",
		ArgsUsage: "<path-or-url>",
		Flags: []cli.Flag{
			statsFlag,
			&cli.IntFlag{
				Name:  "gap-threshold",
				Value: 4096,
				Usage: "byte gap below which adjacent sample ranges are coalesced",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Value: 0,
				Usage: "extraction deadline in seconds, 0 for none",
			},
		},
		Action: runSubtitles,
	}
}

func runSubtitles(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() == 0 {
		return errors.New("subtitles: missing path or URL argument")
	}
	loc := cmd.Args().First()

	src, closer, err := openSource(loc)
	if err != nil {
		return err
	}
	defer closer()

	ex, cancel := extract.New(ctx, timeoutFlag(cmd))
	defer cancel()

	cues, err := subtitle.Extract(ex, src, subtitle.Options{
		GapThreshold: int(cmd.Int("gap-threshold")),
		Decoder:      subtitle.Handlers{},
	})
	if err != nil {
		return err
	}

	for _, c := range cues {
		fmt.Printf("[%d] %.3f --> %.3f  %s\n", c.TrackID, c.StartSeconds, c.EndSeconds, c.Text)
	}

	printStats(cmd, src)
	return nil
}
