package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/silvermine/mp4probe/extract"
	"github.com/silvermine/mp4probe/metadata"
)

func metadataCommand() *cli.Command {
	return &cli.Command{
		Name:      "metadata",
		Usage:     "print global and per-track metadata and iTunes-style tags",
		ArgsUsage: "<path-or-url>",
		Flags: []cli.Flag{
			statsFlag,
			&cli.IntFlag{Name: "timeout", Value: 0, Usage: "extraction deadline in seconds, 0 for none"},
		},
		Action: runMetadata,
	}
}

func runMetadata(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() == 0 {
		return errors.New("metadata: missing path or URL argument")
	}
	loc := cmd.Args().First()

	src, closer, err := openSource(loc)
	if err != nil {
		return err
	}
	defer closer()

	ex, cancel := extract.New(ctx, timeoutFlag(cmd))
	defer cancel()

	md, err := metadata.Extract(ex, src)
	if err != nil {
		return err
	}

	fmt.Printf("timescale=%d duration=%d\n", md.Timescale, md.Duration)
	for _, t := range md.Tracks {
		fmt.Printf("track %d: handler=%s language=%s codec=%s", t.TrackID, t.Handler, t.Language, t.CodecTag)
		if t.MIMECodec != "" {
			fmt.Printf(" mime_codec=%s", t.MIMECodec)
		}
		if t.Width > 0 || t.Height > 0 {
			fmt.Printf(" %dx%d", t.Width>>16, t.Height>>16)
		}
		fmt.Println()
	}
	for _, tag := range md.Tags {
		fmt.Printf("tag %s: %d bytes\n", tag.Key, len(tag.Payload))
	}

	printStats(cmd, src)
	return nil
}
