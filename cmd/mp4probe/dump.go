package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/silvermine/mp4probe/box"
	"github.com/silvermine/mp4probe/stream"
)

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "print the top-level box tree of a file or URL",
		ArgsUsage: "<path-or-url>",
		Flags:     []cli.Flag{statsFlag},
		Action:    runDump,
	}
}

func runDump(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() == 0 {
		return errors.New("dump: missing path or URL argument")
	}
	loc := cmd.Args().First()

	src, closer, err := openSource(loc)
	if err != nil {
		return err
	}
	defer closer()

	data, err := readAll(src)
	if err != nil {
		return err
	}

	r := box.NewReader(data)
	for r.Next() {
		printBox(&r, 0)
	}
	if err := r.Err(); err != nil {
		return err
	}

	printStats(cmd, src)
	return nil
}

func printBox(r *box.Reader, depth int) {
	indent := strings.Repeat("  ", depth)
	vf := ""
	if box.IsFullBox(r.Type()) {
		vf = fmt.Sprintf(" v=%d flags=0x%06x", r.Version(), r.Flags())
	}
	fmt.Printf("%s[%s] size=%d%s\n", indent, r.Type(), r.Size(), vf)

	if box.IsContainerBox(r.Type()) {
		r.Enter()
		for r.Next() {
			printBox(r, depth+1)
		}
		r.Exit()
	}
}

// readAll drains src from its current position to EOF. The top-level
// box scan needs the whole file in memory; moovlocate is what avoids
// this cost for the targeted orchestrators.
func readAll(src stream.Source) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 64*1024)
	for {
		n, err := src.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "dump: read")
		}
	}
}
