package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	vitpose "github.com/swdee/go-vitpose"
)

const (
	flagOutDir   = "out-dir"
	flagNoRender = "no-render"
	flagNoJSON   = "no-json"
)

func runCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "estimate poses in image files",
		ArgsUsage: "IMAGE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagOutDir,
				Value: ".",
				Usage: "write annotated images and JSON results to `DIR`",
			},
			&cli.BoolFlag{
				Name:  flagNoRender,
				Usage: "skip writing annotated images",
			},
			&cli.BoolFlag{
				Name:  flagNoJSON,
				Usage: "skip writing JSON results",
			},
		},
		Action: func(c *cli.Context) error {

			images := c.Args().Slice()

			if len(images) == 0 {
				return errors.New("no images given")
			}

			outDir := c.String(flagOutDir)

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return errors.Wrap(err, "error creating output dir")
			}

			p, err := st.pipeline()

			if err != nil {
				return err
			}

			defer p.Close()

			g, ctx := errgroup.WithContext(c.Context)
			g.SetLimit(st.cfg.Workers)

			names := outputNames(images)

			for i, file := range images {
				out := filepath.Join(outDir, names[i])

				g.Go(func() error {
					return processImage(ctx, st, p, file, out,
						!c.Bool(flagNoRender), !c.Bool(flagNoJSON))
				})
			}

			return g.Wait()
		},
	}
}

// outputNames returns the output file prefix for each image.  Images sharing
// a base name get a numbered suffix so concurrent writes never collide.
func outputNames(files []string) []string {

	names := make([]string, len(files))
	used := make(map[string]bool, len(files))

	for i, file := range files {
		base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + "-pose"
		name := base

		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s-%d", base, n)
		}

		used[name] = true
		names[i] = name
	}

	return names
}

// processImage runs the pipeline on one image file and writes the outputs
// with the path prefix out
func processImage(ctx context.Context, st *state, p *vitpose.Pipeline, file, out string,
	writeImage, writeJSON bool) error {

	img, err := vitpose.LoadImage(file)

	if err != nil {
		return err
	}

	defer img.Close()

	res, err := p.Run(ctx, img)

	if err != nil {
		return errors.Wrapf(err, "image %s", file)
	}

	if writeJSON {
		data, err := res.JSON()

		if err != nil {
			return errors.Wrapf(err, "image %s", file)
		}

		if err := os.WriteFile(out+".json", data, 0o644); err != nil {
			return errors.Wrap(err, "error writing results")
		}
	}

	if writeImage {
		p.Render(&img, res)

		if ok := gocv.IMWrite(out+".jpg", img); !ok {
			return errors.Errorf("error writing annotated image %s.jpg", out)
		}
	}

	st.logger.Infow("processed image", "file", file, "instances", len(res.Poses),
		"elapsed", res.Elapsed)

	return nil
}
