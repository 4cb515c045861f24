package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gocv.io/x/gocv"
)

const (
	flagInput  = "input"
	flagOutput = "output"
	flagCodec  = "codec"
)

func videoCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "video",
		Usage: "estimate poses in every frame of a video file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagInput,
				Aliases:  []string{"i"},
				Usage:    "read frames from video `FILE`",
				Required: true,
			},
			&cli.StringFlag{
				Name:     flagOutput,
				Aliases:  []string{"o"},
				Usage:    "write the annotated video to `FILE`",
				Required: true,
			},
			&cli.StringFlag{
				Name:  flagCodec,
				Value: "mp4v",
				Usage: "fourcc codec of the output video",
			},
		},
		Action: func(c *cli.Context) error {

			p, err := st.pipeline()

			if err != nil {
				return err
			}

			defer p.Close()

			video, err := gocv.VideoCaptureFile(c.String(flagInput))

			if err != nil {
				return errors.Wrap(err, "error opening video")
			}

			defer video.Close()

			fps := video.Get(gocv.VideoCaptureFPS)

			if fps <= 0 {
				fps = 30
			}

			width := int(video.Get(gocv.VideoCaptureFrameWidth))
			height := int(video.Get(gocv.VideoCaptureFrameHeight))

			writer, err := gocv.VideoWriterFile(c.String(flagOutput), c.String(flagCodec),
				fps, width, height, true)

			if err != nil {
				return errors.Wrap(err, "error creating output video")
			}

			defer writer.Close()

			img := gocv.NewMat()
			defer img.Close()

			frames := 0
			instances := 0
			start := time.Now()

			for {
				if err := c.Context.Err(); err != nil {
					return err
				}

				// read the next frame from the video
				if ok := video.Read(&img); !ok {
					break
				}

				if img.Empty() {
					continue
				}

				res, err := p.Run(c.Context, img)

				if err != nil {
					return errors.Wrapf(err, "frame %d", frames)
				}

				p.Render(&img, res)

				if err := writer.Write(img); err != nil {
					return errors.Wrapf(err, "error writing frame %d", frames)
				}

				frames++
				instances += len(res.Poses)

				if frames%100 == 0 {
					st.logger.Infow("video progress", "frames", frames,
						"fps", float64(frames)/time.Since(start).Seconds())
				}
			}

			st.logger.Infow("video complete", "frames", frames, "instances", instances,
				"elapsed", time.Since(start))

			return nil
		},
	}
}
