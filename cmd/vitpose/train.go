package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/swdee/go-vitpose/launch"
)

const (
	flagPreset       = "preset"
	flagEntry        = "entry"
	flagInterpreter  = "interpreter"
	flagDataset      = "dataset"
	flagBatchSize    = "batch-size"
	flagLearningRate = "learning-rate"
	flagEpochs       = "epochs"
	flagSaveStrategy = "save-strategy"
	flagSaveSteps    = "save-steps"
	flagReportTo     = "report-to"
	flagTrainOutput  = "output-dir"
	flagDryRun       = "dry-run"
)

func trainCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "launch an external training script",
		Description: "Runs a training entry point with the given settings passed through as " +
			"flags. Arguments after -- are appended unchanged.",
		ArgsUsage: "[-- EXTRA FLAGS...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagPreset,
				Usage: "start from preset job, one of " + strings.Join(launch.PresetNames(), ", "),
			},
			&cli.StringFlag{Name: flagEntry, Usage: "training `SCRIPT` to run"},
			&cli.StringFlag{Name: flagInterpreter, Usage: "interpreter running the script"},
			&cli.StringFlag{Name: flagDataset, Usage: "dataset name"},
			&cli.IntFlag{Name: flagBatchSize, Usage: "per device batch size"},
			&cli.Float64Flag{Name: flagLearningRate, Usage: "learning rate"},
			&cli.Float64Flag{Name: flagEpochs, Usage: "number of training epochs"},
			&cli.StringFlag{Name: flagSaveStrategy, Usage: "checkpoint strategy: no, steps or epoch"},
			&cli.IntFlag{Name: flagSaveSteps, Usage: "steps between checkpoints"},
			&cli.StringFlag{Name: flagReportTo, Usage: "experiment tracking backend"},
			&cli.StringFlag{Name: flagTrainOutput, Usage: "checkpoint output `DIR`"},
			&cli.BoolFlag{Name: flagDryRun, Usage: "print the command instead of running it"},
		},
		Action: func(c *cli.Context) error {

			job := launch.Job{Name: "custom", Flags: launch.TrainerFlags()}

			if name := c.String(flagPreset); name != "" {
				var err error

				job, err = launch.Preset(name)

				if err != nil {
					return err
				}
			}

			applyTrainFlags(c, &job)

			r := launch.NewRunner(st.logger.Named("train"))
			r.DryRun = c.Bool(flagDryRun)
			r.Out = c.App.Writer

			if err := r.Run(c.Context, job); err != nil {
				return err
			}

			if r.DryRun {
				return nil
			}

			fmt.Fprintf(c.App.Writer, "job %s finished\n", job.Name)

			return nil
		},
	}
}

// applyTrainFlags overrides job settings with the flags that were set
func applyTrainFlags(c *cli.Context, job *launch.Job) {

	if c.IsSet(flagEntry) {
		job.Entry = c.String(flagEntry)
	}

	if c.IsSet(flagInterpreter) {
		job.Interpreter = c.String(flagInterpreter)
	}

	if c.IsSet(flagDataset) {
		job.Dataset = c.String(flagDataset)
	}

	if c.IsSet(flagBatchSize) {
		job.BatchSize = c.Int(flagBatchSize)
	}

	if c.IsSet(flagLearningRate) {
		job.LearningRate = c.Float64(flagLearningRate)
	}

	if c.IsSet(flagEpochs) {
		job.Epochs = c.Float64(flagEpochs)
	}

	if c.IsSet(flagSaveStrategy) {
		job.SaveStrategy = c.String(flagSaveStrategy)
	}

	if c.IsSet(flagSaveSteps) {
		job.SaveSteps = c.Int(flagSaveSteps)
	}

	if c.IsSet(flagReportTo) {
		job.ReportTo = c.String(flagReportTo)
	}

	if c.IsSet(flagTrainOutput) {
		job.OutputDir = c.String(flagTrainOutput)
	}

	job.Extra = append(job.Extra, c.Args().Slice()...)
}
