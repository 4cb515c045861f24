package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/swdee/go-vitpose/kserve"
)

func checkCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "check the model server and both models are ready",
		Action: func(c *cli.Context) error {

			client, err := st.cfg.NewClient(st.logger.Named("kserve"))

			if err != nil {
				return err
			}

			if err := client.Ready(c.Context); err != nil {
				return errors.Wrapf(err, "server %s", st.cfg.Server.Address)
			}

			fmt.Fprintf(c.App.Writer, "server %s ready\n", st.cfg.Server.Address)

			models := []struct{ name, version string }{
				{st.cfg.Detector.Model, st.cfg.Detector.Version},
				{st.cfg.Estimator.Model, st.cfg.Estimator.Version},
			}

			for _, m := range models {
				if err := client.ModelReady(c.Context, m.name, m.version); err != nil {
					return errors.Wrapf(err, "model %s", m.name)
				}

				md, err := client.Metadata(c.Context, m.name, m.version)

				if err != nil {
					return errors.Wrapf(err, "model %s", m.name)
				}

				fmt.Fprintf(c.App.Writer, "model %s ready (%s)\n", md.Name, md.Platform)
				printTensors(c, "input", md.Inputs)
				printTensors(c, "output", md.Outputs)
			}

			return nil
		},
	}
}

func printTensors(c *cli.Context, kind string, tensors []kserve.TensorMetadata) {
	for _, t := range tensors {
		fmt.Fprintf(c.App.Writer, "  %-6s %-20s %-5s %v\n", kind, t.Name, t.Datatype, t.Shape)
	}
}
