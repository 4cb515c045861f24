// Package main is the vitpose command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	vitpose "github.com/swdee/go-vitpose"
)

const (
	// global flags
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagLogFile  = "log-file"
	flagWorkers  = "workers"
)

// state is shared by all commands once the config has been loaded
type state struct {
	cfg    *vitpose.Config
	logger *zap.SugaredLogger
}

func main() {

	app := newApp(&state{})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "vitpose: %v\n", err)
		os.Exit(1)
	}
}

func newApp(st *state) *cli.App {
	return &cli.App{
		Name:  "vitpose",
		Usage: "top down pose estimation against a KServe v2 model server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from JSON `FILE`",
				EnvVars: []string{"VITPOSE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log level, one of debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to rotated `FILE`",
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Usage: "number of images processed concurrently",
			},
		},
		Before: st.load,
		After: func(c *cli.Context) error {
			if st.logger != nil {
				_ = st.logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand(st),
			videoCommand(st),
			trainCommand(st),
			checkCommand(st),
		},
	}
}

// load reads the config file, applies flag overrides and builds the logger
func (st *state) load(c *cli.Context) error {

	cfg := vitpose.DefaultConfig()

	if path := c.String(flagConfig); path != "" {
		var err error

		cfg, err = vitpose.LoadConfig(path)

		if err != nil {
			return err
		}
	}

	if c.IsSet(flagLogLevel) {
		cfg.Log.Level = c.String(flagLogLevel)
	}

	if c.IsSet(flagLogFile) {
		cfg.Log.File = c.String(flagLogFile)
	}

	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	logger, err := vitpose.NewLogger(cfg.Log)

	if err != nil {
		return err
	}

	st.cfg = cfg
	st.logger = logger

	return nil
}

// pipeline builds the model server client and pipeline from the config
func (st *state) pipeline() (*vitpose.Pipeline, error) {

	client, err := st.cfg.NewClient(st.logger.Named("kserve"))

	if err != nil {
		return nil, err
	}

	return st.cfg.NewPipeline(client, st.logger)
}
