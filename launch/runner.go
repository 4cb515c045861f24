package launch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner executes training jobs, streaming their output to a logger
type Runner struct {
	logger *zap.SugaredLogger
	// DryRun writes the command line to Out instead of running it
	DryRun bool
	Out    io.Writer
}

// NewRunner returns a runner logging job output to logger
func NewRunner(logger *zap.SugaredLogger) *Runner {

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Runner{
		logger: logger,
		Out:    os.Stdout,
	}
}

// Run validates and executes the job, blocking until it exits or ctx is
// cancelled
func (r *Runner) Run(ctx context.Context, job Job) error {

	if err := job.Validate(); err != nil {
		return errors.Wrapf(err, "invalid job %s", job.Name)
	}

	if r.DryRun {
		_, err := fmt.Fprintln(r.Out, job.CommandLine())
		return err
	}

	cmd := exec.CommandContext(ctx, job.interpreter(), job.Args()...)
	cmd.Dir = job.Dir
	cmd.Env = append(os.Environ(), envList(job.Env)...)

	stdout, err := cmd.StdoutPipe()

	if err != nil {
		return errors.Wrap(err, "error attaching stdout")
	}

	stderr, err := cmd.StderrPipe()

	if err != nil {
		return errors.Wrap(err, "error attaching stderr")
	}

	log := r.logger.With("job", job.Name)
	log.Infow("starting training job", "command", job.CommandLine())

	start := time.Now()

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "error starting job %s", job.Name)
	}

	var g errgroup.Group

	g.Go(func() error {
		return stream(stdout, func(line string) { log.Infow(line, "stream", "stdout") })
	})

	g.Go(func() error {
		return stream(stderr, func(line string) { log.Warnw(line, "stream", "stderr") })
	})

	// pipes must be drained before Wait closes them
	streamErr := g.Wait()

	if err := cmd.Wait(); err != nil {
		return errors.Wrapf(err, "job %s failed after %s", job.Name, time.Since(start))
	}

	if streamErr != nil {
		return errors.Wrap(streamErr, "error reading job output")
	}

	log.Infow("training job finished", "elapsed", time.Since(start))

	return nil
}

// maxLineLen bounds a single emitted line, longer output is split into
// chunks of this size
const maxLineLen = 64 * 1024

func stream(rd io.Reader, emit func(string)) error {

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 4096), maxLineLen)
	scanner.Split(scanLines)

	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			emit(line)
		}
	}

	if err := scanner.Err(); err != nil {
		// keep the pipe drained so the child never blocks on write
		_, _ = io.Copy(io.Discard, rd)
		return err
	}

	return nil
}

// scanLines splits on either '\n' or '\r' so progress bars that redraw a
// line are emitted per update
func scanLines(data []byte, atEOF bool) (int, []byte, error) {

	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}

	if atEOF || len(data) >= maxLineLen {
		return len(data), data, nil
	}

	return 0, nil, nil
}

// envList converts env to KEY=VALUE pairs sorted by key
func envList(env map[string]string) []string {

	out := make([]string, 0, len(env))

	for k, v := range env {
		out = append(out, k+"="+v)
	}

	sort.Strings(out)

	return out
}
