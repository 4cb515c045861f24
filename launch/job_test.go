package launch

import (
	"bytes"
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"
)

func TestJobArgs(t *testing.T) {

	job := Job{
		Entry:        "run_mae.py",
		Dataset:      "cifar10",
		BatchSize:    8,
		LearningRate: 1.5e-4,
		Epochs:       800,
		SaveStrategy: SaveSteps,
		SaveSteps:    500,
		ReportTo:     "tensorboard",
		OutputDir:    "./out",
		Extra:        []string{"--do_train"},
		Flags:        TrainerFlags(),
	}

	test.That(t, job.Validate(), test.ShouldBeNil)
	test.That(t, job.Args(), test.ShouldResemble, []string{
		"run_mae.py",
		"--dataset_name", "cifar10",
		"--per_device_train_batch_size", "8",
		"--learning_rate", "0.00015",
		"--num_train_epochs", "800",
		"--save_strategy", "steps",
		"--save_steps", "500",
		"--report_to", "tensorboard",
		"--output_dir", "./out",
		"--do_train",
	})
}

func TestJobArgsSkipsUnsupportedFlags(t *testing.T) {

	job := TranslationDistillation()
	args := job.Args()

	test.That(t, args[:3], test.ShouldResemble, []string{"distillation.py", "--data_dir", "wmt_en_ro"})
	test.That(t, args, test.ShouldContain, "--logger_name")
	test.That(t, args, test.ShouldNotContain, "--save_strategy")
	test.That(t, args, test.ShouldNotContain, "--dataset_name")
}

func TestJobValidate(t *testing.T) {

	test.That(t, errors.Is(Job{}.Validate(), ErrMissingEntry), test.ShouldBeTrue)

	err := Job{Entry: "a.py", BatchSize: -1, SaveStrategy: SaveSteps}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "batch size")
	test.That(t, err.Error(), test.ShouldContainSubstring, "save steps")

	err = Job{Entry: "a.py", SaveStrategy: "hourly"}.Validate()
	test.That(t, err.Error(), test.ShouldContainSubstring, "hourly")
}

func TestCommandLineQuoting(t *testing.T) {
	job := Job{Entry: "train.py", OutputDir: "my runs/1", Flags: TrainerFlags()}

	test.That(t, job.CommandLine(), test.ShouldEqual,
		"python3 train.py --output_dir 'my runs/1'")
}

func TestPresets(t *testing.T) {

	test.That(t, PresetNames(), test.ShouldResemble,
		[]string{"mae-pretraining", "translation-distillation"})

	for _, name := range PresetNames() {
		job, err := Preset(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, job.Validate(), test.ShouldBeNil)
		test.That(t, job.Name, test.ShouldEqual, name)
	}

	_, err := Preset("imagenet")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunnerDryRun(t *testing.T) {

	var out bytes.Buffer

	r := NewRunner(nil)
	r.DryRun = true
	r.Out = &out

	err := r.Run(context.Background(), Job{Entry: "train.py", Epochs: 2, Flags: TrainerFlags()})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldEqual, "python3 train.py --num_train_epochs 2\n")
}

func TestRunnerStreamsOutput(t *testing.T) {

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	core, logs := observer.New(zap.InfoLevel)
	r := NewRunner(zap.New(core).Sugar())

	job := Job{
		Name:        "echo",
		Interpreter: "sh",
		Entry:       "-c",
		Extra:       []string{`echo "epoch $EPOCH"; echo oops >&2`},
		Env:         map[string]string{"EPOCH": "1"},
	}

	err := r.Run(context.Background(), job)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessage("epoch 1").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("oops").Len(), test.ShouldEqual, 1)

	job.Extra = []string{"exit 3"}
	err = r.Run(context.Background(), job)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "exit status 3")
}

func TestRunnerProgressOutput(t *testing.T) {

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	core, logs := observer.New(zap.InfoLevel)
	r := NewRunner(zap.New(core).Sugar())

	// carriage return redraws then a single run well over 1 MiB with no
	// line break at all
	script := `i=0
while [ $i -lt 20000 ]; do
	printf 'step %05d/20000 |##########################################|\r' $i >&2
	i=$((i+1))
done
head -c 1500000 /dev/zero | tr '\000' x >&2
echo done`

	job := Job{
		Name:        "progress",
		Interpreter: "sh",
		Entry:       "-c",
		Extra:       []string{script},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err := r.Run(ctx, job)

	test.That(t, err, test.ShouldBeNil)
	test.That(t, time.Since(start).Seconds(), test.ShouldBeLessThan, 20.0)
	test.That(t, logs.FilterMessage("done").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("step 19999/20000 |##########################################|").Len(),
		test.ShouldEqual, 1)

	for _, e := range logs.All() {
		test.That(t, len(e.Message), test.ShouldBeLessThanOrEqualTo, maxLineLen)
	}
}

func TestScanLines(t *testing.T) {

	tests := []struct {
		data    string
		atEOF   bool
		advance int
		token   string
	}{
		{"abc\ndef", false, 4, "abc"},
		{"abc\rdef", false, 4, "abc"},
		{"\r\n", false, 1, ""},
		{"partial", false, 0, ""},
		{"partial", true, 7, "partial"},
	}

	for _, tc := range tests {
		advance, token, err := scanLines([]byte(tc.data), tc.atEOF)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, advance, test.ShouldEqual, tc.advance)
		test.That(t, string(token), test.ShouldEqual, tc.token)
	}

	long := bytes.Repeat([]byte("x"), maxLineLen)
	advance, token, err := scanLines(long, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, advance, test.ShouldEqual, maxLineLen)
	test.That(t, token, test.ShouldHaveLength, maxLineLen)
}
