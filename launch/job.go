package launch

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
)

// ErrMissingEntry is returned when a job has no entry point script
var ErrMissingEntry = errors.New("job has no entry point")

// Save strategies understood by trainer scripts
const (
	SaveNo    = "no"
	SaveSteps = "steps"
	SaveEpoch = "epoch"
)

// FlagNames are the command line flag names a training script uses for the
// common job settings.  An empty name means the script has no such flag and
// the setting is not passed.
type FlagNames struct {
	Dataset       string `mapstructure:"dataset"`
	DatasetConfig string `mapstructure:"dataset_config"`
	BatchSize     string `mapstructure:"batch_size"`
	LearningRate  string `mapstructure:"learning_rate"`
	Epochs        string `mapstructure:"epochs"`
	SaveStrategy  string `mapstructure:"save_strategy"`
	SaveSteps     string `mapstructure:"save_steps"`
	ReportTo      string `mapstructure:"report_to"`
	OutputDir     string `mapstructure:"output_dir"`
}

// TrainerFlags are the flag names of scripts built on the transformers
// Trainer argument parser
func TrainerFlags() FlagNames {
	return FlagNames{
		Dataset:       "--dataset_name",
		DatasetConfig: "--dataset_config_name",
		BatchSize:     "--per_device_train_batch_size",
		LearningRate:  "--learning_rate",
		Epochs:        "--num_train_epochs",
		SaveStrategy:  "--save_strategy",
		SaveSteps:     "--save_steps",
		ReportTo:      "--report_to",
		OutputDir:     "--output_dir",
	}
}

// LightningFlags are the flag names of the lightning based seq2seq scripts
func LightningFlags() FlagNames {
	return FlagNames{
		Dataset:      "--data_dir",
		BatchSize:    "--train_batch_size",
		LearningRate: "--learning_rate",
		Epochs:       "--num_train_epochs",
		ReportTo:     "--logger_name",
		OutputDir:    "--output_dir",
	}
}

// Job describes one invocation of an external training entry point.  The
// settings are passed through as flags, nothing here interprets them.
type Job struct {
	// Name identifies the job in logs
	Name string `mapstructure:"name"`
	// Interpreter runs Entry, eg: python3
	Interpreter string `mapstructure:"interpreter"`
	// Entry is the training script
	Entry         string  `mapstructure:"entry"`
	Dataset       string  `mapstructure:"dataset"`
	DatasetConfig string  `mapstructure:"dataset_config"`
	BatchSize     int     `mapstructure:"batch_size"`
	LearningRate  float64 `mapstructure:"learning_rate"`
	Epochs        float64 `mapstructure:"epochs"`
	SaveStrategy  string  `mapstructure:"save_strategy"`
	SaveSteps     int     `mapstructure:"save_steps"`
	// ReportTo is the experiment tracking backend, eg: wandb or tensorboard
	ReportTo  string `mapstructure:"report_to"`
	OutputDir string `mapstructure:"output_dir"`
	// Extra flags are appended after the common settings in order
	Extra []string `mapstructure:"extra"`
	// Env holds additional environment variables for the process
	Env map[string]string `mapstructure:"env"`
	// Dir is the working directory, defaults to the current one
	Dir   string    `mapstructure:"dir"`
	Flags FlagNames `mapstructure:"flags"`
}

// Validate checks the job can be launched
func (j Job) Validate() error {

	if j.Entry == "" {
		return ErrMissingEntry
	}

	var err error

	if j.BatchSize < 0 {
		err = multierr.Append(err, errors.Errorf("batch size %d is negative", j.BatchSize))
	}

	if j.LearningRate < 0 {
		err = multierr.Append(err, errors.Errorf("learning rate %g is negative", j.LearningRate))
	}

	if j.Epochs < 0 {
		err = multierr.Append(err, errors.Errorf("epochs %g is negative", j.Epochs))
	}

	switch j.SaveStrategy {
	case "", SaveNo, SaveEpoch:
	case SaveSteps:
		if j.SaveSteps <= 0 {
			err = multierr.Append(err, errors.New("save strategy steps requires save steps"))
		}
	default:
		err = multierr.Append(err, errors.Errorf("unknown save strategy %q", j.SaveStrategy))
	}

	return err
}

// Args returns the command line after the interpreter: the entry script then
// every set common setting as a flag pair, then the extra flags
func (j Job) Args() []string {

	args := []string{j.Entry}

	add := func(flag string, value interface{}, set bool) {
		if flag == "" || !set {
			return
		}
		args = append(args, flag, cast.ToString(value))
	}

	add(j.Flags.Dataset, j.Dataset, j.Dataset != "")
	add(j.Flags.DatasetConfig, j.DatasetConfig, j.DatasetConfig != "")
	add(j.Flags.BatchSize, j.BatchSize, j.BatchSize > 0)
	add(j.Flags.LearningRate, j.LearningRate, j.LearningRate > 0)
	add(j.Flags.Epochs, j.Epochs, j.Epochs > 0)
	add(j.Flags.SaveStrategy, j.SaveStrategy, j.SaveStrategy != "")
	add(j.Flags.SaveSteps, j.SaveSteps, j.SaveSteps > 0)
	add(j.Flags.ReportTo, j.ReportTo, j.ReportTo != "")
	add(j.Flags.OutputDir, j.OutputDir, j.OutputDir != "")

	return append(args, j.Extra...)
}

// CommandLine returns the full command as a shell style string
func (j Job) CommandLine() string {

	parts := append([]string{j.interpreter()}, j.Args()...)

	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\"'$\\") {
			parts[i] = "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
		}
	}

	return strings.Join(parts, " ")
}

func (j Job) interpreter() string {
	if j.Interpreter == "" {
		return "python3"
	}
	return j.Interpreter
}
