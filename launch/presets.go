package launch

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// MAEPretraining returns a job pretraining a ViT masked autoencoder on
// cifar10, as in the transformers image pretraining example
func MAEPretraining() Job {
	return Job{
		Name:         "mae-pretraining",
		Interpreter:  "python3",
		Entry:        "run_mae.py",
		Dataset:      "cifar10",
		BatchSize:    8,
		LearningRate: 1.5e-4,
		Epochs:       800,
		SaveStrategy: SaveEpoch,
		ReportTo:     "tensorboard",
		OutputDir:    "./vit-mae-demo",
		Extra: []string{
			"--remove_unused_columns", "False",
			"--label_names", "pixel_values",
			"--mask_ratio", "0.75",
			"--norm_pix_loss",
			"--do_train",
			"--do_eval",
			"--base_learning_rate", "1.5e-4",
			"--lr_scheduler_type", "cosine",
			"--weight_decay", "0.05",
			"--warmup_ratio", "0.05",
			"--per_device_eval_batch_size", "8",
			"--logging_strategy", "steps",
			"--logging_steps", "10",
			"--eval_strategy", "epoch",
			"--load_best_model_at_end", "True",
			"--save_total_limit", "3",
			"--seed", "1337",
		},
		Flags: TrainerFlags(),
	}
}

// TranslationDistillation returns a job distilling an English to Romanian
// Marian translation model into a smaller student without a teacher loss
func TranslationDistillation() Job {
	return Job{
		Name:         "translation-distillation",
		Interpreter:  "python3",
		Entry:        "distillation.py",
		Dataset:      "wmt_en_ro",
		BatchSize:    32,
		LearningRate: 3e-4,
		Epochs:       6,
		ReportTo:     "wandb",
		OutputDir:    "marian_en_ro_6_3",
		Extra: []string{
			"--do_train",
			"--fp16",
			"--val_check_interval", "0.25",
			"--teacher", "Helsinki-NLP/opus-mt-en-ro",
			"--tokenizer_name", "Helsinki-NLP/opus-mt-en-ro",
			"--model_name_or_path", "IGNORED",
			"--student_decoder_layers", "3",
			"--student_encoder_layers", "6",
			"--freeze_encoder",
			"--freeze_embeds",
			"--alpha_hid", "3.",
			"--eval_batch_size", "32",
			"--warmup_steps", "500",
			"--task", "translation",
			"--normalize_hidden",
			"--num_sanity_val_steps", "0",
		},
		Flags: LightningFlags(),
	}
}

var presets = map[string]func() Job{
	"mae-pretraining":          MAEPretraining,
	"translation-distillation": TranslationDistillation,
}

// Preset returns the named preset job
func Preset(name string) (Job, error) {

	fn, ok := presets[name]

	if !ok {
		return Job{}, errors.Errorf("unknown preset %q, available: %v", name, PresetNames())
	}

	return fn(), nil
}

// PresetNames returns the sorted preset names
func PresetNames() []string {
	names := lo.Keys(presets)
	sort.Strings(names)
	return names
}
