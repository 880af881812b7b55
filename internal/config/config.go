// Package config reads the YAML run configuration and turns it into the
// trainer's options and collaborators.
//
// Example file:
//
//	model:
//	  classes: 20
//	weights:
//	  darknet: yolov3.weights
//	  backbone_only: false
//	  skip_detector: true
//	train:
//	  epochs: 100
//	  log_iter: 1000
//	optimizer:
//	  name: adam
//	  lr: 1.0e-4
//	  schedule:
//	    - {epoch: 60, lr: 1.0e-5}
//	checkpoint:
//	  dir: checkpoints
//	  max_to_keep: 5
//
// TrainOptions, NewOptimizer, NewCheckpointer and NewSummary build the
// trainer's settings and collaborators. The forward pass, objective,
// autodiff and data sources come from the host program, so no command in
// this module assembles a Trainer itself.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/yolov3/internal/checkpoint"
	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/optim"
	"github.com/born-ml/yolov3/internal/summary"
	"github.com/born-ml/yolov3/internal/train"
	"github.com/born-ml/yolov3/internal/yolo"
)

// Config is the complete run configuration.
type Config struct {
	RunID      string     `yaml:"run_id"`
	Model      Model      `yaml:"model"`
	Weights    Weights    `yaml:"weights"`
	Train      Train      `yaml:"train"`
	Optimizer  Optimizer  `yaml:"optimizer"`
	Checkpoint Checkpoint `yaml:"checkpoint"`
	Summary    Summary    `yaml:"summary"`
}

// Model describes the detector.
type Model struct {
	Classes int `yaml:"classes"`
}

// Weights selects the pretrained darknet file. FileClasses is the class
// count the file was trained with; it sizes the detection layers skipped
// when SkipDetector is set.
type Weights struct {
	Darknet      string `yaml:"darknet"`
	FileClasses  int    `yaml:"file_classes"`
	BackboneOnly bool   `yaml:"backbone_only"`
	SkipDetector bool   `yaml:"skip_detector"`
}

// Train holds the loop settings.
type Train struct {
	Epochs       int    `yaml:"epochs"`
	Retention    string `yaml:"retention"` // "best", "every_epoch" or empty for the loop default
	LogIter      int    `yaml:"log_iter"`
	ValidBatches int    `yaml:"valid_batches"`
	PrintIter    int    `yaml:"print_iter"`
}

// Optimizer selects and parameterises the optimizer.
type Optimizer struct {
	Name     string            `yaml:"name"` // "adam" or "sgd"
	LR       float32           `yaml:"lr"`
	Momentum float32           `yaml:"momentum"`
	Betas    [2]float32        `yaml:"betas"`
	Eps      float32           `yaml:"eps"`
	Schedule []optim.Milestone `yaml:"schedule"`
}

// Checkpoint selects where snapshots go. Prefix selects a single best
// snapshot at "<prefix>.born"; otherwise Dir holds one file per epoch.
type Checkpoint struct {
	Prefix    string `yaml:"prefix"`
	Dir       string `yaml:"dir"`
	MaxToKeep int    `yaml:"max_to_keep"`
}

// Summary selects the event directory. Empty disables summaries.
type Summary struct {
	Dir string `yaml:"dir"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Model:   Model{Classes: yolo.DefaultClasses},
		Weights: Weights{FileClasses: yolo.DefaultClasses},
		Train: Train{
			Epochs:       500,
			ValidBatches: train.DefaultValidBatches,
			PrintIter:    train.DefaultPrintIter,
		},
		Optimizer: Optimizer{Name: "adam", LR: 1e-4},
		Checkpoint: Checkpoint{
			Dir:       "checkpoints",
			MaxToKeep: 5,
		},
	}
}

// Load reads the YAML file at path over Default and validates it.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: configuration path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %q", path)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decode yaml")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case c.Model.Classes <= 0:
		return invalid("model.classes", "must be positive, got %d", c.Model.Classes)
	case c.Weights.FileClasses <= 0:
		return invalid("weights.file_classes", "must be positive, got %d", c.Weights.FileClasses)
	case c.Train.Epochs <= 0:
		return invalid("train.epochs", "must be positive, got %d", c.Train.Epochs)
	case c.Train.LogIter < 0:
		return invalid("train.log_iter", "must not be negative, got %d", c.Train.LogIter)
	case c.Train.ValidBatches <= 0:
		return invalid("train.valid_batches", "must be positive, got %d", c.Train.ValidBatches)
	case c.Train.PrintIter <= 0:
		return invalid("train.print_iter", "must be positive, got %d", c.Train.PrintIter)
	case c.Optimizer.LR <= 0:
		return invalid("optimizer.lr", "must be positive, got %g", c.Optimizer.LR)
	case c.Optimizer.Momentum < 0 || c.Optimizer.Momentum >= 1:
		return invalid("optimizer.momentum", "must be in [0, 1), got %g", c.Optimizer.Momentum)
	case c.Checkpoint.Prefix == "" && c.Checkpoint.Dir == "":
		return invalid("checkpoint", "set prefix or dir")
	}
	if _, err := parseRetention(c.Train.Retention); err != nil {
		return err
	}
	switch strings.ToLower(c.Optimizer.Name) {
	case "adam", "sgd":
	default:
		return invalid("optimizer.name", "unknown optimizer %q", c.Optimizer.Name)
	}
	for _, m := range c.Optimizer.Schedule {
		if m.Epoch < 0 || m.LR <= 0 {
			return invalid("optimizer.schedule", "bad milestone %+v", m)
		}
	}
	return nil
}

func parseRetention(s string) (train.Retention, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return train.RetainDefault, nil
	case "best":
		return train.RetainBest, nil
	case "every_epoch":
		return train.RetainEveryEpoch, nil
	default:
		return 0, invalid("train.retention", "unknown policy %q", s)
	}
}

// TrainOptions converts the loop settings.
func (c *Config) TrainOptions() (train.Options, error) {
	retention, err := parseRetention(c.Train.Retention)
	if err != nil {
		return train.Options{}, err
	}
	opts := train.Options{
		Epochs:       c.Train.Epochs,
		Retention:    retention,
		LogIter:      c.Train.LogIter,
		ValidBatches: c.Train.ValidBatches,
		PrintIter:    c.Train.PrintIter,
		RunID:        c.RunID,
	}
	if len(c.Optimizer.Schedule) > 0 {
		opts.Schedule = optim.NewStepSchedule(c.Optimizer.LR, c.Optimizer.Schedule...)
	}
	return opts, nil
}

// NewOptimizer builds the configured optimizer over params.
func (c *Config) NewOptimizer(params []*nn.Parameter) optim.Optimizer {
	if strings.EqualFold(c.Optimizer.Name, "sgd") {
		return optim.NewSGD(params, optim.SGDConfig{LR: c.Optimizer.LR, Momentum: c.Optimizer.Momentum})
	}
	return optim.NewAdam(params, optim.AdamConfig{LR: c.Optimizer.LR, Betas: c.Optimizer.Betas, Eps: c.Optimizer.Eps})
}

// NewCheckpointer returns a BestSaver when a prefix is set, else a Manager.
func (c *Config) NewCheckpointer(logger *slog.Logger) train.Checkpointer {
	if c.Checkpoint.Prefix != "" {
		return checkpoint.NewBestSaver(c.Checkpoint.Prefix, logger)
	}
	return checkpoint.NewManager(c.Checkpoint.Dir, c.Checkpoint.MaxToKeep, logger)
}

// NewSummary opens the event writer, or returns summary.Discard when no
// directory is configured. The returned close function is never nil.
func (c *Config) NewSummary() (summary.Writer, func() error, error) {
	if c.Summary.Dir == "" {
		return summary.Discard, func() error { return nil }, nil
	}
	w, err := summary.NewFileWriter(c.Summary.Dir, c.RunID)
	if err != nil {
		return nil, nil, err
	}
	return w, w.Close, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.Wrap(err, "encode yaml")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode yaml")
	}
	return buf.Bytes(), nil
}
