// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train runs YOLOv3 training with loss-driven or evaluator-driven
// checkpointing.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/yolov3/train"
//	)
//
//	tr := train.New(train.Components{
//	    Network:      net,
//	    Objective:    objective,
//	    Autodiff:     ad,
//	    Optimizer:    optimizer,
//	    Train:        trainSource,
//	    Valid:        validSource,
//	    Checkpointer: train.NewBestSaver("weights/yolov3", logger),
//	}, train.Options{Epochs: 500})
//
//	report, err := tr.Fit(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("saved at epochs", report.SavedEpochs())
package train

import (
	"log/slog"

	"github.com/born-ml/yolov3/internal/checkpoint"
	"github.com/born-ml/yolov3/internal/train"
)

// Trainer runs the training loops.
type Trainer = train.Trainer

// Components are the collaborators of a Trainer.
type Components = train.Components

// Options are the numeric settings of a run.
type Options = train.Options

// Option configures a Trainer.
type Option = train.Option

// Report summarises a finished run.
type Report = train.Report

// EpochResult is the outcome of one epoch.
type EpochResult = train.EpochResult

// Collaborator interfaces.
type (
	Network      = train.Network
	Objective    = train.Objective
	Autodiff     = train.Autodiff
	Tape         = train.Tape
	DataSource   = train.DataSource
	Rewinder     = train.Rewinder
	Evaluator    = train.Evaluator
	Checkpointer = train.Checkpointer
)

// Batch, Outputs and Loss flow between the collaborators.
type (
	Batch   = train.Batch
	Outputs = train.Outputs
	Loss    = train.Loss
)

// Retention selects the checkpoint policy.
type Retention = train.Retention

// Retention policies.
const (
	RetainDefault    = train.RetainDefault
	RetainBest       = train.RetainBest
	RetainEveryEpoch = train.RetainEveryEpoch
)

// State is a phase of the training state machine.
type State = train.State

// ConfigurationError reports a trainer that cannot start.
type ConfigurationError = train.ConfigurationError

// Snapshot is the state written at a checkpoint.
type Snapshot = checkpoint.Snapshot

// New creates a Trainer.
func New(c Components, opts Options, extra ...Option) *Trainer {
	return train.New(c, opts, extra...)
}

// Trainer options.
var (
	WithLogger    = train.WithLogger
	WithStateHook = train.WithStateHook
)

// NewBestSaver keeps a single checkpoint at prefix + ".born".
func NewBestSaver(prefix string, logger *slog.Logger) *checkpoint.BestSaver {
	return checkpoint.NewBestSaver(prefix, logger)
}

// NewManager keeps one checkpoint per epoch in dir, at most maxToKeep.
func NewManager(dir string, maxToKeep int, logger *slog.Logger) *checkpoint.Manager {
	return checkpoint.NewManager(dir, maxToKeep, logger)
}

// LoadCheckpoint reads and verifies a checkpoint file.
func LoadCheckpoint(path string) (*Snapshot, error) {
	return checkpoint.Load(path)
}
