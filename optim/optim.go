// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Gradients maps parameters to their gradients.
type Gradients = optim.Gradients

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(net.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return optim.NewSGD(params, config)
}

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}

// Schedule yields a learning rate per epoch.
type Schedule = optim.Schedule

// Constant is a fixed learning rate.
type Constant = optim.Constant

// Milestone is one step of a StepSchedule.
type Milestone = optim.Milestone

// StepSchedule is a piecewise-constant schedule.
type StepSchedule = optim.StepSchedule

// NewStepSchedule creates a StepSchedule starting at base.
func NewStepSchedule(base float32, milestones ...Milestone) *StepSchedule {
	return optim.NewStepSchedule(base, milestones...)
}
