// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers and learning-rate schedules used
// to train the detector.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Constant and StepSchedule: per-epoch learning rates
//
// # Basic Usage
//
//	net, _ := yolo.NewNetwork(80)
//	optimizer := optim.NewAdam(net.Parameters(), optim.AdamConfig{LR: 1e-4})
//
//	// One training step
//	optimizer.Step(grads)
//	optimizer.ZeroGrad()
//
// # Schedules
//
//	schedule := optim.NewStepSchedule(1e-3,
//	    optim.Milestone{Epoch: 60, LR: 1e-4},
//	    optim.Milestone{Epoch: 90, LR: 1e-5},
//	)
//	optimizer.SetLR(schedule.Value(epoch))
package optim
