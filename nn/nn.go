// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public parameter types shared by the detector,
// the darknet loader and the optimizers.
package nn

import (
	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/tensor"
)

// Module is anything that owns named parameters.
type Module = nn.Module

// Parameter is a named trainable tensor with an optional gradient.
type Parameter = nn.Parameter

// ParamSpec describes one tensor of a layer.
type ParamSpec = nn.ParamSpec

// Schema lists the tensors of a layer.
type Schema = nn.Schema

// MissingParameterError reports a state dict without an expected entry.
type MissingParameterError = nn.MissingParameterError

// ParameterShapeError reports a state dict entry of the wrong shape.
type ParameterShapeError = nn.ParameterShapeError

// Variable names of a convolutional layer.
const (
	Kernel         = nn.Kernel
	Bias           = nn.Bias
	Beta           = nn.Beta
	Gamma          = nn.Gamma
	MovingMean     = nn.MovingMean
	MovingVariance = nn.MovingVariance
)

// NewParameter creates a parameter named name over t.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return nn.NewParameter(name, t)
}
