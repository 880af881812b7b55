// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the dense float32 tensors that
// hold parameters, gradients and network outputs.
//
// Example:
//
//	x, _ := tensor.NewRaw(tensor.Shape{3, 3, 32, 64})
//	x.Fill(0.5)
//	y, _ := x.Transpose(3, 2, 0, 1) // Shape: (64, 32, 3, 3)
package tensor

import (
	"github.com/born-ml/yolov3/internal/tensor"
)

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// RawTensor is a dense, row-major float32 tensor.
type RawTensor = tensor.RawTensor

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape) (*RawTensor, error) {
	return tensor.NewRaw(shape)
}

// FromSlice wraps data in a tensor without copying.
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// Full creates a tensor with every element set to value.
func Full(shape Shape, value float32) (*RawTensor, error) {
	return tensor.Full(shape, value)
}

// FromBytes decodes little-endian float32 values.
func FromBytes(b []byte, shape Shape) (*RawTensor, error) {
	return tensor.FromBytes(b, shape)
}
