// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package darknet loads pretrained YOLOv3 weights from the binary darknet
// format into a detector.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/yolov3/darknet"
//	)
//
//	net, err := darknet.NewNetwork(20)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	l, err := darknet.Open("yolov3.weights")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Keep the COCO detection convolutions out of a 20-class model.
//	res, err := l.LoadFullNetwork(net, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("loaded %d tensors, %d floats left\n", res.Tensors, res.Remaining)
package darknet

import (
	"io"

	"github.com/born-ml/yolov3/internal/darknet"
	"github.com/born-ml/yolov3/internal/yolo"
)

// Loader reads a darknet weight file into a Model.
type Loader = darknet.Loader

// Model is the parameter registry a Loader fills.
type Model = darknet.Model

// Header is the version header of a weight file.
type Header = darknet.Header

// Result summarises one load call.
type Result = darknet.Result

// SkipPolicy maps reserved layer indices to the floats stepped over.
type SkipPolicy = darknet.SkipPolicy

// Option configures a Loader.
type Option = darknet.Option

// FormatError reports a malformed or truncated weight file.
type FormatError = darknet.FormatError

// ShapeMismatchError reports a model tensor that cannot be filled.
type ShapeMismatchError = darknet.ShapeMismatchError

// Network is the YOLOv3 parameter registry.
type Network = yolo.Network

// Open reads the weight file at path.
func Open(path string, opts ...Option) (*Loader, error) {
	return darknet.Open(path, opts...)
}

// NewLoader reads a weight file from r.
func NewLoader(r io.Reader, opts ...Option) (*Loader, error) {
	return darknet.NewLoader(r, opts...)
}

// NewNetwork allocates a YOLOv3 network for numClasses classes.
func NewNetwork(numClasses int) (*Network, error) {
	return yolo.NewNetwork(numClasses)
}

// FullNetworkSkips returns the reserved detection layers of a COCO file.
func FullNetworkSkips() SkipPolicy {
	return darknet.FullNetworkSkips()
}

// BackboneSkips returns the reserved layers of backbone-only loads.
func BackboneSkips() SkipPolicy {
	return darknet.BackboneSkips()
}

// Loader options.
var (
	WithFullSkips     = darknet.WithFullSkips
	WithBackboneSkips = darknet.WithBackboneSkips
	WithLogger        = darknet.WithLogger
)
