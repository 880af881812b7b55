// Package yolo describes the YOLOv3 network as a darknet-indexed layer table
// and exposes it as a parameter registry.
//
// Layer indices follow the darknet yolov3.cfg numbering, so the three
// detection convolutions sit at 81, 93 and 105 and the Darknet-53 backbone
// covers indices 0..74. Non-convolutional layers (shortcut, route,
// upsample, yolo) keep their slot in the table but carry no parameters.
package yolo

import (
	"fmt"

	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/tensor"
)

// Network dimensions.
const (
	// BodyLayers is the number of darknet layers in the Darknet-53 backbone
	// (the layers stored in darknet53.conv.74).
	BodyLayers = 75

	// DefaultClasses is the COCO class count of the reference weights.
	DefaultClasses = 80

	// AnchorsPerScale is the number of anchor boxes predicted per grid cell.
	AnchorsPerScale = 3

	inputChannels = 3
)

// LayerKind identifies a darknet layer type.
type LayerKind int

// Darknet layer kinds used by YOLOv3.
const (
	Convolutional LayerKind = iota
	Shortcut
	Route
	Upsample
	Detection
)

// String returns the darknet section name for the kind.
func (k LayerKind) String() string {
	switch k {
	case Convolutional:
		return "convolutional"
	case Shortcut:
		return "shortcut"
	case Route:
		return "route"
	case Upsample:
		return "upsample"
	case Detection:
		return "yolo"
	default:
		return "unknown"
	}
}

// Layer is one entry of the darknet layer table.
type Layer struct {
	Index       int
	Kind        LayerKind
	InChannels  int
	OutChannels int
	Size        int   // kernel size (convolutional only)
	Stride      int   // stride (convolutional, upsample)
	BatchNorm   bool  // convolution followed by batch-norm (no bias)
	From        []int // absolute source indices (shortcut, route)
}

// Schema returns the ordered parameter list of the layer.
//
// Batch-normalised convolutions expose beta, gamma, moving_mean,
// moving_variance and kernel; plain convolutions expose bias and kernel.
// Kernels use the HWIO layout (kh, kw, in, out).
func (l Layer) Schema() nn.Schema {
	if l.Kind != Convolutional {
		return nil
	}
	out := l.OutChannels
	kernel := nn.ParamSpec{Name: nn.Kernel, Shape: tensor.Shape{l.Size, l.Size, l.InChannels, out}}
	if !l.BatchNorm {
		return nn.Schema{
			{Name: nn.Bias, Shape: tensor.Shape{out}},
			kernel,
		}
	}
	return nn.Schema{
		{Name: nn.Beta, Shape: tensor.Shape{out}},
		{Name: nn.Gamma, Shape: tensor.Shape{out}},
		{Name: nn.MovingMean, Shape: tensor.Shape{out}},
		{Name: nn.MovingVariance, Shape: tensor.Shape{out}},
		kernel,
	}
}

// HeadFilters returns the output channel count of a detection convolution.
func HeadFilters(numClasses int) int {
	return AnchorsPerScale * (5 + numClasses)
}

// builder appends layers while tracking output channels.
type builder struct {
	layers []Layer
}

func (b *builder) lastChannels() int {
	if len(b.layers) == 0 {
		return inputChannels
	}
	return b.layers[len(b.layers)-1].OutChannels
}

// abs resolves a darknet relative reference (negative) to an absolute index.
func (b *builder) abs(ref int) int {
	if ref < 0 {
		return len(b.layers) + ref
	}
	return ref
}

func (b *builder) add(l Layer) {
	l.Index = len(b.layers)
	b.layers = append(b.layers, l)
}

func (b *builder) conv(filters, size, stride int, batchNorm bool) {
	b.add(Layer{
		Kind:        Convolutional,
		InChannels:  b.lastChannels(),
		OutChannels: filters,
		Size:        size,
		Stride:      stride,
		BatchNorm:   batchNorm,
	})
}

func (b *builder) shortcut(from int) {
	ch := b.lastChannels()
	b.add(Layer{Kind: Shortcut, InChannels: ch, OutChannels: ch, From: []int{b.abs(from)}})
}

func (b *builder) route(from ...int) {
	srcs := make([]int, len(from))
	ch := 0
	for i, ref := range from {
		srcs[i] = b.abs(ref)
		ch += b.layers[srcs[i]].OutChannels
	}
	b.add(Layer{Kind: Route, InChannels: ch, OutChannels: ch, From: srcs})
}

func (b *builder) upsample(stride int) {
	ch := b.lastChannels()
	b.add(Layer{Kind: Upsample, InChannels: ch, OutChannels: ch, Stride: stride})
}

func (b *builder) detection() {
	ch := b.lastChannels()
	b.add(Layer{Kind: Detection, InChannels: ch, OutChannels: ch})
}

// residual appends n darknet residual blocks: 1x1 bottleneck, 3x3 expand, shortcut.
func (b *builder) residual(n, bottleneck, filters int) {
	for i := 0; i < n; i++ {
		b.conv(bottleneck, 1, 1, true)
		b.conv(filters, 3, 1, true)
		b.shortcut(-3)
	}
}

// head appends the five-convolution detection block, the 3x3 expansion and
// the linear detection convolution followed by the yolo layer.
func (b *builder) head(filters, numClasses int) {
	for i := 0; i < 3; i++ {
		b.conv(filters, 1, 1, true)
		b.conv(filters*2, 3, 1, true)
	}
	b.conv(HeadFilters(numClasses), 1, 1, false)
	b.detection()
}

// darknet53 appends the Darknet-53 backbone (layers 0..74).
func (b *builder) darknet53() {
	b.conv(32, 3, 1, true)
	b.conv(64, 3, 2, true)
	b.residual(1, 32, 64)
	b.conv(128, 3, 2, true)
	b.residual(2, 64, 128)
	b.conv(256, 3, 2, true)
	b.residual(8, 128, 256)
	b.conv(512, 3, 2, true)
	b.residual(8, 256, 512)
	b.conv(1024, 3, 2, true)
	b.residual(4, 512, 1024)
}

// Topology returns the YOLOv3 layer table for numClasses object classes.
//
// The table has 107 entries (darknet indices 0..106); detection
// convolutions are at 81, 93 and 105.
func Topology(numClasses int) ([]Layer, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("yolo: class count must be positive, got %d", numClasses)
	}

	b := &builder{}
	b.darknet53()

	// Large objects, stride 32.
	b.head(512, numClasses)

	// Medium objects, stride 16.
	b.route(-4)
	b.conv(256, 1, 1, true)
	b.upsample(2)
	b.route(-1, 61)
	b.head(256, numClasses)

	// Small objects, stride 8.
	b.route(-4)
	b.conv(128, 1, 1, true)
	b.upsample(2)
	b.route(-1, 36)
	b.head(128, numClasses)

	return b.layers, nil
}
