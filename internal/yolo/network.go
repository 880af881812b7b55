package yolo

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/tensor"
)

// Network is the YOLOv3 parameter registry.
//
// It owns one nn.Parameter per schema entry of every convolutional layer,
// named "layer_<index>.<suffix>". The forward pass lives outside this
// package; Network only answers which tensors exist and holds their values.
type Network struct {
	numClasses int
	layers     []Layer
	schemas    []nn.Schema
	params     [][]*nn.Parameter
	ordered    []*nn.Parameter
}

// Option configures a Network.
type Option func(*options)

type options struct {
	seed int64
}

// WithSeed sets the seed used for kernel initialisation.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// NewNetwork builds a YOLOv3 network for numClasses with freshly
// initialised parameters.
func NewNetwork(numClasses int, opts ...Option) (*Network, error) {
	o := options{seed: 1}
	for _, opt := range opts {
		opt(&o)
	}

	layers, err := Topology(numClasses)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // math/rand for weight initialization (not security-critical)
	rng := rand.New(rand.NewSource(o.seed))

	n := &Network{
		numClasses: numClasses,
		layers:     layers,
		schemas:    make([]nn.Schema, len(layers)),
		params:     make([][]*nn.Parameter, len(layers)),
	}
	for i, l := range layers {
		schema := l.Schema()
		n.schemas[i] = schema
		for _, spec := range schema {
			t, err := nn.InitSpec(spec, rng)
			if err != nil {
				return nil, fmt.Errorf("yolo: layer %d %s: %w", i, spec.Name, err)
			}
			p := nn.NewParameter(ParamName(i, spec.Name), t)
			n.params[i] = append(n.params[i], p)
			n.ordered = append(n.ordered, p)
		}
	}
	return n, nil
}

// ParamName returns the registry name of a layer parameter.
func ParamName(layer int, suffix string) string {
	return fmt.Sprintf("layer_%d.%s", layer, suffix)
}

// NumClasses returns the number of object classes the heads predict.
func (n *Network) NumClasses() int {
	return n.numClasses
}

// NumLayers returns the number of darknet layers in the table.
func (n *Network) NumLayers() int {
	return len(n.layers)
}

// NumBody returns the number of backbone layers.
func (n *Network) NumBody() int {
	return BodyLayers
}

// Layers returns the layer table.
func (n *Network) Layers() []Layer {
	return n.layers
}

// Schema returns the parameter schema of layer i (nil for parameterless layers).
func (n *Network) Schema(i int) nn.Schema {
	if i < 0 || i >= len(n.schemas) {
		return nil
	}
	return n.schemas[i]
}

// Variable returns the parameter called name at layer i.
func (n *Network) Variable(i int, name string) (*nn.Parameter, bool) {
	if i < 0 || i >= len(n.params) {
		return nil, false
	}
	want := ParamName(i, name)
	for _, p := range n.params[i] {
		if p.Name() == want {
			return p, true
		}
	}
	return nil, false
}

// DetectionLayers returns the indices of the linear detection convolutions.
func (n *Network) DetectionLayers() []int {
	var out []int
	for i, l := range n.layers {
		if l.Kind == Convolutional && !l.BatchNorm {
			out = append(out, i)
		}
	}
	return out
}

// NumElements returns the total parameter count of layers [0, upTo).
func (n *Network) NumElements(upTo int) int {
	if upTo > len(n.schemas) {
		upTo = len(n.schemas)
	}
	total := 0
	for i := 0; i < upTo; i++ {
		total += n.schemas[i].NumElements()
	}
	return total
}

// Parameters returns all parameters in layer order.
func (n *Network) Parameters() []*nn.Parameter {
	return n.ordered
}

// BodyParameters returns the parameters of the backbone layers only.
func (n *Network) BodyParameters() []*nn.Parameter {
	var out []*nn.Parameter
	for i := 0; i < BodyLayers && i < len(n.params); i++ {
		out = append(out, n.params[i]...)
	}
	return out
}

// StateDict returns the live parameter tensors keyed by name.
func (n *Network) StateDict() map[string]*tensor.RawTensor {
	return nn.StateDictOf(n.ordered)
}

// LoadStateDict copies values from stateDict into every parameter.
func (n *Network) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadStateDictInto(n.ordered, stateDict)
}

var _ nn.Module = (*Network)(nil)
