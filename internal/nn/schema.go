package nn

import "github.com/born-ml/yolov3/internal/tensor"

// Parameter suffixes used by convolution and batch-norm layers.
const (
	Beta           = "beta"
	Gamma          = "gamma"
	MovingMean     = "moving_mean"
	MovingVariance = "moving_variance"
	Bias           = "bias"
	Kernel         = "kernel"
)

// ParamSpec is a statically known parameter of a layer.
type ParamSpec struct {
	Name  string
	Shape tensor.Shape
}

// NumElements returns the element count of the parameter.
func (s ParamSpec) NumElements() int {
	return s.Shape.NumElements()
}

// Schema is the ordered parameter list of a single layer.
//
// A name that is not listed is absent; a listed name with a zero-sized
// dimension is present but holds no values.
type Schema []ParamSpec

// Lookup returns the spec for name and whether the layer has it.
func (s Schema) Lookup(name string) (ParamSpec, bool) {
	for _, spec := range s {
		if spec.Name == name {
			return spec, true
		}
	}
	return ParamSpec{}, false
}

// Has reports whether the layer exposes a parameter called name.
func (s Schema) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// NumElements returns the total element count across the layer's parameters.
func (s Schema) NumElements() int {
	n := 0
	for _, spec := range s {
		n += spec.NumElements()
	}
	return n
}
