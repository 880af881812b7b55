// Package nn holds the parameter-level building blocks shared by the
// detector and the training loop:
//   - Parameter: a named trainable tensor with a gradient slot
//   - ParamSpec/Schema: the statically known (name, shape) list of a layer
//   - Module: the state-dict contract used by checkpoints
//   - Initializers for convolution kernels and batch-norm statistics
package nn

import (
	"github.com/born-ml/yolov3/internal/tensor"
)

// Module is the base interface for all parameterised components.
//
// Modules expose their trainable parameters in a stable order and can be
// serialised to and restored from a state dictionary keyed by parameter name.
type Module interface {
	// Parameters returns all trainable parameters in a deterministic order.
	Parameters() []*Parameter

	// StateDict returns a name -> tensor mapping of every parameter.
	// The tensors are the live parameter buffers, not copies.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values from the mapping into the parameters.
	// Every parameter must be present with a matching shape.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// StateDictOf builds a state dictionary from a parameter list.
func StateDictOf(params []*Parameter) map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		sd[p.Name()] = p.Tensor()
	}
	return sd
}

// LoadStateDictInto copies stateDict values into params by name.
func LoadStateDictInto(params []*Parameter, stateDict map[string]*tensor.RawTensor) error {
	for _, p := range params {
		src, ok := stateDict[p.Name()]
		if !ok {
			return &MissingParameterError{Name: p.Name()}
		}
		if !src.Shape().Equal(p.Shape()) {
			return &ParameterShapeError{Name: p.Name(), Want: p.Shape(), Got: src.Shape()}
		}
		copy(p.Tensor().AsFloat32(), src.AsFloat32())
	}
	return nil
}
