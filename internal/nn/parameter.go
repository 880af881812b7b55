package nn

import (
	"fmt"

	"github.com/born-ml/yolov3/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// The darknet loader writes into parameters through Assign; optimizers read
// Grad and update Tensor in place.
//
// Example:
//
//	kernel, _ := tensor.NewRaw(tensor.Shape{3, 3, 32, 64})
//	p := nn.NewParameter("layer_1.kernel", kernel)
//	_ = p.Assign(values)
type Parameter struct {
	name   string            // Parameter name (e.g., "layer_0.kernel")
	tensor *tensor.RawTensor // The parameter tensor
	grad   *tensor.RawTensor // Gradient tensor (set after a backward pass)
}

// NewParameter creates a new trainable parameter around an initialized tensor.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Shape returns the parameter's declared shape.
func (p *Parameter) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// Assign overwrites the parameter with values in row-major order.
//
// The number of values must equal the parameter's element count; the
// declared shape is kept.
func (p *Parameter) Assign(values []float32) error {
	if err := p.tensor.CopyFrom(values); err != nil {
		return fmt.Errorf("assign %s: %w", p.name, err)
	}
	return nil
}

// Grad returns the gradient tensor, or nil before the first backward pass.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// MissingParameterError reports a parameter absent from a state dictionary.
type MissingParameterError struct {
	Name string
}

// Error implements the error interface.
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("parameter %q missing from state dict", e.Name)
}

// ParameterShapeError reports a state dictionary entry with the wrong shape.
type ParameterShapeError struct {
	Name string
	Want tensor.Shape
	Got  tensor.Shape
}

// Error implements the error interface.
func (e *ParameterShapeError) Error() string {
	return fmt.Sprintf("parameter %q: shape %v, want %v", e.Name, e.Got, e.Want)
}
