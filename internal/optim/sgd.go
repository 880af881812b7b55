package optim

import (
	"fmt"

	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/parallel"
	"github.com/born-ml/yolov3/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Example:
//
//	optimizer := optim.NewSGD(net.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	params     []*nn.Parameter
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter]*tensor.RawTensor
	workers    parallel.Config
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer over params.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter]*tensor.RawTensor),
		workers:    parallel.DefaultConfig(),
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient, or with a gradient of a different size, are skipped.
func (s *SGD) Step(grads Gradients) {
	for _, param := range s.params {
		grad := gradient(param, grads)
		if grad == nil || !sameSize(param, grad) {
			continue
		}

		if s.momentum == 0 {
			s.updateParameter(param, grad.AsFloat32())
		} else {
			s.updateParameterWithMomentum(param, grad.AsFloat32())
		}
	}
}

// updateParameter performs simple SGD update without momentum.
func (s *SGD) updateParameter(param *nn.Parameter, grad []float32) {
	data := param.Tensor().AsFloat32()
	lr := s.lr
	parallel.Range(len(grad), s.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			data[i] -= lr * grad[i]
		}
	})
}

// updateParameterWithMomentum performs SGD update with momentum.
func (s *SGD) updateParameterWithMomentum(param *nn.Parameter, grad []float32) {
	velocity, exists := s.velocities[param]
	if !exists {
		velocity, _ = tensor.NewRaw(param.Shape())
		s.velocities[param] = velocity
	}

	v := velocity.AsFloat32()
	data := param.Tensor().AsFloat32()
	lr, momentum := s.lr, s.momentum
	parallel.Range(len(grad), s.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			v[i] = momentum*v[i] + grad[i]
			data[i] -= lr * v[i]
		}
	})
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// LR returns the current learning rate.
func (s *SGD) LR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}

// StateDict returns the velocity buffers keyed "velocity.{param_index}".
// Without momentum the map is empty.
func (s *SGD) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if s.momentum == 0 {
		return state
	}

	for i, param := range s.params {
		velocity, exists := s.velocities[param]
		if !exists {
			continue // not stepped yet
		}
		state[fmt.Sprintf("velocity.%d", i)] = velocity
	}
	return state
}

// LoadStateDict restores velocity buffers. Missing entries are initialised
// on the next step.
func (s *SGD) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}

	s.velocities = make(map[*nn.Parameter]*tensor.RawTensor)
	for i, param := range s.params {
		velocity, exists := state[fmt.Sprintf("velocity.%d", i)]
		if !exists {
			continue
		}
		if !velocity.Shape().Equal(param.Shape()) {
			return fmt.Errorf("velocity shape mismatch for parameter %d: expected %v, got %v",
				i, param.Shape(), velocity.Shape())
		}
		s.velocities[param] = velocity.Clone()
	}
	return nil
}
