// Package optim implements the parameter update rules used by the trainer.
//
// This package provides:
//   - Optimizer interface: Step, ZeroGrad and learning-rate access
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - Schedule: per-epoch learning-rate schedules (constant, step)
//
// Example usage:
//
//	opt := optim.NewAdam(net.Parameters(), optim.AdamConfig{LR: 1e-4})
//
//	for step := range steps {
//	    tape := ad.Record()
//	    loss := objective(net.Forward(batch))
//	    grads, _ := tape.Gradients(loss, net.Parameters())
//	    tape.Release()
//
//	    opt.Step(grads)
//	    opt.ZeroGrad()
//	}
package optim

import (
	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/tensor"
)

// Gradients maps each parameter to the gradient of the loss with respect to it.
// Parameters absent from the map did not take part in the forward pass.
type Gradients map[*nn.Parameter]*tensor.RawTensor

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient.
	Step(grads Gradients)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float32

	// SetLR replaces the learning rate, typically from a Schedule.
	SetLR(lr float32)

	// StateDict exports the optimizer's internal buffers for checkpointing.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores buffers exported by StateDict.
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// gradient returns the gradient for param, falling back to the gradient
// stored on the parameter itself.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func gradient(param *nn.Parameter, grads Gradients) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	if g, ok := grads[param]; ok {
		return g
	}
	return param.Grad()
}

// sameSize reports whether a gradient can be applied to param element-wise.
func sameSize(param *nn.Parameter, grad *tensor.RawTensor) bool {
	return grad.NumElements() == param.Tensor().NumElements()
}
