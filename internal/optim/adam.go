package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/parallel"
	"github.com/born-ml/yolov3/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params []*nn.Parameter
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int                                 // Timestep for bias correction
	m      map[*nn.Parameter]*tensor.RawTensor // First moment estimates
	v      map[*nn.Parameter]*tensor.RawTensor // Second moment estimates

	workers parallel.Config
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer, filling unset hyperparameters with
// LR 0.001, betas (0.9, 0.999) and eps 1e-8.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter]*tensor.RawTensor),
		v:      make(map[*nn.Parameter]*tensor.RawTensor),

		workers: parallel.DefaultConfig(),
	}
}

// Step performs a single optimization step. Parameters with no gradient are skipped.
func (a *Adam) Step(grads Gradients) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := gradient(param, grads)
		if grad == nil || !sameSize(param, grad) {
			continue
		}

		m, ok := a.m[param]
		if !ok {
			m, _ = tensor.NewRaw(param.Shape())
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v, _ = tensor.NewRaw(param.Shape())
			a.v[param] = v
		}

		a.updateParameter(param, grad.AsFloat32(), m.AsFloat32(), v.AsFloat32(), biasCorrection1, biasCorrection2)
	}
}

// updateParameter performs Adam update for a single parameter.
func (a *Adam) updateParameter(param *nn.Parameter, grad, m, v []float32, biasCorrection1, biasCorrection2 float32) {
	data := param.Tensor().AsFloat32()
	lr, beta1, beta2, eps := a.lr, a.beta1, a.beta2, a.eps
	parallel.Range(len(grad), a.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			g := grad[i]
			m[i] = beta1*m[i] + (1.0-beta1)*g
			v[i] = beta2*v[i] + (1.0-beta2)*g*g

			mHat := m[i] / biasCorrection1
			vHat := v[i] / biasCorrection2

			data[i] -= lr * mHat / (float32(math.Sqrt(float64(vHat))) + eps)
		}
	})
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// LR returns the current learning rate.
func (a *Adam) LR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}

// Timestep returns the number of steps taken.
func (a *Adam) Timestep() int {
	return a.t
}

// StateDict exports the moment buffers as "m.{i}" and "v.{i}" plus the
// timestep as a one-element "t" tensor.
func (a *Adam) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for i, param := range a.params {
		if m, ok := a.m[param]; ok {
			state[fmt.Sprintf("m.%d", i)] = m
		}
		if v, ok := a.v[param]; ok {
			state[fmt.Sprintf("v.%d", i)] = v
		}
	}
	t, _ := tensor.Full(tensor.Shape{1}, float32(a.t))
	state["t"] = t
	return state
}

// LoadStateDict restores buffers exported by StateDict.
func (a *Adam) LoadStateDict(state map[string]*tensor.RawTensor) error {
	a.m = make(map[*nn.Parameter]*tensor.RawTensor)
	a.v = make(map[*nn.Parameter]*tensor.RawTensor)

	for i, param := range a.params {
		for prefix, dst := range map[string]map[*nn.Parameter]*tensor.RawTensor{"m": a.m, "v": a.v} {
			buf, ok := state[fmt.Sprintf("%s.%d", prefix, i)]
			if !ok {
				continue
			}
			if !buf.Shape().Equal(param.Shape()) {
				return fmt.Errorf("%s shape mismatch for parameter %d: expected %v, got %v",
					prefix, i, param.Shape(), buf.Shape())
			}
			dst[param] = buf.Clone()
		}
	}

	a.t = 0
	if t, ok := state["t"]; ok && t.NumElements() == 1 {
		a.t = int(t.AsFloat32()[0])
	}
	return nil
}
