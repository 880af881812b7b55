package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/yolov3/internal/tensor"
)

// HeNormal fills t with values drawn from N(0, 2/fanIn).
//
// Used for convolution kernels followed by leaky-ReLU activations.
func HeNormal(t *tensor.RawTensor, fanIn int, rng *rand.Rand) {
	if fanIn <= 0 {
		return
	}
	std := math.Sqrt(2.0 / float64(fanIn))
	data := t.AsFloat32()
	for i := range data {
		data[i] = float32(rng.NormFloat64() * std)
	}
}

// InitSpec allocates a tensor for spec and fills it with the conventional
// starting value for its role: kernels He-normal, gamma and moving_variance
// ones, everything else zeros.
func InitSpec(spec ParamSpec, rng *rand.Rand) (*tensor.RawTensor, error) {
	t, err := tensor.NewRaw(spec.Shape)
	if err != nil {
		return nil, err
	}

	switch spec.Name {
	case Kernel:
		// HWIO layout: fan-in is kh * kw * in.
		fanIn := 1
		if n := len(spec.Shape); n >= 2 {
			fanIn = spec.Shape.NumElements() / spec.Shape[n-1]
		}
		HeNormal(t, fanIn, rng)
	case Gamma, MovingVariance:
		t.Fill(1)
	}
	return t, nil
}
