package train

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"

	"github.com/born-ml/yolov3/internal/checkpoint"
	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/optim"
	"github.com/born-ml/yolov3/internal/tensor"
)

var errInjected = errors.New("injected failure")

type fakeNetwork struct {
	params    []*nn.Parameter
	modes     []bool // training flag of every Forward call
	failAfter int    // Forward fails once this many calls succeeded, when > 0
}

func newFakeNetwork() *fakeNetwork {
	raw, _ := tensor.Full(tensor.Shape{2}, 1)
	return &fakeNetwork{params: []*nn.Parameter{nn.NewParameter("layer_0.kernel", raw)}}
}

func (n *fakeNetwork) Forward(images *tensor.RawTensor, training bool) (Outputs, error) {
	if n.failAfter > 0 && len(n.modes) >= n.failAfter {
		return Outputs{}, errInjected
	}
	n.modes = append(n.modes, training)
	return Outputs{images}, nil
}

func (n *fakeNetwork) Parameters() []*nn.Parameter { return n.params }

func (n *fakeNetwork) trainingCalls() (train, eval int) {
	for _, m := range n.modes {
		if m {
			train++
		} else {
			eval++
		}
	}
	return train, eval
}

// scriptedObjective returns fn(call) for the n-th Loss call, counting from 0.
type scriptedObjective struct {
	fn    func(call int) Loss
	calls int
}

func (o *scriptedObjective) Loss(Outputs, [NumScales]*tensor.RawTensor) (Loss, error) {
	l := o.fn(o.calls)
	o.calls++
	return l, nil
}

// lossSequence scripts total losses as Box terms.
func lossSequence(values ...float64) *scriptedObjective {
	return &scriptedObjective{fn: func(call int) Loss {
		if call >= len(values) {
			return Loss{Box: values[len(values)-1]}
		}
		return Loss{Box: values[call]}
	}}
}

type fakeAutodiff struct {
	net      *fakeNetwork
	recorded int
	released int
	failGrad bool
}

func (a *fakeAutodiff) Record() Tape {
	a.recorded++
	return &fakeTape{ad: a}
}

type fakeTape struct {
	ad *fakeAutodiff
}

func (t *fakeTape) Gradients(_ Loss, params []*nn.Parameter) (optim.Gradients, error) {
	if t.ad.failGrad {
		return nil, errInjected
	}
	grads := make(optim.Gradients, len(params))
	for _, p := range params {
		g, _ := tensor.Full(p.Shape(), 1)
		grads[p] = g
	}
	return grads, nil
}

func (t *fakeTape) Release() { t.ad.released++ }

type fakeSource struct {
	steps int
	calls int
	fail  int // NextBatch fails on this call number (1-based) when > 0
}

func (s *fakeSource) StepsPerEpoch() int { return s.steps }

func (s *fakeSource) NextBatch(context.Context) (*Batch, error) {
	s.calls++
	if s.fail > 0 && s.calls == s.fail {
		return nil, errInjected
	}
	img, _ := tensor.Full(tensor.Shape{1}, float32(s.calls))
	return &Batch{Images: img, ImagePaths: []string{"img.jpg"}}, nil
}

// rewindingSource restarts its batch numbering on Rewind.
type rewindingSource struct {
	fakeSource
	rewinds int
}

func (s *rewindingSource) Rewind(context.Context) error {
	s.rewinds++
	s.calls = 0
	return nil
}

type fakeEvaluator struct {
	classes    []string
	maps       []float64 // mAP returned by successive Evaluate calls
	evaluated  int
	resets     int
	appends    int
	visualized int
	seen       []float32 // first image value of every appended batch
	short      bool      // return one value too few
}

func (e *fakeEvaluator) Reset() { e.resets++ }

func (e *fakeEvaluator) Append(_ Outputs, b *Batch, visualize bool) error {
	e.appends++
	e.seen = append(e.seen, b.Images.AsFloat32()[0])
	if visualize {
		e.visualized++
	}
	return nil
}

func (e *fakeEvaluator) Evaluate() ([]float64, error) {
	mAP := e.maps[min(e.evaluated, len(e.maps)-1)]
	e.evaluated++
	out := make([]float64, 0, len(e.classes)+1)
	for i := range e.classes {
		out = append(out, float64(i+1)/10)
	}
	out = append(out, mAP)
	if e.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *fakeEvaluator) VisualImages() []image.Image {
	return []image.Image{image.NewGray(image.Rect(0, 0, 2, 2))}
}

func (e *fakeEvaluator) ClassNames() []string { return e.classes }

type recordingCheckpointer struct {
	mu        sync.Mutex
	snapshots []checkpoint.Snapshot
}

func (c *recordingCheckpointer) Save(_ context.Context, s checkpoint.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, s)
	return nil
}

func (c *recordingCheckpointer) epochs() []int {
	var out []int
	for _, s := range c.snapshots {
		out = append(out, s.Epoch)
	}
	return out
}

type fixture struct {
	net  *fakeNetwork
	obj  *scriptedObjective
	ad   *fakeAutodiff
	opt  *optim.SGD
	src  *fakeSource
	ckpt *recordingCheckpointer
}

func newFixture(steps int, obj *scriptedObjective) *fixture {
	net := newFakeNetwork()
	return &fixture{
		net:  net,
		obj:  obj,
		ad:   &fakeAutodiff{net: net},
		opt:  optim.NewSGD(net.Parameters(), optim.SGDConfig{LR: 0.1}),
		src:  &fakeSource{steps: steps},
		ckpt: &recordingCheckpointer{},
	}
}

func (f *fixture) components() Components {
	return Components{
		Network:      f.net,
		Objective:    f.obj,
		Autodiff:     f.ad,
		Optimizer:    f.opt,
		Train:        f.src,
		Checkpointer: f.ckpt,
	}
}
