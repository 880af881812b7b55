package train

import (
	"context"
	"image"

	"github.com/born-ml/yolov3/internal/checkpoint"
	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/optim"
	"github.com/born-ml/yolov3/internal/tensor"
)

// NumScales is the number of detection scales in outputs and targets.
const NumScales = 3

// Outputs holds the raw per-scale network output, coarsest grid first.
type Outputs [NumScales]*tensor.RawTensor

// Batch is one batch from a DataSource.
type Batch struct {
	Images          *tensor.RawTensor
	Targets         [NumScales]*tensor.RawTensor // Ground-truth grids per scale
	ImagePaths      []string
	AnnotationPaths []string
	Scales          []float64
	OriginalShapes  [][2]int // (height, width) before resizing
}

// Loss is the detection loss of one batch split into its three terms.
type Loss struct {
	Box   float64
	Conf  float64
	Class float64
}

// Total returns the sum of the three terms.
func (l Loss) Total() float64 {
	return l.Box + l.Conf + l.Class
}

// Network runs the detector.
type Network interface {
	Forward(images *tensor.RawTensor, training bool) (Outputs, error)
	Parameters() []*nn.Parameter
}

// Objective computes the multi-scale detection loss.
type Objective interface {
	Loss(outputs Outputs, targets [NumScales]*tensor.RawTensor) (Loss, error)
}

// Autodiff opens gradient recording scopes.
type Autodiff interface {
	// Record starts recording the operations of one training step.
	Record() Tape
}

// Tape is one gradient recording scope. Release frees the recorded graph
// and is always called, on every exit path, once the step is over.
type Tape interface {
	Gradients(loss Loss, params []*nn.Parameter) (optim.Gradients, error)
	Release()
}

// DataSource yields batches. It is pulled synchronously by the trainer and
// is expected to restart once an epoch's worth of batches has been read.
type DataSource interface {
	StepsPerEpoch() int
	NextBatch(ctx context.Context) (*Batch, error)
}

// Rewinder is implemented by data sources that can restart from their first
// batch. FitWithEvaluator rewinds the validation source before every
// evaluation so each cycle scores the same batches. A validation source
// without Rewind is read onward, and each cycle scores the next
// ValidBatches batches, so mAPs of different cycles cover different images.
type Rewinder interface {
	Rewind(ctx context.Context) error
}

// Evaluator turns raw validation output into per-class AP and mAP.
type Evaluator interface {
	Reset()
	Append(outputs Outputs, batch *Batch, visualize bool) error
	// Evaluate returns one AP per class, in ClassNames order, then the mAP.
	Evaluate() ([]float64, error)
	VisualImages() []image.Image
	ClassNames() []string
}

// Checkpointer persists a snapshot. checkpoint.BestSaver and
// checkpoint.Manager implement it.
type Checkpointer interface {
	Save(ctx context.Context, s checkpoint.Snapshot) error
}

var (
	_ Checkpointer = (*checkpoint.BestSaver)(nil)
	_ Checkpointer = (*checkpoint.Manager)(nil)
)
