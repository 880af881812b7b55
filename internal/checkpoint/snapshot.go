package checkpoint

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/tensor"
)

// Snapshot is the training state written at a checkpoint.
type Snapshot struct {
	RunID     string
	Epoch     int
	Step      int64
	Loss      float64
	Metrics   map[string]float64 // e.g. "mAP", "val_loss"
	ModelType string

	Params map[string]*tensor.RawTensor

	OptimizerType  string
	LR             float32
	OptimizerState map[string]*tensor.RawTensor

	Metadata map[string]string
}

// OptimizerState is implemented by optimizers that can export and restore
// their buffers.
type OptimizerState interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// Restore writes the snapshot's parameters into m and, when opt is not nil,
// its optimizer buffers into opt.
func (s *Snapshot) Restore(m nn.Module, opt OptimizerState) error {
	if err := m.LoadStateDict(s.Params); err != nil {
		return errors.Wrapf(err, "restore epoch %d", s.Epoch)
	}
	if opt != nil && len(s.OptimizerState) > 0 {
		if err := opt.LoadStateDict(s.OptimizerState); err != nil {
			return errors.Wrapf(err, "restore optimizer at epoch %d", s.Epoch)
		}
	}
	return nil
}

// header builds the JSON header and the ordered tensor list for the snapshot.
// Tensors are laid out by name so identical snapshots encode identically.
func (s *Snapshot) header() (Header, []*tensor.RawTensor) {
	all := make(map[string]*tensor.RawTensor, len(s.Params)+len(s.OptimizerState))
	for name, raw := range s.Params {
		all[name] = raw
	}
	for name, raw := range s.OptimizerState {
		all[optimizerPrefix+name] = raw
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	modelType := s.ModelType
	if modelType == "" {
		modelType = defaultModelType
	}
	h := Header{
		FormatVersion: FormatVersion,
		WriterVersion: writerVersion,
		ModelType:     modelType,
		Tensors:       make([]TensorMeta, 0, len(names)),
		Metadata:      s.Metadata,
		CheckpointMeta: &CheckpointMeta{
			RunID:         s.RunID,
			Epoch:         s.Epoch,
			Step:          s.Step,
			Loss:          s.Loss,
			Metrics:       s.Metrics,
			OptimizerType: s.OptimizerType,
			LR:            s.LR,
		},
	}
	if h.Metadata == nil {
		h.Metadata = make(map[string]string)
	}

	ordered := make([]*tensor.RawTensor, 0, len(names))
	var offset int64
	for _, name := range names {
		raw := all[name]
		size := int64(raw.ByteSize())
		h.Tensors = append(h.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat32,
			Shape:  []int(raw.Shape().Clone()),
			Offset: offset,
			Size:   size,
		})
		ordered = append(ordered, raw)
		offset += size
	}
	return h, ordered
}

// fromHeader rebuilds a Snapshot from a decoded header and its tensors.
func fromHeader(h Header, tensors map[string]*tensor.RawTensor) *Snapshot {
	s := &Snapshot{
		ModelType: h.ModelType,
		Params:    make(map[string]*tensor.RawTensor),
		Metadata:  h.Metadata,
	}
	if meta := h.CheckpointMeta; meta != nil {
		s.RunID = meta.RunID
		s.Epoch = meta.Epoch
		s.Step = meta.Step
		s.Loss = meta.Loss
		s.Metrics = meta.Metrics
		s.OptimizerType = meta.OptimizerType
		s.LR = meta.LR
	}
	for name, raw := range tensors {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			if s.OptimizerState == nil {
				s.OptimizerState = make(map[string]*tensor.RawTensor)
			}
			s.OptimizerState[rest] = raw
			continue
		}
		s.Params[name] = raw
	}
	return s
}
