package darknet

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/tensor"
)

// vectorOrder is the on-disk order of a layer's one-dimensional parameters.
// The kernel always follows them.
var vectorOrder = [...]string{nn.Beta, nn.Gamma, nn.MovingMean, nn.MovingVariance, nn.Bias}

// kernelAxes permutes a kernel run reshaped to its reversed shape into the
// model's layout.
var kernelAxes = []int{2, 3, 1, 0}

// Model is the parameter registry the loader fills.
//
// Schema is queried before any bytes are consumed for a layer; Variable must
// resolve every name the schema lists.
type Model interface {
	NumLayers() int
	NumBody() int
	Schema(layer int) nn.Schema
	Variable(layer int, name string) (*nn.Parameter, bool)
}

// Result summarises one load call.
type Result struct {
	Layers    int   // Layers visited
	Tensors   int   // Tensors assigned
	Skipped   []int // Reserved layers stepped over
	Consumed  int   // Floats consumed by this call, including skips
	Remaining int   // Floats left in the stream afterwards
}

// Loader reads a darknet weight file and assigns its values to a Model.
//
// A Loader is single-use per stream position: each load call continues from
// where the previous one stopped. After an error the model is partially
// written and must not be used.
type Loader struct {
	header    Header
	stream    *WeightStream
	fullSkips SkipPolicy
	bodySkips SkipPolicy
	logger    *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithFullSkips replaces the reserved detection layers used by LoadFullNetwork.
func WithFullSkips(p SkipPolicy) Option {
	return func(l *Loader) { l.fullSkips = p }
}

// WithBackboneSkips replaces the reserved layers used by LoadBackbone.
func WithBackboneSkips(p SkipPolicy) Option {
	return func(l *Loader) { l.bodySkips = p }
}

// WithLogger sets the logger used for per-layer debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// Open reads the weight file at path.
func Open(path string, opts ...Option) (*Loader, error) {
	//nolint:gosec // G304: weight path comes from the user
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "darknet: open weights")
	}
	defer func() { _ = f.Close() }()

	l, err := NewLoader(bufio.NewReader(f), opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "darknet: %s", path)
	}
	return l, nil
}

// NewLoader reads a complete weight file from r.
func NewLoader(r io.Reader, opts ...Option) (*Loader, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "darknet: read weights")
	}
	if len(payload)%4 != 0 {
		return nil, &FormatError{
			Reason: "payload is not a whole number of float32 values",
			Offset: HeaderSize + h.MetadataSize(),
			Need:   len(payload) + 4 - len(payload)%4,
			Have:   len(payload),
		}
	}

	values := make([]float32, len(payload)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}

	l := &Loader{
		header:    h,
		stream:    NewWeightStream(values),
		fullSkips: FullNetworkSkips(),
		bodySkips: BackboneSkips(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Header returns the file header.
func (l *Loader) Header() Header {
	return l.header
}

// Stream returns the underlying weight stream.
func (l *Loader) Stream() *WeightStream {
	return l.stream
}

// LoadFullNetwork assigns layers [0, NumLayers) of m. When skipDetector is
// set, the detection layers of the full-network policy are stepped over
// and left untouched.
func (l *Loader) LoadFullNetwork(m Model, skipDetector bool) (*Result, error) {
	return l.load(m, m.NumLayers(), skipDetector, l.fullSkips)
}

// LoadBackbone assigns layers [0, NumBody) of m, using the backbone policy
// when skipDetector is set.
func (l *Loader) LoadBackbone(m Model, skipDetector bool) (*Result, error) {
	return l.load(m, m.NumBody(), skipDetector, l.bodySkips)
}

func (l *Loader) load(m Model, numLayers int, skipDetector bool, policy SkipPolicy) (*Result, error) {
	start := l.stream.Offset()
	res := &Result{}

	for i := 0; i < numLayers; i++ {
		res.Layers++

		if skipDetector && policy.Reserved(i) {
			size := policy.Size(i)
			if held := m.Schema(i).NumElements(); size == 0 && held > 0 {
				return nil, &ShapeMismatchError{
					Layer:     i,
					Need:      held,
					Available: l.stream.Remaining(),
					Detail:    fmt.Sprintf("reserved with a zero-size skip but holds %d floats", held),
				}
			}
			if err := l.stream.Skip(size); err != nil {
				return nil, errors.Wrapf(err, "darknet: skip layer %d", i)
			}
			res.Skipped = append(res.Skipped, i)
			l.logger.Debug("darknet: skipped layer", "layer", i, "floats", size, "offset", l.stream.Offset())
			continue
		}

		n, err := l.loadLayer(m, i)
		if err != nil {
			return nil, err
		}
		res.Tensors += n
		if n > 0 {
			l.logger.Debug("darknet: loaded layer", "layer", i, "tensors", n, "offset", l.stream.Offset())
		}
	}

	res.Consumed = l.stream.Offset() - start
	res.Remaining = l.stream.Remaining()
	return res, nil
}

// loadLayer consumes the values of one layer and returns the number of
// tensors assigned.
func (l *Loader) loadLayer(m Model, layer int) (int, error) {
	schema := m.Schema(layer)
	if len(schema) == 0 {
		return 0, nil
	}

	assigned := 0
	for _, name := range vectorOrder {
		spec, ok := schema.Lookup(name)
		if !ok {
			continue
		}
		values, p, err := l.take(m, layer, spec)
		if err != nil {
			return assigned, err
		}
		if err := p.Assign(values); err != nil {
			return assigned, errors.Wrapf(err, "darknet: layer %d", layer)
		}
		assigned++
	}

	spec, ok := schema.Lookup(nn.Kernel)
	if !ok {
		return assigned, nil
	}
	values, p, err := l.take(m, layer, spec)
	if err != nil {
		return assigned, err
	}
	kernel, err := reorderKernel(values, spec.Shape)
	if err != nil {
		return assigned, &ShapeMismatchError{
			Layer:  layer,
			Name:   spec.Name,
			Shape:  spec.Shape,
			Detail: "kernel layout",
			Err:    err,
		}
	}
	if err := p.Assign(kernel); err != nil {
		return assigned, errors.Wrapf(err, "darknet: layer %d", layer)
	}
	return assigned + 1, nil
}

// take resolves the variable for spec and reads its values from the stream.
func (l *Loader) take(m Model, layer int, spec nn.ParamSpec) ([]float32, *nn.Parameter, error) {
	p, ok := m.Variable(layer, spec.Name)
	if !ok {
		return nil, nil, &ShapeMismatchError{
			Layer:  layer,
			Name:   spec.Name,
			Shape:  spec.Shape,
			Detail: "listed in schema but not exposed by the model",
		}
	}
	if !p.Shape().Equal(spec.Shape) {
		return nil, nil, &ShapeMismatchError{
			Layer:  layer,
			Name:   spec.Name,
			Shape:  spec.Shape,
			Detail: "model variable has shape " + p.Shape().String(),
		}
	}

	need := spec.NumElements()
	values, err := l.stream.Read(need)
	if err != nil {
		return nil, nil, &ShapeMismatchError{
			Layer:     layer,
			Name:      spec.Name,
			Shape:     spec.Shape,
			Need:      need,
			Available: l.stream.Remaining(),
			Err:       err,
		}
	}
	return values, p, nil
}

// reorderKernel reshapes a raw kernel run to the reverse of shape and
// permutes it by kernelAxes, returning the values in the permuted
// row-major order.
func reorderKernel(values []float32, shape tensor.Shape) ([]float32, error) {
	if len(shape) != len(kernelAxes) {
		return nil, errors.Errorf("kernel must be 4-D, got %v", shape)
	}
	raw, err := tensor.FromSlice(values, shape.Reversed())
	if err != nil {
		return nil, err
	}
	permuted, err := raw.Transpose(kernelAxes...)
	if err != nil {
		return nil, err
	}
	return permuted.AsFloat32(), nil
}
