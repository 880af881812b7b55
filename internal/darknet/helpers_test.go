package darknet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/born-ml/yolov3/internal/nn"
	"github.com/born-ml/yolov3/internal/tensor"
)

// encodeWeights builds a darknet weight file in memory.
func encodeWeights(t *testing.T, h Header, values []float32) []byte {
	t.Helper()

	var buf bytes.Buffer
	for _, v := range []int32{h.Major, h.Minor, h.Revision} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write header: %v", err)
		}
	}
	buf.Write(make([]byte, h.MetadataSize()))
	for _, v := range values {
		if err := binary.Write(&buf, binary.LittleEndian, math.Float32bits(v)); err != nil {
			t.Fatalf("write value: %v", err)
		}
	}
	return buf.Bytes()
}

// newStreamLoader builds a Loader over values without encoding a file.
func newStreamLoader(values []float32) *Loader {
	return &Loader{
		header:    Header{Major: 0, Minor: 2},
		stream:    NewWeightStream(values),
		fullSkips: FullNetworkSkips(),
		bodySkips: BackboneSkips(),
		logger:    slog.Default(),
	}
}

// sequence returns [start, start+1, ..., start+n-1] as float32.
func sequence(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

// fakeModel is a Model backed by explicit per-layer schemas.
type fakeModel struct {
	schemas []nn.Schema
	params  map[string]*nn.Parameter
	body    int
}

func newFakeModel(t *testing.T, body int, schemas ...nn.Schema) *fakeModel {
	t.Helper()

	m := &fakeModel{schemas: schemas, params: make(map[string]*nn.Parameter), body: body}
	for i, schema := range schemas {
		for _, spec := range schema {
			raw, err := tensor.Full(spec.Shape, -1)
			if err != nil {
				t.Fatalf("layer %d %s: %v", i, spec.Name, err)
			}
			m.params[key(i, spec.Name)] = nn.NewParameter(key(i, spec.Name), raw)
		}
	}
	return m
}

func key(layer int, name string) string {
	return fmt.Sprintf("%d/%s", layer, name)
}

func (m *fakeModel) NumLayers() int { return len(m.schemas) }
func (m *fakeModel) NumBody() int   { return m.body }

func (m *fakeModel) Schema(layer int) nn.Schema {
	return m.schemas[layer]
}

func (m *fakeModel) Variable(layer int, name string) (*nn.Parameter, bool) {
	p, ok := m.params[key(layer, name)]
	return p, ok
}

func (m *fakeModel) values(layer int, name string) []float32 {
	return m.params[key(layer, name)].Tensor().AsFloat32()
}

// bnConv is the schema of a batch-normalised convolution in HWIO layout.
func bnConv(size, in, out int) nn.Schema {
	return nn.Schema{
		{Name: nn.Beta, Shape: tensor.Shape{out}},
		{Name: nn.Gamma, Shape: tensor.Shape{out}},
		{Name: nn.MovingMean, Shape: tensor.Shape{out}},
		{Name: nn.MovingVariance, Shape: tensor.Shape{out}},
		{Name: nn.Kernel, Shape: tensor.Shape{size, size, in, out}},
	}
}

// biasConv is the schema of a linear convolution with bias.
func biasConv(size, in, out int) nn.Schema {
	return nn.Schema{
		{Name: nn.Bias, Shape: tensor.Shape{out}},
		{Name: nn.Kernel, Shape: tensor.Shape{size, size, in, out}},
	}
}
