package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RawTensor is a dense, row-major float32 tensor held in host memory.
//
// Every parameter, gradient and network output in this module is a RawTensor.
// Reshape returns a view over the same buffer; Transpose and Clone copy.
type RawTensor struct {
	data  []float32
	shape Shape
}

// NewRaw creates a new zero-filled RawTensor with the given shape.
func NewRaw(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:  make([]float32, shape.NumElements()),
		shape: shape.Clone(),
	}, nil
}

// FromSlice wraps data in a RawTensor of the given shape without copying.
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}

	return &RawTensor{data: data, shape: shape.Clone()}, nil
}

// Full creates a tensor of the given shape with every element set to value.
func Full(shape Shape, value float32) (*RawTensor, error) {
	raw, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	raw.Fill(value)
	return raw, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data) * 4
}

// AsFloat32 returns the backing slice. Writes are visible to the tensor.
func (r *RawTensor) AsFloat32() []float32 {
	return r.data
}

// Fill sets every element to value.
func (r *RawTensor) Fill(value float32) {
	for i := range r.data {
		r.data[i] = value
	}
}

// CopyFrom overwrites the tensor contents with values in row-major order.
// The element count must match exactly.
func (r *RawTensor) CopyFrom(values []float32) error {
	if len(values) != len(r.data) {
		return fmt.Errorf("copy: got %d values for tensor of shape %v (%d elements)",
			len(values), r.shape, len(r.data))
	}
	copy(r.data, values)
	return nil
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{data: data, shape: r.shape.Clone()}
}

// Reshape returns a view with a new shape over the same buffer.
func (r *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	if shape.NumElements() != len(r.data) {
		return nil, fmt.Errorf("reshape: cannot view %v (%d elements) as %v (%d elements)",
			r.shape, len(r.data), shape, shape.NumElements())
	}
	return &RawTensor{data: r.data, shape: shape.Clone()}, nil
}

// Bytes encodes the tensor as little-endian IEEE-754 float32 values.
func (r *RawTensor) Bytes() []byte {
	out := make([]byte, len(r.data)*4)
	for i, v := range r.data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// FromBytes decodes little-endian float32 values into a tensor of the given shape.
func FromBytes(b []byte, shape Shape) (*RawTensor, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte length %d is not a multiple of 4", len(b))
	}
	data := make([]float32, len(b)/4)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return FromSlice(data, shape)
}
