package tensor

import "fmt"

// Transpose permutes the tensor's axes and returns a contiguous copy.
//
// The result has shape[i] = r.Shape()[axes[i]], and element
// result[c_0, ..., c_n] = r[c'] where c'[axes[i]] = c_i.
//
// Example:
//
//	x, _ := tensor.NewRaw(Shape{2, 3, 4})
//	y, _ := x.Transpose(2, 0, 1) // Shape: (4, 2, 3)
func (r *RawTensor) Transpose(axes ...int) (*RawTensor, error) {
	dstShape, err := r.shape.Permute(axes)
	if err != nil {
		return nil, fmt.Errorf("transpose: %w", err)
	}

	result, err := NewRaw(dstShape)
	if err != nil {
		return nil, fmt.Errorf("transpose: %w", err)
	}
	transposeFloat32(result.data, r.data, r.shape, axes)
	return result, nil
}

// transposeFloat32 scatters src (with srcShape) into dst using the axis permutation.
func transposeFloat32(dst, src []float32, srcShape Shape, axes []int) {
	ndim := len(srcShape)
	if ndim == 0 || len(src) == 0 {
		copy(dst, src)
		return
	}

	srcStrides := srcShape.ComputeStrides()
	dstShape := make(Shape, ndim)
	for i, ax := range axes {
		dstShape[i] = srcShape[ax]
	}
	dstStrides := dstShape.ComputeStrides()

	coords := make([]int, ndim)
	for i := range src {
		// Coordinates of i in the source layout
		idx := i
		for dim := 0; dim < ndim; dim++ {
			coords[dim] = idx / srcStrides[dim]
			idx %= srcStrides[dim]
		}

		dstIdx := 0
		for dstDim, srcDim := range axes {
			dstIdx += coords[srcDim] * dstStrides[dstDim]
		}
		dst[dstIdx] = src[i]
	}
}
