package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (no negative dimensions).
//
// Zero-sized dimensions are allowed; such a tensor holds no elements.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Reversed returns a copy of the shape with the dimension order reversed.
//
//	Shape{3, 3, 32, 64}.Reversed() // Shape{64, 32, 3, 3}
func (s Shape) Reversed() Shape {
	out := make(Shape, len(s))
	for i, dim := range s {
		out[len(s)-1-i] = dim
	}
	return out
}

// Permute returns the shape obtained by reordering dimensions according to axes.
func (s Shape) Permute(axes []int) (Shape, error) {
	if err := validateAxes(axes, len(s)); err != nil {
		return nil, err
	}
	out := make(Shape, len(s))
	for i, ax := range axes {
		out[i] = s[ax]
	}
	return out, nil
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// String renders the shape as "(d0, d1, ...)".
func (s Shape) String() string {
	out := "("
	for i, dim := range s {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprint(dim)
	}
	return out + ")"
}

// validateAxes checks that axes is a permutation of [0, ndim).
func validateAxes(axes []int, ndim int) error {
	if len(axes) != ndim {
		return fmt.Errorf("axes length %d does not match %d dimensions", len(axes), ndim)
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			return fmt.Errorf("axis %d out of range for %d dimensions", ax, ndim)
		}
		if seen[ax] {
			return fmt.Errorf("axis %d repeated", ax)
		}
		seen[ax] = true
	}
	return nil
}
