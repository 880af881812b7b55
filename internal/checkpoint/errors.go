package checkpoint

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors returned by Decode, Load and Manager.
var (
	ErrChecksumMismatch   = errors.New("checkpoint: payload checksum mismatch")
	ErrInvalidMagic       = errors.New("checkpoint: not a .born file")
	ErrUnsupportedVersion = errors.New("checkpoint: unsupported format version")
	ErrHeaderTooLarge     = errors.New("checkpoint: header too large")
	ErrNoCheckpoint       = errors.New("checkpoint: none found")
)

// Problem names the kind of header defect a ValidationError reports.
type Problem string

// Header defects.
const (
	TooManyTensors   Problem = "too_many_tensors"
	InvalidName      Problem = "invalid_name"
	UnsupportedDType Problem = "unsupported_dtype"
	InvalidShape     Problem = "invalid_shape"
	SizeMismatch     Problem = "size_mismatch"
	NegativeOffset   Problem = "negative_offset"
	OutOfBounds      Problem = "out_of_bounds"
	OffsetOverlap    Problem = "offset_overlap"
)

// ValidationError reports a tensor entry that cannot be trusted.
type ValidationError struct {
	Problem Problem
	Tensor  string // Entry at fault, empty for header-wide problems
	Other   string // Entry it collides with, for OffsetOverlap
	Detail  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case e.Other != "":
		return fmt.Sprintf("checkpoint: %s between %q and %q: %s", e.Problem, e.Tensor, e.Other, e.Detail)
	case e.Tensor != "":
		return fmt.Sprintf("checkpoint: %s in %q: %s", e.Problem, e.Tensor, e.Detail)
	default:
		return fmt.Sprintf("checkpoint: %s: %s", e.Problem, e.Detail)
	}
}

func invalid(p Problem, tensor, format string, args ...any) *ValidationError {
	return &ValidationError{Problem: p, Tensor: tensor, Detail: fmt.Sprintf(format, args...)}
}
