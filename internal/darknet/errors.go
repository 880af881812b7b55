package darknet

import (
	"fmt"

	"github.com/born-ml/yolov3/internal/tensor"
)

// FormatError reports a malformed or truncated weight file.
type FormatError struct {
	Reason string // What was being read
	Offset int    // Stream cursor in floats, or byte offset for header errors
	Need   int    // Values (or bytes) required
	Have   int    // Values (or bytes) available
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Need > 0 || e.Have > 0 {
		return fmt.Sprintf("darknet: malformed weights: %s at offset %d: need %d, have %d",
			e.Reason, e.Offset, e.Need, e.Have)
	}
	return fmt.Sprintf("darknet: malformed weights: %s", e.Reason)
}

// ShapeMismatchError reports a model tensor that cannot be filled from the
// weight stream: the stream ran out, or the model's variable disagrees with
// its own schema.
type ShapeMismatchError struct {
	Layer     int
	Name      string
	Shape     tensor.Shape
	Need      int
	Available int
	Detail    string
	Err       error
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	msg := fmt.Sprintf("darknet: layer %d: ", e.Layer)
	if e.Name != "" {
		msg = fmt.Sprintf("darknet: layer %d %s %v: ", e.Layer, e.Name, e.Shape)
	}
	if e.Detail != "" {
		msg += e.Detail
	} else {
		msg += fmt.Sprintf("need %d floats, %d available", e.Need, e.Available)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying stream error, if any.
func (e *ShapeMismatchError) Unwrap() error {
	return e.Err
}
