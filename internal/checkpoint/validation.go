package checkpoint

import (
	"sort"
	"strings"
)

// Header limits. A full YOLOv3 snapshot with Adam state holds a few hundred
// tensors and a header of a few hundred kilobytes.
const (
	MaxHeaderSize    = 64 << 20
	MaxTensorCount   = 1 << 16
	MaxTensorNameLen = 1024
)

// validateHeader checks every tensor entry before any payload byte is read.
func validateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return invalid(TooManyTensors, "", "%d entries, limit %d", len(h.Tensors), MaxTensorCount)
	}
	for _, t := range h.Tensors {
		if err := validateEntry(t); err != nil {
			return err
		}
	}
	return validateTensorOffsets(h.Tensors, dataSize)
}

func validateEntry(t TensorMeta) error {
	if err := validateTensorName(t.Name); err != nil {
		return err
	}
	if t.DType != DTypeFloat32 {
		return invalid(UnsupportedDType, t.Name, "%q", t.DType)
	}
	numel := int64(1)
	for _, d := range t.Shape {
		if d < 0 {
			return invalid(InvalidShape, t.Name, "%v", t.Shape)
		}
		numel *= int64(d)
	}
	if want := numel * 4; want != t.Size {
		return invalid(SizeMismatch, t.Name, "shape %v is %d bytes, entry says %d", t.Shape, want, t.Size)
	}
	return nil
}

// validateTensorOffsets requires every region to lie inside the data
// section without sharing bytes with another region.
func validateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	byOffset := append([]TensorMeta(nil), tensors...)
	sort.Slice(byOffset, func(i, j int) bool { return byOffset[i].Offset < byOffset[j].Offset })

	var prev *TensorMeta
	for i := range byOffset {
		t := &byOffset[i]
		end := t.Offset + t.Size
		switch {
		case t.Offset < 0 || t.Size < 0:
			return invalid(NegativeOffset, t.Name, "offset %d size %d", t.Offset, t.Size)
		case end > dataSize:
			return invalid(OutOfBounds, t.Name, "ends at %d, data section is %d bytes", end, dataSize)
		case prev != nil && prev.Offset+prev.Size > t.Offset:
			return &ValidationError{
				Problem: OffsetOverlap,
				Tensor:  prev.Name,
				Other:   t.Name,
				Detail:  "regions share bytes",
			}
		}
		prev = t
	}
	return nil
}

// validateTensorName rejects names that are empty, oversized or look like
// file paths.
func validateTensorName(name string) error {
	switch {
	case name == "":
		return invalid(InvalidName, "", "empty tensor name")
	case len(name) > MaxTensorNameLen:
		return invalid(InvalidName, name[:32]+"...", "%d bytes, limit %d", len(name), MaxTensorNameLen)
	case strings.Contains(name, ".."), strings.ContainsAny(name, "\\\x00"), strings.HasPrefix(name, "/"):
		return invalid(InvalidName, name, "path-like name")
	}
	return nil
}
