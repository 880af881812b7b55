// Package checkpoint persists training snapshots in the .born v2 container.
//
// File layout (little-endian):
//
//	0x00-0x03  magic "BORN"
//	0x04-0x07  format version (2)
//	0x08-0x0B  flags
//	0x0C-0x0F  reserved
//	0x10-0x17  JSON header size
//	0x18-0x1F  data section size
//	0x20-0x3F  SHA-256 of the data section
//	0x40-      JSON header, zero padding to a 64-byte boundary, tensor data
//
// Every tensor is float32. Parameters are stored under their own names and
// optimizer buffers under the "optimizer." prefix.
package checkpoint

import "time"

// Format constants.
const (
	MagicBytes       = "BORN"
	FormatVersion    = 2    // With SHA-256 checksum
	HeaderAlignment  = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize  = 64   // Fixed header size (0x40 bytes)
	ChecksumSize     = 32   // SHA-256 checksum size
	ChecksumOffset   = 0x20 // Checksum offset in the fixed header
	DTypeFloat32     = "float32"
	optimizerPrefix  = "optimizer."
	writerVersion    = "yolov3/0.1.0"
	defaultModelType = "YOLOv3"
)

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // custom metadata included
)

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	WriterVersion  string            `json:"writer_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains the training state recorded with the tensors.
type CheckpointMeta struct {
	RunID         string             `json:"run_id,omitempty"`
	Epoch         int                `json:"epoch"`
	Step          int64              `json:"step"`
	Loss          float64            `json:"loss"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
	OptimizerType string             `json:"optimizer_type,omitempty"`
	LR            float32            `json:"lr,omitempty"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Bytes
}

// padding returns the number of zero bytes that align pos to HeaderAlignment.
func padding(pos int64) int64 {
	return (HeaderAlignment - (pos % HeaderAlignment)) % HeaderAlignment
}
