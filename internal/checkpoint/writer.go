package checkpoint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/born-ml/yolov3/internal/tensor"
)

// Encode writes s to w in .born v2 format.
//
// The data section is hashed in a first pass over the tensors so the
// checksum can precede it; tensors are not buffered.
func Encode(w io.Writer, s *Snapshot) error {
	header, tensors := s.header()
	header.CreatedAt = time.Now().UTC()

	for _, t := range header.Tensors {
		if err := validateTensorName(t.Name); err != nil {
			return err
		}
	}

	var dataSize int64
	h := sha256.New()
	for _, raw := range tensors {
		n, err := writeTensor(h, raw)
		if err != nil {
			return errors.Wrap(err, "checksum tensor data")
		}
		dataSize += n
	}
	var checksum [ChecksumSize]byte
	copy(checksum[:], h.Sum(nil))

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "marshal header")
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if len(s.OptimizerState) > 0 {
		flags |= FlagHasOptimizer
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	//nolint:gosec // G115: dataSize is a sum of non-negative tensor sizes
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(dataSize))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return errors.Wrap(err, "write fixed header")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "write header")
	}
	if pad := padding(int64(FixedHeaderSize + len(headerJSON))); pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return errors.Wrap(err, "write padding")
		}
	}

	for i, raw := range tensors {
		if _, err := writeTensor(w, raw); err != nil {
			return errors.Wrapf(err, "write tensor %s", header.Tensors[i].Name)
		}
	}
	return nil
}

// writeTensor streams raw as little-endian float32 in fixed-size chunks.
func writeTensor(w io.Writer, raw *tensor.RawTensor) (int64, error) {
	const chunk = 1 << 14
	data := raw.AsFloat32()
	buf := make([]byte, 0, chunk*4)

	var written int64
	for start := 0; start < len(data); start += chunk {
		end := min(start+chunk, len(data))
		buf = buf[:(end-start)*4]
		for i, v := range data[start:end] {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		n, err := w.Write(buf)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
