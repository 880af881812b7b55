package checkpoint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/born-ml/yolov3/internal/tensor"
)

// DecodeOptions configures Decode.
type DecodeOptions struct {
	SkipChecksumValidation bool // Skip checksum validation (faster but less safe)
}

type fixedHeader struct {
	flags      uint32
	headerSize uint64
	dataSize   uint64
	checksum   [ChecksumSize]byte
}

// readFixedHeader reads the 64-byte fixed header and validates magic and version.
func readFixedHeader(r io.Reader) (fixedHeader, error) {
	buf := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fixedHeader{}, errors.Wrap(err, "read fixed header")
	}
	if string(buf[0:4]) != MagicBytes {
		return fixedHeader{}, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != FormatVersion {
		return fixedHeader{}, errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", v, FormatVersion)
	}

	fh := fixedHeader{
		flags:      binary.LittleEndian.Uint32(buf[8:12]),
		headerSize: binary.LittleEndian.Uint64(buf[16:24]),
		dataSize:   binary.LittleEndian.Uint64(buf[24:32]),
	}
	copy(fh.checksum[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])
	if fh.headerSize > MaxHeaderSize {
		return fixedHeader{}, ErrHeaderTooLarge
	}
	return fh, nil
}

// readHeader reads the fixed header, the JSON header and the alignment padding.
func readHeader(r io.Reader) (fixedHeader, Header, error) {
	fh, err := readFixedHeader(r)
	if err != nil {
		return fixedHeader{}, Header{}, err
	}

	headerJSON := make([]byte, fh.headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return fixedHeader{}, Header{}, errors.Wrap(err, "read header")
	}
	var h Header
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return fixedHeader{}, Header{}, errors.Wrap(err, "parse header JSON")
	}
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	if pad := padding(int64(FixedHeaderSize) + int64(fh.headerSize)); pad > 0 {
		if _, err := io.CopyN(io.Discard, r, pad); err != nil {
			return fixedHeader{}, Header{}, errors.Wrap(err, "read padding")
		}
	}

	//nolint:gosec // G115: data size of a file that was written by Encode
	if err := validateHeader(&h, int64(fh.dataSize)); err != nil {
		return fixedHeader{}, Header{}, errors.Wrap(err, "validate header")
	}
	return fh, h, nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader, opts DecodeOptions) (*Snapshot, error) {
	fh, h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	data := make([]byte, fh.dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrap(err, "read tensor data")
	}
	if !opts.SkipChecksumValidation && sha256.Sum256(data) != fh.checksum {
		return nil, ErrChecksumMismatch
	}

	tensors := make(map[string]*tensor.RawTensor, len(h.Tensors))
	for _, meta := range h.Tensors {
		raw, err := tensor.FromBytes(data[meta.Offset:meta.Offset+meta.Size], tensor.Shape(meta.Shape))
		if err != nil {
			return nil, errors.Wrapf(err, "tensor %s", meta.Name)
		}
		tensors[meta.Name] = raw
	}
	return fromHeader(h, tensors), nil
}

// DecodeHeader reads only the headers of a checkpoint.
func DecodeHeader(r io.Reader) (Header, error) {
	_, h, err := readHeader(r)
	return h, err
}
