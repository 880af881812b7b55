package darknet

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// HeaderSize is the size in bytes of the fixed version triple.
const HeaderSize = 12

// Header is the version triple at the start of a darknet weight file.
type Header struct {
	Major    int32
	Minor    int32
	Revision int32
}

// MetadataSize returns the number of bytes that follow the version triple
// before the float payload: 8 when major*10+minor >= 2 and both components
// are below 1000, otherwise 4.
func (h Header) MetadataSize() int {
	version := int64(h.Major)*10 + int64(h.Minor)
	if version >= 2 && h.Major < 1000 && h.Minor < 1000 {
		return 8
	}
	return 4
}

// ReadHeader reads the version triple and consumes the metadata bytes that
// follow it, leaving r positioned at the first float.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, &FormatError{Reason: "file shorter than header", Need: HeaderSize, Have: n}
		}
		return Header{}, errors.Wrap(err, "darknet: read header")
	}

	h := Header{
		Major:    int32(binary.LittleEndian.Uint32(buf[0:4])),
		Minor:    int32(binary.LittleEndian.Uint32(buf[4:8])),
		Revision: int32(binary.LittleEndian.Uint32(buf[8:12])),
	}

	meta := make([]byte, h.MetadataSize())
	n, err = io.ReadFull(r, meta)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, &FormatError{
				Reason: "file shorter than header metadata",
				Offset: HeaderSize,
				Need:   len(meta),
				Have:   n,
			}
		}
		return Header{}, errors.Wrap(err, "darknet: read header metadata")
	}
	return h, nil
}
