package darknet

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataSize(t *testing.T) {
	tests := []struct {
		major, minor int32
		want         int
	}{
		{0, 2, 8},
		{0, 1, 4},
		{0, 0, 4},
		{1, 0, 8},
		{0, 999, 8},
		{1000, 5, 4},
		{5, 1000, 4},
		{999, 999, 8},
	}

	for _, tt := range tests {
		h := Header{Major: tt.major, Minor: tt.minor}
		assert.Equal(t, tt.want, h.MetadataSize(), "version (%d, %d)", tt.major, tt.minor)
	}
}

func TestReadHeaderConsumesMetadata(t *testing.T) {
	for _, h := range []Header{{Major: 0, Minor: 2, Revision: 7}, {Major: 0, Minor: 1}, {Major: 1000, Minor: 5}} {
		data := encodeWeights(t, h, []float32{1.5})
		r := bytes.NewReader(data)

		got, err := ReadHeader(r)
		require.NoError(t, err)
		assert.Equal(t, h, got)

		rest, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Len(t, rest, 4, "only the payload should remain for %+v", h)
	}
}

func TestReadHeaderTruncated(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte{0, 0, 0, 0, 2, 0}))
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 6, fe.Have)

	// Version 0.2 announces 8 metadata bytes but only 3 follow.
	data := encodeWeights(t, Header{Minor: 2}, nil)[:HeaderSize+3]
	_, err = ReadHeader(bytes.NewReader(data))
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 8, fe.Need)
	assert.Equal(t, 3, fe.Have)
}
