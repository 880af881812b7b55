package darknet

// WeightStream is the float payload of a weight file with a forward-only
// cursor.
type WeightStream struct {
	data   []float32
	offset int
}

// NewWeightStream wraps data. The slice is not copied and must not be
// modified while the stream is in use.
func NewWeightStream(data []float32) *WeightStream {
	return &WeightStream{data: data}
}

// Read returns the next n values, the half-open range [offset, offset+n),
// and advances the cursor by n. The returned slice aliases the stream.
// A read past the end fails with *FormatError and leaves the cursor unchanged.
func (s *WeightStream) Read(n int) ([]float32, error) {
	if err := s.check(n, "read"); err != nil {
		return nil, err
	}
	start := s.offset
	s.offset += n
	return s.data[start:s.offset:s.offset], nil
}

// Skip advances the cursor by n without returning values.
func (s *WeightStream) Skip(n int) error {
	if err := s.check(n, "skip"); err != nil {
		return err
	}
	s.offset += n
	return nil
}

func (s *WeightStream) check(n int, op string) error {
	if n < 0 {
		return &FormatError{Reason: "negative " + op + " size", Offset: s.offset, Need: n}
	}
	if n > s.Remaining() {
		return &FormatError{Reason: op + " past end of weights", Offset: s.offset, Need: n, Have: s.Remaining()}
	}
	return nil
}

// Offset returns the number of values consumed so far.
func (s *WeightStream) Offset() int {
	return s.offset
}

// Len returns the total number of values in the stream.
func (s *WeightStream) Len() int {
	return len(s.data)
}

// Remaining returns the number of values not yet consumed.
func (s *WeightStream) Remaining() int {
	return len(s.data) - s.offset
}
