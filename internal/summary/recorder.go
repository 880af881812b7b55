package summary

import (
	"image"
	"sync"
)

// Recorder keeps events in memory. The zero value is ready to use.
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	images  map[string]image.Image
	flushes int
}

// Scalar records a scalar value.
func (r *Recorder) Scalar(tag string, value float64, step int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Tag: tag, Kind: KindScalar, Value: value, Step: step})
	return nil
}

// Image records an image.
func (r *Recorder) Image(tag string, img image.Image, step int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.images == nil {
		r.images = make(map[string]image.Image)
	}
	r.images[tag] = img
	b := img.Bounds()
	r.events = append(r.events, Event{Tag: tag, Kind: KindImage, Step: step, Width: b.Dx(), Height: b.Dy()})
	return nil
}

// Flush counts flushes.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Scalars returns the values recorded for tag in order.
func (r *Recorder) Scalars(tag string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float64
	for _, e := range r.events {
		if e.Kind == KindScalar && e.Tag == tag {
			out = append(out, e.Value)
		}
	}
	return out
}

// Flushes returns the number of Flush calls.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

// Discard is a Writer that drops everything.
var Discard Writer = discard{}

type discard struct{}

func (discard) Scalar(string, float64, int64) error    { return nil }
func (discard) Image(string, image.Image, int64) error { return nil }
func (discard) Flush() error                           { return nil }
