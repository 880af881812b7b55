// Package summary records training scalars and images tagged with the
// global step.
//
// FileWriter lays out one directory per run:
//
//	<root>/<run id>/events.jsonl      one JSON event per line
//	<root>/<run id>/images/*.png      image summaries
package summary

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Writer is the sink the trainer reports to.
type Writer interface {
	Scalar(tag string, value float64, step int64) error
	Image(tag string, img image.Image, step int64) error
	Flush() error
}

// Kind distinguishes event payloads.
type Kind string

// Event kinds.
const (
	KindScalar Kind = "scalar"
	KindImage  Kind = "image"
)

// Event is one line of events.jsonl.
type Event struct {
	Run    string    `json:"run"`
	Time   time.Time `json:"time"`
	Step   int64     `json:"step"`
	Tag    string    `json:"tag"`
	Kind   Kind      `json:"kind"`
	Value  float64   `json:"value,omitempty"`
	Path   string    `json:"path,omitempty"` // Image file relative to the run directory
	Width  int       `json:"width,omitempty"`
	Height int       `json:"height,omitempty"`
}

// FileWriter writes events and PNG images under a run directory.
// It is safe for concurrent use.
type FileWriter struct {
	mu     sync.Mutex
	runID  string
	dir    string
	file   *os.File
	buf    *bufio.Writer
	enc    *json.Encoder
	closed bool
}

// NewFileWriter creates <root>/<runID>. An empty runID gets a random UUID.
func NewFileWriter(root, runID string) (*FileWriter, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o750); err != nil {
		return nil, errors.Wrapf(err, "create summary directory %q", dir)
	}

	//nolint:gosec // G304: run directory is derived from configuration
	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, errors.Wrap(err, "open event file")
	}
	buf := bufio.NewWriter(f)
	return &FileWriter{runID: runID, dir: dir, file: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// RunID returns the run identifier.
func (w *FileWriter) RunID() string {
	return w.runID
}

// Dir returns the run directory.
func (w *FileWriter) Dir() string {
	return w.dir
}

// Scalar records a scalar value.
func (w *FileWriter) Scalar(tag string, value float64, step int64) error {
	return w.write(Event{Tag: tag, Kind: KindScalar, Value: value, Step: step})
}

// Image writes img as PNG and records an event pointing at it.
func (w *FileWriter) Image(tag string, img image.Image, step int64) error {
	rel := filepath.Join("images", fmt.Sprintf("%s_%d.png", sanitize(tag), step))

	//nolint:gosec // G304: file name is built from a sanitised tag
	f, err := os.Create(filepath.Join(w.dir, rel))
	if err != nil {
		return errors.Wrapf(err, "create image %q", rel)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "encode image %q", rel)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close image %q", rel)
	}

	b := img.Bounds()
	return w.write(Event{Tag: tag, Kind: KindImage, Step: step, Path: rel, Width: b.Dx(), Height: b.Dy()})
}

func (w *FileWriter) write(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("summary writer is closed")
	}
	e.Run = w.runID
	e.Time = time.Now().UTC()
	if err := w.enc.Encode(e); err != nil {
		return errors.Wrapf(err, "write %s %q", e.Kind, e.Tag)
	}
	return nil
}

// Flush writes buffered events to disk.
func (w *FileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	return errors.Wrap(w.buf.Flush(), "flush events")
}

// Close flushes and closes the event file.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return errors.Wrap(err, "flush events")
	}
	return w.file.Close()
}

// sanitize maps a tag to a file name component.
func sanitize(tag string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, tag)
}
