package checkpoint

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileExt is the extension of checkpoint files.
const FileExt = ".born"

// Save writes s to path atomically: the snapshot is written to a temporary
// file in the same directory, synced, then renamed over path. Readers see
// either the previous file or the complete new one.
func Save(ctx context.Context, path string, s *Snapshot) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "create checkpoint directory %q", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temporary checkpoint")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriterSize(tmp, 1<<20)
	if err := Encode(w, s); err != nil {
		return errors.Wrapf(err, "encode checkpoint %q", path)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "write checkpoint %q", path)
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrapf(err, "sync checkpoint %q", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close checkpoint %q", path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename checkpoint into %q", path)
	}
	return nil
}

// Load reads and verifies the checkpoint at path.
func Load(path string) (*Snapshot, error) {
	//nolint:gosec // G304: checkpoint path comes from the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open checkpoint")
	}
	defer func() { _ = f.Close() }()

	s, err := Decode(bufio.NewReaderSize(f, 1<<20), DecodeOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "load checkpoint %q", path)
	}
	return s, nil
}

// ReadHeader reads the header of the checkpoint at path without its data.
func ReadHeader(path string) (Header, error) {
	//nolint:gosec // G304: checkpoint path comes from the caller
	f, err := os.Open(path)
	if err != nil {
		return Header{}, errors.Wrap(err, "open checkpoint")
	}
	defer func() { _ = f.Close() }()

	h, err := DecodeHeader(bufio.NewReader(f))
	if err != nil {
		return Header{}, errors.Wrapf(err, "read checkpoint header %q", path)
	}
	return h, nil
}
