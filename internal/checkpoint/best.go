package checkpoint

import (
	"context"
	"log/slog"
)

// BestSaver keeps a single checkpoint at "<prefix>.born". Every Save
// overwrites it; the caller decides which snapshots are worth keeping.
type BestSaver struct {
	path   string
	logger *slog.Logger
	saves  int
}

// NewBestSaver returns a saver writing to prefix + FileExt.
func NewBestSaver(prefix string, logger *slog.Logger) *BestSaver {
	if logger == nil {
		logger = slog.Default()
	}
	return &BestSaver{path: prefix + FileExt, logger: logger}
}

// Path returns the destination file.
func (b *BestSaver) Path() string {
	return b.path
}

// Saves returns the number of completed saves.
func (b *BestSaver) Saves() int {
	return b.saves
}

// Save overwrites the destination with s.
func (b *BestSaver) Save(ctx context.Context, s Snapshot) error {
	if err := Save(ctx, b.path, &s); err != nil {
		return err
	}
	b.saves++
	b.logger.Info("checkpoint saved", "path", b.path, "epoch", s.Epoch, "loss", s.Loss)
	return nil
}

// Load reads the current best checkpoint.
func (b *BestSaver) Load() (*Snapshot, error) {
	return Load(b.path)
}
