package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

var entryPattern = regexp.MustCompile(`^ckpt-(\d+)\.born$`)

// Entry is one checkpoint managed by a Manager.
type Entry struct {
	Epoch int
	Path  string
}

// Manager stores one checkpoint per epoch as "<dir>/ckpt-<epoch>.born" and
// keeps at most MaxToKeep of them, deleting the lowest epochs first.
// MaxToKeep <= 0 keeps everything.
type Manager struct {
	dir       string
	maxToKeep int
	logger    *slog.Logger
}

// NewManager returns a manager over dir. Existing checkpoints in dir are
// picked up by Entries and Latest.
func NewManager(dir string, maxToKeep int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, maxToKeep: maxToKeep, logger: logger}
}

// Dir returns the managed directory.
func (m *Manager) Dir() string {
	return m.dir
}

// PathFor returns the file used for epoch.
func (m *Manager) PathFor(epoch int) string {
	return filepath.Join(m.dir, fmt.Sprintf("ckpt-%d%s", epoch, FileExt))
}

// Save writes s keyed by its epoch, replacing any earlier file for the same
// epoch, then prunes old checkpoints.
func (m *Manager) Save(ctx context.Context, s Snapshot) error {
	path := m.PathFor(s.Epoch)
	if err := Save(ctx, path, &s); err != nil {
		return err
	}
	m.logger.Info("checkpoint saved", "path", path, "epoch", s.Epoch, "loss", s.Loss)
	return m.prune()
}

// Entries lists the checkpoints in the directory, ordered by epoch.
func (m *Manager) Entries() ([]Entry, error) {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "list checkpoints in %q", m.dir)
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		match := entryPattern.FindStringSubmatch(f.Name())
		if match == nil {
			continue
		}
		epoch, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Epoch: epoch, Path: filepath.Join(m.dir, f.Name())})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Epoch < entries[j].Epoch })
	return entries, nil
}

// Latest returns the checkpoint with the highest epoch, or ErrNoCheckpoint.
func (m *Manager) Latest() (Entry, error) {
	entries, err := m.Entries()
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNoCheckpoint
	}
	return entries[len(entries)-1], nil
}

func (m *Manager) prune() error {
	if m.maxToKeep <= 0 {
		return nil
	}
	entries, err := m.Entries()
	if err != nil {
		return err
	}
	for len(entries) > m.maxToKeep {
		if err := os.Remove(entries[0].Path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove old checkpoint %q", entries[0].Path)
		}
		m.logger.Debug("checkpoint removed", "path", entries[0].Path, "epoch", entries[0].Epoch)
		entries = entries[1:]
	}
	return nil
}
