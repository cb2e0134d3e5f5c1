package file

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"

	"github.com/MrSnakeDoc/presence/internal/domain"
	"github.com/MrSnakeDoc/presence/internal/logger"
	"github.com/MrSnakeDoc/presence/internal/metrics"
)

// ErrLocked means another process owns the roster.
var ErrLocked = errors.New("roster is locked by another process")

// Store persists roster generations as a JSON document.
//
// Writes go to "<path>.tmp" and are renamed over the canonical file, so a
// concurrent reader sees either the previous or the new document.
type Store struct {
	path   string
	lock   *flock.Flock
	logger logger.Logger

	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// NewStore creates a store for the document at path.
func NewStore(path string, log logger.Logger) *Store {
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: log,
		now:    time.Now,
		rename: os.Rename,
	}
}

// Path returns the canonical document location.
func (s *Store) Path() string { return s.path }

// TempPath returns the staging location used by Save.
func (s *Store) TempPath() string { return s.path + ".tmp" }

// Lock takes the single-writer lock next to the document.
func (s *Store) Lock() error {
	locked, err := s.lock.TryLock()
	if err != nil {
		return errors.Wrapf(err, "lock %s", s.lock.Path())
	}
	if !locked {
		return errors.Wrapf(ErrLocked, "%s", s.lock.Path())
	}
	return nil
}

// Unlock releases the single-writer lock.
func (s *Store) Unlock() error {
	return s.lock.Unlock()
}

// Load returns the persisted roster. A missing or unreadable document
// yields an empty roster; a document that fails to parse is moved aside
// first so the next Save cannot overwrite the only copy.
func (s *Store) Load() *domain.Roster {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("failed to read roster, starting empty",
				logger.String("file", s.path),
				logger.Error(err))
		}
		return domain.NewRoster()
	}

	roster, skipped, err := Decode(data)
	if err != nil {
		s.logger.Error("failed to parse roster, starting empty",
			logger.String("file", s.path),
			logger.Error(err))
		s.quarantine()
		return domain.NewRoster()
	}
	if skipped > 0 {
		s.logger.Warn("dropped roster records without a name",
			logger.String("file", s.path),
			logger.Int("count", skipped))
	}
	return roster
}

func (s *Store) quarantine() {
	aside := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := s.rename(s.path, aside); err != nil {
		s.logger.Warn("failed to move corrupt roster aside",
			logger.String("file", s.path),
			logger.Error(err))
		return
	}
	s.logger.Warn("corrupt roster moved aside",
		logger.String("file", aside))
}

// Save atomically replaces the document with r.
func (s *Store) Save(r *domain.Roster) error {
	data, err := Encode(r)
	if err != nil {
		return errors.Wrap(err, "encode roster")
	}

	if err := s.writeAtomic(data); err != nil {
		metrics.StoreWriteFailures.WithLabelValues("file").Inc()
		return err
	}

	s.logger.Info("roster saved",
		logger.String("file", s.path),
		logger.Int("entities", r.Len()))
	return nil
}

func (s *Store) writeAtomic(data []byte) error {
	tmp := s.TempPath()

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "create temporary roster")
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "write temporary roster")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "sync temporary roster")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close temporary roster")
	}

	if err := s.rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "replace roster")
	}

	// Make the rename durable; failure here does not undo the replace.
	if dir, err := os.Open(filepath.Dir(s.path)); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}
