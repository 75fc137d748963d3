package store

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another run holds the state lock.
var ErrLocked = errors.New("another run is in progress for this spec file")

const lockFile = "run.lock"

// Lock takes the advisory lock serializing runs against this store's spec
// file. It does not block: if another process holds the lock, ErrLocked is
// returned. The returned function releases the lock.
func (s *Store) Lock() (func(), error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, &PersistenceError{Op: "lock", Err: err}
	}

	locker := flock.New(filepath.Join(s.dir, lockFile))

	ok, err := locker.TryLock()
	if err != nil {
		_ = locker.Close()
		return nil, &PersistenceError{Op: "lock", Err: err}
	}
	if !ok {
		_ = locker.Close()
		return nil, ErrLocked
	}

	return func() { _ = locker.Close() }, nil
}
