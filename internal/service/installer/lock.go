package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/oshokin/formula-resolver/internal/config"
)

// LockFilename is created in the state directory while an install runs.
const LockFilename = "formulactl.lock"

// ErrLocked is returned when another install or uninstall holds the lock.
var ErrLocked = errors.New("another formulactl install is running")

// acquireLock takes the state directory lock without waiting.
func acquireLock(stateDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(stateDir, config.DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	lock := flock.New(filepath.Join(stateDir, LockFilename))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lock.Path(), err)
	}

	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}

	return lock, nil
}
