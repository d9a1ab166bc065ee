package repo

import "github.com/cockroachdb/errors"

var (
	// ErrRepoExists is returned by init when the data directory is already
	// initialized.
	ErrRepoExists = errors.New("data directory is already initialized, use -f to force overwrite")
	// ErrRepoNotInitialized is returned when opening a data directory that
	// has no version file.
	ErrRepoNotInitialized = errors.New("data directory is not initialized, run init first")
)
