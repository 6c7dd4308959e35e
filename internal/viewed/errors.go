package viewed

import "errors"

var (
	// ErrInvalidItem reports an empty id or a negative timestamp.
	ErrInvalidItem = errors.New("invalid viewed item")
	// ErrInvalidSettings reports a settings value that is not a JSON object.
	ErrInvalidSettings = errors.New("invalid alert settings")
	// ErrSchemaTooNew indicates the database was written by a newer release.
	ErrSchemaTooNew = errors.New("database schema is newer than supported")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("viewed store closed")
)
