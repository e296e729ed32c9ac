// internal/pkg/errors/error.go
package xerrors

import "errors"

// Store-level sentinels. Repositories wrap these; services translate them
// into an *AppError before anything reaches a handler.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid record")
	ErrConflict     = errors.New("record already exists")
)

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is, or wraps, ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
