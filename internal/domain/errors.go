package domain

import "errors"

// Error taxonomy shared across packages. Callers wrap these with context via
// fmt.Errorf("...: %w", ...) and classify with errors.Is.
var (
	// ErrArgument marks invalid or conflicting CLI input. Fatal before any work.
	ErrArgument = errors.New("invalid argument")
	// ErrNetwork marks transport failures and non-2xx responses. Per item.
	ErrNetwork = errors.New("network error")
	// ErrParse marks pages missing the expected structure. Per item.
	ErrParse = errors.New("parse error")
	// ErrFilesystem marks output or index write failures.
	ErrFilesystem = errors.New("filesystem error")
	// ErrIndexCorrupt marks an index that cannot be read at startup.
	ErrIndexCorrupt = errors.New("index corrupt")
)

// IsItemError reports whether err only affects a single recipe and the run
// may continue with the next one.
func IsItemError(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrParse)
}
