package flags

import (
	"errors"
)

// Error kinds surfaced by engine operations. Callers map kinds to user-facing
// messages with errors.Is; the engine never retries internally.
var (
	ErrDuplicateFlag   = errors.New("flag already exists for this target and reporter")
	ErrInvalidTarget   = errors.New("flag target does not exist")
	ErrTargetDeleted   = errors.New("flag target was deleted")
	ErrUnauthorized    = errors.New("insufficient privileges to flag")
	ErrInvalidInput    = errors.New("invalid flag input")
	ErrUserNotEligible = errors.New("reporter is banned or unknown")
	ErrNotFound        = errors.New("no such flag")
)
