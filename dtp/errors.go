package dtp

import "errors"

// Structural failures which make a parse meaningless. Everything else is
// best-effort: a missing swatch, an unresolvable style or a malformed color
// yields a documented fallback, never an error.
var (
	ErrCorruptedPackage = errors.New("corrupted package")
	ErrMissingFile      = errors.New("required file is missing")
	ErrInvalidMarkup    = errors.New("invalid markup")
	ErrStyleCycle       = errors.New("style inheritance cycle")
	ErrStyleNotFound    = errors.New("style not found")
)
