package links

import "errors"

// Sentinel causes carried inside *errx.Error values. Match them with errors.Is.
var (
	ErrInvalidURL   = errors.New("invalid url")
	ErrInvalidCode  = errors.New("invalid code")
	ErrCodeConflict = errors.New("code already exists")
	ErrNotFound     = errors.New("link not found")

	// ErrCodeSpaceExhausted means every generated candidate collided.
	ErrCodeSpaceExhausted = errors.New("could not generate a unique code")
)
