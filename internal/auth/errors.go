package auth

import "errors"

var (
	// ErrHashing is returned when a stored password hash cannot be parsed.
	// A well-formed hash with a non-matching password is not an error.
	ErrHashing = errors.New("cannot verify password")

	// ErrCannotDecryptToken covers every token failure: missing, tampered,
	// encrypted under another key, malformed, not yet valid or expired.
	ErrCannotDecryptToken = errors.New("cannot decrypt token")

	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
)
