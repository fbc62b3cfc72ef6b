package services

import "errors"

var (
	// ErrWrongPassword covers both an unknown email and a password mismatch.
	ErrWrongPassword = errors.New("wrong e-mail/password combination")

	// ErrAccountAlreadyExists is returned when registering a taken email.
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrUnauthorized is returned when a session does not own the resource
	// it tries to change.
	ErrUnauthorized = errors.New("no permission to change the underlying resource")

	// ErrCannotHashPassword is returned when registration could not derive a
	// password hash.
	ErrCannotHashPassword = errors.New("cannot hash password")

	// ErrInvalidInput is returned for requests missing required fields.
	ErrInvalidInput = errors.New("invalid input")
)
