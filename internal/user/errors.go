package user

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that the user could not be located.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists indicates a username or email uniqueness violation.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrUsernameTaken is the username flavour of ErrAlreadyExists.
	ErrUsernameTaken = fmt.Errorf("%w: username", ErrAlreadyExists)
	// ErrEmailTaken is the email flavour of ErrAlreadyExists.
	ErrEmailTaken = fmt.Errorf("%w: email", ErrAlreadyExists)
	// ErrMissingSecret rejects a candidate without a password hash.
	ErrMissingSecret = errors.New("password hash is required")
)
