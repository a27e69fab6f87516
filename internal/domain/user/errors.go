package user

import "errors"

// Store-level outcomes. Services translate these into their own taxonomy.
var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)
