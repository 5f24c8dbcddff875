package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateAccount is returned when an account for the same
	// (user_id, email) pair already exists.
	ErrDuplicateAccount = errors.New("account already exists for this user and email")

	// ErrDuplicateUser is returned when a user with the same email already exists.
	ErrDuplicateUser = errors.New("user already exists for this email")
)
