package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrAccountIDRequired is returned when saving an account without a home account ID.
	ErrAccountIDRequired = errors.New("home_account_id is required")
)
