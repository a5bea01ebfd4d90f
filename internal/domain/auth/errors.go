package auth

import "errors"

var (
	// ErrInteractionRequired means silent acquisition cannot proceed without the user.
	// It is the only error kind that escalates to interactive acquisition.
	ErrInteractionRequired = errors.New("interaction required")

	// ErrInteractionInProgress means another interactive flow already owns the provider.
	ErrInteractionInProgress = errors.New("interaction already in progress")

	// ErrProviderNotReady is returned by the provisional provider before configuration resolves.
	ErrProviderNotReady = errors.New("identity provider not configured")

	// ErrNoAccount is returned when an operation needs an account and none was given.
	ErrNoAccount = errors.New("no account")
)
