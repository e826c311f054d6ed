// Package common defines shared constants and sentinel errors used across
// the store, service and transport layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrorValidation marks input rejected before it reaches a store.
	ErrorValidation = errors.New("validation error")

	// ErrVersionConflict is returned by a store when a user's token chain was
	// changed by someone else between load and persist.
	ErrVersionConflict = errors.New("version conflict")

	// ErrStoreUnavailable wraps connectivity failures of the credential store.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// Auth errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)
