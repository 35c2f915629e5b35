// Package common defines shared constants and sentinel errors used across
// scalesync components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Source-session lifecycle errors.
	ErrSessionExpired  = errors.New("session expired")
	ErrNoActiveSession = errors.New("no active session")

	// Measurement retrieval errors.
	ErrFetch = errors.New("fetch failed")

	// Encoding errors (malformed or empty record sets).
	ErrEncoding = errors.New("encoding failed")

	// Destination account errors.
	ErrLoginFailed = errors.New("login failed")

	// Credential-store errors.
	ErrUserNotFound = errors.New("user not found")
)
