package session

import "errors"

var (
	// ErrSessionNotFound is returned when no session has the requested ID.
	ErrSessionNotFound = errors.New("scan session not found")

	// ErrSessionClosed is returned when frames are sent to a closed session.
	ErrSessionClosed = errors.New("scan session is closed")
)
