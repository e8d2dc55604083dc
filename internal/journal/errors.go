package journal

import (
	"errors"
	"fmt"
)

// SessionNotFoundError is returned when a session id is unknown or the
// journal holds no session at all.
type SessionNotFoundError struct {
	ID string
}

func (e *SessionNotFoundError) Error() string {
	if e.ID == "" {
		return "journal has no sessions"
	}
	return fmt.Sprintf("session %s not found", e.ID)
}

// IsSessionNotFoundError reports whether err is a *SessionNotFoundError.
func IsSessionNotFoundError(err error) bool {
	var e *SessionNotFoundError
	return errors.As(err, &e)
}
