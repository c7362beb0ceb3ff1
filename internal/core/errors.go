package core

import "errors"

// Error codes sent to clients.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeIdentityConflict   = "identity_conflict"
	ErrCodePersistFailed      = "persist_failed"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeInvalidMessage     = "invalid_message"
	ErrCodeRateLimited        = "rate_limited"
)

var (
	// ErrValidation marks an inbound event with missing or malformed fields.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence marks a message the store could not record.
	ErrPersistence = errors.New("persistence failed")
	// ErrPresenceWrite marks a directory update that did not complete.
	ErrPresenceWrite = errors.New("presence write failed")
	// ErrIdentityConflict is returned when a connection tries to rebind to another user.
	ErrIdentityConflict = errors.New("identity conflict")
	// ErrUnknownConnection is returned for operations on a connection the registry does not hold.
	ErrUnknownConnection = errors.New("unknown connection")
	ErrBadRequest        = errors.New("bad request")
	ErrClientClosed      = errors.New("client closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
