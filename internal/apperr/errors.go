package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrBusy            = errors.New("operation already in progress")
	ErrSessionNotFound = errors.New("session not found")
)
