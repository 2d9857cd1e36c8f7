package session

import "errors"

var (
	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrTestRoleDisabled = errors.New("session: test role override is disabled")
)
