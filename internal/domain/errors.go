package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrTerminalState   = errors.New("generation already in a terminal state")
	ErrProviderFailure = errors.New("provider failure")
)
