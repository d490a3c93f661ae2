package alanerrors

import "errors"

var (
	ErrCancelled      = errors.New("operation cancelled")
	ErrTimeout        = errors.New("operation timed out")
	ErrClosed         = errors.New("event loop closed")
	ErrNoActivation   = errors.New("schedule has no future activation")
	ErrUnknownCommand = errors.New("unknown command")
)
