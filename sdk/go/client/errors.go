package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrInvalidConfig    = errors.New("invalid client configuration")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrAgentNotFound    = errors.New("agent not found")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
