package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned when no provider is registered under a name
	ErrUnknownProvider = errors.New("unknown tunnel provider")

	// ErrConnectTimeout is returned when the relay does not answer within the connect timeout
	ErrConnectTimeout = errors.New("tunnel connect timed out")

	// ErrInvalidURL is returned for an external URL that is not absolute http(s)
	ErrInvalidURL = errors.New("invalid tunnel url")
)

// TunnelError reports a connect failure after all attempts were used
type TunnelError struct {
	Provider string
	Attempts int
	Message  string
}

func (e *TunnelError) Error() string {
	return fmt.Sprintf("tunnel %s failed after %d attempt(s): %s", e.Provider, e.Attempts, e.Message)
}
