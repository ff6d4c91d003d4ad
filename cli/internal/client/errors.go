package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// TransportKind classifies why a request never got a response
type TransportKind int

const (
	Other TransportKind = iota
	ConnectionRefused
	Timeout
)

func (k TransportKind) String() string {
	switch k {
	case ConnectionRefused:
		return "connection refused"
	case Timeout:
		return "timeout"
	default:
		return "transport error"
	}
}

// TransportError reports that the server could not be reached
type TransportError struct {
	Kind TransportKind
	URL  string
	Err  error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case ConnectionRefused:
		return fmt.Sprintf("cannot reach server at %s: connection refused (is share-server running?)", e.URL)
	case Timeout:
		return fmt.Sprintf("server at %s did not respond in time", e.URL)
	default:
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func transportError(url string, err error) error {
	kind := Other
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = ConnectionRefused
	case errors.Is(err, context.DeadlineExceeded):
		kind = Timeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = Timeout
	}
	return &TransportError{Kind: kind, URL: url, Err: err}
}
