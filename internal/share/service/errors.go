package service

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a name does not resolve to a regular file in the current root
var ErrNotFound = errors.New("file not found")

// DirectoryErrorKind classifies a DirectoryError
type DirectoryErrorKind string

const (
	// Unwritable means the directory could not be created or failed the write probe
	Unwritable DirectoryErrorKind = "unwritable"
	// Unrecoverable means no startup candidate could be prepared
	Unrecoverable DirectoryErrorKind = "unrecoverable"
)

// DirectoryError is returned by root preparation and relocation
type DirectoryError struct {
	Kind DirectoryErrorKind
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("directory %q is %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("directory %q is %s: %v", e.Path, e.Kind, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// StoreError wraps an IO failure while saving a file
type StoreError struct {
	Name string
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
