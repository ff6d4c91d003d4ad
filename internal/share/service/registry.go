package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultCandidates is the startup chain used when no directory is given:
// a temp-storage location first, then a project-local uploads directory.
func DefaultCandidates() []string {
	return []string{
		filepath.Join(os.TempDir(), "local-share-uploads"),
		"uploads",
	}
}

// Registry owns the active shared directory.
// Readers call Root once per operation and work against that snapshot.
type Registry struct {
	// setMu serializes relocations so probes of competing paths do not interleave
	setMu sync.Mutex
	mu    sync.RWMutex
	root  string
}

// Resolve walks the candidates in order and returns a registry rooted at the
// first one that can be prepared.
func Resolve(candidates []string) (*Registry, error) {
	var errs []error
	for _, candidate := range candidates {
		root, err := prepare(candidate)
		if err != nil {
			log.Warn("Shared directory candidate %s rejected: %v", candidate, err)
			errs = append(errs, err)
			continue
		}
		return &Registry{root: root}, nil
	}
	return nil, &DirectoryError{
		Kind: Unrecoverable,
		Path: strings.Join(candidates, ", "),
		Err:  errors.Join(errs...),
	}
}

// Root returns the current shared directory
func (r *Registry) Root() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root
}

// SetRoot prepares path and makes it the active root. On failure the previous
// root stays active.
func (r *Registry) SetRoot(path string) (string, error) {
	r.setMu.Lock()
	defer r.setMu.Unlock()

	root, err := prepare(path)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.root = root
	r.mu.Unlock()
	return root, nil
}

// prepare makes path absolute, creates it and proves it is writable
func prepare(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", &DirectoryError{Kind: Unwritable, Path: path, Err: errors.New("empty path")}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &DirectoryError{Kind: Unwritable, Path: path, Err: err}
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", &DirectoryError{Kind: Unwritable, Path: abs, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", &DirectoryError{Kind: Unwritable, Path: abs, Err: err}
	}
	if !info.IsDir() {
		return "", &DirectoryError{Kind: Unwritable, Path: abs, Err: fmt.Errorf("not a directory")}
	}

	probe := filepath.Join(abs, ".share-probe-"+uuid.NewString())
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", &DirectoryError{Kind: Unwritable, Path: abs, Err: err}
	}
	f.Close()
	if err := os.Remove(probe); err != nil {
		return "", &DirectoryError{Kind: Unwritable, Path: abs, Err: err}
	}

	return abs, nil
}
