package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Session is one live exposure of the local server
type Session interface {
	// URL is the public address of the session
	URL() string
	// Done is closed once the session has ended, by Close or remotely
	Done() <-chan struct{}
	// Err reports why the session ended, nil while it is alive or after Close
	Err() error
	Close() error
}

// Provider opens sessions against one relay service
type Provider interface {
	Name() string
	// Open establishes a session forwarding to localPort. ctx bounds the
	// establishment only; the returned session outlives it.
	Open(ctx context.Context, localPort int) (Session, error)
}

// ProviderConfig carries the provider specific settings from the server config
type ProviderConfig struct {
	// Host is the relay API endpoint, used by localtunnel
	Host string
	// Subdomain requests a fixed name where the relay supports it
	Subdomain string
	// Binary is the executable to run, used by cloudflared
	Binary string
}

// Factory creates a provider from its configuration
type Factory func(cfg ProviderConfig) (Provider, error)

var (
	providersMu sync.RWMutex
	providers   = make(map[string]Factory)
)

// Register registers a provider implementation
func Register(name string, factory Factory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// NewProvider creates the provider registered under name
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	providersMu.RLock()
	factory, ok := providers[name]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return factory(cfg)
}

// Providers lists the registered provider names
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
