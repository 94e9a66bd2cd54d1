package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/netsend/pkg/audio"
)

// ErrHostNotRegistered is returned by [Registry.CreateHost] when no factory
// has been registered under the requested host name.
var ErrHostNotRegistered = errors.New("config: host not registered")

// HostFactory builds an [audio.Host] from its configuration block.
type HostFactory func(HostConfig) (audio.Host, error)

// Registry maps host names to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	hosts map[string]HostFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{hosts: make(map[string]HostFactory)}
}

// RegisterHost registers a host factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterHost(name string, factory HostFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts[name] = factory
}

// CreateHost instantiates the host registered under cfg.Name.
// Returns [ErrHostNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateHost(cfg HostConfig) (audio.Host, error) {
	r.mu.RLock()
	factory, ok := r.hosts[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrHostNotRegistered, cfg.Name, r.Hosts())
	}
	return factory(cfg)
}

// Hosts returns the registered host names in sorted order.
func (r *Registry) Hosts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.hosts))
	for n := range r.hosts {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
