package provider

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

type (
	// Provider executes one command against one device. A non-nil error or
	// a result with Success false are both step failures
	Provider interface {
		Execute(
			ctx context.Context, serial api.Serial, command string,
			args []string,
		) (*api.ActionResult, error)
	}

	// Func adapts a function to the Provider interface
	Func func(
		ctx context.Context, serial api.Serial, command string, args []string,
	) (*api.ActionResult, error)

	// Registry is the capability table mapping provider names to providers
	Registry struct {
		providers map[string]Provider
		mu        sync.RWMutex
	}
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrActionFailed    = errors.New("action failed")
	ErrActionTimeout   = errors.New("action timed out")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidCommand  = errors.New("invalid command")
	ErrSerialRequired  = errors.New("device serial required")
)

var _ Provider = (Func)(nil)

// Execute calls the wrapped function
func (f Func) Execute(
	ctx context.Context, serial api.Serial, command string, args []string,
) (*api.ActionResult, error) {
	return f(ctx, serial, command, args)
}

// NewRegistry creates an empty provider table
func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Register binds a provider to a name, replacing any existing binding
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Lookup returns the provider bound to a name
func (r *Registry) Lookup(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
}

// Names returns the registered provider names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.providers))
}
