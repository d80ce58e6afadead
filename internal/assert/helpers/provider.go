package helpers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/provider"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

type (
	// MockProvider is a scripted stand-in for every device tool. Calls are
	// matched by command line, the command followed by its arguments
	MockProvider struct {
		handlers map[string]MockHandler
		calls    []ProviderCall
		notify   chan struct{}
		mu       sync.Mutex
	}

	// ProviderCall records one dispatch
	ProviderCall struct {
		Provider string
		Serial   api.Serial
		Command  string
		Args     []string
	}

	// MockHandler answers a dispatch
	MockHandler func(context.Context, ProviderCall) (*api.ActionResult, error)
)

// DefaultOutput is the stdout returned for calls without a script
const DefaultOutput = "ok"

// NewMockProvider creates a provider that succeeds unless scripted
// otherwise
func NewMockProvider() *MockProvider {
	return &MockProvider{
		handlers: map[string]MockHandler{},
		notify:   make(chan struct{}),
	}
}

// Line returns the command line used to match scripts
func (c ProviderCall) Line() string {
	return strings.Join(append([]string{c.Command}, c.Args...), " ")
}

// Registry binds the mock to each provider name
func (m *MockProvider) Registry(names ...string) *provider.Registry {
	reg := provider.NewRegistry()
	for _, name := range names {
		reg.Register(name, m.For(name))
	}
	return reg
}

// For returns the mock as the named provider
func (m *MockProvider) For(name string) provider.Provider {
	return provider.Func(func(
		ctx context.Context, serial api.Serial, command string, args []string,
	) (*api.ActionResult, error) {
		call := ProviderCall{
			Provider: name,
			Serial:   serial,
			Command:  command,
			Args:     append([]string(nil), args...),
		}
		return m.invoke(ctx, call)
	})
}

func (m *MockProvider) invoke(
	ctx context.Context, call ProviderCall,
) (*api.ActionResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	h, ok := m.handlers[call.Line()]
	close(m.notify)
	m.notify = make(chan struct{})
	m.mu.Unlock()

	if !ok {
		return &api.ActionResult{Success: true, Stdout: DefaultOutput}, nil
	}
	return h(ctx, call)
}

// SetHandler scripts a command line with a handler
func (m *MockProvider) SetHandler(line string, h MockHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[line] = h
}

// SetResponse scripts a command line to return res
func (m *MockProvider) SetResponse(line string, res *api.ActionResult) {
	m.SetHandler(line, func(
		context.Context, ProviderCall,
	) (*api.ActionResult, error) {
		cp := *res
		return &cp, nil
	})
}

// SetOutput scripts a command line to succeed with stdout
func (m *MockProvider) SetOutput(line, stdout string) {
	m.SetResponse(line, &api.ActionResult{Success: true, Stdout: stdout})
}

// SetError scripts a command line to fail with err
func (m *MockProvider) SetError(line string, err error) {
	m.SetHandler(line, func(
		context.Context, ProviderCall,
	) (*api.ActionResult, error) {
		return nil, err
	})
}

// SetFailures scripts a command line to fail with err n times, then
// succeed
func (m *MockProvider) SetFailures(line string, n int, err error) {
	var count int
	var mu sync.Mutex
	m.SetHandler(line, func(
		context.Context, ProviderCall,
	) (*api.ActionResult, error) {
		mu.Lock()
		defer mu.Unlock()
		count++
		if count <= n {
			return nil, err
		}
		return &api.ActionResult{Success: true, Stdout: DefaultOutput}, nil
	})
}

// SetPanic scripts a command line to panic with v
func (m *MockProvider) SetPanic(line string, v any) {
	m.SetHandler(line, func(
		context.Context, ProviderCall,
	) (*api.ActionResult, error) {
		panic(v)
	})
}

// SetBlocking scripts a command line to block until its context ends or
// release is closed
func (m *MockProvider) SetBlocking(line string, release <-chan struct{}) {
	m.SetHandler(line, func(
		ctx context.Context, _ ProviderCall,
	) (*api.ActionResult, error) {
		select {
		case <-release:
			return &api.ActionResult{Success: true, Stdout: DefaultOutput}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

// Calls returns every dispatch in order
func (m *MockProvider) Calls() []ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProviderCall(nil), m.calls...)
}

// CallCount returns how often a command line was dispatched
func (m *MockProvider) CallCount(line string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(line)
}

// WaitForCall blocks until a command line has been dispatched at least n
// times or the timeout expires
func (m *MockProvider) WaitForCall(
	line string, n int, timeout time.Duration,
) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		m.mu.Lock()
		if m.countLocked(line) >= n {
			m.mu.Unlock()
			return true
		}
		ch := m.notify
		m.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return m.CallCount(line) >= n
		}
	}
}

func (m *MockProvider) countLocked(line string) int {
	var n int
	for _, c := range m.calls {
		if c.Line() == line {
			n++
		}
	}
	return n
}
