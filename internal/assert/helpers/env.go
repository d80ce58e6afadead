package helpers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/config"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/engine"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/lock"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/policy"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/workflow"
)

type (
	// TestEngineEnv holds all the components needed for engine testing
	TestEngineEnv struct {
		Engine    *engine.Engine
		Workflows *workflow.Registry
		Policy    *policy.Pack
		Locks     *LockSpy
		Provider  *MockProvider
		Audit     *AuditRecorder
		Events    *EventRecorder
		Config    *config.Config
		Cleanup   func()
	}

	// EnvOption adjusts a test environment before the engine is built
	EnvOption func(*envSettings)

	envSettings struct {
		manifest string
		config   func(*config.Config)
		locks    lock.Manager
	}
)

// TestProviders are the provider names the mock is registered under
var TestProviders = []string{
	workflow.ProviderADB, workflow.ProviderFastboot, workflow.ProviderIOS,
}

// NewTestConfig creates a default configuration with debug logging enabled
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	return cfg
}

// WithManifest replaces the embedded default manifest
func WithManifest(manifest string) EnvOption {
	return func(s *envSettings) {
		s.manifest = manifest
	}
}

// WithConfig edits the test configuration
func WithConfig(fn func(*config.Config)) EnvOption {
	return func(s *envSettings) {
		s.config = fn
	}
}

// WithLocks replaces the in-memory lock manager
func WithLocks(m lock.Manager) EnvOption {
	return func(s *envSettings) {
		s.locks = m
	}
}

// NewTestEngine creates an engine over the default policy pack, an
// in-memory lock manager, and a scripted provider, with its events drained
// into a recorder
func NewTestEngine(t *testing.T, opts ...EnvOption) *TestEngineEnv {
	t.Helper()

	var s envSettings
	for _, opt := range opts {
		opt(&s)
	}

	cfg := NewTestConfig()
	if s.config != nil {
		s.config(cfg)
	}

	pack := policy.DefaultPack()
	var (
		reg *workflow.Registry
		err error
	)
	if s.manifest != "" {
		reg, err = workflow.Load(
			strings.NewReader(s.manifest), workflow.WithGates(pack.Contains),
		)
	} else {
		reg, err = workflow.LoadDefault(workflow.WithGates(pack.Contains))
	}
	require.NoError(t, err)

	if s.locks == nil {
		s.locks = lock.NewMemoryManager(cfg.LockTimeout())
	}
	locks := NewLockSpy(s.locks)
	mock := NewMockProvider()
	rec := NewAuditRecorder()

	eng, err := engine.New(cfg, engine.Dependencies{
		Workflows: reg,
		Policy:    pack,
		Locks:     locks,
		Providers: mock.Registry(TestProviders...),
		Audit:     rec,
	})
	require.NoError(t, err)

	env := &TestEngineEnv{
		Engine:    eng,
		Workflows: reg,
		Policy:    pack,
		Locks:     locks,
		Provider:  mock,
		Audit:     rec,
		Events:    RecordEvents(eng.Events()),
		Config:    cfg,
	}
	env.Cleanup = func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), DefaultWaitTimeout,
		)
		defer cancel()
		_ = eng.Stop(ctx)
	}
	return env
}

// Dependencies returns the dependencies the environment's engine was
// built from
func (env *TestEngineEnv) Dependencies() engine.Dependencies {
	return engine.Dependencies{
		Workflows: env.Workflows,
		Policy:    env.Policy,
		Locks:     env.Locks,
		Providers: env.Provider.Registry(TestProviders...),
		Audit:     env.Audit,
	}
}

// Run starts an execution and waits for its terminal result
func (env *TestEngineEnv) Run(
	t *testing.T, req *engine.Request,
) *engine.Run {
	t.Helper()
	r, err := env.Engine.Start(context.Background(), req)
	require.NoError(t, err)
	select {
	case <-r.Done():
	case <-time.After(DefaultWaitTimeout):
		t.Fatalf("execution %s did not finish", r.ID())
	}
	return r
}

// WithTestEnv creates a test engine environment, executes the provided
// function with it, and ensures cleanup happens automatically
func WithTestEnv(
	t *testing.T, fn func(*TestEngineEnv), opts ...EnvOption,
) {
	t.Helper()
	env := NewTestEngine(t, opts...)
	defer env.Cleanup()
	fn(env)
}

// WithEngine creates a test engine, executes the provided function with it,
// and ensures cleanup happens automatically
func WithEngine(t *testing.T, fn func(*engine.Engine)) {
	t.Helper()
	WithTestEnv(t, func(env *TestEngineEnv) {
		fn(env.Engine)
	})
}
