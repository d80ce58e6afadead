package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	workshop "github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/audit"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/config"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/engine"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/lock"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/observability"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/policy"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/progress"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/provider"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/server"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/workflow"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

type service struct {
	cfg         *config.Config
	registry    *prometheus.Registry
	workflows   *workflow.Registry
	pack        *policy.Pack
	locks       lock.Manager
	redis       redis.UniversalClient
	providers   *provider.Registry
	blob        *audit.BlobSink
	audit       *audit.Queue
	tracer      trace.Tracer
	shutdownTrc observability.Shutdown
	engine      *engine.Engine
	progress    *progress.Broadcaster
	mqtt        *progress.MQTTClient
	stopPump    context.CancelFunc
	pumpDone    chan struct{}
	apiServer   *server.Server
	httpServer  *http.Server
	quit        chan os.Signal
}

var (
	ErrLoadManifest   = errors.New("failed to load workflow manifest")
	ErrLockBackend    = errors.New("failed to connect lock backend")
	ErrOpenAuditSink  = errors.New("failed to open audit bucket")
	ErrSetupTracing   = errors.New("failed to set up tracing")
	ErrCreateMetrics  = errors.New("failed to create metrics")
	ErrConnectBroker  = errors.New("failed to connect MQTT broker")
	ErrCreateEngine   = errors.New("failed to create engine")
	ErrUnknownBackend = errors.New("unknown lock backend")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &service{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		s.cleanup()
		os.Exit(1)
	}
}

func (s *service) run() error {
	ctx := context.Background()
	steps := []func(context.Context) error{
		s.initializeWorkflows,
		s.initializeLocks,
		s.initializeProviders,
		s.initializeAudit,
		s.initializeTelemetry,
		s.initializeEngine,
		s.initializeProgress,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *service) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(workshop.Name, env, workshop.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Device workshop starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("manifest_path", s.cfg.ManifestPath),
		slog.String("lock_backend", s.cfg.Lock.Backend),
		slog.Duration("lock_timeout", s.cfg.LockTimeout()),
		slog.Duration("provider_timeout", s.cfg.ProviderTimeout()),
		slog.Bool("remote_agent", s.cfg.Providers.RemoteAgentURL != ""),
		slog.Bool("audit_bucket", s.cfg.AuditBucketURL != ""),
		slog.Bool("mqtt", s.cfg.MQTT.BrokerURL != ""),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *service) initializeWorkflows(context.Context) error {
	s.pack = policy.DefaultPack()
	opts := []workflow.Option{workflow.WithGates(s.pack.Contains)}

	var err error
	if s.cfg.ManifestPath != "" {
		s.workflows, err = workflow.LoadFile(s.cfg.ManifestPath, opts...)
	} else {
		s.workflows, err = workflow.LoadDefault(opts...)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadManifest, err)
	}

	slog.Info("Workflows loaded",
		slog.Int("count", s.workflows.Len()),
		slog.String("version", s.workflows.Version()))
	return nil
}

func (s *service) initializeLocks(ctx context.Context) error {
	timeout := s.cfg.LockTimeout()
	switch s.cfg.Lock.Backend {
	case config.LockBackendMemory:
		s.locks = lock.NewMemoryManager(timeout)
	case config.LockBackendRedis:
		rc := s.cfg.Lock.Redis
		s.redis = redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrLockBackend, err)
		}
		s.locks = lock.NewRedisManager(s.redis, rc.Prefix, timeout)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, s.cfg.Lock.Backend)
	}
	return nil
}

// initializeProviders binds the local tool adapters, or the remote agent
// for every platform when one is configured
func (s *service) initializeProviders(context.Context) error {
	pc := s.cfg.Providers
	timeout := s.cfg.ProviderTimeout()
	s.providers = provider.NewRegistry()

	if pc.RemoteAgentURL != "" {
		agent := provider.NewHTTPProvider(pc.RemoteAgentURL, timeout)
		for _, name := range []string{
			provider.RemoteProviderName,
			workflow.ProviderADB,
			workflow.ProviderFastboot,
			workflow.ProviderIOS,
		} {
			s.providers.Register(name, agent)
		}
		return nil
	}

	withTimeout := provider.WithTimeout(timeout)
	s.providers.Register(workflow.ProviderADB,
		provider.NewADB(pc.ADBPath, withTimeout),
	)
	s.providers.Register(workflow.ProviderFastboot,
		provider.NewFastboot(pc.FastbootPath, withTimeout),
	)
	s.providers.Register(workflow.ProviderIOS,
		provider.NewIOS(pc.IOSToolDir, withTimeout),
	)
	return nil
}

func (s *service) initializeAudit(ctx context.Context) error {
	var sink audit.Sink = audit.NewLogSink(slog.Default())
	if s.cfg.AuditBucketURL != "" {
		blob, err := audit.OpenBlobSink(
			ctx, s.cfg.AuditBucketURL, s.cfg.AuditPrefix,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOpenAuditSink, err)
		}
		s.blob = blob
		sink = audit.MultiSink{sink, blob}
	}
	s.audit = audit.NewQueue(sink)
	s.audit.Start()
	return nil
}

func (s *service) initializeTelemetry(ctx context.Context) error {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.tracer = observability.NoopTracer()
	if !s.cfg.TracingEnabled {
		return nil
	}
	tracer, shutdown, err := observability.SetupTracing(
		ctx, workshop.Name, workshop.Version,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetupTracing, err)
	}
	s.tracer = tracer
	s.shutdownTrc = shutdown
	return nil
}

func (s *service) initializeEngine(context.Context) error {
	metrics, err := observability.NewMetrics(s.registry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateMetrics, err)
	}

	eng, err := engine.New(s.cfg, engine.Dependencies{
		Workflows: s.workflows,
		Policy:    s.pack,
		Locks:     s.locks,
		Providers: s.providers,
		Audit:     s.audit,
		Metrics:   metrics,
		Tracer:    s.tracer,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateEngine, err)
	}
	s.engine = eng
	return nil
}

func (s *service) initializeProgress(context.Context) error {
	s.progress = progress.NewBroadcaster()

	if mc := s.cfg.MQTT; mc.BrokerURL != "" {
		client, err := progress.NewMQTTClient(mc.BrokerURL, mc.ClientID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConnectBroker, err)
		}
		s.mqtt = client
		s.progress.Subscribe(progress.NewMQTTSubscriber(client, mc.TopicPrefix))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopPump = cancel
	s.pumpDone = make(chan struct{})
	go func() {
		defer close(s.pumpDone)
		s.progress.Pump(ctx, s.engine.Events())
	}()
	return nil
}

func (s *service) startServer() {
	s.apiServer = server.NewServer(s.engine, s.progress,
		server.WithGatherer(s.registry),
		server.WithQueueSize(s.cfg.WebSocketQueueSize),
	)
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *service) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}
	s.apiServer.CloseWebSockets()

	if err := s.engine.Stop(ctx); err != nil {
		slog.Error("Engine shutdown failed", log.Error(err))
	}
	select {
	case <-s.pumpDone:
	case <-ctx.Done():
	}

	s.cleanup()
	slog.Info("Server exited")
}

// cleanup releases whatever was initialized, in reverse order
func (s *service) cleanup() {
	if s.stopPump != nil {
		s.stopPump()
	}
	if s.mqtt != nil {
		s.mqtt.Close()
	}
	if s.audit != nil {
		s.audit.Flush()
	}
	if s.blob != nil {
		if err := s.blob.Close(); err != nil {
			slog.Warn("Audit bucket close failed", log.Error(err))
		}
	}
	if s.shutdownTrc != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), s.cfg.ShutdownTimeout,
		)
		defer cancel()
		_ = s.shutdownTrc(ctx)
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}
