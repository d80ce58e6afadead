package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/config"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/engine"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/progress"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/util"
)

type (
	// Server implements the HTTP API for the device workshop
	Server struct {
		engine    *engine.Engine
		progress  *progress.Broadcaster
		gatherer  prometheus.Gatherer
		sockets   util.Set[*Client]
		queueSize int
		mu        sync.Mutex
	}

	// Option configures a Server
	Option func(*Server)
)

var (
	ErrInvalidJSON    = errors.New("invalid JSON")
	ErrSerialRequired = errors.New("device serial required")
	ErrListLocks      = errors.New("failed to list locks")
	ErrReleaseLock    = errors.New("failed to release lock")
	ErrStartExecution = errors.New("failed to start execution")
)

// WithGatherer serves metrics from g instead of the default registry
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithQueueSize bounds each WebSocket client's outbound queue
func WithQueueSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// NewServer creates a new HTTP API server
func NewServer(
	eng *engine.Engine, b *progress.Broadcaster, opts ...Option,
) *Server {
	s := &Server{
		engine:    eng,
		progress:  b,
		gatherer:  prometheus.DefaultGatherer,
		sockets:   util.Set[*Client]{},
		queueSize: config.DefaultWSQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}),
	))

	v1 := router.Group("/api/v1")
	{
		// Workflow endpoints
		v1.GET("/workflows", s.listWorkflows)
		v1.GET("/workflows/:workflowID", s.getWorkflow)

		// Execution endpoints
		v1.GET("/jobs", s.listJobs)
		v1.POST("/jobs", s.startJob)
		v1.GET("/jobs/:jobID", s.getJob)
		v1.POST("/jobs/:jobID/pause", s.pauseJob)
		v1.POST("/jobs/:jobID/resume", s.resumeJob)
		v1.POST("/jobs/:jobID/cancel", s.cancelJob)

		// Externally reported flash jobs
		v1.GET("/flash/jobs", s.listFlashJobs)
		v1.POST("/flash/jobs", s.startFlashJob)
		v1.GET("/flash/jobs/:jobID", s.getFlashJob)
		v1.POST("/flash/jobs/:jobID/progress", s.reportFlashProgress)
		v1.POST("/flash/jobs/:jobID/pause", s.pauseFlashJob)
		v1.POST("/flash/jobs/:jobID/resume", s.resumeFlashJob)
		v1.POST("/flash/jobs/:jobID/complete", s.completeFlashJob)
		v1.POST("/flash/jobs/:jobID/fail", s.failFlashJob)
		v1.POST("/flash/jobs/:jobID/cancel", s.cancelFlashJob)

		// Device locks
		v1.GET("/locks", s.listLocks)
		v1.DELETE("/locks/:serial", s.releaseLock)
	}

	router.GET("/ws/flash-progress", s.handleWebSocket)

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func abort(c *gin.Context, status int, err error) {
	c.JSON(status, errorBody(status, err.Error()))
}
