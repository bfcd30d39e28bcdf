// Package api wires llmgate's RequestFlow: authentication, rate limiting,
// routing, the two completion paths, and the agentic executor, behind a
// single Echo v5 HTTP/WebSocket server.
package api

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/tarsygate/llmgate/pkg/agentic"
	"github.com/tarsygate/llmgate/pkg/config"
	"github.com/tarsygate/llmgate/pkg/directpath"
	"github.com/tarsygate/llmgate/pkg/ledger"
	"github.com/tarsygate/llmgate/pkg/metrics"
	"github.com/tarsygate/llmgate/pkg/policy"
	"github.com/tarsygate/llmgate/pkg/registry"
	"github.com/tarsygate/llmgate/pkg/router"
	"github.com/tarsygate/llmgate/pkg/tracker"
	"github.com/tarsygate/llmgate/pkg/version"
	"github.com/tarsygate/llmgate/pkg/workerpool"
)

// Server is the HTTP/WebSocket API server fronting RequestFlow.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg      *config.Config
	ledger   *ledger.Ledger
	policy   *policy.Policy
	router   *router.Router
	pool     *workerpool.WorkerPool
	direct   *directpath.Client // nil if DirectPath disabled (no API key)
	agentic  *agentic.Executor
	registry *registry.Registry
	tracker  *tracker.Tracker

	startedAt time.Time
	ready     atomic.Bool
}

// NewServer wires every RequestFlow dependency and registers routes.
// direct may be nil when DirectPath has no usable API key; completions
// then always go through the CLI worker pool.
func NewServer(
	cfg *config.Config,
	ld *ledger.Ledger,
	pol *policy.Policy,
	rt *router.Router,
	pool *workerpool.WorkerPool,
	direct *directpath.Client,
	ag *agentic.Executor,
	reg *registry.Registry,
	tr *tracker.Tracker,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = detailErrorHandler

	s := &Server{
		echo:      e,
		cfg:       cfg,
		ledger:    ld,
		policy:    pol,
		router:    rt,
		pool:      pool,
		direct:    direct,
		agentic:   ag,
		registry:  reg,
		tracker:   tr,
		startedAt: time.Now(),
	}

	s.setupRoutes()
	return s
}

// SetReady flips the readiness flag GET /ready reports, toggled false
// during graceful shutdown so load balancers stop sending new traffic
// before in-flight requests are drained.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// detailErrorHandler overrides echo's default {"message": ...} error body
// with the {"detail": ...} shape every RequestFlow error response uses.
func detailErrorHandler(err error, c *echo.Context) {
	if c.Response().Committed {
		return
	}

	he, ok := err.(*echo.HTTPError)
	if !ok {
		he = mapServiceError(err)
	}

	msg := he.Message
	text, ok := msg.(string)
	if !ok {
		text = http.StatusText(he.Code)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(he.Code)
		return
	}
	_ = c.JSON(he.Code, errorDetail{Detail: text})
}

func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(requestMetrics())

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/ready", s.readyHandler)
	s.echo.GET("/metrics", s.metricsHandler)

	v1 := s.echo.Group("/v1")
	v1.GET("/capabilities", s.capabilitiesHandler)
	v1.POST("/chat/completions", s.chatCompletionsHandler)
	v1.POST("/batch", s.batchHandler)
	v1.POST("/route", s.routeHandler)
	v1.GET("/usage", s.usageHandler)
	v1.POST("/task", s.taskHandler)
	v1.POST("/process", s.processHandler)
	v1.GET("/providers", s.providersHandler)
	v1.GET("/providers/:provider/models", s.providerModelsHandler)
	v1.GET("/stream", s.streamHandler)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener runs the HTTP server on a pre-created listener, used
// by tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops accepting new connections and waits for
// in-flight requests to finish, or ctx's deadline, whichever is first.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	services := map[string]any{}
	overall := "healthy"

	if err := s.ledger.Ping(reqCtx); err != nil {
		services["ledger"] = "unhealthy"
		overall = "unhealthy"
	} else {
		services["ledger"] = "healthy"
	}

	stats := s.pool.Stats()
	services["worker_pool"] = map[string]any{
		"running": stats.Running,
		"queued":  stats.Queued,
	}
	metrics.WorkerPoolRunning.Set(float64(stats.Running))
	metrics.WorkerPoolQueued.Set(float64(stats.Queued))

	if s.direct == nil {
		services["direct_path"] = "disabled"
	} else {
		services["direct_path"] = "configured"
	}

	if failed := s.registry.FailedMCPServers(); len(failed) > 0 {
		services["mcp_servers"] = failed
	}

	resp := HealthResponse{
		Status:        overall,
		Version:       version.Full(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Services:      services,
		Overall:       overall,
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}

func (s *Server) readyHandler(c *echo.Context) error {
	if !s.ready.Load() {
		return c.JSON(http.StatusServiceUnavailable, ReadyResponse{Ready: false, Reason: "draining"})
	}
	return c.JSON(http.StatusOK, ReadyResponse{Ready: true})
}

// metricsHandler exposes the process's Prometheus collectors in the
// standard exposition format.
func (s *Server) metricsHandler(c *echo.Context) error {
	metrics.HTTPHandler().ServeHTTP(c.Response(), c.Request())
	return nil
}
