// Package server exposes the compile pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	hzServer "github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	monitor "github.com/hertz-contrib/monitor-prometheus"
	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/tgifai/runbox/internal/config"
	"github.com/tgifai/runbox/internal/pkg/logs"
	"github.com/tgifai/runbox/internal/pkg/prometheus"
)

const (
	healthPath  = "/health"
	executePath = "/api/v1/execute"
)

type Option func(*Server)

func WithLogger(l logs.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry records execution and HTTP metrics on reg instead of the
// shared registry.
func WithRegistry(reg *promclient.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
			s.metrics = prometheus.NewMetrics(reg)
		}
	}
}

// WithMetricsServer toggles the standalone metrics listener. HTTP metrics are
// still collected when it is off.
func WithMetricsServer(enabled bool) Option {
	return func(s *Server) {
		s.serveMetrics = enabled
	}
}

type Server struct {
	server       config.ServerConfig
	runner       config.RunnerConfig
	logger       logs.Logger
	registry     *promclient.Registry
	metrics      *prometheus.Metrics
	serveMetrics bool

	httpServer *hzServer.Hertz
	slots      chan struct{}
}

func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	s := &Server{
		server:       cfg.Server,
		runner:       cfg.Runner,
		logger:       logs.DefaultLogger(),
		registry:     prometheus.GetRegistry(),
		metrics:      prometheus.GetMetrics(),
		serveMetrics: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	maxConcurrent := s.server.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	s.slots = make(chan struct{}, maxConcurrent)

	timeout := s.server.RequestTimeoutDuration()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	tracer := monitor.NewServerTracer(s.server.MetricsBind, s.server.MetricsPath,
		monitor.WithRegistry(s.registry),
		monitor.WithDisableServer(!s.serveMetrics),
	)

	s.httpServer = hzServer.Default(
		hzServer.WithHostPorts(s.server.Bind),
		hzServer.WithReadTimeout(timeout),
		hzServer.WithWriteTimeout(timeout),
		hzServer.WithExitWaitTime(5*time.Second),
		hzServer.WithTracer(tracer),
	)
	s.httpServer.Use(s.withLogID)
	s.httpServer.GET(healthPath, s.handleHealth)
	s.httpServer.POST(executePath, s.authenticate, s.handleExecute)
	return s, nil
}

// Engine exposes the router for in-process requests.
func (s *Server) Engine() *hzServer.Hertz {
	return s.httpServer
}

// Start serves in the background and returns immediately.
func (s *Server) Start(ctx context.Context) error {
	s.logger.CtxInfo(ctx, "[server] listening on %s, workspace=%s, metrics=%s%s",
		s.server.Bind, s.server.Workspace, s.server.MetricsBind, s.server.MetricsPath)
	go s.httpServer.Spin()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.CtxWarn(ctx, "[server] shutdown http server error: %v", err)
		return err
	}
	s.logger.CtxInfo(ctx, "[server] stopped")
	return nil
}

func (s *Server) withLogID(ctx context.Context, c *app.RequestContext) {
	logID := string(c.GetHeader("X-Request-Id"))
	if logID == "" {
		logID = s.logger.NewLogID()
	}
	c.Response.Header.Set("X-Request-Id", logID)
	c.Next(s.logger.SetLogID(ctx, logID))
}

func (s *Server) authenticate(ctx context.Context, c *app.RequestContext) {
	if s.server.APIKey == "" {
		c.Next(ctx)
		return
	}
	if string(c.GetHeader("Authorization")) != "Bearer "+s.server.APIKey {
		s.logger.CtxWarn(ctx, "[server] rejected unauthenticated request from %s", c.ClientIP())
		c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "unauthorized"})
		return
	}
	c.Next(ctx)
}

func (s *Server) handleHealth(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

func (s *Server) tryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	select {
	case <-s.slots:
	default:
	}
}
