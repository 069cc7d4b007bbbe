package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railguard/railguard/pkg/config"
	"github.com/railguard/railguard/pkg/guardrail"
	"github.com/railguard/railguard/pkg/infra/metrics"
	"github.com/railguard/railguard/pkg/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Server exposes the guardrail engine over HTTP: manual pre/post check
// endpoints for host pipelines that integrate via sidecar, plus health and
// metrics listeners.
type Server struct {
	app     *fiber.App
	engine  *guardrail.Engine
	logger  *logrus.Logger
	cfg     *config.Config
	metrics *http.Server
}

type checkRequest struct {
	SessionID string                 `json:"session_id"`
	Messages  []types.Message        `json:"messages"`
	Metadata  map[string]interface{} `json:"metadata"`
	Response  *types.CompletionResponse `json:"response,omitempty"`
}

type checkResponse struct {
	Blocked    bool                      `json:"blocked"`
	Message    string                    `json:"message,omitempty"`
	PolicyName string                    `json:"policy_name,omitempty"`
	Applied    []string                  `json:"applied_guardrails,omitempty"`
	Response   *types.CompletionResponse `json:"response,omitempty"`
}

func NewServer(cfg *config.Config, logger *logrus.Logger, engine *guardrail.Engine) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:    app,
		engine: engine,
		logger: logger,
		cfg:    cfg,
	}
	s.registerRoutes()
	s.metrics = &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	}
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Post("/v1/guard/pre_call", s.handlePreCall)
	s.app.Post("/v1/guard/post_call", s.handlePostCall)
}

func (s *Server) handlePreCall(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	reqCtx := s.buildRequestContext(c, &req, types.PreCall)
	outcome := s.engine.PreCall(c.Context(), reqCtx)

	if outcome.Blocked() {
		return c.Status(fiber.StatusForbidden).JSON(checkResponse{
			Blocked:    true,
			Message:    outcome.Message,
			PolicyName: outcome.PolicyName,
		})
	}

	return c.JSON(checkResponse{
		Blocked: false,
		Applied: reqCtx.Headers[guardrail.AppliedGuardrailsHeader],
	})
}

func (s *Server) handlePostCall(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Response == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "response is required"})
	}

	reqCtx := s.buildRequestContext(c, &req, types.PostCall)
	resp, outcome := s.engine.PostCall(c.Context(), reqCtx, req.Response)

	return c.JSON(checkResponse{
		Blocked:    outcome.Blocked(),
		PolicyName: outcome.PolicyName,
		Applied:    reqCtx.Headers[guardrail.AppliedGuardrailsHeader],
		Response:   resp,
	})
}

func (s *Server) buildRequestContext(c *fiber.Ctx, req *checkRequest, stage types.Stage) *types.RequestContext {
	now := time.Now()
	return &types.RequestContext{
		Context:   c.Context(),
		RequestID: uuid.New().String(),
		SessionID: req.SessionID,
		IP:        c.IP(),
		Headers:   make(map[string][]string),
		Messages:  req.Messages,
		Metadata:  req.Metadata,
		Stage:     stage,
		ProcessAt: &now,
	}
}

// Run starts the check and metrics listeners and blocks until the context
// is cancelled or a listener fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
		s.logger.WithField("addr", addr).Info("starting guardrail server")
		return s.app.Listen(addr)
	})

	g.Go(func() error {
		s.logger.WithField("addr", s.metrics.Addr).Info("starting metrics server")
		if err := s.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		_ = s.metrics.Close()
		return s.app.Shutdown()
	})

	return g.Wait()
}
