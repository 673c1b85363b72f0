// Package server exposes the tool catalogue and review runs over HTTP to
// the calling orchestrator.
package server

import (
	"errors"
	"strconv"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/swpd-platform/glbridge/internal/config"
	"github.com/swpd-platform/glbridge/internal/logging"
	"github.com/swpd-platform/glbridge/internal/review"
	"github.com/swpd-platform/glbridge/internal/tools"
)

// Server wires the HTTP surface.
type Server struct {
	app          *fiber.App
	cfg          *config.Config
	dispatcher   *tools.Dispatcher
	orchestrator *review.Orchestrator
}

// New builds the fiber application and its routes.
func New(cfg *config.Config, dispatcher *tools.Dispatcher, orchestrator *review.Orchestrator) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:          app,
		cfg:          cfg,
		dispatcher:   dispatcher,
		orchestrator: orchestrator,
	}

	app.Get("/health", s.handleHealth)
	app.Get("/tools", s.handleListTools)
	app.Post("/tools/:name", s.handleDispatch)
	app.Post("/reviews", s.handleReview)

	return s
}

// Listen serves until the listener fails.
func (s *Server) Listen() error {
	addr := ":" + s.cfg.Server.Port
	logging.Info("Listening on %s (config source: %s, token: %s)",
		addr, s.cfg.Source, config.MaskToken(s.cfg.GitLab.Token))
	return s.app.Listen(addr)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"project": s.cfg.GitLab.ProjectPath,
	})
}

func (s *Server) handleListTools(c *fiber.Ctx) error {
	catalogue := s.dispatcher.List()
	out := make([]fiber.Map, 0, len(catalogue))
	for _, info := range catalogue {
		out = append(out, fiber.Map{
			"name":        info.Name,
			"description": info.Description,
		})
	}
	return c.JSON(fiber.Map{"tools": out})
}

// handleDispatch routes one named operation. Errors come back as a
// distinguishable {"error": ...} payload, never mixed into success output.
func (s *Server) handleDispatch(c *fiber.Ctx) error {
	name := c.Params("name")

	args := tools.Args{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&args); err != nil {
			logging.Warn("Failed to parse arguments for %s: %v", name, err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON argument object: " + err.Error(),
			})
		}
	}

	result, err := s.dispatcher.Dispatch(c.UserContext(), name, args)
	if err != nil {
		var de *tools.DispatchError
		if errors.As(err, &de) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": de.Error()})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"result": result})
}

type reviewRequest struct {
	Project string `json:"project"`
	MRIID   int    `json:"mr_iid"`
}

func (s *Server) handleReview(c *fiber.Ctx) error {
	if s.orchestrator == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "review orchestration is not configured: set REVIEW_AGENT_ENDPOINT",
		})
	}

	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON payload: " + err.Error(),
		})
	}
	if req.MRIID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "mr_iid is required",
		})
	}

	project := req.Project
	if project == "" {
		if s.cfg.HasProject() {
			project = strconv.Itoa(s.cfg.GitLab.ProjectID)
		} else {
			project = s.cfg.GitLab.ProjectPath
		}
	}

	report, err := s.orchestrator.Run(c.UserContext(), project, req.MRIID)
	if err != nil {
		logging.Error("Review run failed for MR %d: %v", req.MRIID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(report)
}
