package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pizza-agent/internal/log"
	"github.com/teslashibe/go-pizza-agent/pkg/hub"
	"github.com/teslashibe/go-pizza-agent/pkg/session"
	"github.com/teslashibe/go-pizza-agent/pkg/tools"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Snapshot())
}

func (s *Server) handleListTools(c *fiber.Ctx) error {
	if s.tools == nil {
		return c.JSON([]tools.Definition{})
	}
	return c.JSON(s.tools.Definitions())
}

// TriggerToolRequest is the request body for triggering a tool.
type TriggerToolRequest struct {
	Args map[string]any `json:"args"`
}

// handleTriggerTool runs a tool through the same registry the agent uses, so
// manual lookups reach the tracker too.
func (s *Server) handleTriggerTool(c *fiber.Ctx) error {
	name := c.Params("name")

	if s.tools == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "tools not configured",
		})
	}

	var req TriggerToolRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
	}

	res, err := s.tools.Call(c.UserContext(), name, req.Args)
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"tool":   name,
			"error":  "unknown tool",
			"result": res.Text,
		})
	case err != nil:
		log.Component("web").Warn("manual tool call failed", "tool", name, "error", err)
	}

	log.Component("web").Info("manual tool call", "tool", name, "result", res.Text)

	body := fiber.Map{
		"tool":   name,
		"result": res.Text,
	}
	if json.Valid([]byte(res.Text)) {
		body["data"] = json.RawMessage(res.Text)
	}
	return c.JSON(body)
}

func (s *Server) handleSessionStart(c *fiber.Ctx) error {
	if s.sessions == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "sessions not configured",
		})
	}

	sess, err := s.sessions.Start(c.UserContext())
	switch {
	case errors.Is(err, session.ErrActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":      "a call is already active",
			"session_id": sess.ID(),
		})
	case errors.Is(err, session.ErrStopped):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "call was stopped while connecting",
		})
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	go func() {
		<-sess.Done()
		s.Publish()
	}()
	s.Publish()

	return c.JSON(fiber.Map{
		"session_id": sess.ID(),
		"active":     true,
	})
}

func (s *Server) handleSessionStop(c *fiber.Ctx) error {
	if s.sessions == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "sessions not configured",
		})
	}
	stopped := s.sessions.Stop()
	s.Publish()
	return c.JSON(fiber.Map{
		"stopped": stopped,
		"active":  s.sessions.Active(),
	})
}

// handleStatusWS streams snapshots; the hub replays the latest on connect.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	s.Publish()
	client := hub.NewClient(s.statusHub, c)
	client.Run()
}
