// Package web serves the pizzeria dashboard API: session control, the
// current order inquiry, manual tool triggers and a live status feed.
package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pizza-agent/internal/log"
	"github.com/teslashibe/go-pizza-agent/pkg/hub"
	"github.com/teslashibe/go-pizza-agent/pkg/observe"
	"github.com/teslashibe/go-pizza-agent/pkg/orders"
	"github.com/teslashibe/go-pizza-agent/pkg/session"
	"github.com/teslashibe/go-pizza-agent/pkg/tools"
)

// Display defaults before any order has been looked up.
const (
	idleOrderID = "-"
	idleStatus  = "Ready for Session"
	unknown     = "Unknown"
)

// Sessions starts and stops calls. *session.Manager implements it.
type Sessions interface {
	Start(ctx context.Context) (*session.Session, error)
	Stop() bool
	Active() bool
	Connecting() bool
	Current() *session.Session
}

// Tools lists and runs tools. *tools.Registry implements it.
type Tools interface {
	Definitions() []tools.Definition
	Call(ctx context.Context, name string, raw any) (tools.Result, error)
}

// Status is the dashboard view of the current call and order inquiry.
type Status struct {
	SessionActive bool       `json:"session_active"`
	Connecting    bool       `json:"connecting"`
	SessionID     string     `json:"session_id,omitempty"`
	OrderID       string     `json:"order_id"`
	Status        string     `json:"status"`
	Progress      int        `json:"progress"`
	Tool          string     `json:"tool,omitempty"`
	Error         string     `json:"error,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Server is the web dashboard server.
type Server struct {
	app  *fiber.App
	port string

	sessions Sessions
	tools    Tools
	tracker  *observe.Tracker

	statusHub *hub.Hub
}

// NewServer creates the dashboard and subscribes it to tracker changes.
func NewServer(port string, sessions Sessions, reg Tools, tracker *observe.Tracker) *Server {
	s := &Server{
		port:      port,
		sessions:  sessions,
		tools:     reg,
		tracker:   tracker,
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Pizza Support Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/tools", s.handleListTools)
	api.Post("/tools/:name", s.handleTriggerTool)
	api.Post("/session/start", s.handleSessionStart)
	api.Post("/session/stop", s.handleSessionStop)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app

	if tracker != nil {
		tracker.OnChange(func(observe.Record) { s.Publish() })
	}
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		log.Component("web").Info("dashboard listening", "url", "http://localhost:"+s.port)
		errc <- s.app.Listen(":" + s.port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// Snapshot builds the current dashboard status.
func (s *Server) Snapshot() Status {
	st := Status{
		OrderID: idleOrderID,
		Status:  idleStatus,
	}

	if s.sessions != nil {
		st.SessionActive = s.sessions.Active()
		st.Connecting = s.sessions.Connecting()
		if cur := s.sessions.Current(); cur != nil && st.SessionActive {
			st.SessionID = cur.ID()
		}
	}

	if s.tracker == nil {
		return st
	}
	rec, ok := s.tracker.Current()
	if !ok {
		return st
	}

	st.OrderID = rec.OrderID
	st.Status = rec.Status
	if st.Status == "" {
		st.Status = unknown
	}
	st.Progress = orders.Progress(rec.Status)
	st.Tool = rec.Tool
	st.Error = rec.Error
	at := rec.At
	st.UpdatedAt = &at
	return st
}

// Publish pushes the current snapshot to live clients.
func (s *Server) Publish() {
	if err := s.statusHub.BroadcastJSON(s.Snapshot()); err != nil {
		log.Component("web").Warn("failed to encode status", "error", err)
	}
}
