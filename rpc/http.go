package rpc

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
)

// TransportHTTP tags requests that arrived over HTTP.
const TransportHTTP = "http"

// HTTPConfig customizes NewHTTPApp.
type HTTPConfig struct {
	AppName string
	// CORS enables permissive cross-origin access for browser clients.
	CORS bool
}

// NewHTTPApp returns a fiber app serving server at POST /api/rpc, its
// endpoint metadata at GET /api/endpoints and a liveness probe at
// GET /health.
func NewHTTPApp(server *Server, cfg HTTPConfig) *fiber.App {
	name := cfg.AppName
	if name == "" {
		name = server.serverInfo().Name
	}
	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	if cfg.CORS {
		app.Use(cors.New())
	}
	MountHTTP(app, server)
	return app
}

// MountHTTP registers the RPC routes on router.
func MountHTTP(router fiber.Router, server *Server) {
	h := &httpHandler{server: server}
	router.Get("/health", h.health)

	api := router.Group("/api")
	api.Get("/endpoints", h.endpoints)
	api.Post("/rpc", h.rpc)
}

type httpHandler struct {
	server *Server
}

func (h *httpHandler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"server":    h.server.serverInfo(),
		"endpoints": len(h.server.Endpoints()),
	})
}

func (h *httpHandler) endpoints(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"endpoints": h.server.Endpoints()})
}

func (h *httpHandler) rpc(c *fiber.Ctx) error {
	meta := RequestMeta{
		Transport:     TransportHTTP,
		RequestID:     c.Get("X-Request-ID"),
		CorrelationID: c.Get("X-Correlation-ID"),
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, ok := h.server.HandleMessage(ctx, c.Body(), meta)
	if !ok {
		return c.SendStatus(http.StatusNoContent)
	}

	status := http.StatusOK
	if resp.Error != nil {
		switch resp.Error.Code {
		case CodeParseError, CodeInvalidRequest:
			status = http.StatusBadRequest
		}
	}
	return c.Status(status).JSON(resp)
}
