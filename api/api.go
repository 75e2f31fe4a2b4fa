package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/pkg/storage"
)

// Server is the persistence API server.
type Server struct {
	config Config
	driver storage.Driver
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The driver is injected so the same store can back other components.
func NewServer(config Config, driver storage.Driver, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		// Params and bodies reach the driver, which may keep them.
		Immutable: true,
	})

	s := &Server{
		config: config,
		driver: driver,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	app.Get("/users/:user/conversations", s.handleListConversations)
	app.Post("/users/:user/conversations", s.handleCreateConversation)

	app.Get("/conversations/:id", s.handleGetConversation)
	app.Patch("/conversations/:id", s.handleRenameConversation)
	app.Delete("/conversations/:id", s.handleDeleteConversation)

	app.Get("/conversations/:id/messages", s.handleListMessages)
	app.Post("/conversations/:id/messages", s.handleAppendMessage)

	return s
}

// App exposes the fiber app, mostly for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
