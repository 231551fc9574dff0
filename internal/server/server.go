package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/dm-service/internal/auth"
	"github.com/yourorg/dm-service/internal/config"
	"github.com/yourorg/dm-service/internal/handlers"
	"github.com/yourorg/dm-service/internal/routes"
	"github.com/yourorg/dm-service/internal/ws"
)

type AppServer struct {
	app *fiber.App
	cfg *config.Config
}

func New(cfg *config.Config, h *handlers.ChatHandler, wsrv *ws.Server, jv *auth.JWTValidator) *AppServer {
	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024,
	})
	routes.Register(app, h, wsrv, jv)
	return &AppServer{app: app, cfg: cfg}
}

func (s *AppServer) Listen() error {
	return s.app.Listen(fmt.Sprintf(":%d", s.cfg.App.Port))
}

func (s *AppServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
