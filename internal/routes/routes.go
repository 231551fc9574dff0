package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/yourorg/dm-service/internal/auth"
	"github.com/yourorg/dm-service/internal/handlers"
	"github.com/yourorg/dm-service/internal/ws"
)

func Register(app *fiber.App, h *handlers.ChatHandler, wsrv *ws.Server, jv *auth.JWTValidator) {
	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	chat := api.Group("/chat", auth.RequireUser(jv))

	chat.Post("/conversations", h.CreateConversation)
	chat.Get("/conversations", h.ListConversations)
	chat.Get("/conversations/:id/messages", h.GetMessages)
	chat.Post("/conversations/:id/messages", h.SendMessage)
	chat.Post("/conversations/:id/read", h.MarkRead)
	chat.Patch("/messages/:id", h.EditMessage)
	chat.Delete("/messages/:id", h.DeleteMessage)

	app.Get("/ws", websocket.New(wsrv.HandleWS()))
}
