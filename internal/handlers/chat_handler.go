package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/auth"
	"github.com/yourorg/dm-service/internal/errs"
	"github.com/yourorg/dm-service/internal/service"
)

type ChatHandler struct {
	svc *service.ChatService
	log *zap.SugaredLogger
}

func NewChatHandler(svc *service.ChatService, log *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{svc: svc, log: log}
}

// POST /conversations {other_id}
func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	var body struct {
		OtherID string `json:"other_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	conv, err := h.svc.ResolveOrCreate(c.Context(), auth.UserID(c), body.OtherID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(conv)
}

// GET /conversations
func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	convs, err := h.svc.ListConversations(c.Context(), auth.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(convs)
}

// GET /conversations/:id/messages
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	convID, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid conversation id")
	}
	if _, err := h.svc.Conversation(c.Context(), auth.UserID(c), convID); err != nil {
		return h.fail(c, err)
	}
	msgs, err := h.svc.ListMessages(c.Context(), convID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(msgs)
}

// POST /conversations/:id/messages (multipart: content + files, or JSON {content})
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	convID, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid conversation id")
	}

	var content string
	var files []service.File
	if form, err := c.MultipartForm(); err == nil {
		if v := form.Value["content"]; len(v) > 0 {
			content = v[0]
		}
		for _, fh := range form.File["files"] {
			f, err := fh.Open()
			if err != nil {
				return jsonError(c, fiber.StatusBadRequest, "cannot open file")
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return jsonError(c, fiber.StatusBadRequest, "cannot read file")
			}
			files = append(files, service.File{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	} else {
		var body struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&body); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid body")
		}
		content = body.Content
	}

	msg, err := h.svc.Send(c.Context(), convID, auth.UserID(c), content, files)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// PATCH /messages/:id {content}
func (h *ChatHandler) EditMessage(c *fiber.Ctx) error {
	msgID, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid message id")
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	msg, err := h.svc.Edit(c.Context(), msgID, auth.UserID(c), body.Content)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(msg)
}

// DELETE /messages/:id
func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	msgID, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid message id")
	}
	if err := h.svc.SoftDelete(c.Context(), msgID, auth.UserID(c)); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /conversations/:id/read
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	convID, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid conversation id")
	}
	if err := h.svc.MarkRead(c.Context(), convID, auth.UserID(c)); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		h.log.Errorw("request failed", "path", c.Path(), "err", err)
	}
	return jsonError(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, errs.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errs.ErrBadRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, errs.ErrDeleted):
		return fiber.StatusConflict
	case errors.Is(err, errs.ErrUploadFailed):
		return fiber.StatusBadGateway
	case errors.Is(err, errs.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
