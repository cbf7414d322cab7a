package controller

import (
	"bufio"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/pkg/serverutils"
	"ai-docqa-be/internal/service"
	"ai-docqa-be/pkg/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Query(ctx *fiber.Ctx) error
	QueryStream(ctx *fiber.Ctx) error
	CreateSession(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	SessionStats(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, log logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		logger:      log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("query", c.Query)
	h.Post("query/stream", c.QueryStream)
	h.Post("session", c.CreateSession)
	h.Get("session/stats", c.SessionStats)
	h.Get("session/:id", c.ShowSession)
	h.Delete("session/:id/messages", c.ClearSession)
	h.Delete("session/:id", c.DeleteSession)
}

func (c *chatController) Query(ctx *fiber.Ctx) error {
	var req dto.ChatQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Query(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer query", res))
}

// QueryStream answers one question as a text/event-stream response. The body
// writer runs after the handler returns, so the request is parsed up front
// and the fasthttp context carries cancellation when the client disconnects.
func (c *chatController) QueryStream(ctx *fiber.Ctx) error {
	var req dto.ChatQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")

	reqCtx := ctx.Context()
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		emitter := stream.NewSSEEmitter(w)
		if err := c.chatService.QueryStream(reqCtx, req.SessionId, req.Query, emitter); err != nil {
			c.logger.Error("ChatController", "Streaming query failed", map[string]interface{}{
				"session_id": req.SessionId,
				"error":      err.Error(),
			})
		}
	}))
	return nil
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil && len(ctx.Body()) > 0 {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.CreateSession(ctx.Context(), &req)
	if err != nil {
		return serverutils.NewBadRequestError(err.Error())
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatController) ShowSession(ctx *fiber.Ctx) error {
	res, err := c.chatService.GetSession(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	if res == nil {
		return serverutils.NewNotFoundError("Session not found")
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *chatController) ClearSession(ctx *fiber.Ctx) error {
	cleared, err := c.chatService.ClearSession(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	if !cleared {
		return serverutils.NewNotFoundError("Session not found")
	}

	return ctx.JSON(serverutils.SuccessResponse("Success clear session messages", nil))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	deleted, err := c.chatService.DeleteSession(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	if !deleted {
		return serverutils.NewNotFoundError("Session not found")
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete session", nil))
}

func (c *chatController) SessionStats(ctx *fiber.Ctx) error {
	res, err := c.chatService.Stats(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session stats", res))
}
