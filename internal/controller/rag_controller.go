package controller

import (
	"ai-paperchat-be/internal/pkg/serverutils"
	"ai-paperchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IRAGController interface {
	RegisterRoutes(r fiber.Router)
	Enable(ctx *fiber.Ctx) error
	Disable(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type ragController struct {
	ragService service.IRAGService
}

func NewRAGController(ragService service.IRAGService) IRAGController {
	return &ragController{
		ragService: ragService,
	}
}

func (c *ragController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/rag/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post(":sessionId/enable", c.Enable)
	h.Post(":sessionId/disable", c.Disable)
	h.Get(":sessionId/status", c.Status)
}

func (c *ragController) Enable(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.ragService.Enable(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success enable RAG", res))
}

func (c *ragController) Disable(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.ragService.Disable(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success disable RAG", res))
}

func (c *ragController) Status(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.ragService.Status(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get RAG status", res))
}
