package controller

import (
	"ai-paperchat-be/internal/dto"
	"ai-paperchat-be/internal/pkg/serverutils"
	"ai-paperchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IPaperController interface {
	RegisterRoutes(r fiber.Router)
	Attach(ctx *fiber.Ctx) error
	Retry(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	SemanticSearch(ctx *fiber.Ctx) error
}

type paperController struct {
	paperService service.IPaperService
}

func NewPaperController(paperService service.IPaperService) IPaperController {
	return &paperController{
		paperService: paperService,
	}
}

func (c *paperController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/paper/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("semantic-search", c.SemanticSearch)
	h.Get("", c.List)
	h.Post("", c.Attach)
	h.Post(":id/retry", c.Retry)
}

func (c *paperController) Attach(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.AttachPaperRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.paperService.Attach(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	// 202: the paper is accepted, embedding happens in the background.
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Paper accepted for processing", res))
}

func (c *paperController) Retry(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	paperId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid paper id")
	}

	res, err := c.paperService.Retry(ctx.Context(), userId, paperId)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Paper queued for a new attempt", res))
}

func (c *paperController) List(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	sessionId, err := uuid.Parse(ctx.Query("chat_session_id", ""))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat_session_id query parameter")
	}

	res, err := c.paperService.List(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list papers", res))
}

func (c *paperController) SemanticSearch(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	sessionId, err := uuid.Parse(ctx.Query("chat_session_id", ""))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat_session_id query parameter")
	}
	q := ctx.Query("q", "")

	res, err := c.paperService.SemanticSearch(ctx.Context(), userId, sessionId, q)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success semantic search papers", res))
}
