package controller

import (
	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/serverutils"
	"ai-docqa-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Ingest(ctx *fiber.Ctx) error
	Search(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Clear(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService service.IDocumentService
}

func NewDocumentController(documentService service.IDocumentService) IDocumentController {
	return &documentController{
		documentService: documentService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/document/v1")
	h.Post("", c.Ingest)
	h.Post("search", c.Search)
	h.Get("stats", c.Stats)
	h.Get(":id", c.Show)
	h.Delete("all", c.Clear)
	h.Delete(":id", c.Delete)
}

func (c *documentController) Ingest(ctx *fiber.Ctx) error {
	var req dto.IngestDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.documentService.Ingest(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Document queued for ingestion", res))
}

func (c *documentController) Search(ctx *fiber.Ctx) error {
	var req dto.SearchDocumentsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.documentService.Search(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success search documents", res))
}

func (c *documentController) Show(ctx *fiber.Ctx) error {
	chunk, err := c.documentService.Get(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	if chunk == nil {
		return serverutils.NewNotFoundError("Document chunk not found")
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show document chunk", chunk))
}

func (c *documentController) Delete(ctx *fiber.Ctx) error {
	deleted, err := c.documentService.Delete(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	if !deleted {
		return serverutils.NewNotFoundError("Document chunk not found")
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete document chunk", nil))
}

func (c *documentController) Clear(ctx *fiber.Ctx) error {
	if err := c.documentService.Clear(ctx.Context()); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success clear document collection", nil))
}

func (c *documentController) Stats(ctx *fiber.Ctx) error {
	res, err := c.documentService.Stats(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show document stats", res))
}
