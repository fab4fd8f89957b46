package controller

import (
	"errors"

	"ai-report-be/internal/dto"
	"ai-report-be/internal/pkg/serverutils"
	"ai-report-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Reindex(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService service.IDocumentService
	auth            fiber.Handler
}

func NewDocumentController(documentService service.IDocumentService, auth fiber.Handler) IDocumentController {
	return &documentController{
		documentService: documentService,
		auth:            auth,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/documents/v1")
	h.Use(c.auth)
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Delete)
	h.Post(":id/reindex", c.Reindex)
}

func (c *documentController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.documentService.Create(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create document", res))
}

func (c *documentController) List(ctx *fiber.Ctx) error {
	req := dto.ListDocumentsRequest{
		Collection: ctx.Query("collection"),
		Search:     ctx.Query("q"),
		Page:       ctx.QueryInt("page", 1),
		PageSize:   ctx.QueryInt("page_size", 20),
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.documentService.List(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list documents", res))
}

func (c *documentController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	res, err := c.documentService.Show(ctx.UserContext(), id)
	if err != nil {
		return mapDocumentError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show document", res))
}

func (c *documentController) Delete(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	if err := c.documentService.Delete(ctx.UserContext(), id); err != nil {
		return mapDocumentError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete document", nil))
}

func (c *documentController) Reindex(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	if err := c.documentService.Reindex(ctx.UserContext(), id); err != nil {
		return mapDocumentError(err)
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse[any]("Document queued for indexing", nil))
}

func mapDocumentError(err error) error {
	if errors.Is(err, service.ErrDocumentNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return err
}
