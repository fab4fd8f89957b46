package controller

import (
	"errors"

	"ai-report-be/internal/dto"
	"ai-report-be/internal/pkg/serverutils"
	"ai-report-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IReportController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Enqueue(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
}

type reportController struct {
	reportService service.IReportService
	auth          fiber.Handler
}

func NewReportController(reportService service.IReportService, auth fiber.Handler) IReportController {
	return &reportController{
		reportService: reportService,
		auth:          auth,
	}
}

func (c *reportController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/reports/v1")
	h.Use(c.auth)
	h.Post("", c.Create)
	h.Post("async", c.Enqueue)
	h.Get(":id", c.Show)
}

func (c *reportController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateReportRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.reportService.Run(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success generate report", res))
}

func (c *reportController) Enqueue(ctx *fiber.Ctx) error {
	var req dto.CreateReportRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.reportService.Enqueue(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Report queued", res))
}

func (c *reportController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid report id")
	}

	res, err := c.reportService.Status(ctx.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrReportNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show report", res))
}
