package postings

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/jobmanager/pkg/apperror"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With(logger.Scope("postings.handler")),
	}
}

// Create handles POST /api/jobs
func (h *Handler) Create(c echo.Context) error {
	var req CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("Invalid request body")
	}

	job, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, job)
}

// GetByID handles GET /api/jobs/:id
func (h *Handler) GetByID(c echo.Context) error {
	id, err := ParseID(c.Param("id"))
	if err != nil {
		return err
	}

	job, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

const headerTotalCount = "X-Total-Count"

// List handles GET /api/jobs. The body is a bare array; the unpaged total
// is sent in X-Total-Count.
func (h *Handler) List(c echo.Context) error {
	var params ListParams
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return apperror.NewBadRequest("limit must be a positive integer")
		}
		params.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return apperror.NewBadRequest("offset must be a non-negative integer")
		}
		params.Offset = n
	}

	res, err := h.svc.List(c.Request().Context(), params)
	if err != nil {
		return err
	}
	c.Response().Header().Set(headerTotalCount, strconv.Itoa(res.Total))
	return c.JSON(http.StatusOK, res.Data)
}

// ParseID parses a positive integer path parameter
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequest("id must be a positive integer")
	}
	return id, nil
}
