package applications

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/jobmanager/domain/postings"
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
		log: log.With(logger.Scope("applications.handler")),
	}
}

// Submit handles POST /api/jobs/:id/job-applications
func (h *Handler) Submit(c echo.Context) error {
	jobID, err := postings.ParseID(c.Param("id"))
	if err != nil {
		return err
	}

	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("Invalid request body")
	}

	if _, err := h.svc.Submit(c.Request().Context(), jobID, req); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadCv handles PUT /api/jobs/job-applications/:id/upload-cv with a
// multipart "file" part
func (h *Handler) UploadCv(c echo.Context) error {
	appID, err := postings.ParseID(c.Param("id"))
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return apperror.NewInvalidInput("file", "multipart field 'file' is required")
	}
	f, err := fh.Open()
	if err != nil {
		return apperror.NewInvalidInput("file", "could not read uploaded file")
	}
	defer f.Close()

	var r io.Reader = f
	if h.svc.maxUpload > 0 {
		// one byte past the limit so oversize uploads are detected, not truncated
		r = io.LimitReader(f, h.svc.maxUpload+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return apperror.NewInvalidInput("file", "could not read uploaded file")
	}

	err = h.svc.UploadCv(c.Request().Context(), UploadRequest{
		ApplicationID: appID,
		FileName:      fh.Filename,
		Content:       content,
		ContentType:   fh.Header.Get(echo.HeaderContentType),
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GetCv handles GET /api/jobs/:id/job-applications/cv?email=
func (h *Handler) GetCv(c echo.Context) error {
	jobID, err := postings.ParseID(c.Param("id"))
	if err != nil {
		return err
	}
	email := c.QueryParam("email")
	if email == "" {
		return apperror.NewBadRequest("email query parameter is required")
	}

	cv, err := h.svc.GetCv(c.Request().Context(), jobID, email)
	if err != nil {
		return err
	}
	defer cv.Body.Close()

	res := c.Response()
	if cv.FileName != "" {
		res.Header().Set(echo.HeaderContentDisposition,
			mime.FormatMediaType("attachment", map[string]string{"filename": cv.FileName}))
	}
	if cv.Size > 0 {
		res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(cv.Size, 10))
	}
	contentType := cv.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, contentType, cv.Body)
}
