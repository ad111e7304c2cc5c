package applications

import "github.com/labstack/echo/v4"

func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/jobs")
	g.POST("/:id/job-applications", h.Submit)
	g.GET("/:id/job-applications/cv", h.GetCv)
	g.PUT("/job-applications/:id/upload-cv", h.UploadCv)
}
