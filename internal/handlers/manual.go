// Package handlers implements the operator HTTP endpoints.
package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kommissarhq/kommissar/internal/persona"
)

// ManualHandler reads and replaces the operator reference document.
type ManualHandler struct {
	logger *slog.Logger
	manual *persona.ManualLog
}

func NewManualHandler(log *slog.Logger, manual *persona.ManualLog) *ManualHandler {
	return &ManualHandler{
		logger: log.With(slog.String("handler", "manual")),
		manual: manual,
	}
}

func (h *ManualHandler) Register(e *echo.Echo) {
	e.GET("/manual", h.Get)
	e.PUT("/manual", h.Put)
}

func (h *ManualHandler) Get(c echo.Context) error {
	return c.String(http.StatusOK, h.manual.Text())
}

// Put replaces the document wholesale with the request body.
func (h *ManualHandler) Put(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}
	if err := h.manual.Set(string(body)); err != nil {
		h.logger.Error("manual update failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "persist manual")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}
