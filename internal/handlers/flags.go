package handlers

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/kommissarhq/kommissar/internal/moderation"
)

// FlagsHandler exposes the moderation roster and an amnesty endpoint.
type FlagsHandler struct {
	logger  *slog.Logger
	machine *moderation.Machine
}

func NewFlagsHandler(log *slog.Logger, machine *moderation.Machine) *FlagsHandler {
	return &FlagsHandler{
		logger:  log.With(slog.String("handler", "flags")),
		machine: machine,
	}
}

func (h *FlagsHandler) Register(e *echo.Echo) {
	e.GET("/flags", h.List)
	e.DELETE("/flags/:user", h.Amnesty)
}

func (h *FlagsHandler) List(c echo.Context) error {
	flags := h.machine.List()
	sort.Slice(flags, func(i, j int) bool { return flags[i].AssignedAt.Before(flags[j].AssignedAt) })
	return c.JSON(http.StatusOK, flags)
}

func (h *FlagsHandler) Amnesty(c echo.Context) error {
	userID := c.Param("user")
	flag, removed := h.machine.Amnesty(c.Request().Context(), userID)
	if !removed {
		return echo.NewHTTPError(http.StatusNotFound, "user is not flagged")
	}
	h.logger.Info("amnesty via api", slog.String("user_id", userID))
	return c.JSON(http.StatusOK, flag)
}
