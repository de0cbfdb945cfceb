package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// httpError maps a service or repository error onto the HTTP error returned
// to the caller. Internal details stay in the log.
func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, models.ErrInvalidArgument):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Not allowed to modify this resource")
	case errors.Is(err, models.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Resource not found")
	case errors.Is(err, models.ErrTransactionConflict):
		return echo.NewHTTPError(http.StatusConflict, "Concurrent update, please retry")
	}
	log.WithFields(log.Fields{"path": c.Path(), "method": c.Request().Method}).WithError(err).Error("request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}

func success(c echo.Context, code int, data interface{}) error {
	return c.JSON(code, echo.Map{"success": true, "data": data})
}
