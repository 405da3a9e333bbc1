package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/spice_shop/internal/service"
)

// fail logs err under event and converts it into the HTTP error the client
// sees. Expected failures are logged as warnings.
func fail(l *slog.Logger, event string, err error) error {
	var (
		status int
		msg    string
	)
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		status, msg = http.StatusBadRequest, "cart is empty"
	case errors.Is(err, service.ErrValidation):
		status, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, service.ErrOutOfStock):
		status, msg = http.StatusConflict, "product is out of stock"
	case errors.Is(err, service.ErrPriceUnavailable):
		status, msg = http.StatusConflict, "price unavailable"
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrUnavailable):
		l.Error(event, "status", http.StatusServiceUnavailable, "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "catalog unavailable").SetInternal(err)
	default:
		l.Error(event, "status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}

	l.Warn(event, "status", status, "error", err)
	return echo.NewHTTPError(status, msg+": "+err.Error())
}
