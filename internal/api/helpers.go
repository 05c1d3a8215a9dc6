package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/app"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/common"
)

// GetAppContext returns the application from the request context.
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(webserver.ContextAppKey).(app.AppContext)
}

// GetDB returns the database handle from the request context.
func GetDB(c echo.Context) *gorm.DB {
	return c.Get(webserver.ContextDBKey).(*gorm.DB)
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"code":    code,
		"message": message,
		"detail":  detail,
	})
}

// failErr maps service errors onto the HTTP error taxonomy.
func failErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, common.ErrNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, common.ErrConflict):
		return fail(c, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		zap.S().Errorf("internal error: %s", err.Error())
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
	}
}

func paged(c echo.Context, rows interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":    rows,
		"total":   total,
		"page":    page,
		"perPage": pageSize,
	})
}

func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Wrap(common.ErrValidation, "invalid id")
	}
	return id, nil
}
