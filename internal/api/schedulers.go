package api

import (
	"github.com/labstack/echo/v4"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/domain"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
)

// registerSchedulerRoutes registers the background task endpoints
func registerSchedulerRoutes() {
	webserver.ApiGET("/schedulers", listSchedulers)
	webserver.ApiPOST("/schedulers/:id/run", runScheduler)
}

func listSchedulers(c echo.Context) error {
	var rows []domain.SysScheduler
	if err := GetDB(c).Order("id").Find(&rows).Error; err != nil {
		return failErr(c, err)
	}
	return ok(c, rows)
}

func runScheduler(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return failErr(c, err)
	}
	if err := GetAppContext(c).RunSchedulerNow(id); err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"success": true})
}
