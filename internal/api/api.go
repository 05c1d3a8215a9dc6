package api

import (
	"github.com/labstack/echo/v4"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
)

// Init registers every API route. Call after webserver.Init.
func Init() {
	webserver.ApiGET("/", apiRoot)
	registerProductRoutes()
	registerOrderRoutes()
	registerStatsRoutes()
	registerClosureRoutes()
	registerSettingsRoutes()
	registerSchedulerRoutes()
	registerEventRoutes()
	registerMetricsRoutes()
}

func apiRoot(c echo.Context) error {
	return ok(c, map[string]string{
		"message": "El Rincón del Laurel API",
		"status":  "running",
	})
}
