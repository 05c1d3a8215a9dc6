package api

import (
	"net/http"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/closure"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
)

// registerStatsRoutes registers the sales statistics endpoints
func registerStatsRoutes() {
	webserver.ApiGET("/stats/daily", dailyStats)
	webserver.ApiGET("/stats/weekly", weeklyStats)
}

// statsAnchor resolves the optional date query param, defaulting to now
func statsAnchor(c echo.Context) (time.Time, error) {
	raw := c.QueryParam("date")
	if raw == "" {
		return time.Now(), nil
	}
	return dateparse.ParseIn(raw, time.Local)
}

func dailyStats(c echo.Context) error {
	anchor, err := statsAnchor(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse date", err.Error())
	}
	start, end := closure.DayWindow(anchor)
	result, err := GetAppContext(c).ClosureEngine().ComputePeriodStats(c.Request().Context(), start, end)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, result)
}

func weeklyStats(c echo.Context) error {
	anchor, err := statsAnchor(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse date", err.Error())
	}
	result, err := GetAppContext(c).ClosureEngine().ComputeWeeklyStats(c.Request().Context(), anchor)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, result)
}
