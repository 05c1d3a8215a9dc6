package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/metrics"
)

// registerMetricsRoutes registers the time-series query endpoint
func registerMetricsRoutes() {
	webserver.ApiGET("/metrics/:name", queryMetrics)
}

type metricPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// queryMetrics returns the datapoints of one metric. The window defaults
// to the last hour; start and end are unix seconds.
func queryMetrics(c echo.Context) error {
	name := c.Param("name")

	end := time.Now().Unix()
	start := end - 3600
	if v := c.QueryParam("start"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			start = n
		}
	}
	if v := c.QueryParam("end"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			end = n
		}
	}

	points := metrics.Query(name, start, end)
	rows := make([]metricPoint, 0, len(points))
	for _, p := range points {
		rows = append(rows, metricPoint{Timestamp: p.Timestamp, Value: p.Value})
	}
	return ok(c, rows)
}
