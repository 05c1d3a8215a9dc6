package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
)

// registerEventRoutes registers the server-sent events stream
func registerEventRoutes() {
	webserver.ApiGET("/events", streamEvents)
}

// streamEvents keeps the connection open and forwards every published event
// as an SSE data frame until the client disconnects.
func streamEvents(c echo.Context) error {
	broadcaster := GetAppContext(c).Broadcaster()
	id, events := broadcaster.Attach()
	defer broadcaster.Detach(id)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case data, open := <-events:
			if !open {
				return nil
			}
			if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
				return nil
			}
			resp.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(resp, ": ping\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
