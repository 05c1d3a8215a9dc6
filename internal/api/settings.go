package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mitchellh/mapstructure"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
)

// registerSettingsRoutes registers the system settings endpoints
func registerSettingsRoutes() {
	webserver.ApiGET("/settings", getSettings)
	webserver.ApiPUT("/settings", updateSettings)
}

// settingsDoc is the wire shape of the settings payload, grouped by category
type settingsDoc struct {
	Push    map[string]string `json:"push" mapstructure:"push"`
	Smtp    map[string]string `json:"smtp" mapstructure:"smtp"`
	Closure map[string]string `json:"closure" mapstructure:"closure"`
}

func getSettings(c echo.Context) error {
	cm := GetAppContext(c).ConfigMgr()
	return ok(c, settingsDoc{
		Push:    cm.GetCategory("push"),
		Smtp:    cm.GetCategory("smtp"),
		Closure: cm.GetCategory("closure"),
	})
}

func updateSettings(c echo.Context) error {
	var raw map[string]interface{}
	if err := c.Bind(&raw); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse settings", err.Error())
	}

	var doc settingsDoc
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &doc,
	})
	if err != nil {
		return failErr(c, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to decode settings", err.Error())
	}

	cm := GetAppContext(c).ConfigMgr()
	for category, values := range map[string]map[string]string{
		"push":    doc.Push,
		"smtp":    doc.Smtp,
		"closure": doc.Closure,
	} {
		for name, value := range values {
			if err := cm.SetValue(category, name, value); err != nil {
				return failErr(c, err)
			}
		}
	}
	return ok(c, map[string]interface{}{"success": true})
}
