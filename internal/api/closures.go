package api

import (
	"fmt"
	"net/http"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/labstack/echo/v4"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
)

// registerClosureRoutes registers the daily closure endpoints
func registerClosureRoutes() {
	webserver.ApiGET("/closures", listClosures)
	webserver.ApiGET("/closures/export", exportClosures)
	webserver.ApiPOST("/closures", createClosure)
}

func listClosures(c echo.Context) error {
	closures, err := GetAppContext(c).ClosureEngine().ListClosures(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, closures)
}

type closureForm struct {
	ClosedBy string `json:"closed_by"`
}

func createClosure(c echo.Context) error {
	var form closureForm
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if form.ClosedBy == "" {
		form.ClosedBy = "admin"
	}
	result, err := GetAppContext(c).ClosureEngine().CloseDay(c.Request().Context(), form.ClosedBy)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, result)
}

func exportClosures(c echo.Context) error {
	closures, err := GetAppContext(c).ClosureEngine().ListClosures(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}

	sheet := "Sheet1"
	xlsx := excelize.NewFile()
	headers := []string{"Fecha", "Ventas totales", "Efectivo", "Tarjeta", "Mixto", "Pedidos", "Cerrado por"}
	for i, h := range headers {
		xlsx.SetCellValue(sheet, fmt.Sprintf("%c1", 'A'+i), h)
	}
	for i, cl := range closures {
		row := i + 2
		xlsx.SetCellValue(sheet, fmt.Sprintf("A%d", row), cl.Date.Format("2006-01-02"))
		xlsx.SetCellValue(sheet, fmt.Sprintf("B%d", row), cl.TotalSales)
		xlsx.SetCellValue(sheet, fmt.Sprintf("C%d", row), cl.CashSales)
		xlsx.SetCellValue(sheet, fmt.Sprintf("D%d", row), cl.CardSales)
		xlsx.SetCellValue(sheet, fmt.Sprintf("E%d", row), cl.MixedSales)
		xlsx.SetCellValue(sheet, fmt.Sprintf("F%d", row), cl.TotalOrders)
		xlsx.SetCellValue(sheet, fmt.Sprintf("G%d", row), cl.ClosedBy)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="closures.xlsx"`)
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().WriteHeader(http.StatusOK)
	return xlsx.Write(c.Response())
}
