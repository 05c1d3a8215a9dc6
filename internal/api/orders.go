package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/domain"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/ledger"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
)

// registerOrderRoutes registers the order ledger endpoints
func registerOrderRoutes() {
	webserver.ApiGET("/orders", listOrders)
	webserver.ApiGET("/orders/export", exportOrders)
	webserver.ApiGET("/orders/:id", getOrder)
	webserver.ApiPOST("/orders", createOrder)
	webserver.ApiPUT("/orders/:id", updateOrder)
	webserver.ApiDELETE("/orders/:id", deleteOrder)
	webserver.ApiPOST("/orders/:id/payments", addPartialPayment)
}

func listOrders(c echo.Context) error {
	orders, err := GetAppContext(c).Ledger().ListOrders(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, orders)
}

func getOrder(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return failErr(c, err)
	}
	order, err := GetAppContext(c).Ledger().GetOrder(c.Request().Context(), id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, order)
}

func createOrder(c echo.Context) error {
	var draft ledger.OrderDraft
	if err := c.Bind(&draft); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order", err.Error())
	}
	order, err := GetAppContext(c).Ledger().CreateOrder(c.Request().Context(), &draft)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, order)
}

func updateOrder(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return failErr(c, err)
	}
	var doc domain.Order
	if err := c.Bind(&doc); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order", err.Error())
	}
	order, err := GetAppContext(c).Ledger().UpdateOrder(c.Request().Context(), id, &doc)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, order)
}

func deleteOrder(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return failErr(c, err)
	}
	if err := GetAppContext(c).Ledger().DeleteOrder(c.Request().Context(), id); err != nil {
		return failErr(c, err)
	}
	return ok(c, map[string]interface{}{"success": true})
}

func addPartialPayment(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return failErr(c, err)
	}
	var payment domain.PartialPayment
	if err := c.Bind(&payment); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse payment", err.Error())
	}
	order, err := GetAppContext(c).Ledger().AddPartialPayment(c.Request().Context(), id, payment)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, order)
}

type orderCSVRow struct {
	ID            string  `csv:"id"`
	TableNumber   int     `csv:"table_number"`
	Zone          string  `csv:"zone"`
	WaiterRole    string  `csv:"waiter_role"`
	Status        string  `csv:"status"`
	Total         float64 `csv:"total"`
	PaidAmount    float64 `csv:"paid_amount"`
	PendingAmount float64 `csv:"pending_amount"`
	PaymentMethod string  `csv:"payment_method"`
	CreatedAt     string  `csv:"created_at"`
	ClosedDate    string  `csv:"closed_date"`
}

func exportOrders(c echo.Context) error {
	orders, err := GetAppContext(c).Ledger().ListOrders(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}

	rows := make([]orderCSVRow, 0, len(orders))
	for _, order := range orders {
		row := orderCSVRow{
			ID:            strconv.FormatInt(order.ID, 10),
			TableNumber:   order.TableNumber,
			Zone:          order.Zone,
			WaiterRole:    order.WaiterRole,
			Status:        order.Status,
			Total:         order.Total,
			PaidAmount:    order.PaidAmount,
			PendingAmount: order.PendingAmount,
			PaymentMethod: order.PaymentMethod,
			CreatedAt:     order.CreatedAt.Format(time.RFC3339),
		}
		if order.ClosedDate != nil {
			row.ClosedDate = order.ClosedDate.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to export orders", err.Error())
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="orders.csv"`)
	return c.Blob(http.StatusOK, "text/csv", []byte(out))
}
