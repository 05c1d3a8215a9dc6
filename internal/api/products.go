package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/broadcast"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/domain"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/common"
)

type productPayload struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// registerProductRoutes registers catalog CRUD endpoints
func registerProductRoutes() {
	webserver.ApiGET("/products", listProducts)
	webserver.ApiGET("/products/:id", getProduct)
	webserver.ApiPOST("/products", createProduct)
	webserver.ApiPUT("/products/:id", updateProduct)
	webserver.ApiDELETE("/products/:id", deleteProduct)
	webserver.ApiGET("/categories", listCategories)
	webserver.ApiPOST("/seed", seedCatalog)
}

func validCategory(category string) bool {
	for _, c := range domain.Categories {
		if c == category {
			return true
		}
	}
	return false
}

func listProducts(c echo.Context) error {
	pageStr := c.QueryParam("page")
	page := 1
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	perPageStr := c.QueryParam("perPage")
	pageSize := 1000
	if perPageStr != "" {
		if ps, err := strconv.Atoi(perPageStr); err == nil && ps > 0 && ps <= 1000 {
			pageSize = ps
		}
	}

	q := strings.TrimSpace(c.QueryParam("q"))
	categoryFilter := strings.TrimSpace(c.QueryParam("category"))

	sortField := strings.TrimSpace(c.QueryParam("sort"))
	order := strings.ToUpper(strings.TrimSpace(c.QueryParam("order")))
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	// whitelist allowed sort columns to avoid SQL injection
	allowed := map[string]string{
		"id":         "id",
		"name":       "name",
		"category":   "category",
		"price":      "price",
		"created_at": "created_at",
	}
	sortCol, okCol := allowed[sortField]
	if !okCol || sortCol == "" {
		sortCol = "name"
	}

	db := GetDB(c).Model(&domain.Product{})
	if q != "" {
		if strings.EqualFold(db.Name(), "postgres") {
			db = db.Where("name ILIKE ?", "%"+q+"%")
		} else {
			db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
		}
	}
	if categoryFilter != "" {
		db = db.Where("category = ?", categoryFilter)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	var rows []domain.Product
	if err := db.Order(sortCol + " " + order).Offset((page-1)*pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	return paged(c, rows, total, page, pageSize)
}

func getProduct(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	return ok(c, p)
}

func createProduct(c echo.Context) error {
	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Name is required", nil)
	}
	if !validCategory(payload.Category) {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Category must be comida, bebida or postre", nil)
	}
	if payload.Price < 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Price must not be negative", nil)
	}

	now := time.Now()
	p := domain.Product{
		ID:        common.UUIDint64(),
		Name:      payload.Name,
		Category:  payload.Category,
		Price:     payload.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := GetDB(c).Create(&p).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create product", err.Error())
	}

	GetAppContext(c).Broadcaster().Publish(broadcast.TopicProductCreated, p)
	return ok(c, p)
}

func updateProduct(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}

	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Name is required", nil)
	}
	if !validCategory(payload.Category) {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Category must be comida, bebida or postre", nil)
	}
	if payload.Price < 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Price must not be negative", nil)
	}

	p.Name = payload.Name
	p.Category = payload.Category
	p.Price = payload.Price
	p.UpdatedAt = time.Now()

	if err := GetDB(c).Save(&p).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update product", err.Error())
	}

	GetAppContext(c).Broadcaster().Publish(broadcast.TopicProductUpdated, p)
	return ok(c, p)
}

func deleteProduct(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	if err := GetDB(c).Where("id = ?", id).Delete(&domain.Product{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete product", err.Error())
	}

	GetAppContext(c).Broadcaster().Publish(broadcast.TopicProductDeleted,
		map[string]string{"id": strconv.FormatInt(id, 10)})
	return ok(c, map[string]interface{}{"success": true})
}

func listCategories(c echo.Context) error {
	return ok(c, domain.Categories)
}

func seedCatalog(c echo.Context) error {
	created, err := GetAppContext(c).SeedCatalog()
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to seed catalog", err.Error())
	}
	if created == 0 {
		return ok(c, map[string]interface{}{"message": "Data already seeded"})
	}
	return ok(c, map[string]interface{}{
		"message":        "Data seeded successfully",
		"products_count": created,
	})
}
