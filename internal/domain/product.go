package domain

import "time"

// Product categories.
const (
	CategoryFood    = "comida"
	CategoryDrink   = "bebida"
	CategoryDessert = "postre"
)

// Categories is the fixed category set.
var Categories = []string{CategoryFood, CategoryDrink, CategoryDessert}

// Product represents a catalog item. Orders snapshot name, category and
// price at add-time, so edits here never rewrite past orders.
type Product struct {
	ID        int64     `gorm:"primaryKey" json:"id,string"`
	Name      string    `gorm:"index" json:"name" form:"name"`
	Category  string    `gorm:"index;size:32" json:"category" form:"category"`
	Price     float64   `json:"price" form:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "pos_product"
}
