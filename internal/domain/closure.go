package domain

import (
	"database/sql/driver"
	"time"
)

// ZoneStat is the per-zone slice of a closure aggregate.
type ZoneStat struct {
	Sales  float64 `json:"sales"`
	Orders int     `json:"orders"`
}

type ZoneBreakdown map[string]ZoneStat

func (z ZoneBreakdown) Value() (driver.Value, error)  { return jsonValue(z) }
func (z *ZoneBreakdown) Scan(value interface{}) error { return jsonScan(z, value) }

// Closure is the immutable end-of-day financial snapshot. At most one
// closure may exist per calendar day; rows older than the retention
// window are pruned.
type Closure struct {
	ID            int64         `gorm:"primaryKey" json:"id,string"`
	Date          time.Time     `gorm:"index" json:"date"`
	TotalSales    float64       `json:"total_sales"`
	CashSales     float64       `json:"cash_sales"`
	CardSales     float64       `json:"card_sales"`
	MixedSales    float64       `json:"mixed_sales"`
	TotalOrders   int           `json:"total_orders"`
	ZoneBreakdown ZoneBreakdown `gorm:"type:text" json:"zone_breakdown"`
	ClosedBy      string        `gorm:"size:64" json:"closed_by"`
	CreatedAt     time.Time     `json:"created_at"`
}

// TableName Specify table name
func (Closure) TableName() string {
	return "pos_closure"
}
