package domain

import (
	"database/sql/driver"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Order status progression. The contract is forward-only; nothing in the
// store forbids going backwards but the unify and notify logic assumes
// forward motion.
const (
	OrderStatusPending       = "pending"
	OrderStatusInPreparation = "in_preparation"
	OrderStatusReady         = "ready"
	OrderStatusDelivered     = "delivered"
)

// Payment methods.
const (
	PaymentMethodCash  = "cash"
	PaymentMethodCard  = "card"
	PaymentMethodMixed = "mixed"
)

// Service zones used to bucket sales reporting.
const (
	ZoneTerraceOutdoor = "terraza_exterior"
	ZoneIndoorHall     = "salon_interior"
	ZoneTerraceIndoor  = "terraza_interior"
	ZoneBar            = "barra"
)

// Zones is the fixed zone set, in display order.
var Zones = []string{ZoneTerraceOutdoor, ZoneIndoorHall, ZoneTerraceIndoor, ZoneBar}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OrderLine is a catalog item snapshot inside an order. Price is frozen at
// add-time; IsPaid is derived state, only set by applying a PartialPayment.
type OrderLine struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"original_price"`
	Quantity      int     `json:"quantity"`
	Note          string  `json:"note,omitempty"`
	IsPaid        bool    `json:"is_paid"`
}

// PartialPayment marks a subset of products paid. Once appended to an
// order it is immutable.
type PartialPayment struct {
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	PaidProducts  []string  `json:"paid_products"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type OrderLines []OrderLine

type PartialPayments []PartialPayment

type StringList []string

func jsonValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonScan(dst interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	default:
		return errors.Errorf("unsupported column type %T", value)
	}
}

func (l OrderLines) Value() (driver.Value, error)  { return jsonValue(l) }
func (l *OrderLines) Scan(value interface{}) error { return jsonScan(l, value) }

func (p PartialPayments) Value() (driver.Value, error)  { return jsonValue(p) }
func (p *PartialPayments) Scan(value interface{}) error { return jsonScan(p, value) }

func (s StringList) Value() (driver.Value, error)  { return jsonValue(s) }
func (s *StringList) Scan(value interface{}) error { return jsonScan(s, value) }

// Order is the central document of the ledger. Total, PaidAmount and
// PendingAmount are always recomputed from Lines and Payments, never
// taken from the client.
type Order struct {
	ID            int64           `gorm:"primaryKey" json:"id,string"`
	TableNumber   int             `json:"table_number" form:"table_number"`
	Zone          string          `gorm:"index;size:32" json:"zone" form:"zone"`
	WaiterRole    string          `gorm:"size:32" json:"waiter_role" form:"waiter_role"`
	Lines         OrderLines      `gorm:"type:text" json:"products"`
	Total         float64         `json:"total"`
	PaidAmount    float64         `json:"paid_amount"`
	PendingAmount float64         `json:"pending_amount"`
	Status        string          `gorm:"index;size:32" json:"status" form:"status"`
	PaymentMethod string          `gorm:"size:16" json:"payment_method,omitempty"`
	Payments      PartialPayments `gorm:"type:text" json:"partial_payments"`
	UnifiedWith   StringList      `gorm:"type:text" json:"unified_with"`
	SpecialNote   string          `gorm:"size:1024" json:"special_note,omitempty"`
	ClosedDate    *time.Time      `gorm:"index" json:"closed_date,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Order) TableName() string {
	return "pos_order"
}

// ProductIDSet returns the distinct product identifiers of the lines.
func (o *Order) ProductIDSet() map[string]struct{} {
	set := make(map[string]struct{}, len(o.Lines))
	for _, line := range o.Lines {
		set[line.ProductID] = struct{}{}
	}
	return set
}

// ValidZone reports whether z belongs to the fixed zone set.
func ValidZone(z string) bool {
	for _, zone := range Zones {
		if zone == z {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is one of the order statuses.
func ValidStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusInPreparation, OrderStatusReady, OrderStatusDelivered:
		return true
	}
	return false
}
