package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/broadcast"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/domain"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/notify"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/common"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/metrics"
)

// UnifyWindow is how far back the creation scan looks for pending orders
// sharing a product with the new one.
const UnifyWindow = 3 * time.Minute

// Ledger owns all Order and PartialPayment mutation. Every write
// recomputes the derived financial fields from lines and payments before
// the single persist call.
type Ledger struct {
	db   *gorm.DB
	bus  *broadcast.Broadcaster
	sink notify.Sink
}

func New(db *gorm.DB, bus *broadcast.Broadcaster, sink notify.Sink) *Ledger {
	return &Ledger{db: db, bus: bus, sink: sink}
}

// OrderDraft is the waiter input for a new order.
type OrderDraft struct {
	TableNumber int                `json:"table_number"`
	Zone        string             `json:"zone"`
	WaiterRole  string             `json:"waiter_role"`
	Lines       []domain.OrderLine `json:"products"`
	SpecialNote string             `json:"special_note"`
}

// Recompute derives total, paid_amount and pending_amount from the order's
// lines and payment history. It is the only place these fields are set.
func Recompute(o *domain.Order) {
	var total float64
	for _, line := range o.Lines {
		total += line.Price * float64(line.Quantity)
	}
	var paid float64
	for _, p := range o.Payments {
		paid += p.Amount
	}
	o.Total = total
	o.PaidAmount = paid
	o.PendingAmount = total - paid
	if o.PendingAmount < 0 {
		o.PendingAmount = 0
	}
}

func validateLines(zone string, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return errors.Wrap(common.ErrValidation, "order must contain at least one product")
	}
	if !domain.ValidZone(zone) {
		return errors.Wrapf(common.ErrValidation, "unknown zone %q", zone)
	}
	for i, line := range lines {
		if line.Quantity < 1 {
			return errors.Wrapf(common.ErrValidation, "product %d: quantity must be at least 1", i)
		}
		if line.Price < 0 {
			return errors.Wrapf(common.ErrValidation, "product %d: price must not be negative", i)
		}
		if line.ProductID == "" {
			return errors.Wrapf(common.ErrValidation, "product %d: missing product_id", i)
		}
	}
	return nil
}

func validateDraft(draft *OrderDraft) error {
	return validateLines(draft.Zone, draft.Lines)
}

// CreateOrder validates the draft, computes the derived fields, links
// likely-duplicate recent orders and persists the result.
func (l *Ledger) CreateOrder(ctx context.Context, draft *OrderDraft) (*domain.Order, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	now := time.Now()
	order := &domain.Order{
		ID:          common.UUIDint64(),
		TableNumber: draft.TableNumber,
		Zone:        draft.Zone,
		WaiterRole:  draft.WaiterRole,
		Lines:       make(domain.OrderLines, len(draft.Lines)),
		Status:      domain.OrderStatusPending,
		Payments:    domain.PartialPayments{},
		UnifiedWith: domain.StringList{},
		SpecialNote: draft.SpecialNote,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, line := range draft.Lines {
		// is_paid is derived state, never taken from the client
		line.IsPaid = false
		if line.OriginalPrice == 0 {
			line.OriginalPrice = line.Price
		}
		order.Lines[i] = line
	}
	Recompute(order)

	unified, err := l.unificationScan(ctx, order, now)
	if err != nil {
		// advisory only, creation proceeds without links
		zap.S().Errorf("unification scan failed: %s", err.Error())
	} else {
		order.UnifiedWith = unified
	}

	if err := l.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create order")
	}

	metrics.IncrCounter("pos_orders_created", 1)
	l.bus.Publish(broadcast.TopicOrderCreated, order)
	return order, nil
}

// unificationScan returns ids of pending orders created inside the unify
// window that share at least one product with o. The link is one-way: the
// new order references the older ones, never the reverse.
func (l *Ledger) unificationScan(ctx context.Context, o *domain.Order, now time.Time) (domain.StringList, error) {
	var candidates []domain.Order
	err := l.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", domain.OrderStatusPending, now.Add(-UnifyWindow)).
		Limit(100).
		Find(&candidates).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query recent pending orders")
	}

	products := o.ProductIDSet()
	unified := domain.StringList{}
	for _, candidate := range candidates {
		if candidate.ID == o.ID {
			continue
		}
		for pid := range candidate.ProductIDSet() {
			if _, ok := products[pid]; ok {
				unified = append(unified, strconv.FormatInt(candidate.ID, 10))
				break
			}
		}
	}
	return unified, nil
}

// GetOrder loads a single order.
func (l *Ledger) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	err := l.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.Wrapf(common.ErrNotFound, "order %d", id)
	case err != nil:
		return nil, errors.Wrap(err, "failed to query order")
	}
	return &order, nil
}

// ListOrders returns all orders, newest first.
func (l *Ledger) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := l.db.WithContext(ctx).Order("created_at DESC").Limit(1000).Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query orders")
	}
	return orders, nil
}

// UpdateOrder replaces the order document with the supplied state. Derived
// fields are recomputed from the supplied lines and payments; identifiers,
// creation time, unification links and closed_date stay server-owned. When
// the status crosses into ready the waiter is notified.
func (l *Ledger) UpdateOrder(ctx context.Context, id int64, doc *domain.Order) (*domain.Order, error) {
	if err := validateLines(doc.Zone, doc.Lines); err != nil {
		return nil, err
	}
	if !domain.ValidStatus(doc.Status) {
		return nil, errors.Wrapf(common.ErrValidation, "unknown status %q", doc.Status)
	}

	current, err := l.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	doc.ID = current.ID
	doc.CreatedAt = current.CreatedAt
	doc.UnifiedWith = current.UnifiedWith
	// closed_date is written by the closure engine only
	doc.ClosedDate = current.ClosedDate
	doc.UpdatedAt = time.Now()
	if doc.Payments == nil {
		doc.Payments = domain.PartialPayments{}
	}
	Recompute(doc)

	if err := l.db.WithContext(ctx).Save(doc).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update order")
	}

	if current.Status != domain.OrderStatusReady && doc.Status == domain.OrderStatusReady {
		l.sink.Notify(doc.WaiterRole, strconv.FormatInt(doc.ID, 10),
			fmt.Sprintf("Pedido mesa %d listo", doc.TableNumber))
	}

	l.bus.Publish(broadcast.TopicOrderUpdated, doc)
	return doc, nil
}

// AddPartialPayment appends an immutable payment to the order, marks the
// referenced lines paid and refreshes the derived amounts. Re-marking an
// already-paid line is a no-op while the amount still counts.
func (l *Ledger) AddPartialPayment(ctx context.Context, id int64, payment domain.PartialPayment) (*domain.Order, error) {
	if payment.Amount < 0 {
		return nil, errors.Wrap(common.ErrValidation, "payment amount must not be negative")
	}
	switch payment.PaymentMethod {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodMixed:
	default:
		return nil, errors.Wrapf(common.ErrValidation, "unknown payment method %q", payment.PaymentMethod)
	}

	order, err := l.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	paidSet := make(map[string]struct{}, len(payment.PaidProducts))
	for _, pid := range payment.PaidProducts {
		paidSet[pid] = struct{}{}
	}
	for i := range order.Lines {
		if _, ok := paidSet[order.Lines[i].ProductID]; ok {
			order.Lines[i].IsPaid = true
		}
	}

	payment.CreatedAt = time.Now()
	order.Payments = append(order.Payments, payment)
	Recompute(order)

	if order.PendingAmount == 0 && order.Total > 0 && order.PaymentMethod == "" {
		order.PaymentMethod = settledMethod(order.Payments)
	}

	order.UpdatedAt = time.Now()
	err = l.db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"lines":          order.Lines,
			"payments":       order.Payments,
			"paid_amount":    order.PaidAmount,
			"pending_amount": order.PendingAmount,
			"payment_method": order.PaymentMethod,
			"updated_at":     order.UpdatedAt,
		}).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to save partial payment")
	}

	l.bus.Publish(broadcast.TopicOrderUpdated, order)
	return order, nil
}

// settledMethod derives the order-level payment method from the history:
// a single method wins outright, a mix is recorded as mixed.
func settledMethod(payments domain.PartialPayments) string {
	method := ""
	for _, p := range payments {
		if method == "" {
			method = p.PaymentMethod
			continue
		}
		if method != p.PaymentMethod {
			return domain.PaymentMethodMixed
		}
	}
	return method
}

// DeleteOrder removes the order outright. Closure aggregates are
// snapshots, so deleting a closed order leaves them untouched.
func (l *Ledger) DeleteOrder(ctx context.Context, id int64) error {
	result := l.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Order{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete order")
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(common.ErrNotFound, "order %d", id)
	}
	l.bus.Publish(broadcast.TopicOrderDeleted, map[string]string{"id": strconv.FormatInt(id, 10)})
	return nil
}
