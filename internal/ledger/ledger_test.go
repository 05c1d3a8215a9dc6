package ledger

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/broadcast"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/domain"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/common"
)

type recordSink struct {
	mu    sync.Mutex
	notes []string
}

func (s *recordSink) Notify(role, orderID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, fmt.Sprintf("%s|%s|%s", role, orderID, message))
}

func (s *recordSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %s", err)
	}
	if err := db.AutoMigrate(domain.Tables...); err != nil {
		t.Fatalf("migrate: %s", err)
	}
	return db
}

func newTestLedger(t *testing.T, name string) (*Ledger, *recordSink) {
	t.Helper()
	sink := &recordSink{}
	bus := broadcast.New()
	t.Cleanup(bus.Release)
	return New(openTestDB(t, name), bus, sink), sink
}

func line(pid string, price float64, qty int) domain.OrderLine {
	return domain.OrderLine{ProductID: pid, Name: "item " + pid, Category: domain.CategoryFood, Price: price, Quantity: qty}
}

func TestRecompute(t *testing.T) {
	tests := []struct {
		name        string
		lines       domain.OrderLines
		payments    domain.PartialPayments
		total       float64
		paid        float64
		pending     float64
	}{
		{
			name:  "no payments",
			lines: domain.OrderLines{line("p1", 10, 2), line("p2", 5, 1)},
			total: 25, paid: 0, pending: 25,
		},
		{
			name:     "partial payment",
			lines:    domain.OrderLines{line("p1", 10, 2), line("p2", 5, 1)},
			payments: domain.PartialPayments{{Amount: 15, PaymentMethod: domain.PaymentMethodCash}},
			total:    25, paid: 15, pending: 10,
		},
		{
			name:     "overpaid clamps pending to zero",
			lines:    domain.OrderLines{line("p1", 10, 1)},
			payments: domain.PartialPayments{{Amount: 12, PaymentMethod: domain.PaymentMethodCard}},
			total:    10, paid: 12, pending: 0,
		},
		{
			name:  "empty order",
			lines: domain.OrderLines{},
			total: 0, paid: 0, pending: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order := &domain.Order{Lines: tc.lines, Payments: tc.payments}
			Recompute(order)
			if order.Total != tc.total || order.PaidAmount != tc.paid || order.PendingAmount != tc.pending {
				t.Fatalf("got total=%v paid=%v pending=%v, want %v/%v/%v",
					order.Total, order.PaidAmount, order.PendingAmount, tc.total, tc.paid, tc.pending)
			}
		})
	}
}

func TestCreateOrderValidation(t *testing.T) {
	l, _ := newTestLedger(t, "ledger_validate")

	tests := []struct {
		name  string
		draft OrderDraft
	}{
		{"empty lines", OrderDraft{TableNumber: 1, Zone: domain.ZoneBar}},
		{"unknown zone", OrderDraft{TableNumber: 1, Zone: "azotea", Lines: []domain.OrderLine{line("p1", 10, 1)}}},
		{"zero quantity", OrderDraft{TableNumber: 1, Zone: domain.ZoneBar, Lines: []domain.OrderLine{line("p1", 10, 0)}}},
		{"negative price", OrderDraft{TableNumber: 1, Zone: domain.ZoneBar, Lines: []domain.OrderLine{line("p1", -1, 1)}}},
		{"missing product id", OrderDraft{TableNumber: 1, Zone: domain.ZoneBar, Lines: []domain.OrderLine{line("", 10, 1)}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.CreateOrder(context.Background(), &tc.draft)
			if !errors.Is(err, common.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateOrderDerivedFields(t *testing.T) {
	l, _ := newTestLedger(t, "ledger_create")

	paidLine := line("p1", 12.50, 2)
	paidLine.IsPaid = true // client lies, must be reset
	draft := &OrderDraft{
		TableNumber: 4,
		Zone:        domain.ZoneIndoorHall,
		WaiterRole:  "camarero1",
		Lines:       []domain.OrderLine{paidLine, line("p2", 3, 1)},
	}

	order, err := l.CreateOrder(context.Background(), draft)
	if err != nil {
		t.Fatalf("create: %s", err)
	}
	if order.Total != 28 || order.PaidAmount != 0 || order.PendingAmount != 28 {
		t.Fatalf("derived fields wrong: total=%v paid=%v pending=%v", order.Total, order.PaidAmount, order.PendingAmount)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("new order status = %s, want pending", order.Status)
	}
	for _, ln := range order.Lines {
		if ln.IsPaid {
			t.Fatalf("line %s created as paid", ln.ProductID)
		}
		if ln.OriginalPrice != ln.Price {
			t.Fatalf("line %s original price %v, want %v", ln.ProductID, ln.OriginalPrice, ln.Price)
		}
	}

	stored, err := l.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get: %s", err)
	}
	if stored.Total != 28 || len(stored.Lines) != 2 {
		t.Fatalf("stored order mismatch: total=%v lines=%d", stored.Total, len(stored.Lines))
	}
}

func TestUnificationScan(t *testing.T) {
	l, _ := newTestLedger(t, "ledger_unify")
	ctx := context.Background()

	first, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 1, Zone: domain.ZoneBar,
		Lines: []domain.OrderLine{line("cafe", 1.50, 2)},
	})
	if err != nil {
		t.Fatalf("create first: %s", err)
	}

	second, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 1, Zone: domain.ZoneBar,
		Lines: []domain.OrderLine{line("cafe", 1.50, 1), line("tarta", 4, 1)},
	})
	if err != nil {
		t.Fatalf("create second: %s", err)
	}
	want := strconv.FormatInt(first.ID, 10)
	if len(second.UnifiedWith) != 1 || second.UnifiedWith[0] != want {
		t.Fatalf("unified_with = %v, want [%s]", second.UnifiedWith, want)
	}

	// the link is one-way, the older order stays untouched
	firstReloaded, err := l.GetOrder(ctx, first.ID)
	if err != nil {
		t.Fatalf("reload first: %s", err)
	}
	if len(firstReloaded.UnifiedWith) != 0 {
		t.Fatalf("older order gained links: %v", firstReloaded.UnifiedWith)
	}

	disjoint, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 2, Zone: domain.ZoneBar,
		Lines: []domain.OrderLine{line("cerveza", 2.50, 1)},
	})
	if err != nil {
		t.Fatalf("create disjoint: %s", err)
	}
	if len(disjoint.UnifiedWith) != 0 {
		t.Fatalf("disjoint order linked: %v", disjoint.UnifiedWith)
	}
}

func TestUnificationIgnoresOldAndNonPending(t *testing.T) {
	l, _ := newTestLedger(t, "ledger_unify_window")
	ctx := context.Background()

	stale := &domain.Order{
		ID: common.UUIDint64(), TableNumber: 9, Zone: domain.ZoneBar,
		Lines:     domain.OrderLines{line("cafe", 1.50, 1)},
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now().Add(-UnifyWindow - time.Minute),
	}
	delivered := &domain.Order{
		ID: common.UUIDint64(), TableNumber: 9, Zone: domain.ZoneBar,
		Lines:     domain.OrderLines{line("cafe", 1.50, 1)},
		Status:    domain.OrderStatusDelivered,
		CreatedAt: time.Now(),
	}
	for _, o := range []*domain.Order{stale, delivered} {
		if err := l.db.Create(o).Error; err != nil {
			t.Fatalf("seed: %s", err)
		}
	}

	order, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 9, Zone: domain.ZoneBar,
		Lines: []domain.OrderLine{line("cafe", 1.50, 1)},
	})
	if err != nil {
		t.Fatalf("create: %s", err)
	}
	if len(order.UnifiedWith) != 0 {
		t.Fatalf("linked outside the window or to non-pending: %v", order.UnifiedWith)
	}
}

func TestUpdateOrderReadyNotification(t *testing.T) {
	l, sink := newTestLedger(t, "ledger_notify")
	ctx := context.Background()

	order, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 7, Zone: domain.ZoneTerraceOutdoor, WaiterRole: "camarero2",
		Lines: []domain.OrderLine{line("paella", 15.50, 1)},
	})
	if err != nil {
		t.Fatalf("create: %s", err)
	}

	doc := *order
	doc.Status = domain.OrderStatusInPreparation
	if _, err := l.UpdateOrder(ctx, order.ID, &doc); err != nil {
		t.Fatalf("update to in_preparation: %s", err)
	}
	if sink.count() != 0 {
		t.Fatalf("notified before ready: %v", sink.notes)
	}

	doc.Status = domain.OrderStatusReady
	if _, err := l.UpdateOrder(ctx, order.ID, &doc); err != nil {
		t.Fatalf("update to ready: %s", err)
	}
	if sink.count() != 1 {
		t.Fatalf("expected one notification, got %d", sink.count())
	}

	// saving an already-ready order must not notify again
	doc.SpecialNote = "sin sal"
	if _, err := l.UpdateOrder(ctx, order.ID, &doc); err != nil {
		t.Fatalf("update ready again: %s", err)
	}
	if sink.count() != 1 {
		t.Fatalf("re-notified on ready->ready, got %d", sink.count())
	}
}

func TestUpdateOrderValidation(t *testing.T) {
	l, _ := newTestLedger(t, "ledger_update_validate")
	ctx := context.Background()

	order, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 6, Zone: domain.ZoneBar,
		Lines: []domain.OrderLine{line("p1", 10, 1)},
	})
	if err != nil {
		t.Fatalf("create: %s", err)
	}

	tests := []struct {
		name   string
		mutate func(o *domain.Order)
	}{
		{"empty lines", func(o *domain.Order) { o.Lines = domain.OrderLines{} }},
		{"unknown zone", func(o *domain.Order) { o.Zone = "azotea" }},
		{"unknown status", func(o *domain.Order) { o.Status = "cancelled" }},
		{"zero quantity", func(o *domain.Order) { o.Lines = domain.OrderLines{line("p1", 10, 0)} }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := *order
			tc.mutate(&doc)
			if _, err := l.UpdateOrder(ctx, order.ID, &doc); !errors.Is(err, common.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	// the stored order is untouched by the rejected writes
	stored, err := l.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload: %s", err)
	}
	if stored.Total != 10 || len(stored.Lines) != 1 || stored.Status != domain.OrderStatusPending {
		t.Fatalf("stored order mutated: total=%v lines=%d status=%s", stored.Total, len(stored.Lines), stored.Status)
	}
}

func TestUpdateOrderPreservesServerFields(t *testing.T) {
	l, _ := newTestLedger(t, "ledger_update")
	ctx := context.Background()

	order, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 3, Zone: domain.ZoneBar,
		Lines: []domain.OrderLine{line("p1", 10, 1)},
	})
	if err != nil {
		t.Fatalf("create: %s", err)
	}

	closed := time.Now()
	doc := *order
	doc.CreatedAt = time.Now().Add(-48 * time.Hour)
	doc.ClosedDate = &closed
	doc.UnifiedWith = domain.StringList{"12345"}
	doc.Total = 999 // client supplied, must be recomputed
	doc.Lines = domain.OrderLines{line("p1", 10, 2)}

	updated, err := l.UpdateOrder(ctx, order.ID, &doc)
	if err != nil {
		t.Fatalf("update: %s", err)
	}
	if updated.Total != 20 {
		t.Fatalf("total = %v, want recomputed 20", updated.Total)
	}
	if !updated.CreatedAt.Equal(order.CreatedAt) {
		t.Fatalf("created_at rewritten: %v", updated.CreatedAt)
	}
	if updated.ClosedDate != nil {
		t.Fatalf("closed_date settable by client: %v", updated.ClosedDate)
	}
	if len(updated.UnifiedWith) != 0 {
		t.Fatalf("unified_with settable by client: %v", updated.UnifiedWith)
	}
}

func TestAddPartialPayment(t *testing.T) {
	l, _ := newTestLedger(t, "ledger_payment")
	ctx := context.Background()

	order, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 5, Zone: domain.ZoneIndoorHall,
		Lines: []domain.OrderLine{line("p1", 15, 1), line("p2", 10, 1)},
	})
	if err != nil {
		t.Fatalf("create: %s", err)
	}

	after, err := l.AddPartialPayment(ctx, order.ID, domain.PartialPayment{
		Amount: 15, PaymentMethod: domain.PaymentMethodCash, PaidProducts: []string{"p1"},
	})
	if err != nil {
		t.Fatalf("first payment: %s", err)
	}
	if after.PaidAmount != 15 || after.PendingAmount != 10 {
		t.Fatalf("after first payment paid=%v pending=%v", after.PaidAmount, after.PendingAmount)
	}
	if !after.Lines[0].IsPaid || after.Lines[1].IsPaid {
		t.Fatalf("line paid flags wrong: %+v", after.Lines)
	}
	if after.PaymentMethod != "" {
		t.Fatalf("payment method settled early: %q", after.PaymentMethod)
	}

	// re-marking p1 is a no-op on the flag but the amount still counts
	after, err = l.AddPartialPayment(ctx, order.ID, domain.PartialPayment{
		Amount: 10, PaymentMethod: domain.PaymentMethodCard, PaidProducts: []string{"p1", "p2"},
	})
	if err != nil {
		t.Fatalf("second payment: %s", err)
	}
	if after.PaidAmount != 25 || after.PendingAmount != 0 {
		t.Fatalf("after second payment paid=%v pending=%v", after.PaidAmount, after.PendingAmount)
	}
	if len(after.Payments) != 2 {
		t.Fatalf("payment history length %d, want 2", len(after.Payments))
	}
	if after.PaymentMethod != domain.PaymentMethodMixed {
		t.Fatalf("settled method %q, want mixed", after.PaymentMethod)
	}

	stored, err := l.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload: %s", err)
	}
	if stored.PendingAmount != 0 || len(stored.Payments) != 2 {
		t.Fatalf("stored state mismatch: pending=%v payments=%d", stored.PendingAmount, len(stored.Payments))
	}
}

func TestAddPartialPaymentValidation(t *testing.T) {
	l, _ := newTestLedger(t, "ledger_payment_validate")
	ctx := context.Background()

	order, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 5, Zone: domain.ZoneBar,
		Lines: []domain.OrderLine{line("p1", 5, 1)},
	})
	if err != nil {
		t.Fatalf("create: %s", err)
	}

	if _, err := l.AddPartialPayment(ctx, order.ID, domain.PartialPayment{Amount: -1, PaymentMethod: domain.PaymentMethodCash}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("negative amount accepted: %v", err)
	}
	if _, err := l.AddPartialPayment(ctx, order.ID, domain.PartialPayment{Amount: 1, PaymentMethod: "bitcoin"}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("unknown method accepted: %v", err)
	}
	if _, err := l.AddPartialPayment(ctx, math.MaxInt64, domain.PartialPayment{Amount: 1, PaymentMethod: domain.PaymentMethodCash}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing order: %v", err)
	}
}

func TestSettledMethodSingle(t *testing.T) {
	l, _ := newTestLedger(t, "ledger_settle")
	ctx := context.Background()

	order, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 2, Zone: domain.ZoneBar,
		Lines: []domain.OrderLine{line("p1", 8, 1)},
	})
	if err != nil {
		t.Fatalf("create: %s", err)
	}
	after, err := l.AddPartialPayment(ctx, order.ID, domain.PartialPayment{
		Amount: 8, PaymentMethod: domain.PaymentMethodCard, PaidProducts: []string{"p1"},
	})
	if err != nil {
		t.Fatalf("payment: %s", err)
	}
	if after.PaymentMethod != domain.PaymentMethodCard {
		t.Fatalf("settled method %q, want card", after.PaymentMethod)
	}
}

func TestDeleteOrder(t *testing.T) {
	l, _ := newTestLedger(t, "ledger_delete")
	ctx := context.Background()

	order, err := l.CreateOrder(ctx, &OrderDraft{
		TableNumber: 1, Zone: domain.ZoneBar,
		Lines: []domain.OrderLine{line("p1", 5, 1)},
	})
	if err != nil {
		t.Fatalf("create: %s", err)
	}

	if err := l.DeleteOrder(ctx, order.ID); err != nil {
		t.Fatalf("delete: %s", err)
	}
	if _, err := l.GetOrder(ctx, order.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("order still readable after delete: %v", err)
	}
	if err := l.DeleteOrder(ctx, order.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
