package closure

import (
	"context"
	"fmt"
	"math"
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

type mapSettings map[string]string

func (m mapSettings) GetString(category, name string) string {
	return m[category+"."+name]
}

func (m mapSettings) GetInt(category, name string) int {
	var n int
	fmt.Sscanf(m[category+"."+name], "%d", &n)
	return n
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

func newTestEngine(t *testing.T, name string, settings mapSettings) (*Engine, *gorm.DB) {
	t.Helper()
	db := openTestDB(t, name)
	bus := broadcast.New()
	t.Cleanup(bus.Release)
	if settings == nil {
		settings = mapSettings{}
	}
	return New(db, bus, settings), db
}

func seedOrder(t *testing.T, db *gorm.DB, status, zone, method string, total float64, createdAt time.Time) *domain.Order {
	t.Helper()
	order := &domain.Order{
		ID:            common.UUIDint64(),
		TableNumber:   1,
		Zone:          zone,
		Lines:         domain.OrderLines{{ProductID: "p1", Name: "item", Price: total, Quantity: 1}},
		Total:         total,
		PendingAmount: total,
		Status:        status,
		PaymentMethod: method,
		Payments:      domain.PartialPayments{},
		UnifiedWith:   domain.StringList{},
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %s", err)
	}
	return order
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tzdata unavailable: %s", err)
	}
	at := time.Date(2026, 8, 30, 23, 59, 59, 0, loc)
	start, end := DayWindow(at)
	if start.Hour() != 0 || start.Day() != 30 {
		t.Fatalf("start = %v", start)
	}
	if !end.Equal(start.Add(24 * time.Hour)) {
		t.Fatalf("end = %v", end)
	}
}

func TestComputePeriodStats(t *testing.T) {
	e, db := newTestEngine(t, "closure_stats", nil)
	ctx := context.Background()
	now := time.Now()
	start, end := DayWindow(now)

	seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneBar, domain.PaymentMethodCash, 20, now)
	seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneBar, domain.PaymentMethodCard, 30, now)
	seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneIndoorHall, domain.PaymentMethodMixed, 10, now)
	// unknown method counts in the total only
	seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneIndoorHall, "cheque", 5, now)
	// not delivered, excluded entirely
	seedOrder(t, db, domain.OrderStatusPending, domain.ZoneBar, domain.PaymentMethodCash, 100, now)
	// delivered yesterday, outside the window
	seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneBar, domain.PaymentMethodCash, 100, now.Add(-25*time.Hour))
	// already closed, excluded
	closed := seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneBar, domain.PaymentMethodCash, 100, now)
	db.Model(closed).Update("closed_date", now)

	result, err := e.ComputePeriodStats(ctx, start, end)
	if err != nil {
		t.Fatalf("stats: %s", err)
	}
	if !almostEqual(result.TotalSales, 65) || result.TotalOrders != 4 {
		t.Fatalf("total=%v orders=%d, want 65/4", result.TotalSales, result.TotalOrders)
	}
	if !almostEqual(result.CashSales, 20) || !almostEqual(result.CardSales, 30) || !almostEqual(result.MixedSales, 10) {
		t.Fatalf("method split cash=%v card=%v mixed=%v", result.CashSales, result.CardSales, result.MixedSales)
	}
	if len(result.ZoneBreakdown) != len(domain.Zones) {
		t.Fatalf("zone breakdown has %d zones, want all %d", len(result.ZoneBreakdown), len(domain.Zones))
	}
	if zone := result.ZoneBreakdown[domain.ZoneBar]; !almostEqual(zone.Sales, 50) || zone.Orders != 2 {
		t.Fatalf("barra zone = %+v", zone)
	}
	if zone := result.ZoneBreakdown[domain.ZoneTerraceOutdoor]; zone.Sales != 0 || zone.Orders != 0 {
		t.Fatalf("empty zone not zeroed: %+v", zone)
	}
}

func TestCloseDay(t *testing.T) {
	e, db := newTestEngine(t, "closure_closeday", nil)
	ctx := context.Background()
	now := time.Now()
	start, end := DayWindow(now)

	seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneBar, domain.PaymentMethodCash, 40, now)
	seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneIndoorHall, domain.PaymentMethodCard, 25, now)
	pending := seedOrder(t, db, domain.OrderStatusPending, domain.ZoneBar, "", 10, now)

	closure, err := e.CloseDay(ctx, "gerente")
	if err != nil {
		t.Fatalf("close day: %s", err)
	}
	if !almostEqual(closure.TotalSales, 65) || closure.TotalOrders != 2 {
		t.Fatalf("closure snapshot total=%v orders=%d", closure.TotalSales, closure.TotalOrders)
	}
	if closure.ClosedBy != "gerente" {
		t.Fatalf("closed_by = %q", closure.ClosedBy)
	}

	// stats collapse to zero after the close, the snapshot keeps the values
	stats, err := e.ComputePeriodStats(ctx, start, end)
	if err != nil {
		t.Fatalf("stats after close: %s", err)
	}
	if stats.TotalSales != 0 || stats.TotalOrders != 0 {
		t.Fatalf("stats not zero after close: total=%v orders=%d", stats.TotalSales, stats.TotalOrders)
	}

	var stamped []domain.Order
	db.Where("closed_date IS NOT NULL").Find(&stamped)
	if len(stamped) != 2 {
		t.Fatalf("stamped %d orders, want 2", len(stamped))
	}
	var untouched domain.Order
	db.First(&untouched, pending.ID)
	if untouched.ClosedDate != nil {
		t.Fatalf("pending order stamped")
	}

	// second close of the same day must conflict without a second record
	if _, err := e.CloseDay(ctx, "gerente"); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("second close: %v", err)
	}
	var count int64
	db.Model(&domain.Closure{}).Count(&count)
	if count != 1 {
		t.Fatalf("closure count = %d, want 1", count)
	}
}

func TestCloseDayRepairsUnstampedOrders(t *testing.T) {
	e, db := newTestEngine(t, "closure_repair", nil)
	ctx := context.Background()
	now := time.Now()

	// a previous run inserted the closure but crashed before stamping
	orphan := seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneBar, domain.PaymentMethodCash, 15, now.Add(-time.Minute))
	existing := &domain.Closure{
		ID:            common.UUIDint64(),
		Date:          now,
		TotalSales:    15,
		TotalOrders:   1,
		ZoneBreakdown: domain.ZoneBreakdown{},
		ClosedBy:      "gerente",
		CreatedAt:     now,
	}
	if err := db.Create(existing).Error; err != nil {
		t.Fatalf("seed closure: %s", err)
	}

	if _, err := e.CloseDay(ctx, "gerente"); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("repair close: %v", err)
	}

	var repaired domain.Order
	db.First(&repaired, orphan.ID)
	if repaired.ClosedDate == nil {
		t.Fatalf("orphan order not re-stamped")
	}

	// an order delivered after the existing closure must stay open
	late := seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneBar, domain.PaymentMethodCash, 8, time.Now())
	if _, err := e.CloseDay(ctx, "gerente"); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("third close: %v", err)
	}
	var lateReloaded domain.Order
	db.First(&lateReloaded, late.ID)
	if lateReloaded.ClosedDate != nil {
		t.Fatalf("post-closure order swallowed by repair")
	}
}

func TestPruneExpired(t *testing.T) {
	tests := []struct {
		name      string
		retention string
		ageDays   int
		pruned    bool
	}{
		{"default keeps 6 days", "", 6, false},
		{"default prunes 8 days", "", 8, true},
		{"custom retention 3 prunes 4 days", "3", 4, true},
		{"custom retention 30 keeps 8 days", "30", 8, false},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			settings := mapSettings{}
			if tc.retention != "" {
				settings["closure.retention_days"] = tc.retention
			}
			e, db := newTestEngine(t, fmt.Sprintf("closure_prune_%d", i), settings)
			now := time.Now()

			old := &domain.Closure{
				ID:            common.UUIDint64(),
				Date:          now.AddDate(0, 0, -tc.ageDays),
				ZoneBreakdown: domain.ZoneBreakdown{},
				CreatedAt:     now.AddDate(0, 0, -tc.ageDays),
			}
			if err := db.Create(old).Error; err != nil {
				t.Fatalf("seed closure: %s", err)
			}

			pruned, err := e.PruneExpired(context.Background(), now)
			if err != nil {
				t.Fatalf("prune: %s", err)
			}
			if tc.pruned && pruned != 1 {
				t.Fatalf("pruned %d, want 1", pruned)
			}
			if !tc.pruned && pruned != 0 {
				t.Fatalf("pruned %d, want 0", pruned)
			}
		})
	}
}

func TestComputeWeeklyStats(t *testing.T) {
	e, db := newTestEngine(t, "closure_weekly", nil)
	ctx := context.Background()
	now := time.Now()

	seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneBar, domain.PaymentMethodCash, 50, now)
	seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneBar, domain.PaymentMethodCash, 30, now.AddDate(0, 0, -2))
	// outside the 7-day window
	seedOrder(t, db, domain.OrderStatusDelivered, domain.ZoneBar, domain.PaymentMethodCash, 99, now.AddDate(0, 0, -8))

	weekly, err := e.ComputeWeeklyStats(ctx, now)
	if err != nil {
		t.Fatalf("weekly: %s", err)
	}
	if !almostEqual(weekly.TotalSales, 80) || weekly.TotalOrders != 2 {
		t.Fatalf("weekly total=%v orders=%d", weekly.TotalSales, weekly.TotalOrders)
	}
	if len(weekly.Days) != 7 {
		t.Fatalf("days length %d", len(weekly.Days))
	}
	today := weekly.Days[6]
	if today.Date != now.Format("2006-01-02") || !almostEqual(today.Sales, 50) || today.Orders != 1 {
		t.Fatalf("today bucket = %+v", today)
	}
	if !almostEqual(weekly.MeanDailySales, 80.0/7) {
		t.Fatalf("mean = %v", weekly.MeanDailySales)
	}
	// five of seven days sold nothing, so the median is zero
	if !almostEqual(weekly.MedianDailySales, 0) {
		t.Fatalf("median = %v", weekly.MedianDailySales)
	}
}
