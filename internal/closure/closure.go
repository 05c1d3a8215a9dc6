package closure

import (
	"context"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/broadcast"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/domain"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/common"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/metrics"
)

// DefaultRetentionDays is how long closures are kept before pruning.
const DefaultRetentionDays = 7

// SettingsSource exposes the sys_config values the engine consults.
type SettingsSource interface {
	GetString(category, name string) string
	GetInt(category, name string) int
}

// Engine owns Closure creation and the closed_date stamping of orders.
// No other component writes closed_date.
type Engine struct {
	db       *gorm.DB
	bus      *broadcast.Broadcaster
	settings SettingsSource
}

func New(db *gorm.DB, bus *broadcast.Broadcaster, settings SettingsSource) *Engine {
	return &Engine{db: db, bus: bus, settings: settings}
}

// PeriodStats is a pure aggregate over delivered, not-yet-closed orders.
type PeriodStats struct {
	TotalSales    float64              `json:"total_sales"`
	CashSales     float64              `json:"cash_sales"`
	CardSales     float64              `json:"card_sales"`
	MixedSales    float64              `json:"mixed_sales"`
	TotalOrders   int                  `json:"total_orders"`
	ZoneBreakdown domain.ZoneBreakdown `json:"zone_breakdown"`
}

// DayStat is one calendar day of the weekly trend breakdown.
type DayStat struct {
	Date   string  `json:"date"`
	Sales  float64 `json:"sales"`
	Orders int     `json:"orders"`
}

type WeeklyStats struct {
	PeriodStats
	Days             []DayStat `json:"days"`
	MeanDailySales   float64   `json:"mean_daily_sales"`
	MedianDailySales float64   `json:"median_daily_sales"`
}

// DayWindow returns the half-open local-time window [midnight, midnight+24h)
// containing t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.Add(24 * time.Hour)
}

// closablePredicate selects the orders a closure covers: delivered, never
// closed before, created inside [start, end). The closed_date filter is what
// makes stats report zero after a closure.
func (e *Engine) closable(ctx context.Context, start, end time.Time) *gorm.DB {
	return e.db.WithContext(ctx).Model(&domain.Order{}).
		Where("status = ? AND closed_date IS NULL AND created_at >= ? AND created_at < ?",
			domain.OrderStatusDelivered, start, end)
}

// ComputePeriodStats aggregates delivered, unclosed orders created inside
// [start, end). An unrecognized payment method contributes to total_sales
// only; every fixed zone appears in the breakdown even when empty.
func (e *Engine) ComputePeriodStats(ctx context.Context, start, end time.Time) (*PeriodStats, error) {
	var orders []domain.Order
	if err := e.closable(ctx, start, end).Find(&orders).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query delivered orders")
	}

	result := &PeriodStats{ZoneBreakdown: domain.ZoneBreakdown{}}
	for _, zone := range domain.Zones {
		result.ZoneBreakdown[zone] = domain.ZoneStat{}
	}

	for _, order := range orders {
		result.TotalSales += order.Total
		result.TotalOrders++
		switch order.PaymentMethod {
		case domain.PaymentMethodCash:
			result.CashSales += order.Total
		case domain.PaymentMethodCard:
			result.CardSales += order.Total
		case domain.PaymentMethodMixed:
			result.MixedSales += order.Total
		}
		if zone, ok := result.ZoneBreakdown[order.Zone]; ok {
			zone.Sales += order.Total
			zone.Orders++
			result.ZoneBreakdown[order.Zone] = zone
		}
	}
	return result, nil
}

// ComputeWeeklyStats aggregates the rolling 7-day window ending today and
// buckets orders by calendar day of creation for the trend view.
func (e *Engine) ComputeWeeklyStats(ctx context.Context, now time.Time) (*WeeklyStats, error) {
	todayStart, todayEnd := DayWindow(now)
	weekStart := todayStart.AddDate(0, 0, -6)

	period, err := e.ComputePeriodStats(ctx, weekStart, todayEnd)
	if err != nil {
		return nil, err
	}

	var orders []domain.Order
	if err := e.closable(ctx, weekStart, todayEnd).Find(&orders).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query weekly orders")
	}

	byDay := make(map[string]*DayStat, 7)
	days := make([]DayStat, 0, 7)
	dailySales := make([]float64, 0, 7)
	for d := 0; d < 7; d++ {
		key := weekStart.AddDate(0, 0, d).Format("2006-01-02")
		days = append(days, DayStat{Date: key})
	}
	for i := range days {
		byDay[days[i].Date] = &days[i]
	}
	for _, order := range orders {
		key := order.CreatedAt.In(now.Location()).Format("2006-01-02")
		if day, ok := byDay[key]; ok {
			day.Sales += order.Total
			day.Orders++
		}
	}
	for _, day := range days {
		dailySales = append(dailySales, day.Sales)
	}

	mean, _ := stats.Mean(dailySales)
	median, _ := stats.Median(dailySales)

	return &WeeklyStats{
		PeriodStats:      *period,
		Days:             days,
		MeanDailySales:   mean,
		MedianDailySales: median,
	}, nil
}

// ListClosures returns retained closures, newest first.
func (e *Engine) ListClosures(ctx context.Context) ([]domain.Closure, error) {
	var closures []domain.Closure
	err := e.db.WithContext(ctx).Order("date DESC").Find(&closures).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query closures")
	}
	return closures, nil
}

// CloseDay snapshots today's revenue into a Closure, stamps every covered
// order and prunes closures past the retention window. At most one closure
// may exist per calendar day. The closure insert and the order stamp are
// two separate writes: a crash in between is repaired by calling CloseDay
// again, which re-stamps without inserting a second record.
func (e *Engine) CloseDay(ctx context.Context, staff string) (*domain.Closure, error) {
	now := time.Now()
	start, end := DayWindow(now)

	var existing domain.Closure
	err := e.db.WithContext(ctx).Where("date >= ?", start).First(&existing).Error
	switch {
	case err == nil:
		// Repair path: a closure exists but a crash may have left its
		// orders unstamped. Re-stamp orders that existed when it was
		// created; the stamp is a no-op when nothing is left.
		repaired, serr := e.stampOrders(ctx, start, existing.CreatedAt, now)
		if serr != nil {
			return nil, serr
		}
		if repaired > 0 {
			zap.S().Warnf("closure %d: re-stamped %d orders left open by a previous failure", existing.ID, repaired)
		}
		return nil, errors.Wrapf(common.ErrConflict, "a closure already exists for %s", start.Format("2006-01-02"))
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.Wrap(err, "failed to check for existing closure")
	}

	period, err := e.ComputePeriodStats(ctx, start, end)
	if err != nil {
		return nil, err
	}

	closure := &domain.Closure{
		ID:            common.UUIDint64(),
		Date:          now,
		TotalSales:    period.TotalSales,
		CashSales:     period.CashSales,
		CardSales:     period.CardSales,
		MixedSales:    period.MixedSales,
		TotalOrders:   period.TotalOrders,
		ZoneBreakdown: period.ZoneBreakdown,
		ClosedBy:      staff,
		CreatedAt:     now,
	}
	if err := e.db.WithContext(ctx).Create(closure).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create closure")
	}

	if _, err := e.stampOrders(ctx, start, end, now); err != nil {
		// the closure record exists, a retry repairs the stamp
		return nil, err
	}

	if _, err := e.PruneExpired(ctx, now); err != nil {
		zap.S().Errorf("closure retention prune failed: %s", err.Error())
	}

	e.db.WithContext(ctx).Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   staff,
		OptAction: "daily_closure",
		OptDesc:   fmt.Sprintf("closed %s with %d orders, total %.2f", start.Format("2006-01-02"), closure.TotalOrders, closure.TotalSales),
		OptTime:   now,
	})

	metrics.SetGauge("pos_closure_total_sales", int64(closure.TotalSales*100))
	metrics.SetGauge("pos_closure_total_orders", int64(closure.TotalOrders))

	e.bus.Publish(broadcast.TopicDailyClosure, closure)
	go e.sendSummaryMail(closure)

	return closure, nil
}

// stampOrders sets closed_date on every delivered, unclosed order created
// inside [start, end). Re-running it converges safely: already-stamped
// orders no longer match the filter.
func (e *Engine) stampOrders(ctx context.Context, start, end, now time.Time) (int64, error) {
	result := e.closable(ctx, start, end).
		Updates(map[string]interface{}{"closed_date": now, "updated_at": now})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to stamp closed orders")
	}
	return result.RowsAffected, nil
}

// PruneExpired hard-deletes closures older than the retention window.
func (e *Engine) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	retention := e.settings.GetInt("closure", "retention_days")
	if retention <= 0 {
		retention = DefaultRetentionDays
	}
	result := e.db.WithContext(ctx).
		Where("date < ?", now.AddDate(0, 0, -retention)).
		Delete(&domain.Closure{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to prune closures")
	}
	if result.RowsAffected > 0 {
		zap.S().Infof("pruned %d closures older than %d days", result.RowsAffected, retention)
	}
	return result.RowsAffected, nil
}

// sendSummaryMail emails the closure summary when SMTP is configured.
// Best effort, failures are only logged.
func (e *Engine) sendSummaryMail(c *domain.Closure) {
	host := e.settings.GetString("smtp", "host")
	from := e.settings.GetString("smtp", "from")
	to := e.settings.GetString("smtp", "to")
	if host == "" || from == "" || to == "" {
		return
	}
	port := e.settings.GetInt("smtp", "port")
	if port == 0 {
		port = 587
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Cierre del día %s", c.Date.Format("2006-01-02")))
	m.SetBody("text/plain", fmt.Sprintf(
		"Total: %.2f€\nEfectivo: %.2f€\nTarjeta: %.2f€\nMixto: %.2f€\nPedidos: %d\nCerrado por: %s\n",
		c.TotalSales, c.CashSales, c.CardSales, c.MixedSales, c.TotalOrders, c.ClosedBy))

	d := gomail.NewDialer(host, port,
		e.settings.GetString("smtp", "user"),
		e.settings.GetString("smtp", "passwd"))
	if err := d.DialAndSend(m); err != nil {
		zap.S().Errorf("closure summary mail failed: %s", err.Error())
	}
}
