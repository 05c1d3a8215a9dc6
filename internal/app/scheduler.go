package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/domain"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/common"
)

// SchedulerService runs enabled schedulers periodically
func (a *Application) StartSchedulerService(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.runSchedulers(ctx)
			}
		}
	}()
}

// runSchedulers executes enabled schedulers
func (a *Application) runSchedulers(ctx context.Context) {
	var schedulers []domain.SysScheduler
	a.gormDB.Where("status = ?", "enabled").Find(&schedulers)
	now := time.Now()
	for _, sched := range schedulers {
		// Only run if now >= next_run_at
		if sched.NextRunAt.IsZero() || now.After(sched.NextRunAt) || now.Equal(sched.NextRunAt) {
			a.runScheduledTask(ctx, &sched)
			a.gormDB.Model(&domain.SysScheduler{}).Where("id = ?", sched.ID).
				Update("next_run_at", now.Add(time.Duration(sched.Interval)*time.Second))
		}
	}
}

func (a *Application) runScheduledTask(ctx context.Context, sched *domain.SysScheduler) {
	result := "success"
	message := ""
	switch sched.TaskType {
	case "closure_retention":
		pruned, err := a.closureEngine.PruneExpired(ctx, time.Now())
		if err != nil {
			result, message = "failed", err.Error()
		} else {
			message = fmt.Sprintf("pruned %d closures", pruned)
		}
	case "oprlog_prune":
		res := a.gormDB.Where("opt_time < ?", time.Now().Add(-time.Hour*24*365)).
			Delete(&domain.SysOprLog{})
		if res.Error != nil {
			result, message = "failed", res.Error.Error()
		} else {
			message = fmt.Sprintf("deleted %d log entries", res.RowsAffected)
		}
	default:
		result, message = "failed", "unsupported task type"
	}

	if result != "success" {
		zap.L().Error("scheduler run failed",
			zap.String("task_type", sched.TaskType),
			zap.String("message", message))
	}

	now := time.Now()
	a.gormDB.Model(&domain.SysScheduler{}).Where("id = ?", sched.ID).Updates(map[string]interface{}{
		"last_run_at":  now,
		"last_result":  result,
		"last_message": message,
	})
}

// RunSchedulerNow triggers a scheduler execution immediately by ID
func (a *Application) RunSchedulerNow(id int64) error {
	var sched domain.SysScheduler
	err := a.gormDB.First(&sched, id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrapf(common.ErrNotFound, "scheduler %d", id)
	case err != nil:
		return errors.Wrap(err, "failed to load scheduler")
	}

	a.runScheduledTask(context.Background(), &sched)

	now := time.Now()
	a.gormDB.Model(&domain.SysScheduler{}).Where("id = ?", sched.ID).Updates(map[string]interface{}{
		"last_run_at": now,
		"next_run_at": now.Add(time.Duration(sched.Interval) * time.Second),
	})
	return nil
}
