package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/domain"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/common"
)

type configSchema struct {
	Key         string
	Default     string
	Description string
}

// configSchemas defines the settings created on first boot.
var configSchemas = []configSchema{
	{"push.app_id", "", "Push provider application id"},
	{"push.api_key", "", "Push provider REST api key"},
	{"push.endpoint", "https://onesignal.com/api/v1/notifications", "Push provider endpoint"},
	{"smtp.host", "", "SMTP host for closure summary mail"},
	{"smtp.port", "587", "SMTP port"},
	{"smtp.user", "", "SMTP username"},
	{"smtp.passwd", "", "SMTP password"},
	{"smtp.from", "", "Closure mail sender"},
	{"smtp.to", "", "Closure mail recipient"},
	{"closure.retention_days", "7", "Days a closure is retained before pruning"},
}

func (a *Application) checkSettings() {
	for sortid, schema := range configSchemas {
		parts := splitKey(schema.Key)
		if parts == nil {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}
		category, name := parts[0], parts[1]

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     common.UUIDint64(),
				Sort:   sortid,
				Type:   category,
				Name:   name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.Key),
				zap.String("default", schema.Default))
		}
	}
}

func splitKey(key string) []string {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return []string{key[:i], key[i+1:]}
		}
	}
	return nil
}

// checkSchedulers initializes default scheduled tasks
func (a *Application) checkSchedulers() {
	defaultSchedulers := []domain.SysScheduler{
		{
			Name:     "Closure Retention",
			TaskType: "closure_retention",
			Interval: 3600,
			Status:   common.ENABLED,
			Remark:   "Prunes daily closures past the retention window",
		},
		{
			Name:     "Operation Log Prune",
			TaskType: "oprlog_prune",
			Interval: 86400,
			Status:   common.ENABLED,
			Remark:   "Deletes operation log entries older than one year",
		},
	}

	for _, sched := range defaultSchedulers {
		var count int64
		a.gormDB.Model(&domain.SysScheduler{}).
			Where("task_type = ?", sched.TaskType).
			Count(&count)

		if count == 0 {
			sched.ID = common.UUIDint64()
			sched.NextRunAt = time.Now().Add(time.Duration(sched.Interval) * time.Second)
			if err := a.gormDB.Create(&sched).Error; err != nil {
				zap.L().Error("failed to create default scheduler",
					zap.String("name", sched.Name),
					zap.Error(err))
			} else {
				zap.L().Info("initialized default scheduler",
					zap.String("name", sched.Name),
					zap.String("task_type", sched.TaskType))
			}
		}
	}
}

// sampleProducts is the starter catalog installed by the seed endpoint.
var sampleProducts = []domain.Product{
	// Comidas
	{Name: "Paella Valenciana", Category: domain.CategoryFood, Price: 15.50},
	{Name: "Tortilla Española", Category: domain.CategoryFood, Price: 8.00},
	{Name: "Jamón Ibérico", Category: domain.CategoryFood, Price: 18.00},
	{Name: "Croquetas Caseras", Category: domain.CategoryFood, Price: 9.50},
	{Name: "Pulpo a la Gallega", Category: domain.CategoryFood, Price: 16.00},
	// Bebidas
	{Name: "Vino Tinto Rioja", Category: domain.CategoryDrink, Price: 3.50},
	{Name: "Cerveza Estrella", Category: domain.CategoryDrink, Price: 2.50},
	{Name: "Agua Mineral", Category: domain.CategoryDrink, Price: 1.50},
	{Name: "Sangría", Category: domain.CategoryDrink, Price: 4.00},
	{Name: "Café Solo", Category: domain.CategoryDrink, Price: 1.20},
	// Postres
	{Name: "Tarta de Santiago", Category: domain.CategoryDessert, Price: 5.50},
	{Name: "Flan Casero", Category: domain.CategoryDessert, Price: 4.50},
	{Name: "Churros con Chocolate", Category: domain.CategoryDessert, Price: 6.00},
	{Name: "Helado Artesano", Category: domain.CategoryDessert, Price: 4.00},
}

// SeedCatalog installs the sample catalog when the product table is empty.
// It returns the number of products created.
func (a *Application) SeedCatalog() (int, error) {
	var count int64
	if err := a.gormDB.Model(&domain.Product{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now()
	created := 0
	for _, p := range sampleProducts {
		p.ID = common.UUIDint64()
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := a.gormDB.Create(&p).Error; err != nil {
			zap.L().Error("failed to seed product", zap.String("name", p.Name), zap.Error(err))
			continue
		}
		created++
	}
	zap.L().Info("seeded sample catalog", zap.Int("products", created))
	return created, nil
}
