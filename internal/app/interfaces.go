package app

import (
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/config"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/broadcast"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/closure"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/ledger"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/notify"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ConfigManagerProvider provides configuration manager access
type ConfigManagerProvider interface {
	ConfigMgr() *ConfigManager
}

// ServiceProvider provides access to the POS core services
type ServiceProvider interface {
	Ledger() *ledger.Ledger
	ClosureEngine() *closure.Engine
	Broadcaster() *broadcast.Broadcaster
	Notifier() notify.Sink
}

// AppContext combines all provider interfaces for full application context
// Handlers should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	ConfigManagerProvider
	ServiceProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
	// SeedCatalog inserts the sample product catalog when empty
	SeedCatalog() (int, error)
	// RunSchedulerNow triggers a scheduler execution immediately by ID
	RunSchedulerNow(id int64) error
}
