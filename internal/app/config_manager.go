package app

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/domain"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/common"
)

// ConfigManager reads and writes sys_config rows with a small in-memory
// cache in front of the store.
type ConfigManager struct {
	app   *Application
	mu    sync.RWMutex
	cache map[string]string
}

func NewConfigManager(a *Application) *ConfigManager {
	return &ConfigManager{app: a, cache: make(map[string]string)}
}

func cacheKey(category, name string) string {
	return category + "." + name
}

// GetString returns the configuration value, empty when missing.
func (cm *ConfigManager) GetString(category, name string) string {
	key := cacheKey(category, name)
	cm.mu.RLock()
	if value, ok := cm.cache[key]; ok {
		cm.mu.RUnlock()
		return value
	}
	cm.mu.RUnlock()

	var cfg domain.SysConfig
	err := cm.app.gormDB.Where("type = ? and name = ?", category, name).First(&cfg).Error
	if err != nil {
		return ""
	}

	cm.mu.Lock()
	cm.cache[key] = cfg.Value
	cm.mu.Unlock()
	return cfg.Value
}

func (cm *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(cm.GetString(category, name))
}

func (cm *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(cm.GetString(category, name))
}

func (cm *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(cm.GetString(category, name))
}

// GetCategory returns every value under a category keyed by name.
func (cm *ConfigManager) GetCategory(category string) map[string]string {
	var rows []domain.SysConfig
	cm.app.gormDB.Where("type = ?", category).Find(&rows)
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Name] = row.Value
	}
	return values
}

// SetValue upserts a configuration value and refreshes the cache.
func (cm *ConfigManager) SetValue(category, name, value string) error {
	var cfg domain.SysConfig
	err := cm.app.gormDB.Where("type = ? and name = ?", category, name).First(&cfg).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = cm.app.gormDB.Create(&domain.SysConfig{
			ID:    common.UUIDint64(),
			Type:  category,
			Name:  name,
			Value: value,
		}).Error
	case err == nil:
		err = cm.app.gormDB.Model(&domain.SysConfig{}).Where("id = ?", cfg.ID).
			Updates(map[string]interface{}{"value": value, "updated_at": time.Now()}).Error
	}
	if err != nil {
		zap.S().Errorf("failed to save config %s.%s: %s", category, name, err.Error())
		return errors.Wrap(err, "failed to save config")
	}

	cm.mu.Lock()
	cm.cache[cacheKey(category, name)] = value
	cm.mu.Unlock()
	return nil
}
