package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
	"go.uber.org/zap"
)

var (
	storage tstorage.Storage
	mu      sync.RWMutex
)

// InitMetrics opens the tstorage time-series store under the workdir.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithPartitionDuration(time.Hour*24),
	)
	if err != nil {
		return err
	}
	storage = s
	return nil
}

// SetGauge records a single datapoint for the named metric.
func SetGauge(name string, value int64) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return
	}
	err := storage.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
		},
	})
	if err != nil {
		zap.S().Debugf("metrics insert failed %s: %s", name, err.Error())
	}
}

// IncrCounter records a counter increment as a datapoint.
func IncrCounter(name string, incr int64) {
	SetGauge(name, incr)
}

// Query returns datapoints for a metric in [start, end].
func Query(name string, start, end int64) []*tstorage.DataPoint {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return nil
	}
	points, err := storage.Select(name, nil, start, end)
	if err != nil {
		return nil
	}
	return points
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
