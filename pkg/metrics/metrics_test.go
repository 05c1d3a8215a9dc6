package metrics

import (
	"testing"
	"time"
)

func TestQueryUninitialized(t *testing.T) {
	if points := Query("pos_orders_created", 0, time.Now().Unix()); points != nil {
		t.Fatalf("query before init returned %v", points)
	}
	// writes before init are dropped silently
	SetGauge("pos_orders_created", 1)
}

func TestSetGaugeAndQuery(t *testing.T) {
	if err := InitMetrics(t.TempDir()); err != nil {
		t.Fatalf("init: %s", err)
	}
	defer Close()

	now := time.Now().Unix()
	SetGauge("pos_closure_total_orders", 12)
	IncrCounter("pos_orders_created", 1)

	points := Query("pos_closure_total_orders", now-60, now+60)
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}
	if points[0].Value != 12 {
		t.Fatalf("value = %v, want 12", points[0].Value)
	}

	if points := Query("no_such_metric", now-60, now+60); len(points) != 0 {
		t.Fatalf("unknown metric returned %d points", len(points))
	}
}
