package models

import "go.uber.org/atomic"

// Metrics 定義指標統計
type Metrics struct {
	Hits      atomic.Int64
	Misses    atomic.Int64
	Stores    atomic.Int64
	Degraded  atomic.Int64
	Faults    atomic.Int64
	Evictions atomic.Int64
}

// NewMetrics 創建新的 Metrics 實例
func NewMetrics() *Metrics {
	return &Metrics{}
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Stores    int64 `json:"stores"`
	Degraded  int64 `json:"degraded"`
	Faults    int64 `json:"faults"`
	Evictions int64 `json:"evictions"`
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:      m.Hits.Load(),
		Misses:    m.Misses.Load(),
		Stores:    m.Stores.Load(),
		Degraded:  m.Degraded.Load(),
		Faults:    m.Faults.Load(),
		Evictions: m.Evictions.Load(),
	}
}
