package pipeline

import (
	"sync"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

// History 进程内报警历史环形缓冲
//
// 仅用于检视与确认，不跨副本共享，不做持久化
type History struct {
	mu       sync.RWMutex
	capacity int
	alerts   []*models.Alert // 按时间顺序，最旧在前
}

// NewHistory 创建指定容量的历史缓冲
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 100
	}
	return &History{
		capacity: capacity,
		alerts:   make([]*models.Alert, 0, capacity),
	}
}

// Append 追加一条报警，容量满时淘汰最旧一条
func (h *History) Append(alert *models.Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.alerts) >= h.capacity {
		h.alerts = h.alerts[1:]
	}
	h.alerts = append(h.alerts, alert)
}

// Acknowledge 按 ID 确认一条报警，找不到时返回 false
func (h *History) Acknowledge(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, alert := range h.alerts {
		if alert.ID == id {
			alert.Acknowledged = true
			return true
		}
	}
	return false
}

// Recent 返回最近 n 条报警（最新在前），n<=0 时返回全部
// 返回的是快照副本，调用方读取不与后续 Acknowledge 竞争
func (h *History) Recent(n int) []*models.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.alerts) {
		n = len(h.alerts)
	}

	result := make([]*models.Alert, 0, n)
	for i := len(h.alerts) - 1; i >= len(h.alerts)-n; i-- {
		snapshot := *h.alerts[i]
		result = append(result, &snapshot)
	}
	return result
}

// Stats 按严重级别与异常类型聚合当前缓冲内的报警统计
func (h *History) Stats() models.AlertStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := models.AlertStats{
		Total:      len(h.alerts),
		BySeverity: make(map[string]int),
		ByType:     make(map[models.AnomalyType]int),
	}

	for _, alert := range h.alerts {
		stats.BySeverity[alert.Severity.String()]++
		stats.ByType[alert.AnomalyType]++
		if !alert.Acknowledged {
			stats.Unacknowledged++
		}
	}
	return stats
}
