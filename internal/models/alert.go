package models

import "time"

// Channel 报警投递通道
type Channel string

const (
	ChannelLog      Channel = "log"      // 静默日志
	ChannelInApp    Channel = "in_app"   // 应用内报警卡片
	ChannelRealtime Channel = "realtime" // 实时推送流
	ChannelPush     Channel = "push"     // 推送通知
	ChannelUrgent   Channel = "urgent"   // 紧急通道（短信级）
)

// Alert 报警事件（仅在节流器放行后创建，按通道独立投递）
type Alert struct {
	ID             string      `json:"id"`
	Timestamp      time.Time   `json:"timestamp"`
	DeviceID       string      `json:"device_id"`
	AnomalyType    AnomalyType `json:"anomaly_type"`
	Severity       Severity    `json:"severity"`
	RiskScore      float64     `json:"risk_score"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	Recommendation string      `json:"recommendation"`
	Explanation    string      `json:"explanation,omitempty"` // 外部文本生成器的补充说明（可选）
	Channels       []Channel   `json:"channels"`
	Acknowledged   bool        `json:"acknowledged"`
}

// AlertStats 报警历史聚合统计
type AlertStats struct {
	Total          int                 `json:"total"`
	Unacknowledged int                 `json:"unacknowledged"`
	BySeverity     map[string]int      `json:"by_severity"`
	ByType         map[AnomalyType]int `json:"by_type"`
}
