package models

// Severity 报警严重级别（全序：Normal < Info < Warning < Critical < Emergency）
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityCritical
	SeverityEmergency
)

// String 返回严重级别的字符串表示
func (s Severity) String() string {
	switch s {
	case SeverityNormal:
		return "normal"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	case SeverityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// ParseSeverity 解析严重级别字符串（未知值返回 Normal）
func ParseSeverity(s string) Severity {
	switch s {
	case "info":
		return SeverityInfo
	case "warning":
		return SeverityWarning
	case "critical":
		return SeverityCritical
	case "emergency":
		return SeverityEmergency
	default:
		return SeverityNormal
	}
}

// MaxSeverity 最大严重级别（用于风险归一化）
const MaxSeverity = SeverityEmergency

// BypassesThrottle 是否绕过节流（Critical 及以上级别不节流）
func (s Severity) BypassesThrottle() bool {
	return s >= SeverityCritical
}
