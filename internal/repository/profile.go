// Package repository 提供阈值档案与训练样本的 Postgres 仓库
//
// 本子系统只读参考数据：档案用于个性化规则阈值，
// 已确认正常的样本用于统计模型的个性化训练
package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/rules"
)

// ProfileRepository 住户阈值档案仓库
type ProfileRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProfileRepository 创建档案仓库
func NewProfileRepository(db *sql.DB, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// GetProfile 获取设备绑定住户的阈值档案
// 匹配优先级：1) 设备特定档案，2) 系统默认档案（device_id = NULL）
// 两者都不存在时返回 nil（调用方使用缺省阈值）
func (r *ProfileRepository) GetProfile(deviceID string) (*rules.Profile, error) {
	// 1. 优先查询设备特定档案
	profile, err := r.queryProfile(`
		SELECT device_id, age, athlete, tachycardia_warning, spo2_warning
		FROM threshold_profiles
		WHERE device_id = $1
	`, deviceID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	// 2. 设备没有档案时，查询系统默认档案（device_id = NULL）
	profile, err = r.queryProfile(`
		SELECT device_id, age, athlete, tachycardia_warning, spo2_warning
		FROM threshold_profiles
		WHERE device_id IS NULL
	`)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		r.logger.Debug("No threshold profile found, using defaults",
			zap.String("device_id", deviceID))
	}
	return profile, nil
}

func (r *ProfileRepository) queryProfile(query string, args ...interface{}) (*rules.Profile, error) {
	var (
		deviceID sql.NullString
		profile  rules.Profile
	)

	err := r.db.QueryRow(query, args...).Scan(
		&deviceID,
		&profile.Age,
		&profile.Athlete,
		&profile.TachycardiaWarning,
		&profile.SpO2Warning,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query threshold_profiles: %w", err)
	}

	profile.DeviceID = deviceID.String
	return &profile, nil
}
