package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

// TrainingSampleRepository 已确认正常样本仓库
//
// 样本由外部协作方（人工复核或随访确认）标记为正常后入库，
// 本子系统只读，用于统计模型的个性化基线训练
type TrainingSampleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTrainingSampleRepository 创建训练样本仓库
func NewTrainingSampleRepository(db *sql.DB, logger *zap.Logger) *TrainingSampleRepository {
	return &TrainingSampleRepository{
		db:     db,
		logger: logger,
	}
}

// GetConfirmedNormal 获取设备最近的已确认正常样本（按时间升序，最多 limit 条）
func (r *TrainingSampleRepository) GetConfirmedNormal(deviceID string, limit int) ([]models.Sample, error) {
	query := `
		SELECT heart_rate, spo2, step_count, inter_beat_ms, recorded_at
		FROM confirmed_normal_samples
		WHERE device_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmed_normal_samples: %w", err)
	}
	defer rows.Close()

	var samples []models.Sample
	for rows.Next() {
		var (
			s          models.Sample
			recordedAt time.Time
		)
		if err := rows.Scan(&s.HeartRate, &s.SpO2, &s.StepCount, &s.InterBeatMs, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training sample: %w", err)
		}
		s.Timestamp = recordedAt
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate training samples: %w", err)
	}

	// 查询按时间倒序取最近 limit 条，训练按时间正序消费
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}

	return samples, nil
}
