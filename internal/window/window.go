// Package window 提供每设备的共享滑动采样窗口
//
// 窗口是整个子系统仅有的两处共享可变状态之一（另一处是节流存储），
// 只通过 Append / ReadWindow 两个窄操作访问，保证任意副本对同一设备
// 历史读到相同的结果
package window

import (
	"context"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

// Store 每设备滑动窗口存储接口
type Store interface {
	// Append 追加一条采样（容量已满时淘汰最旧的采样）
	Append(ctx context.Context, deviceID string, sample models.Sample) error

	// ReadWindow 按到达顺序读取当前窗口内的全部采样
	ReadWindow(ctx context.Context, deviceID string) ([]models.Sample, error)
}
