package throttle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

func setupTestThrottle(t *testing.T) (*miniredis.Miniredis, *Throttle) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	logger := zap.NewNop()
	throttle := NewThrottle(redisClient, "vitalguard:throttle:", 5*time.Minute, logger)
	return mr, throttle
}

func TestShouldSend_FirstInWindowOnly(t *testing.T) {
	_, throttle := setupTestThrottle(t)
	ctx := context.Background()

	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
	assert.False(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
	assert.False(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
}

func TestShouldSend_KeysAreIndependent(t *testing.T) {
	_, throttle := setupTestThrottle(t)
	ctx := context.Background()

	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
	// 不同类型与不同级别各自独立
	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyHypoxemia, models.SeverityWarning))
	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityInfo))
}

func TestShouldSend_ExpiryReopensWindow(t *testing.T) {
	mr, throttle := setupTestThrottle(t)
	ctx := context.Background()

	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
	assert.False(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))

	mr.FastForward(5*time.Minute + time.Second)

	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
}

func TestShouldSend_EmergencyAlwaysPasses(t *testing.T) {
	_, throttle := setupTestThrottle(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityEmergency))
	}
	for i := 0; i < 5; i++ {
		assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityCritical))
	}
}

func TestShouldSend_EmergencyRefreshesMarker(t *testing.T) {
	mr, throttle := setupTestThrottle(t)
	ctx := context.Background()

	// 紧急报警放行并为同类型的低级别键写入标记
	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityEmergency))

	// 冷却期内同类型的低级别报警被抑制
	assert.False(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
	assert.False(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityInfo))

	// 其他类型不受影响
	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyHypoxemia, models.SeverityWarning))

	// 冷却过期后同类型低级别重新放行
	mr.FastForward(5*time.Minute + time.Second)
	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
}

func TestShouldSend_ConcurrentCallersExactlyOneWins(t *testing.T) {
	_, throttle := setupTestThrottle(t)
	ctx := context.Background()

	const callers = 32
	var granted int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if throttle.ShouldSend(ctx, models.AnomalyHypoxemia, models.SeverityWarning) {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	// 冷却窗口内恰好一个并发调用方得到放行
	assert.Equal(t, int64(1), granted)
}

func TestShouldSend_StoreDown_FailsClosedForNonCritical(t *testing.T) {
	mr, throttle := setupTestThrottle(t)
	ctx := context.Background()

	mr.Close()

	// 非紧急：失败关闭
	assert.False(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
	assert.False(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityInfo))

	// 紧急：不依赖存储可用性
	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityEmergency))
	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityCritical))
}

func TestReset(t *testing.T) {
	_, throttle := setupTestThrottle(t)
	ctx := context.Background()

	require.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
	require.False(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))

	require.NoError(t, throttle.Reset(ctx, models.AnomalyTachycardia, models.SeverityWarning))

	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
}

func TestResetAll_And_Pending(t *testing.T) {
	_, throttle := setupTestThrottle(t)
	ctx := context.Background()

	require.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
	require.True(t, throttle.ShouldSend(ctx, models.AnomalyHypoxemia, models.SeverityInfo))

	pending, err := throttle.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Contains(t, pending, "tachycardia:warning")
	assert.Contains(t, pending, "hypoxemia:info")
	for _, ttl := range pending {
		assert.Greater(t, ttl, time.Duration(0))
	}

	require.NoError(t, throttle.ResetAll(ctx))

	pending, err = throttle.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.True(t, throttle.ShouldSend(ctx, models.AnomalyTachycardia, models.SeverityWarning))
}
