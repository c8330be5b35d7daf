package worker

import (
	"context"
	"time"

	"storia/internal/logger"
	"storia/internal/media"
)

// StagingCleanupWorker worker dọn các upload staging quá TTL
// Chạy định kỳ, xóa entry theo tuổi bất kể có được đọc hay không
type StagingCleanupWorker struct {
	staging  *media.StagingStore
	interval time.Duration // Khoảng thời gian giữa các lần sweep
}

// NewStagingCleanupWorker tạo mới StagingCleanupWorker
// Tham số:
//   - staging: Staging store cần dọn
//   - interval: Khoảng thời gian giữa các lần sweep (mặc định: 1 phút)
func NewStagingCleanupWorker(staging *media.StagingStore, interval time.Duration) *StagingCleanupWorker {
	if interval < 10*time.Second {
		interval = 1 * time.Minute
	}
	return &StagingCleanupWorker{
		staging:  staging,
		interval: interval,
	}
}

// Start bắt đầu background worker sweep staging store
func (w *StagingCleanupWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"interval": w.interval.String(),
	}).Info("🧹 [STAGING_CLEANUP] Starting Staging Cleanup Worker...")

	for {
		select {
		case <-ctx.Done():
			log.Info("🧹 [STAGING_CLEANUP] Staging Cleanup Worker stopped")
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithFields(map[string]interface{}{
							"panic": r,
						}).Error("🧹 [STAGING_CLEANUP] Panic khi sweep staging, sẽ tiếp tục ở lần chạy tiếp theo")
					}
				}()

				removed := w.staging.Sweep()
				if removed > 0 {
					log.WithFields(map[string]interface{}{
						"removedCount": removed,
						"remaining":    w.staging.Len(),
					}).Info("🧹 [STAGING_CLEANUP] Đã dọn staging uploads quá TTL")
				}
				// removed = 0 thì không log (giảm log noise)
			}()
		}
	}
}
