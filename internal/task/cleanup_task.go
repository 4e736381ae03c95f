package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"selllink/internal/repository"
)

// ==================== 过期清理任务 ====================

// CleanupTask 分享页过期清理任务
// 分享页按 TTL 过期：读路径已经拒绝过期记录，这里定期把尸体从库里清掉
type CleanupTask struct {
	ListingRepo repository.SharedListingRepository
	Cron        *cron.Cron
}

func NewCleanupTask(listingRepo repository.SharedListingRepository) *CleanupTask {
	return &CleanupTask{
		ListingRepo: listingRepo,
		Cron:        cron.New(cron.WithSeconds()), // 支持秒级控制
	}
}

// Start 启动定时任务
func (t *CleanupTask) Start() {
	// 首次执行
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		log.Println("[Task] 服务启动，正在执行首次过期分享页清理...")
		t.cleanupJob(ctx)
	}()

	// 定时策略
	_, err := t.Cron.AddFunc("0 0/30 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		t.cleanupJob(ctx)
	})

	if err != nil {
		log.Fatalf("无法启动清理定时任务: %v", err)
	}

	t.Cron.Start()
	log.Println("分享页清理任务已启动 (每30分钟执行一次)")
}

// Stop 停止定时任务
func (t *CleanupTask) Stop() {
	if t.Cron != nil {
		t.Cron.Stop()
	}
}

// cleanupJob 删除已过期的分享页记录
func (t *CleanupTask) cleanupJob(ctx context.Context) {
	deleted, err := t.ListingRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		log.Printf("[Cron] 过期分享页清理失败: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[Cron] 已清理 %d 条过期分享页", deleted)
	}
}
