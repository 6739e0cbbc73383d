package repository

import (
	"context"
	"math"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scenergy_visualizer/internal/model"
)

// 调用日志表不走 AutoMigrate，这里按线上分区主表的列集手工建表，
// 确保模型与 pkg/database/partition.go 的 DDL 对齐（没有软删除列）
const aiCallLogsTestDDL = `
CREATE TABLE ai_call_logs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL,
    client_id     INTEGER NOT NULL DEFAULT 0,
    flow_id       INTEGER NOT NULL DEFAULT 0,
    job_id        INTEGER NOT NULL DEFAULT 0,
    call_type     TEXT NOT NULL DEFAULT '',
    model_name    TEXT NOT NULL DEFAULT '',
    image_count   INTEGER NOT NULL DEFAULT 0,
    video_seconds INTEGER NOT NULL DEFAULT 0,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    cost_usd      REAL NOT NULL DEFAULT 0,
    status        TEXT NOT NULL DEFAULT 'success',
    error_msg     TEXT NOT NULL DEFAULT ''
)`

func setupAICallLogTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	if err := db.Exec(aiCallLogsTestDDL).Error; err != nil {
		t.Fatalf("建表失败: %v", err)
	}

	return db
}

func newCallLog(clientID, flowID, jobID int64, status string, imageCount int, costUSD float64) *model.AICallLog {
	return &model.AICallLog{
		ClientID:   clientID,
		FlowID:     flowID,
		JobID:      jobID,
		CallType:   model.AICallTypeImage,
		ModelName:  "gemini-2.0-flash",
		ImageCount: imageCount,
		DurationMs: 1200,
		CostUSD:    costUSD,
		Status:     status,
	}
}

func TestAICallLogRepo_Create(t *testing.T) {
	db := setupAICallLogTestDB(t)
	repo := NewAICallLogRepository(db)
	ctx := context.Background()

	entry := newCallLog(1, 10, 100, model.AICallStatusSuccess, 2, 0.04)
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.ID == 0 {
		t.Error("ID 应该被自动分配")
	}

	logs, err := repo.GetByJobID(ctx, 100)
	if err != nil {
		t.Fatalf("GetByJobID() error = %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("日志条数 = %d, want 1", len(logs))
	}
	if logs[0].ModelName != "gemini-2.0-flash" || logs[0].ImageCount != 2 {
		t.Errorf("读回的日志不匹配: %+v", logs[0])
	}
}

func TestAICallLogRepo_GetUsageByClient(t *testing.T) {
	db := setupAICallLogTestDB(t)
	repo := NewAICallLogRepository(db)
	ctx := context.Background()

	repo.Create(ctx, newCallLog(1, 10, 100, model.AICallStatusSuccess, 2, 0.04))
	repo.Create(ctx, newCallLog(1, 10, 101, model.AICallStatusSuccess, 2, 0.04))
	repo.Create(ctx, newCallLog(1, 11, 102, model.AICallStatusFailed, 0, 0))
	// 其他客户不应计入
	repo.Create(ctx, newCallLog(2, 20, 200, model.AICallStatusSuccess, 4, 0.08))

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	stats, err := repo.GetUsageByClient(ctx, 1, start, end)
	if err != nil {
		t.Fatalf("GetUsageByClient() error = %v", err)
	}

	if stats.TotalCalls != 3 {
		t.Errorf("TotalCalls = %d, want 3", stats.TotalCalls)
	}
	if stats.SuccessCalls != 2 || stats.FailedCalls != 1 {
		t.Errorf("成功/失败 = %d/%d, want 2/1", stats.SuccessCalls, stats.FailedCalls)
	}
	if stats.ImageCount != 4 {
		t.Errorf("ImageCount = %d, want 4", stats.ImageCount)
	}
	if math.Abs(stats.TotalCostUSD-0.08) > 1e-9 {
		t.Errorf("TotalCostUSD = %f, want 0.08", stats.TotalCostUSD)
	}
}

func TestAICallLogRepo_GetUsageByFlow(t *testing.T) {
	db := setupAICallLogTestDB(t)
	repo := NewAICallLogRepository(db)
	ctx := context.Background()

	repo.Create(ctx, newCallLog(1, 10, 100, model.AICallStatusSuccess, 1, 0.02))
	repo.Create(ctx, newCallLog(1, 11, 101, model.AICallStatusSuccess, 1, 0.02))

	stats, err := repo.GetUsageByFlow(ctx, 10)
	if err != nil {
		t.Fatalf("GetUsageByFlow() error = %v", err)
	}
	if stats.TotalCalls != 1 {
		t.Errorf("TotalCalls = %d, want 1", stats.TotalCalls)
	}
}

func TestAICallLogRepo_GetDailyUsage(t *testing.T) {
	db := setupAICallLogTestDB(t)
	repo := NewAICallLogRepository(db)
	ctx := context.Background()

	repo.Create(ctx, newCallLog(1, 10, 100, model.AICallStatusSuccess, 2, 0.04))
	repo.Create(ctx, newCallLog(1, 10, 101, model.AICallStatusSuccess, 1, 0.02))

	daily, err := repo.GetDailyUsage(ctx, 1, 7)
	if err != nil {
		t.Fatalf("GetDailyUsage() error = %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("按天分组数 = %d, want 1", len(daily))
	}
	if daily[0].CallCount != 2 || daily[0].ImageCount != 3 {
		t.Errorf("当天用量 = %+v, want 2 次调用 3 张图", daily[0])
	}
}

func TestAICallLogRepo_GetTotalCost(t *testing.T) {
	db := setupAICallLogTestDB(t)
	repo := NewAICallLogRepository(db)
	ctx := context.Background()

	repo.Create(ctx, newCallLog(1, 10, 100, model.AICallStatusSuccess, 2, 0.04))
	repo.Create(ctx, newCallLog(1, 10, 101, model.AICallStatusFailed, 0, 0.01))

	total, err := repo.GetTotalCost(ctx, 1, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GetTotalCost() error = %v", err)
	}
	if math.Abs(total-0.05) > 1e-9 {
		t.Errorf("总成本 = %f, want 0.05", total)
	}
}
