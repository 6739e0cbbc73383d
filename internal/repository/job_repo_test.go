package repository

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scenergy_visualizer/internal/model"
)

func setupJobTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	if err := db.AutoMigrate(&model.GenerationJob{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}

	return db
}

func newPendingJob(clientID, flowID int64, priority int) *model.GenerationJob {
	return &model.GenerationJob{
		ClientID:   clientID,
		FlowID:     flowID,
		ProductID:  1,
		JobType:    model.JobTypeImage,
		Status:     model.JobStatusPending,
		Priority:   priority,
		Prompt:     "ceramic vase, studio light",
		ImageCount: 1,
	}
}

func TestJobRepo_Create_DefaultMaxAttempts(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	job := newPendingJob(1, 10, 0)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if job.ID == 0 {
		t.Error("ID 应该被自动分配")
	}
	if job.MaxAttempts != model.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", job.MaxAttempts, model.DefaultMaxAttempts)
	}
}

func TestJobRepo_ClaimNext(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	first := newPendingJob(1, 10, 0)
	second := newPendingJob(1, 10, 0)
	repo.Create(ctx, first)
	repo.Create(ctx, second)

	claimed, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}

	// 同优先级按 id 升序出队
	if claimed.ID != first.ID {
		t.Errorf("认领了任务 #%d, 应该是最旧的 #%d", claimed.ID, first.ID)
	}
	if claimed.Status != model.JobStatusProcessing {
		t.Errorf("Status = %s, want processing", claimed.Status)
	}
	if claimed.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", claimed.Attempts)
	}
	if claimed.StartedAt == nil {
		t.Error("StartedAt 应该被设置")
	}

	// 数据库里的行也应该翻到 processing
	stored, _ := repo.GetByID(ctx, claimed.ID)
	if stored.Status != model.JobStatusProcessing {
		t.Errorf("库中状态 = %s, want processing", stored.Status)
	}
}

func TestJobRepo_ClaimNext_PriorityFirst(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	normal := newPendingJob(1, 10, 0)
	urgent := newPendingJob(1, 11, 5)
	repo.Create(ctx, normal)
	repo.Create(ctx, urgent)

	claimed, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}
	if claimed.ID != urgent.ID {
		t.Errorf("高优先级任务应该先出队, got #%d want #%d", claimed.ID, urgent.ID)
	}
}

func TestJobRepo_ClaimNext_EmptyQueue(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)

	_, err := repo.ClaimNext(context.Background())
	if err != gorm.ErrRecordNotFound {
		t.Errorf("空队列应返回 ErrRecordNotFound, got %v", err)
	}
}

func TestJobRepo_MarkDone(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	job := newPendingJob(1, 10, 0)
	repo.Create(ctx, job)
	claimed, _ := repo.ClaimNext(ctx)

	if err := repo.MarkDone(ctx, claimed.ID); err != nil {
		t.Fatalf("MarkDone() error = %v", err)
	}

	stored, _ := repo.GetByID(ctx, claimed.ID)
	if stored.Status != model.JobStatusDone {
		t.Errorf("Status = %s, want done", stored.Status)
	}
	if stored.FinishedAt == nil {
		t.Error("FinishedAt 应该被设置")
	}
}

func TestJobRepo_MarkFailed_Requeue(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	job := newPendingJob(1, 10, 0)
	repo.Create(ctx, job)
	claimed, _ := repo.ClaimNext(ctx)

	// 第一次失败：未超出重试上限，应回到 pending
	if err := repo.MarkFailed(ctx, claimed.ID, "上游超时", true); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	stored, _ := repo.GetByID(ctx, claimed.ID)
	if stored.Status != model.JobStatusPending {
		t.Errorf("Status = %s, 未达重试上限应回到 pending", stored.Status)
	}
	if stored.ErrorMsg != "上游超时" {
		t.Errorf("ErrorMsg = %s, want 上游超时", stored.ErrorMsg)
	}
	if stored.Attempts != 1 {
		t.Errorf("Attempts = %d, 回队不应重置尝试计数", stored.Attempts)
	}
}

func TestJobRepo_MarkFailed_ExhaustedAttempts(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	job := newPendingJob(1, 10, 0)
	repo.Create(ctx, job)

	// 连续认领-失败直到打满重试上限
	for i := 0; i < model.DefaultMaxAttempts; i++ {
		claimed, err := repo.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("第 %d 次 ClaimNext() error = %v", i+1, err)
		}
		if err := repo.MarkFailed(ctx, claimed.ID, "持续失败", true); err != nil {
			t.Fatalf("第 %d 次 MarkFailed() error = %v", i+1, err)
		}
	}

	stored, _ := repo.GetByID(ctx, job.ID)
	if stored.Status != model.JobStatusFailed {
		t.Errorf("Status = %s, 打满重试后应落败", stored.Status)
	}
	if stored.Attempts != model.DefaultMaxAttempts {
		t.Errorf("Attempts = %d, want %d", stored.Attempts, model.DefaultMaxAttempts)
	}
}

func TestJobRepo_Cancel(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	job := newPendingJob(1, 10, 0)
	repo.Create(ctx, job)

	canceled, err := repo.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if !canceled {
		t.Error("pending 任务应该可以取消")
	}

	stored, _ := repo.GetByID(ctx, job.ID)
	if stored.Status != model.JobStatusCanceled {
		t.Errorf("Status = %s, want canceled", stored.Status)
	}
}

func TestJobRepo_Cancel_ProcessingRejected(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	job := newPendingJob(1, 10, 0)
	repo.Create(ctx, job)
	repo.ClaimNext(ctx)

	canceled, err := repo.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if canceled {
		t.Error("处理中的任务不应被取消")
	}
}

func TestJobRepo_Requeue_ResetsAttempts(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	job := newPendingJob(1, 10, 0)
	repo.Create(ctx, job)

	for i := 0; i < model.DefaultMaxAttempts; i++ {
		claimed, _ := repo.ClaimNext(ctx)
		repo.MarkFailed(ctx, claimed.ID, "持续失败", true)
	}

	if err := repo.Requeue(ctx, job.ID); err != nil {
		t.Fatalf("Requeue() error = %v", err)
	}

	stored, _ := repo.GetByID(ctx, job.ID)
	if stored.Status != model.JobStatusPending {
		t.Errorf("Status = %s, want pending", stored.Status)
	}
	if stored.Attempts != 0 {
		t.Errorf("Attempts = %d, 手动重试应重置计数", stored.Attempts)
	}
	if stored.ErrorMsg != "" {
		t.Errorf("ErrorMsg = %s, 应该被清空", stored.ErrorMsg)
	}
}

func TestJobRepo_CountByStatus(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		repo.Create(ctx, newPendingJob(1, 10, 0))
	}
	claimed, _ := repo.ClaimNext(ctx)
	repo.MarkDone(ctx, claimed.ID)

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if counts[model.JobStatusPending] != 2 {
		t.Errorf("pending = %d, want 2", counts[model.JobStatusPending])
	}
	if counts[model.JobStatusDone] != 1 {
		t.Errorf("done = %d, want 1", counts[model.JobStatusDone])
	}
}

func TestJobRepo_FindStaleProcessing(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	job := newPendingJob(1, 10, 0)
	repo.Create(ctx, job)
	repo.ClaimNext(ctx)

	// 把开始时间拨回一小时前，模拟 worker 崩溃残留
	staleTime := time.Now().Add(-time.Hour)
	db.Model(&model.GenerationJob{}).Where("id = ?", job.ID).Update("started_at", staleTime)

	stale, err := repo.FindStaleProcessing(ctx, time.Now().Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("FindStaleProcessing() error = %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("卡死任务数 = %d, want 1", len(stale))
	}
	if stale[0].ID != job.ID {
		t.Errorf("卡死任务 = #%d, want #%d", stale[0].ID, job.ID)
	}
}
