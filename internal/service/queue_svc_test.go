package service

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
)

func setupQueueTestDB(t *testing.T) *gorm.DB {
	// 入队逻辑在事务内通过根连接查询设置，普通 :memory: 下每个连接
	// 是独立的空库，这里用具名共享内存库让所有连接看到同一份数据
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(
		&model.Product{}, &model.ProductAsset{},
		&model.Flow{}, &model.FlowProduct{},
		&model.GenerationJob{}, &model.GeneratedImage{},
		&model.SettingProfile{}, &model.Bubble{},
	)
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}

	return db
}

func newQueueService(t *testing.T) (*GenerationService, *repository.FlowUnitOfWork, repository.ProductRepository) {
	db := setupQueueTestDB(t)
	uow := repository.NewFlowUnitOfWork(db)
	productRepo := repository.NewProductRepository(db)
	settings := NewSettingsService(
		repository.NewSettingProfileRepository(db),
		repository.NewBubbleRepository(db),
		uow.Flows,
	)
	svc := NewGenerationService(uow, productRepo, settings, nil, nil, nil)
	return svc, uow, productRepo
}

func seedGeneratingFlow(t *testing.T, uow *repository.FlowUnitOfWork, clientID int64) *model.Flow {
	flow := &model.Flow{ClientID: clientID, Name: "生成中", Status: model.FlowStatusGenerating}
	if err := uow.Flows.Create(context.Background(), flow); err != nil {
		t.Fatalf("写入 Flow 失败: %v", err)
	}
	return flow
}

func seedPendingJob(t *testing.T, uow *repository.FlowUnitOfWork, flow *model.Flow) *model.GenerationJob {
	job := &model.GenerationJob{
		ClientID:  flow.ClientID,
		FlowID:    flow.ID,
		ProductID: 1,
		JobType:   model.JobTypeImage,
		Status:    model.JobStatusPending,
	}
	if err := uow.Jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("写入任务失败: %v", err)
	}
	return job
}

func TestGenerationService_CancelJob_FinalizesFlow(t *testing.T) {
	svc, uow, _ := newQueueService(t)
	ctx := context.Background()

	flow := seedGeneratingFlow(t, uow, 1)
	uow.Images.Create(ctx, &model.GeneratedImage{
		FlowID:     flow.ID,
		StorageURL: "https://example.com/a.png",
		Status:     model.ImageStatusReady,
	})
	job := seedPendingJob(t, uow, flow)

	// 取消的是最后一个未完成任务，之后不会再有 worker 碰这个 Flow
	if err := svc.CancelJob(ctx, job.ID); err != nil {
		t.Fatalf("CancelJob() error = %v", err)
	}

	stored, _ := uow.Jobs.GetByID(ctx, job.ID)
	if stored.Status != model.JobStatusCanceled {
		t.Errorf("任务状态 = %s, want canceled", stored.Status)
	}

	updated, _ := uow.Flows.GetByID(ctx, flow.ID)
	if updated.Status != model.FlowStatusReview {
		t.Errorf("Flow 状态 = %s, 有产出时取消收尾应进入 review", updated.Status)
	}
}

func TestGenerationService_CancelJob_NoOutputFails(t *testing.T) {
	svc, uow, _ := newQueueService(t)
	ctx := context.Background()

	flow := seedGeneratingFlow(t, uow, 1)
	job := seedPendingJob(t, uow, flow)

	if err := svc.CancelJob(ctx, job.ID); err != nil {
		t.Fatalf("CancelJob() error = %v", err)
	}

	// 没有任何产出，Flow 不能停在 generating，否则永远无法再发起生成
	updated, _ := uow.Flows.GetByID(ctx, flow.ID)
	if updated.Status != model.FlowStatusFailed {
		t.Errorf("Flow 状态 = %s, want failed", updated.Status)
	}
}

func TestGenerationService_CancelJob_OthersStillPending(t *testing.T) {
	svc, uow, _ := newQueueService(t)
	ctx := context.Background()

	flow := seedGeneratingFlow(t, uow, 1)
	first := seedPendingJob(t, uow, flow)
	seedPendingJob(t, uow, flow)

	if err := svc.CancelJob(ctx, first.ID); err != nil {
		t.Fatalf("CancelJob() error = %v", err)
	}

	updated, _ := uow.Flows.GetByID(ctx, flow.ID)
	if updated.Status != model.FlowStatusGenerating {
		t.Errorf("还有任务未完成，Flow 状态 = %s, 应保持 generating", updated.Status)
	}
}

func TestGenerationService_CancelJob_ProcessingRejected(t *testing.T) {
	svc, uow, _ := newQueueService(t)
	ctx := context.Background()

	flow := seedGeneratingFlow(t, uow, 1)
	seedPendingJob(t, uow, flow)
	claimed, err := uow.Jobs.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}

	if err := svc.CancelJob(ctx, claimed.ID); !errors.Is(err, ErrJobNotCancelable) {
		t.Errorf("处理中的任务取消应报 ErrJobNotCancelable, got %v", err)
	}

	// 拒绝取消时不应动 Flow 状态
	updated, _ := uow.Flows.GetByID(ctx, flow.ID)
	if updated.Status != model.FlowStatusGenerating {
		t.Errorf("Flow 状态 = %s, 应保持 generating", updated.Status)
	}
}

func TestGenerationService_EnqueueForFlow_EmptyFlowDoesNotBlockRetry(t *testing.T) {
	svc, uow, productRepo := newQueueService(t)
	ctx := context.Background()

	flow := &model.Flow{ClientID: 1, Name: "空 Flow", Status: model.FlowStatusDraft}
	if err := uow.Flows.Create(ctx, flow); err != nil {
		t.Fatalf("写入 Flow 失败: %v", err)
	}

	if _, err := svc.EnqueueForFlow(ctx, flow.ID, 0); !errors.Is(err, ErrFlowEmpty) {
		t.Fatalf("空 Flow 入队应报 ErrFlowEmpty, got %v", err)
	}

	// 补上商品后立即重试，不应被幂等窗口挡住
	p := seedProduct(t, productRepo, "陶瓷花瓶")
	if err := uow.Products.Attach(ctx, flow.ID, []int64{p.ID}); err != nil {
		t.Fatalf("关联商品失败: %v", err)
	}

	result, err := svc.EnqueueForFlow(ctx, flow.ID, 0)
	if err != nil {
		t.Fatalf("纠正后的入队应成功, got %v", err)
	}
	if len(result.JobIDs) != 1 {
		t.Errorf("入队任务数 = %d, want 1", len(result.JobIDs))
	}

	updated, _ := uow.Flows.GetByID(ctx, flow.ID)
	if updated.Status != model.FlowStatusGenerating {
		t.Errorf("Flow 状态 = %s, want generating", updated.Status)
	}
}
