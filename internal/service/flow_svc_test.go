package service

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
)

func setupFlowTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(
		&model.Product{}, &model.ProductAsset{},
		&model.Flow{}, &model.FlowProduct{},
		&model.GenerationJob{}, &model.GeneratedImage{},
	)
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}

	return db
}

func newFlowService(t *testing.T) (*FlowService, *repository.FlowUnitOfWork, repository.ProductRepository) {
	db := setupFlowTestDB(t)
	uow := repository.NewFlowUnitOfWork(db)
	productRepo := repository.NewProductRepository(db)
	return NewFlowService(uow, productRepo), uow, productRepo
}

func seedProduct(t *testing.T, repo repository.ProductRepository, name string) *model.Product {
	p := &model.Product{
		ClientID: 1,
		Name:     name,
		Source:   model.ProductSourceUpload,
		Status:   model.ProductStatusActive,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("写入商品失败: %v", err)
	}
	return p
}

func TestFlowService_CreateFlow_WithProducts(t *testing.T) {
	svc, uow, productRepo := newFlowService(t)
	ctx := context.Background()

	p1 := seedProduct(t, productRepo, "陶瓷花瓶")
	p2 := seedProduct(t, productRepo, "藤编吊灯")

	flow, err := svc.CreateFlow(ctx, dto.CreateFlowRequest{
		ClientID:   1,
		Name:       "秋季新品",
		ProductIDs: []int64{p1.ID, p2.ID},
	})
	if err != nil {
		t.Fatalf("CreateFlow() error = %v", err)
	}

	if flow.Status != model.FlowStatusDraft {
		t.Errorf("新建 Flow 状态 = %s, want draft", flow.Status)
	}

	links, err := uow.Products.GetByFlowID(ctx, flow.ID)
	if err != nil {
		t.Fatalf("查询关联失败: %v", err)
	}
	if len(links) != 2 {
		t.Errorf("关联商品数 = %d, want 2", len(links))
	}
}

func TestFlowService_AttachProducts_FlowMissing(t *testing.T) {
	svc, _, productRepo := newFlowService(t)
	ctx := context.Background()

	p := seedProduct(t, productRepo, "陶瓷花瓶")

	err := svc.AttachProducts(ctx, 999, []int64{p.ID})
	if err != gorm.ErrRecordNotFound {
		t.Errorf("向不存在的 Flow 追加商品应报 ErrRecordNotFound, got %v", err)
	}
}

func TestFlowService_Complete_OnlyFromReview(t *testing.T) {
	svc, uow, _ := newFlowService(t)
	ctx := context.Background()

	flow, err := svc.CreateFlow(ctx, dto.CreateFlowRequest{ClientID: 1, Name: "测试"})
	if err != nil {
		t.Fatalf("CreateFlow() error = %v", err)
	}

	// draft 状态不能收尾
	if err := svc.Complete(ctx, flow.ID); err != ErrFlowNotInReview {
		t.Errorf("draft 状态收尾应报 ErrFlowNotInReview, got %v", err)
	}

	// review 状态可以收尾
	uow.Flows.UpdateStatus(ctx, flow.ID, model.FlowStatusReview)
	if err := svc.Complete(ctx, flow.ID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	stored, _ := uow.Flows.GetByID(ctx, flow.ID)
	if stored.Status != model.FlowStatusDone {
		t.Errorf("Status = %s, want done", stored.Status)
	}
}

func TestFlowService_SetImageSelected_DiscardedRejected(t *testing.T) {
	svc, uow, _ := newFlowService(t)
	ctx := context.Background()

	img := &model.GeneratedImage{
		FlowID:     1,
		StorageURL: "https://example.com/a.png",
		Status:     model.ImageStatusReady,
	}
	if err := uow.Images.Create(ctx, img); err != nil {
		t.Fatalf("写入图片失败: %v", err)
	}

	if err := svc.SetImageSelected(ctx, img.ID, true); err != nil {
		t.Fatalf("SetImageSelected() error = %v", err)
	}
	stored, _ := uow.Images.GetByID(ctx, img.ID)
	if !stored.Selected {
		t.Error("图片应被选中")
	}

	// 废弃后不允许再操作选中
	if err := svc.DiscardImage(ctx, img.ID); err != nil {
		t.Fatalf("DiscardImage() error = %v", err)
	}
	if err := svc.SetImageSelected(ctx, img.ID, false); err != ErrImageDiscarded {
		t.Errorf("废弃图片的选中操作应报 ErrImageDiscarded, got %v", err)
	}
}

func TestFlowService_Delete_RemovesImages(t *testing.T) {
	svc, uow, _ := newFlowService(t)
	ctx := context.Background()

	flow, _ := svc.CreateFlow(ctx, dto.CreateFlowRequest{ClientID: 1, Name: "待删除"})
	uow.Images.Create(ctx, &model.GeneratedImage{FlowID: flow.ID, StorageURL: "https://example.com/a.png"})
	uow.Images.Create(ctx, &model.GeneratedImage{FlowID: flow.ID, StorageURL: "https://example.com/b.png"})

	if err := svc.Delete(ctx, flow.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := uow.Flows.GetByID(ctx, flow.ID); err != gorm.ErrRecordNotFound {
		t.Errorf("Flow 应已删除, err = %v", err)
	}
	images, _ := uow.Images.GetByFlowID(ctx, flow.ID)
	if len(images) != 0 {
		t.Errorf("生成图片记录应随 Flow 删除, 剩余 %d", len(images))
	}
}

func TestFlowService_GetDetail(t *testing.T) {
	svc, uow, productRepo := newFlowService(t)
	ctx := context.Background()

	p := seedProduct(t, productRepo, "陶瓷花瓶")
	flow, _ := svc.CreateFlow(ctx, dto.CreateFlowRequest{
		ClientID:   1,
		Name:       "详情测试",
		ProductIDs: []int64{p.ID},
	})
	uow.Images.Create(ctx, &model.GeneratedImage{
		FlowID:     flow.ID,
		ProductID:  p.ID,
		StorageURL: "https://example.com/a.png",
		Status:     model.ImageStatusReady,
	})
	uow.Jobs.Create(ctx, &model.GenerationJob{
		ClientID: 1, FlowID: flow.ID, ProductID: p.ID,
		JobType: model.JobTypeImage, Status: model.JobStatusDone,
	})

	detail, err := svc.GetDetail(ctx, flow.ID)
	if err != nil {
		t.Fatalf("GetDetail() error = %v", err)
	}

	if detail.Flow.Name != "详情测试" {
		t.Errorf("Flow.Name = %s", detail.Flow.Name)
	}
	if len(detail.Products) != 1 || detail.Products[0].Name != "陶瓷花瓶" {
		t.Errorf("Products = %+v, 应带出商品名", detail.Products)
	}
	if len(detail.Images) != 1 {
		t.Errorf("Images 数量 = %d, want 1", len(detail.Images))
	}
	if len(detail.Jobs) != 1 {
		t.Errorf("Jobs 数量 = %d, want 1", len(detail.Jobs))
	}
}
