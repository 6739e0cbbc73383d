package service

import (
	"context"
	"errors"
	"time"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
)

// ==================== 错误 ====================

var (
	ErrFlowNotInReview = errors.New("只有评审中的 Flow 可以收尾")
	ErrImageDiscarded  = errors.New("图片已废弃")
)

// ==================== 服务 ====================

// FlowService Flow 管理服务
type FlowService struct {
	uow         *repository.FlowUnitOfWork
	productRepo repository.ProductRepository
}

// NewFlowService 创建 Flow 服务
func NewFlowService(uow *repository.FlowUnitOfWork, productRepo repository.ProductRepository) *FlowService {
	return &FlowService{
		uow:         uow,
		productRepo: productRepo,
	}
}

// ==================== Flow 管理 ====================

// CreateFlow 创建 Flow 并关联初始商品
func (s *FlowService) CreateFlow(ctx context.Context, req dto.CreateFlowRequest) (*model.Flow, error) {
	flow := &model.Flow{
		ClientID:     req.ClientID,
		CollectionID: req.CollectionID,
		SceneID:      req.SceneID,
		Name:         req.Name,
		Status:       model.FlowStatusDraft,
	}

	err := s.uow.Transaction(ctx, func(tx *repository.FlowUnitOfWork) error {
		if err := tx.Flows.Create(ctx, flow); err != nil {
			return err
		}
		return tx.Products.Attach(ctx, flow.ID, req.ProductIDs)
	})
	if err != nil {
		return nil, err
	}
	return flow, nil
}

// AttachProducts 向 Flow 追加商品
func (s *FlowService) AttachProducts(ctx context.Context, flowID int64, productIDs []int64) error {
	if _, err := s.uow.Flows.GetByID(ctx, flowID); err != nil {
		return err
	}
	return s.uow.Products.Attach(ctx, flowID, productIDs)
}

// DetachProduct 从 Flow 移除商品
func (s *FlowService) DetachProduct(ctx context.Context, flowID, productID int64) error {
	return s.uow.Products.Detach(ctx, flowID, productID)
}

// ListFlows Flow 列表
func (s *FlowService) ListFlows(ctx context.Context, req dto.ListFlowsRequest) ([]dto.FlowListItem, int64, error) {
	flows, total, err := s.uow.Flows.List(ctx, repository.FlowFilter{
		ClientID:     req.ClientID,
		CollectionID: req.CollectionID,
		Status:       req.Status,
		Page:         req.Page,
		PageSize:     req.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	items := make([]dto.FlowListItem, 0, len(flows))
	for _, f := range flows {
		items = append(items, dto.FlowListItem{
			ID:           f.ID,
			Name:         f.Name,
			ClientID:     f.ClientID,
			CollectionID: f.CollectionID,
			SceneID:      f.SceneID,
			Status:       f.Status,
			CreatedAt:    f.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, total, nil
}

// GetDetail Flow 详情：商品、生成结果、任务一次带出
func (s *FlowService) GetDetail(ctx context.Context, flowID int64) (*dto.FlowDetailResponse, error) {
	flow, err := s.uow.Flows.GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	links, err := s.uow.Products.GetByFlowID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	images, err := s.uow.Images.GetByFlowID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	jobs, err := s.uow.Jobs.GetByFlowID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	resp := &dto.FlowDetailResponse{
		Flow: &dto.FlowVO{
			ID:           flow.ID,
			Name:         flow.Name,
			ClientID:     flow.ClientID,
			CollectionID: flow.CollectionID,
			SceneID:      flow.SceneID,
			Status:       flow.Status,
			ErrorMessage: flow.ErrorMessage,
			CreatedAt:    flow.CreatedAt.Format(time.RFC3339),
			UpdatedAt:    flow.UpdatedAt.Format(time.RFC3339),
		},
		Products: make([]dto.FlowProductVO, 0, len(links)),
		Images:   make([]dto.GeneratedImageVO, 0, len(images)),
		Jobs:     make([]dto.JobVO, 0, len(jobs)),
	}

	for _, link := range links {
		vo := dto.FlowProductVO{
			ProductID: link.ProductID,
			SortOrder: link.SortOrder,
		}
		if link.Product != nil {
			vo.Name = link.Product.Name
			vo.SKU = link.Product.SKU
			vo.CategoryID = link.Product.CategoryID
			if a := link.Product.PrimaryAsset(model.AssetKindImage); a != nil {
				vo.ImageURL = a.StorageURL
			}
			if a := link.Product.PrimaryAsset(model.AssetKindGLB); a != nil {
				vo.GLBURL = a.StorageURL
			}
		}
		resp.Products = append(resp.Products, vo)
	}

	for _, img := range images {
		resp.Images = append(resp.Images, dto.GeneratedImageVO{
			ID:           img.ID,
			JobID:        img.JobID,
			ProductID:    img.ProductID,
			ImageIndex:   img.ImageIndex,
			StorageURL:   img.StorageURL,
			ThumbnailURL: img.ThumbnailURL,
			Width:        img.Width,
			Height:       img.Height,
			Status:       img.Status,
			Selected:     img.Selected,
		})
	}

	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, JobToVO(&job))
	}

	return resp, nil
}

// Delete 删除 Flow 及其生成结果记录
func (s *FlowService) Delete(ctx context.Context, flowID int64) error {
	return s.uow.Transaction(ctx, func(tx *repository.FlowUnitOfWork) error {
		if err := tx.Images.DeleteByFlowID(ctx, flowID); err != nil {
			return err
		}
		return tx.Flows.Delete(ctx, flowID)
	})
}

// ==================== 评审 ====================

// SetImageSelected 设置图片选中标记
func (s *FlowService) SetImageSelected(ctx context.Context, imageID int64, selected bool) error {
	img, err := s.uow.Images.GetByID(ctx, imageID)
	if err != nil {
		return err
	}
	if img.Discarded {
		return ErrImageDiscarded
	}
	return s.uow.Images.SetSelected(ctx, imageID, selected)
}

// DiscardImage 废弃图片，文件由清理任务异步删除
func (s *FlowService) DiscardImage(ctx context.Context, imageID int64) error {
	return s.uow.Images.MarkDiscarded(ctx, imageID)
}

// Complete 评审收尾，Flow 进入 done
func (s *FlowService) Complete(ctx context.Context, flowID int64) error {
	flow, err := s.uow.Flows.GetByID(ctx, flowID)
	if err != nil {
		return err
	}
	if flow.Status != model.FlowStatusReview {
		return ErrFlowNotInReview
	}
	return s.uow.Flows.UpdateStatus(ctx, flowID, model.FlowStatusDone)
}

// ==================== 视图转换 ====================

// JobToVO 任务模型转视图对象
func JobToVO(job *model.GenerationJob) dto.JobVO {
	vo := dto.JobVO{
		ID:          job.ID,
		FlowID:      job.FlowID,
		ProductID:   job.ProductID,
		JobType:     job.JobType,
		Status:      job.Status,
		Priority:    job.Priority,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		ErrorMsg:    job.ErrorMsg,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		vo.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.FinishedAt != nil {
		vo.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	if d := job.Duration(); d > 0 {
		vo.DurationMs = d.Milliseconds()
	}
	return vo
}
