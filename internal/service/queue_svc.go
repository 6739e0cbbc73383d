package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/limiter"
	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
	"scenergy_visualizer/pkg/utils"
)

// ==================== 错误 ====================

var (
	ErrFlowNotGeneratable = errors.New("当前状态的 Flow 不能发起生成")
	ErrFlowEmpty          = errors.New("Flow 未关联任何商品")
	ErrRateLimited        = errors.New("生成请求过于频繁")
	ErrJobNotCancelable   = errors.New("任务已开始处理，无法取消")
	ErrJobNotRetryable    = errors.New("只有失败的任务可以重试")
)

// ==================== 服务 ====================

// GenerationService 生成任务队列门面
// 入队、取消、重试、出队处理都走这里，worker 只负责轮询驱动
type GenerationService struct {
	uow         *repository.FlowUnitOfWork
	productRepo repository.ProductRepository
	settings    SettingsService
	ai          *AIService
	storage     *StorageService
	rateLimiter limiter.Limiter

	// 进度订阅管理
	subscribers     map[int64][]chan dto.ProgressEvent
	subscriberMutex sync.RWMutex
}

// NewGenerationService 创建生成任务服务
func NewGenerationService(
	uow *repository.FlowUnitOfWork,
	productRepo repository.ProductRepository,
	settings SettingsService,
	ai *AIService,
	storage *StorageService,
	rateLimiter limiter.Limiter,
) *GenerationService {
	return &GenerationService{
		uow:         uow,
		productRepo: productRepo,
		settings:    settings,
		ai:          ai,
		storage:     storage,
		rateLimiter: rateLimiter,
		subscribers: make(map[int64][]chan dto.ProgressEvent),
	}
}

// ==================== 进度订阅 ====================

// Subscribe 订阅 Flow 生成进度
func (s *GenerationService) Subscribe(flowID int64) chan dto.ProgressEvent {
	s.subscriberMutex.Lock()
	defer s.subscriberMutex.Unlock()

	ch := make(chan dto.ProgressEvent, 10)
	s.subscribers[flowID] = append(s.subscribers[flowID], ch)
	return ch
}

// Unsubscribe 取消订阅
func (s *GenerationService) Unsubscribe(flowID int64, ch chan dto.ProgressEvent) {
	s.subscriberMutex.Lock()
	defer s.subscriberMutex.Unlock()

	subs := s.subscribers[flowID]
	for i, sub := range subs {
		if sub == ch {
			s.subscribers[flowID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(s.subscribers[flowID]) == 0 {
		delete(s.subscribers, flowID)
	}
}

// notifyProgress 通知进度
func (s *GenerationService) notifyProgress(flowID int64, event dto.ProgressEvent) {
	s.subscriberMutex.RLock()
	defer s.subscriberMutex.RUnlock()

	for _, ch := range s.subscribers[flowID] {
		select {
		case ch <- event:
		default:
			// channel 已满，跳过
		}
	}
}

// ==================== 入队 ====================

// EnqueueForFlow 为 Flow 下每个商品入一个图片生成任务
// 入队时归并设置并快照，之后设置变更不影响已排队任务
func (s *GenerationService) EnqueueForFlow(ctx context.Context, flowID int64, priority int) (*dto.EnqueueResult, error) {
	flow, err := s.uow.Flows.GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if !flow.CanGenerate() {
		return nil, ErrFlowNotGeneratable
	}

	// 限流：每客户生成入队
	if s.rateLimiter != nil {
		key := fmt.Sprintf("client:%d:generate", flow.ClientID)
		decision, err := s.rateLimiter.Allow(ctx, key, limiter.RuleGenerate)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, fmt.Errorf("%w: %v 后重试", ErrRateLimited, decision.RetryAfter.Round(time.Second))
		}
	}

	// 短窗口幂等：重复点击只入一次队
	dedupeKey := fmt.Sprintf("flow:%d:enqueue", flowID)
	if _, dup := utils.GetCache(dedupeKey); dup {
		return nil, fmt.Errorf("Flow %d 的生成请求已在处理中", flowID)
	}

	links, err := s.uow.Products.GetByFlowID(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, ErrFlowEmpty
	}

	// 校验都过了才占幂等窗口，参数问题不该挡住纠正后的重试
	utils.SetCache(dedupeKey, "1", 10*time.Second)

	jobIDs := make([]int64, 0, len(links))
	err = s.uow.Transaction(ctx, func(tx *repository.FlowUnitOfWork) error {
		for _, link := range links {
			if link.Product == nil {
				continue
			}
			product := link.Product

			merged, err := s.settings.Resolve(ctx, flow, product.CategoryID)
			if err != nil {
				return err
			}
			snapshot, err := merged.Snapshot()
			if err != nil {
				return err
			}

			imageCount := merged.ImageCount
			if imageCount <= 0 {
				imageCount = 1
			}

			job := &model.GenerationJob{
				ClientID:         flow.ClientID,
				FlowID:           flowID,
				ProductID:        product.ID,
				JobType:          model.JobTypeImage,
				Status:           model.JobStatusPending,
				Priority:         priority,
				Prompt:           merged.BuildPrompt(product.Name),
				NegativePrompt:   merged.NegativePrompt(),
				ReferenceURL:     product.ReferenceImageURL(),
				ImageCount:       imageCount,
				SettingsSnapshot: snapshot,
			}
			if err := tx.Jobs.Create(ctx, job); err != nil {
				return err
			}
			jobIDs = append(jobIDs, job.ID)
		}

		return tx.Flows.UpdateStatus(ctx, flowID, model.FlowStatusGenerating)
	})
	if err != nil {
		return nil, err
	}

	s.notifyProgress(flowID, dto.ProgressEvent{
		FlowID:   flowID,
		Stage:    "queued",
		Progress: 5,
		Message:  fmt.Sprintf("已排队 %d 个生成任务", len(jobIDs)),
	})

	return &dto.EnqueueResult{
		JobIDs: jobIDs,
		FlowID: flowID,
		Status: model.FlowStatusGenerating,
	}, nil
}

// EnqueueEdit 为一张生成图入编辑任务
func (s *GenerationService) EnqueueEdit(ctx context.Context, req dto.EnqueueEditRequest) (*model.GenerationJob, error) {
	source, err := s.uow.Images.GetByID(ctx, req.SourceImageID)
	if err != nil {
		return nil, err
	}

	flow, err := s.uow.Flows.GetByID(ctx, source.FlowID)
	if err != nil {
		return nil, err
	}

	job := &model.GenerationJob{
		ClientID:      flow.ClientID,
		FlowID:        flow.ID,
		ProductID:     source.ProductID,
		JobType:       model.JobTypeEdit,
		Status:        model.JobStatusPending,
		Priority:      req.Priority,
		SourceImageID: source.ID,
		Instruction:   req.Instruction,
		ImageCount:    1,
	}
	if err := s.uow.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueVideo 以一张生成图为首帧入视频任务
func (s *GenerationService) EnqueueVideo(ctx context.Context, req dto.EnqueueVideoRequest) (*model.GenerationJob, error) {
	source, err := s.uow.Images.GetByID(ctx, req.SourceImageID)
	if err != nil {
		return nil, err
	}

	flow, err := s.uow.Flows.GetByID(ctx, source.FlowID)
	if err != nil {
		return nil, err
	}

	job := &model.GenerationJob{
		ClientID:      flow.ClientID,
		FlowID:        flow.ID,
		ProductID:     source.ProductID,
		JobType:       model.JobTypeVideo,
		Status:        model.JobStatusPending,
		Priority:      req.Priority,
		SourceImageID: source.ID,
		Instruction:   req.MotionPrompt,
		ImageCount:    1,
	}
	if err := s.uow.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ==================== 取消与重试 ====================

// CancelJob 取消排队中的任务
func (s *GenerationService) CancelJob(ctx context.Context, jobID int64) error {
	job, err := s.uow.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	canceled, err := s.uow.Jobs.Cancel(ctx, jobID)
	if err != nil {
		return err
	}
	if !canceled {
		return ErrJobNotCancelable
	}

	// 取消掉的可能是 Flow 最后一个未完成任务，之后不会再有 worker 来收尾
	s.finalizeFlowIfDone(ctx, job.FlowID)
	return nil
}

// RetryJob 手动重试失败的任务
func (s *GenerationService) RetryJob(ctx context.Context, jobID int64) error {
	job, err := s.uow.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.CanRetry() {
		return ErrJobNotRetryable
	}
	return s.uow.Jobs.Requeue(ctx, jobID)
}

// ==================== 出队处理 ====================

// ClaimNext 认领下一个任务，队列为空返回 (nil, nil)
func (s *GenerationService) ClaimNext(ctx context.Context) (*model.GenerationJob, error) {
	job, err := s.uow.Jobs.ClaimNext(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return job, err
}

// HandleJob 处理一个已认领的任务，按类型分发
// 失败时按重试上限决定回队还是落败
func (s *GenerationService) HandleJob(ctx context.Context, job *model.GenerationJob) {
	log.Printf("[Queue] 开始处理任务 #%d (type=%s, flow=%d, attempt=%d/%d)",
		job.ID, job.JobType, job.FlowID, job.Attempts, job.MaxAttempts)

	s.notifyProgress(job.FlowID, dto.ProgressEvent{
		FlowID:   job.FlowID,
		JobID:    job.ID,
		Stage:    "generating",
		Progress: 30,
		Message:  fmt.Sprintf("任务 #%d 生成中...", job.ID),
	})

	var err error
	switch job.JobType {
	case model.JobTypeImage:
		err = s.handleImageJob(ctx, job)
	case model.JobTypeEdit:
		err = s.handleEditJob(ctx, job)
	case model.JobTypeVideo:
		err = s.handleVideoJob(ctx, job)
	default:
		err = fmt.Errorf("未知任务类型: %s", job.JobType)
	}

	if err != nil {
		log.Printf("[Queue] 任务 #%d 失败: %v", job.ID, err)
		if markErr := s.uow.Jobs.MarkFailed(ctx, job.ID, err.Error(), true); markErr != nil {
			log.Printf("[Queue] 标记任务 #%d 失败状态出错: %v", job.ID, markErr)
		}
	} else {
		if markErr := s.uow.Jobs.MarkDone(ctx, job.ID); markErr != nil {
			log.Printf("[Queue] 标记任务 #%d 完成状态出错: %v", job.ID, markErr)
		}
	}

	s.finalizeFlowIfDone(ctx, job.FlowID)
}

// handleImageJob 图片生成：调 AI、落存储、写结果行
func (s *GenerationService) handleImageJob(ctx context.Context, job *model.GenerationJob) error {
	meta := CallMeta{ClientID: job.ClientID, FlowID: job.FlowID, JobID: job.ID}

	images, err := s.ai.GenerateImages(ctx, meta, ImageRequest{
		Prompt:         job.Prompt,
		NegativePrompt: job.NegativePrompt,
		ReferenceURL:   job.ReferenceURL,
		Count:          job.ImageCount,
	})
	if err != nil {
		return err
	}

	s.notifyProgress(job.FlowID, dto.ProgressEvent{
		FlowID:   job.FlowID,
		JobID:    job.ID,
		Stage:    "saving",
		Progress: 80,
		Message:  fmt.Sprintf("任务 #%d 保存 %d 张图片...", job.ID, len(images)),
	})

	rows := make([]model.GeneratedImage, 0, len(images))
	for i, imgData := range images {
		url, err := s.storage.SaveBase64(imgData, fmt.Sprintf("flow%d_job%d_%d", job.FlowID, job.ID, i))
		if err != nil {
			log.Printf("[Queue] 任务 #%d 第 %d 张图片上传失败: %v", job.ID, i+1, err)
			continue
		}
		rows = append(rows, model.GeneratedImage{
			FlowID:     job.FlowID,
			JobID:      job.ID,
			ProductID:  job.ProductID,
			ImageIndex: i,
			Prompt:     job.Prompt,
			StorageURL: url,
			Status:     model.ImageStatusReady,
		})
	}
	if len(rows) == 0 {
		return fmt.Errorf("所有图片上传均失败")
	}

	return s.uow.Images.CreateBatch(ctx, rows)
}

// handleEditJob 指令式编辑：源图 + 指令 -> 新图
func (s *GenerationService) handleEditJob(ctx context.Context, job *model.GenerationJob) error {
	source, err := s.uow.Images.GetByID(ctx, job.SourceImageID)
	if err != nil {
		return fmt.Errorf("读取源图失败: %w", err)
	}

	meta := CallMeta{ClientID: job.ClientID, FlowID: job.FlowID, JobID: job.ID}
	edited, err := s.ai.EditImage(ctx, meta, source.StorageURL, job.Instruction)
	if err != nil {
		return err
	}

	url, err := s.storage.SaveBase64(edited, fmt.Sprintf("flow%d_job%d_edit", job.FlowID, job.ID))
	if err != nil {
		return fmt.Errorf("上传编辑结果失败: %w", err)
	}

	return s.uow.Images.Create(ctx, &model.GeneratedImage{
		FlowID:     job.FlowID,
		JobID:      job.ID,
		ProductID:  job.ProductID,
		Prompt:     job.Instruction,
		StorageURL: url,
		Status:     model.ImageStatusReady,
	})
}

// handleVideoJob 视频生成：以源图为首帧
func (s *GenerationService) handleVideoJob(ctx context.Context, job *model.GenerationJob) error {
	source, err := s.uow.Images.GetByID(ctx, job.SourceImageID)
	if err != nil {
		return fmt.Errorf("读取首帧失败: %w", err)
	}

	meta := CallMeta{ClientID: job.ClientID, FlowID: job.FlowID, JobID: job.ID}
	videoBytes, err := s.ai.GenerateVideo(ctx, meta, job.Instruction, source.StorageURL)
	if err != nil {
		return err
	}

	url, err := s.storage.SaveVideo(ctx, videoBytes, fmt.Sprintf("flow%d_job%d", job.FlowID, job.ID))
	if err != nil {
		return fmt.Errorf("上传视频失败: %w", err)
	}

	// 视频结果也记在 generated_images 表，靠 MIME/URL 区分
	return s.uow.Images.Create(ctx, &model.GeneratedImage{
		FlowID:     job.FlowID,
		JobID:      job.ID,
		ProductID:  job.ProductID,
		Prompt:     job.Instruction,
		StorageURL: url,
		Status:     model.ImageStatusReady,
	})
}

// finalizeFlowIfDone 所有任务结束后推进 Flow 状态
// 有任何成功产出则进入 review，全军覆没标记 failed
func (s *GenerationService) finalizeFlowIfDone(ctx context.Context, flowID int64) {
	unfinished, err := s.uow.Jobs.CountUnfinishedByFlow(ctx, flowID)
	if err != nil || unfinished > 0 {
		return
	}

	images, err := s.uow.Images.GetByFlowID(ctx, flowID)
	if err != nil {
		return
	}

	status := model.FlowStatusReview
	message := "生成完成，等待评审"
	if len(images) == 0 {
		status = model.FlowStatusFailed
		message = "所有生成任务均失败"
	}

	if err := s.uow.Flows.UpdateStatus(ctx, flowID, status); err != nil {
		log.Printf("[Queue] 更新 Flow #%d 状态失败: %v", flowID, err)
		return
	}

	progress := 100
	stage := "done"
	if status == model.FlowStatusFailed {
		stage = "failed"
	}
	s.notifyProgress(flowID, dto.ProgressEvent{
		FlowID:   flowID,
		Stage:    stage,
		Progress: progress,
		Message:  message,
	})
}

// ==================== 统计 ====================

// QueueStats 队列深度统计
func (s *GenerationService) QueueStats(ctx context.Context) (*dto.QueueStatsResponse, error) {
	counts, err := s.uow.Jobs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.QueueStatsResponse{
		Pending:    counts[model.JobStatusPending],
		Processing: counts[model.JobStatusProcessing],
		Done:       counts[model.JobStatusDone],
		Failed:     counts[model.JobStatusFailed],
		Canceled:   counts[model.JobStatusCanceled],
	}, nil
}

// ListJobs 任务列表
func (s *GenerationService) ListJobs(ctx context.Context, filter repository.JobFilter) ([]model.GenerationJob, int64, error) {
	return s.uow.Jobs.List(ctx, filter)
}
