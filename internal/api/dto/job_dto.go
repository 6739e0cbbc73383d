package dto

// ==================== 请求 DTO ====================

// EnqueueEditRequest 图片编辑任务请求
type EnqueueEditRequest struct {
	SourceImageID int64  `json:"source_image_id" binding:"required"`
	Instruction   string `json:"instruction" binding:"required"`
	Priority      int    `json:"priority"`
}

// EnqueueVideoRequest 视频生成任务请求
type EnqueueVideoRequest struct {
	SourceImageID int64  `json:"source_image_id" binding:"required"`
	MotionPrompt  string `json:"motion_prompt"`
	Priority      int    `json:"priority"`
}

// ListJobsRequest 任务列表请求
type ListJobsRequest struct {
	ClientID int64  `form:"client_id"`
	FlowID   int64  `form:"flow_id"`
	Status   string `form:"status"`
	JobType  string `form:"job_type"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}

// ==================== 响应 DTO ====================

// JobVO 生成任务视图对象
type JobVO struct {
	ID          int64  `json:"id"`
	FlowID      int64  `json:"flow_id"`
	ProductID   int64  `json:"product_id"`
	JobType     string `json:"job_type"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	ErrorMsg    string `json:"error_msg,omitempty"`
	CreatedAt   string `json:"created_at"`
	StartedAt   string `json:"started_at,omitempty"`
	FinishedAt  string `json:"finished_at,omitempty"`
	DurationMs  int64  `json:"duration_ms,omitempty"`
}

// EnqueueResult 入队结果
type EnqueueResult struct {
	JobIDs []int64 `json:"job_ids"`
	FlowID int64   `json:"flow_id"`
	Status string  `json:"status"`
}

// QueueStatsResponse 队列统计响应
type QueueStatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Done       int64 `json:"done"`
	Failed     int64 `json:"failed"`
	Canceled   int64 `json:"canceled"`
}
