package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
)

// ==================== 配置 ====================

// AIConfig AI 服务配置
type AIConfig struct {
	ApiKey      string
	ImageModel  string
	VideoModel  string
	ImagenModel string
}

const (
	geminiBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	videoPollEvery   = 10 * time.Second
	videoPollTimeout = 5 * time.Minute

	// 单价，用于成本估算
	costPerImageUSD       = 0.039
	costPerVideoSecondUSD = 0.35
)

// ==================== 服务 ====================

type AIService struct {
	Config      *AIConfig
	Storage     *StorageService
	callLogRepo repository.AICallLogRepository
}

// NewAIService 创建 AI 服务
func NewAIService(cfg *AIConfig, storage *StorageService, callLogRepo repository.AICallLogRepository) *AIService {
	// 固定模型配置
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-3-pro-image-preview-2k"
	}
	if cfg.VideoModel == "" {
		cfg.VideoModel = "veo-3.1-generate-preview"
	}
	if cfg.ImagenModel == "" {
		cfg.ImagenModel = "imagen-3.0-generate-002"
	}

	return &AIService{
		Config:      cfg,
		Storage:     storage,
		callLogRepo: callLogRepo,
	}
}

// CallMeta 调用归属，用于写调用日志
type CallMeta struct {
	ClientID int64
	FlowID   int64
	JobID    int64
}

// ImageRequest 图片生成请求
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	ReferenceURL   string
	AspectRatio    string
	Count          int
	Seed           int64
}

// ==================== 图片生成 ====================

// GenerateImages 调用 Gemini 多模态能力生成图片
// Gemini 全部失败时降级到 Imagen，返回 Base64 编码的图片数据
func (s *AIService) GenerateImages(ctx context.Context, meta CallMeta, req ImageRequest) ([]string, error) {
	if s.Config.ApiKey == "" {
		return nil, fmt.Errorf("Gemini API Key 未配置")
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	start := time.Now()

	// 下载参考图片
	var referenceImageData []byte
	var referenceImageMimeType string
	if req.ReferenceURL != "" {
		data, mimeType, err := downloadImageData(ctx, req.ReferenceURL)
		if err != nil {
			log.Printf("[AI] 下载参考图片失败: %v, 继续使用纯文本生成", err)
		} else {
			referenceImageData = data
			referenceImageMimeType = mimeType
		}
	}

	fullPrompt := buildImagePrompt(req)

	images := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		imageData, err := s.callGeminiImageGeneration(ctx, fullPrompt, referenceImageData, referenceImageMimeType)
		if err != nil {
			log.Printf("[AI] 生成第 %d 张图片失败: %v", i+1, err)
			continue
		}
		images = append(images, imageData)

		// 避免请求过快
		if i < req.Count-1 {
			time.Sleep(500 * time.Millisecond)
		}
	}

	// Gemini 全部失败时走 Imagen 备选
	if len(images) == 0 {
		log.Printf("[AI] Gemini 生成全部失败，降级到 Imagen")
		fallback, err := s.generateWithImagen(ctx, fullPrompt, req)
		if err != nil {
			s.recordCall(meta, model.AICallTypeImage, s.Config.ImageModel, 0, 0, start, err)
			return nil, fmt.Errorf("所有图片生成均失败: %w", err)
		}
		images = fallback
	}

	s.recordCall(meta, model.AICallTypeImage, s.Config.ImageModel, len(images), 0, start, nil)
	return images, nil
}

func buildImagePrompt(req ImageRequest) string {
	prompt := fmt.Sprintf(`You are a professional product photographer.
Generate a high-quality product image based on the following description:

%s

Requirements:
- Professional studio lighting
- Clean, appealing composition
- High resolution, suitable for e-commerce
- Focus on product details and quality`, req.Prompt)

	if req.NegativePrompt != "" {
		prompt += fmt.Sprintf("\n\nAvoid at all costs: %s", req.NegativePrompt)
	}
	return prompt
}

// callGeminiImageGeneration 调用 Gemini 图片生成API
func (s *AIService) callGeminiImageGeneration(ctx context.Context, prompt string, referenceImage []byte, mimeType string) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		geminiBaseURL, s.Config.ImageModel, s.Config.ApiKey)

	parts := []map[string]interface{}{
		{"text": prompt},
	}

	// 如果有参考图片，添加到请求中
	if len(referenceImage) > 0 {
		parts = append(parts, map[string]interface{}{
			"inline_data": map[string]interface{}{
				"mime_type": mimeType,
				"data":      base64.StdEncoding.EncodeToString(referenceImage),
			},
		})
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": parts},
		},
		"generationConfig": map[string]interface{}{
			"responseModalities": []string{"TEXT", "IMAGE"},
		},
	}

	respBody, err := s.postJSON(ctx, url, reqBody, 60*time.Second)
	if err != nil {
		return "", err
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text       string `json:"text,omitempty"`
					InlineData *struct {
						MimeType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData,omitempty"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %v", err)
	}
	if geminiResp.Error != nil {
		return "", fmt.Errorf("API错误: %s", geminiResp.Error.Message)
	}

	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return part.InlineData.Data, nil
			}
		}
	}

	return "", fmt.Errorf("响应中未找到图片数据")
}

// ==================== 图片编辑 ====================

// EditImage 基于已有图片做指令式编辑，返回 Base64 编码的结果
func (s *AIService) EditImage(ctx context.Context, meta CallMeta, sourceURL, instruction string) (string, error) {
	if s.Config.ApiKey == "" {
		return "", fmt.Errorf("Gemini API Key 未配置")
	}

	start := time.Now()

	sourceData, mimeType, err := downloadImageData(ctx, sourceURL)
	if err != nil {
		s.recordCall(meta, model.AICallTypeEdit, s.Config.ImageModel, 0, 0, start, err)
		return "", fmt.Errorf("下载源图失败: %w", err)
	}

	prompt := fmt.Sprintf(`Edit the provided product image according to the following instruction.
Keep the product itself unchanged unless the instruction says otherwise.

Instruction: %s`, instruction)

	result, err := s.callGeminiImageGeneration(ctx, prompt, sourceData, mimeType)
	s.recordCall(meta, model.AICallTypeEdit, s.Config.ImageModel, 1, 0, start, err)
	if err != nil {
		return "", err
	}
	return result, nil
}

// ==================== 视频生成 ====================

// GenerateVideo 以一张生成图为首帧生成短视频
// 长耗时操作，内部轮询直到完成或超时，返回视频原始字节(MP4)
func (s *AIService) GenerateVideo(ctx context.Context, meta CallMeta, motionPrompt, firstFrameURL string) ([]byte, error) {
	if s.Config.ApiKey == "" {
		return nil, fmt.Errorf("Gemini API Key 未配置")
	}

	start := time.Now()

	frameData, mimeType, err := downloadImageData(ctx, firstFrameURL)
	if err != nil {
		s.recordCall(meta, model.AICallTypeVideo, s.Config.VideoModel, 0, 0, start, err)
		return nil, fmt.Errorf("下载首帧失败: %w", err)
	}

	// 发起长耗时操作
	url := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s",
		geminiBaseURL, s.Config.VideoModel, s.Config.ApiKey)

	reqBody := map[string]interface{}{
		"instances": []map[string]interface{}{
			{
				"prompt": motionPrompt,
				"image": map[string]interface{}{
					"bytesBase64Encoded": base64.StdEncoding.EncodeToString(frameData),
					"mimeType":           mimeType,
				},
			},
		},
		"parameters": map[string]interface{}{
			"numberOfVideos": 1,
		},
	}

	respBody, err := s.postJSON(ctx, url, reqBody, 60*time.Second)
	if err != nil {
		s.recordCall(meta, model.AICallTypeVideo, s.Config.VideoModel, 0, 0, start, err)
		return nil, err
	}

	var opResp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(respBody, &opResp); err != nil || opResp.Name == "" {
		err = fmt.Errorf("解析操作名失败: %v", err)
		s.recordCall(meta, model.AICallTypeVideo, s.Config.VideoModel, 0, 0, start, err)
		return nil, err
	}

	log.Printf("[AI] 视频生成操作已启动: %s", opResp.Name)

	videoURI, seconds, err := s.pollVideoOperation(ctx, opResp.Name)
	if err != nil {
		s.recordCall(meta, model.AICallTypeVideo, s.Config.VideoModel, 0, 0, start, err)
		return nil, err
	}

	videoBytes, err := s.downloadVideo(ctx, videoURI)
	if err != nil {
		s.recordCall(meta, model.AICallTypeVideo, s.Config.VideoModel, 0, 0, start, err)
		return nil, err
	}

	s.recordCall(meta, model.AICallTypeVideo, s.Config.VideoModel, 0, seconds, start, nil)
	log.Printf("[AI] 视频生成完成 (%d bytes)", len(videoBytes))
	return videoBytes, nil
}

// pollVideoOperation 轮询长耗时操作直到完成
func (s *AIService) pollVideoOperation(ctx context.Context, opName string) (string, int, error) {
	deadline := time.Now().Add(videoPollTimeout)
	pollCount := 0

	for {
		if time.Now().After(deadline) {
			return "", 0, fmt.Errorf("视频生成超时(%v, 已轮询 %d 次)", videoPollTimeout, pollCount)
		}

		select {
		case <-ctx.Done():
			return "", 0, fmt.Errorf("视频生成被取消: %w", ctx.Err())
		case <-time.After(videoPollEvery):
		}
		pollCount++

		url := fmt.Sprintf("%s/%s?key=%s", geminiBaseURL, opName, s.Config.ApiKey)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", 0, err
		}

		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Do(httpReq)
		if err != nil {
			return "", 0, fmt.Errorf("轮询失败(第 %d 次): %v", pollCount, err)
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", 0, fmt.Errorf("轮询错误 [%d]: %s", resp.StatusCode, string(respBody))
		}

		var opResp struct {
			Done  bool `json:"done"`
			Error *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
			Response *struct {
				GenerateVideoResponse struct {
					GeneratedSamples []struct {
						Video struct {
							URI             string `json:"uri"`
							DurationSeconds int    `json:"durationSeconds"`
						} `json:"video"`
					} `json:"generatedSamples"`
				} `json:"generateVideoResponse"`
			} `json:"response"`
		}
		if err := json.Unmarshal(respBody, &opResp); err != nil {
			return "", 0, fmt.Errorf("解析轮询响应失败: %v", err)
		}

		if !opResp.Done {
			continue
		}
		if opResp.Error != nil {
			return "", 0, fmt.Errorf("视频生成操作失败: %s", opResp.Error.Message)
		}
		if opResp.Response == nil || len(opResp.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
			return "", 0, fmt.Errorf("操作完成但响应中无视频(轮询 %d 次)", pollCount)
		}

		video := opResp.Response.GenerateVideoResponse.GeneratedSamples[0].Video
		seconds := video.DurationSeconds
		if seconds == 0 {
			seconds = 8
		}
		return video.URI, seconds, nil
	}
}

func (s *AIService) downloadVideo(ctx context.Context, uri string) ([]byte, error) {
	url := fmt.Sprintf("%s&key=%s", uri, s.Config.ApiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("下载视频失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载视频失败: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取视频数据失败: %v", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("下载的视频为空")
	}
	return data, nil
}

// ==================== Imagen API (备选方案) ====================

// generateWithImagen 使用 Imagen 生成图片
func (s *AIService) generateWithImagen(ctx context.Context, prompt string, req ImageRequest) ([]string, error) {
	url := fmt.Sprintf("%s/models/%s:predict?key=%s",
		geminiBaseURL, s.Config.ImagenModel, s.Config.ApiKey)

	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}

	parameters := map[string]interface{}{
		"sampleCount": req.Count,
		"aspectRatio": aspectRatio,
	}
	if req.NegativePrompt != "" {
		parameters["negativePrompt"] = req.NegativePrompt
	}
	if req.Seed != 0 {
		parameters["seed"] = req.Seed
	}

	reqBody := map[string]interface{}{
		"instances": []map[string]interface{}{
			{"prompt": prompt},
		},
		"parameters": parameters,
	}

	respBody, err := s.postJSON(ctx, url, reqBody, 120*time.Second)
	if err != nil {
		return nil, err
	}

	var imagenResp struct {
		Predictions []struct {
			BytesBase64Encoded string `json:"bytesBase64Encoded"`
			MimeType           string `json:"mimeType"`
		} `json:"predictions"`
	}

	if err := json.Unmarshal(respBody, &imagenResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %v", err)
	}

	images := make([]string, 0, len(imagenResp.Predictions))
	for _, pred := range imagenResp.Predictions {
		if pred.BytesBase64Encoded != "" {
			images = append(images, pred.BytesBase64Encoded)
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("Imagen 未返回图片")
	}

	return images, nil
}

// ==================== 调用日志 ====================

func (s *AIService) recordCall(meta CallMeta, callType, modelName string, imageCount, videoSeconds int, start time.Time, callErr error) {
	if s.callLogRepo == nil {
		return
	}

	entry := &model.AICallLog{
		ClientID:     meta.ClientID,
		FlowID:       meta.FlowID,
		JobID:        meta.JobID,
		CallType:     callType,
		ModelName:    modelName,
		ImageCount:   imageCount,
		VideoSeconds: videoSeconds,
		DurationMs:   time.Since(start).Milliseconds(),
		CostUSD:      float64(imageCount)*costPerImageUSD + float64(videoSeconds)*costPerVideoSecondUSD,
		Status:       model.AICallStatusSuccess,
	}
	if callErr != nil {
		entry.Status = model.AICallStatusFailed
		entry.ErrorMsg = callErr.Error()
		entry.CostUSD = 0
	}

	// 日志失败不影响主流程
	if err := s.callLogRepo.Create(context.Background(), entry); err != nil {
		log.Printf("[AI] 写调用日志失败: %v", err)
	}
}

// ==================== 工具函数 ====================

func (s *AIService) postJSON(ctx context.Context, url string, body map[string]interface{}, timeout time.Duration) ([]byte, error) {
	bodyBytes, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Gemini API 错误 [%d]: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func downloadImageData(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("下载失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("下载失败: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("读取失败: %v", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return data, mimeType, nil
}
