package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ==================== 下载 ====================

// DownloadFile 下载网络文件，返回数据和 Content-Type
func DownloadFile(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %v", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// DownloadImage 下载网络图片并返回字节切片
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	data, _, err := DownloadFile(ctx, url)
	return data, err
}

// ==================== 资产识别 ====================

// glbMagic GLB 容器头，见 glTF 2.0 规范
var glbMagic = []byte("glTF")

// DetectAssetKind 按文件头识别资产类型
// 返回 ("image"|"glb", contentType)，无法识别时返回 ("", "")
func DetectAssetKind(data []byte) (string, string) {
	if len(data) >= 4 && bytes.Equal(data[:4], glbMagic) {
		return "glb", "model/gltf-binary"
	}

	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return "image", contentType
	}
	return "", ""
}
