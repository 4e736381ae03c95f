package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ==================== 配置 ====================

// AIConfig AI 服务配置
type AIConfig struct {
	ApiKey      string
	TextModel   string
	VisionModel string
}

// Configured 是否已配置 API Key
func (c *AIConfig) Configured() bool {
	return c != nil && c.ApiKey != ""
}

// ==================== 服务 ====================

// AIService Gemini 调用封装
// 统一走 REST 接口，文本和多模态共用一套请求/解析逻辑
type AIService struct {
	Config *AIConfig
	client *http.Client
}

// NewAIService 创建 AI 服务
func NewAIService(cfg *AIConfig) *AIService {
	// 固定模型配置
	if cfg.TextModel == "" {
		cfg.TextModel = "gemini-2.5-flash"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "gemini-2.5-flash"
	}

	return &AIService{
		Config: cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// ==================== 文本生成 ====================

// GenerateText 纯文本生成，返回原始文本
func (s *AIService) GenerateText(ctx context.Context, prompt string) (string, error) {
	if !s.Config.Configured() {
		return "", fmt.Errorf("Gemini API Key 未配置")
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]interface{}{{"text": prompt}}},
		},
	}

	return s.call(ctx, s.Config.TextModel, reqBody)
}

// GenerateJSON 文本生成并强制 JSON 输出，结果反序列化到 out
func (s *AIService) GenerateJSON(ctx context.Context, prompt string, out interface{}) error {
	if !s.Config.Configured() {
		return fmt.Errorf("Gemini API Key 未配置")
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]interface{}{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
		},
	}

	text, err := s.call(ctx, s.Config.TextModel, reqBody)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("解析生成结果失败: %v, raw: %s", err, text)
	}
	return nil
}

// ==================== 多模态生成 ====================

// GenerateVisionText 图片 + 提示词生成文本
func (s *AIService) GenerateVisionText(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error) {
	if !s.Config.Configured() {
		return "", fmt.Errorf("Gemini API Key 未配置")
	}
	if len(imageData) == 0 {
		return "", fmt.Errorf("图片数据为空")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]interface{}{
				{"text": prompt},
				{"inline_data": map[string]interface{}{
					"mime_type": mimeType,
					"data":      base64.StdEncoding.EncodeToString(imageData),
				}},
			}},
		},
	}

	return s.call(ctx, s.Config.VisionModel, reqBody)
}

// ==================== 请求执行 ====================

// call 发起 generateContent 请求并提取首个文本 part
func (s *AIService) call(ctx context.Context, model string, reqBody map[string]interface{}) (string, error) {
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		model, s.Config.ApiKey)

	bodyBytes, _ := json.Marshal(reqBody)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Gemini API 错误 [%d]: %s", resp.StatusCode, string(respBody))
	}

	// 解析响应
	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
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
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}

	return "", fmt.Errorf("无生成结果")
}
