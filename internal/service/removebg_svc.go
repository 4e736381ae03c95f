package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/go-resty/resty/v2"

	"selllink/pkg/utils"
)

// ==================== 配置 ====================

// RemoveBgConfig 去背后端配置
// 三种后端按 EdgeURL > ProxyURL > ClipDropKey 的优先级取首个已配置项
type RemoveBgConfig struct {
	EdgeURL     string // 边缘函数：JSON 进、JSON(base64) 出
	ProxyURL    string // 自建代理：multipart 进、JSON(url) 出
	ClipDropKey string // ClipDrop 直连：二进制进、二进制出
	Timeout     int    // 秒，0 取默认
}

// ==================== 结果 ====================

// BackendCallResult 去背调用的统一结果
// URL 与 Base64 至少有一个非空；UsedFallback 表示后端失败、内容为原图
type BackendCallResult struct {
	URL          string `json:"url,omitempty"`
	Base64       string `json:"base64,omitempty"`
	MimeType     string `json:"mimeType"`
	UsedFallback bool   `json:"usedFallback"`
	Provider     string `json:"provider,omitempty"`
}

// DataURI 结果的 data URI 形式，仅 Base64 结果有效
func (r BackendCallResult) DataURI() string {
	if r.Base64 == "" {
		return ""
	}
	return utils.BuildDataURI(r.Base64, r.MimeType)
}

// ==================== 服务 ====================

// removeBgProvider 单个去背后端：图片进、解码后的统一结果出
// 每个后端自带线格式解码器，形态判断不外泄到业务层
type removeBgProvider interface {
	Name() string
	Remove(ctx context.Context, imageData []byte, mimeType string) (BackendCallResult, error)
}

// RemoveBgService 图片去背服务
// 每次请求只尝试启动时选定的唯一后端，失败直接回退原图，不做跨后端重试
type RemoveBgService struct {
	provider removeBgProvider
	storage  *StorageService
}

// NewRemoveBgService 创建去背服务
// storage 可为空；非空时成功结果会上传托管，分享页拿到稳定 URL
func NewRemoveBgService(cfg *RemoveBgConfig, storage *StorageService) *RemoveBgService {
	svc := &RemoveBgService{storage: storage}

	timeout := 60
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	switch {
	case cfg != nil && cfg.EdgeURL != "":
		svc.provider = newEdgeRemoveBgProvider(cfg.EdgeURL, timeout)
	case cfg != nil && cfg.ProxyURL != "":
		svc.provider = newProxyRemoveBgProvider(cfg.ProxyURL, timeout)
	case cfg != nil && cfg.ClipDropKey != "":
		svc.provider = newClipDropProvider(cfg.ClipDropKey, timeout)
	}

	return svc
}

// ProviderName 当前使用的后端名，未配置时为空
func (s *RemoveBgService) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// RemoveBackground 去除图片背景
// 永不返回错误：后端未配置或调用失败时回退为原图 base64 并标记 UsedFallback
func (s *RemoveBgService) RemoveBackground(ctx context.Context, imageData []byte, mimeType string) BackendCallResult {
	if mimeType == "" {
		mimeType = utils.DetectMimeType(imageData)
	}

	if s.provider == nil {
		return s.fallback(imageData, mimeType, "")
	}

	result, err := s.provider.Remove(ctx, imageData, mimeType)
	if err != nil {
		log.Printf("[remove-bg] 后端 %s 调用失败: %v", s.provider.Name(), err)
		return s.fallback(imageData, mimeType, s.provider.Name())
	}
	result.Provider = s.provider.Name()

	// 有托管存储时把 base64 结果转成稳定 URL，失败不影响主结果
	if s.storage != nil && result.Base64 != "" && result.URL == "" {
		if url, err := s.storage.SaveBase64(result.Base64, "removebg"); err != nil {
			log.Printf("[remove-bg] 结果上传失败: %v", err)
		} else {
			result.URL = url
		}
	}

	return result
}

func (s *RemoveBgService) fallback(imageData []byte, mimeType, provider string) BackendCallResult {
	return BackendCallResult{
		Base64:       utils.EncodeImage(imageData),
		MimeType:     mimeType,
		UsedFallback: true,
		Provider:     provider,
	}
}

// ==================== 边缘函数后端 ====================
// 线格式：请求 {imageBase64, mimeType}，响应 {success, base64, mimeType}
// 或旧版 {success, data: "data:...;base64,..."}

type edgeRemoveBgResponse struct {
	Success  bool   `json:"success"`
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
	Message  string `json:"message"`
	Error    string `json:"error"`
}

type edgeRemoveBgProvider struct {
	url    string
	client *resty.Client
}

func newEdgeRemoveBgProvider(url string, timeoutSec int) *edgeRemoveBgProvider {
	return &edgeRemoveBgProvider{
		url:    url,
		client: resty.New().SetTimeout(timeoutDuration(timeoutSec)),
	}
}

func (p *edgeRemoveBgProvider) Name() string { return "edge" }

func (p *edgeRemoveBgProvider) Remove(ctx context.Context, imageData []byte, mimeType string) (BackendCallResult, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"imageBase64": utils.EncodeImage(imageData),
			"mimeType":    mimeType,
		}).
		Post(p.url)
	if err != nil {
		return BackendCallResult{}, fmt.Errorf("请求失败: %v", err)
	}
	if resp.StatusCode() != 200 {
		return BackendCallResult{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	var result edgeRemoveBgResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return BackendCallResult{}, fmt.Errorf("解析响应失败: %v", err)
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = result.Error
		}
		return BackendCallResult{}, fmt.Errorf("后端返回失败: %s", msg)
	}

	// 旧版字段：data URI 放在 data 里
	if result.Base64 == "" && result.Data != "" {
		data, mime := utils.ExtractBase64Payload(result.Data)
		result.Base64 = data
		if result.MimeType == "" {
			result.MimeType = mime
		}
	}
	if result.Base64 == "" {
		return BackendCallResult{}, fmt.Errorf("响应缺少图片数据")
	}
	if result.MimeType == "" {
		result.MimeType = "image/png"
	}

	return BackendCallResult{Base64: result.Base64, MimeType: result.MimeType}, nil
}

// ==================== 自建代理后端 ====================
// 线格式：multipart 字段 image_file，响应 {success, url}，url 为代理站内相对路径

type proxyRemoveBgResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type proxyRemoveBgProvider struct {
	baseURL string
	client  *resty.Client
}

func newProxyRemoveBgProvider(baseURL string, timeoutSec int) *proxyRemoveBgProvider {
	return &proxyRemoveBgProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  resty.New().SetTimeout(timeoutDuration(timeoutSec)),
	}
}

func (p *proxyRemoveBgProvider) Name() string { return "proxy" }

func (p *proxyRemoveBgProvider) Remove(ctx context.Context, imageData []byte, mimeType string) (BackendCallResult, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetFileReader("image_file", "image"+extensionForMime(mimeType), bytes.NewReader(imageData)).
		Post(p.baseURL + "/api/remove-bg")
	if err != nil {
		return BackendCallResult{}, fmt.Errorf("请求失败: %v", err)
	}
	if resp.StatusCode() != 200 {
		return BackendCallResult{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	var result proxyRemoveBgResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return BackendCallResult{}, fmt.Errorf("解析响应失败: %v", err)
	}
	if !result.Success || result.URL == "" {
		msg := result.Message
		if msg == "" {
			msg = result.Error
		}
		return BackendCallResult{}, fmt.Errorf("后端返回失败: %s", msg)
	}

	url := result.URL
	if strings.HasPrefix(url, "/") {
		url = p.baseURL + url
	}
	return BackendCallResult{URL: url, MimeType: "image/png"}, nil
}

// ==================== ClipDrop 直连后端 ====================
// 线格式：请求体为图片原始字节，成功时响应体即为去背后的图片流

const clipDropCleanupURL = "https://clipdrop-api.co/cleanup/v1"

type clipDropProvider struct {
	apiKey string
	url    string
	client *resty.Client
}

func newClipDropProvider(apiKey string, timeoutSec int) *clipDropProvider {
	return &clipDropProvider{
		apiKey: apiKey,
		url:    clipDropCleanupURL,
		client: resty.New().SetTimeout(timeoutDuration(timeoutSec)),
	}
}

func (p *clipDropProvider) Name() string { return "clipdrop" }

func (p *clipDropProvider) Remove(ctx context.Context, imageData []byte, mimeType string) (BackendCallResult, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetHeader("x-api-key", p.apiKey).
		SetBody(imageData).
		Post(p.url)
	if err != nil {
		return BackendCallResult{}, fmt.Errorf("请求失败: %v", err)
	}
	if resp.StatusCode() != 200 {
		return BackendCallResult{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	body := resp.Body()
	if len(body) == 0 {
		return BackendCallResult{}, fmt.Errorf("响应体为空")
	}

	resultMime := resp.Header().Get("Content-Type")
	if resultMime == "" || !strings.HasPrefix(resultMime, "image/") {
		resultMime = "image/png"
	}

	return BackendCallResult{
		Base64:   utils.EncodeImage(body),
		MimeType: resultMime,
	}, nil
}

// extensionForMime 常见图片 MIME 对应的扩展名
func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
