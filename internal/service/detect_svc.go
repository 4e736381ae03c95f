package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"selllink/pkg/utils"
)

// ==================== 配置 ====================

// DetectConfig 商品辨识后端配置
type DetectConfig struct {
	EdgeURL string // 边缘函数地址，优先于直连
	Timeout int    // 秒，0 取默认
}

// LabelUnrecognized 辨识不到商品时的兜底候选
const LabelUnrecognized = "未辨識到商品"

// maxCandidates 候选名称上限
const maxCandidates = 3

// ==================== 服务 ====================

// detectProvider 单个辨识后端：图片进、原始候选出
type detectProvider interface {
	Name() string
	Detect(ctx context.Context, imageData []byte, mimeType string) ([]string, error)
}

// DetectService 商品辨识服务
// 启动时按配置优先级解析出唯一后端，请求期不再做"是否配置"判断；
// 后端失败不向上抛错，统一降级为兜底候选
type DetectService struct {
	provider detectProvider
}

// NewDetectService 创建辨识服务
// 后端优先级：边缘函数 > Gemini 直连；都未配置时 provider 为空
func NewDetectService(cfg *DetectConfig, ai *AIService) *DetectService {
	svc := &DetectService{}

	switch {
	case cfg != nil && cfg.EdgeURL != "":
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30
		}
		svc.provider = newEdgeDetectProvider(cfg.EdgeURL, timeout)
	case ai != nil && ai.Config.Configured():
		svc.provider = &geminiDetectProvider{ai: ai}
	}

	return svc
}

// ProviderName 当前使用的后端名，未配置时为空
func (s *DetectService) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Detect 辨识图片中的商品，返回规范化后的候选名称
// 仅在完全未配置后端时返回错误；后端调用失败降级为兜底候选
func (s *DetectService) Detect(ctx context.Context, imageData []byte, mimeType string) ([]string, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("未配置商品辨识后端")
	}

	raw, err := s.provider.Detect(ctx, imageData, mimeType)
	if err != nil {
		log.Printf("[detect] 后端 %s 调用失败: %v", s.provider.Name(), err)
		return []string{LabelUnrecognized}, nil
	}

	items := NormalizeLabels(raw)
	if len(items) == 0 {
		items = []string{LabelUnrecognized}
	}
	return items, nil
}

// ==================== 名称清洗 ====================

var (
	reLeadingMarks   = regexp.MustCompile(`^[\d\-•\.\s]+`)
	reWrappingParens = regexp.MustCompile(`^\((.*)\)$`)
	reSlash          = regexp.MustCompile(`[／/]`)
	reReasonPrefix   = regexp.MustCompile(`^(原因：|根據.*?[，,]\s*|因為.*?[，,]\s*)`)
)

// NormalizeLabels 清洗和规范化商品名称列表
// 去掉编号、包裹括号、斜杠后段和说明前缀，过滤过短项，去重并截断
func NormalizeLabels(rawItems []string) []string {
	out := make([]string, 0, maxCandidates)
	seen := make(map[string]struct{})

	for _, item := range rawItems {
		s := strings.TrimSpace(item)
		// 去掉開頭的編號、符號（1.、- 、• 之類）
		s = reLeadingMarks.ReplaceAllString(s, "")
		// 去掉包在 () 裡的一整串
		s = reWrappingParens.ReplaceAllString(s, "$1")
		// 如果裡面有「 / 」就只取第一段
		s = strings.TrimSpace(reSlash.Split(s, 2)[0])
		// 去掉開頭的「原因：」「根據...」等說明文字
		s = strings.TrimSpace(reReasonPrefix.ReplaceAllString(s, ""))

		if len([]rune(s)) < 2 {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == maxCandidates {
			break
		}
	}

	return out
}

// ==================== 边缘函数后端 ====================

// edgeDetectResponse 边缘函数返回格式
type edgeDetectResponse struct {
	Ok    bool     `json:"ok"`
	Items []string `json:"items"`
	Error string   `json:"error"`
}

type edgeDetectProvider struct {
	url    string
	client *resty.Client
}

func newEdgeDetectProvider(url string, timeoutSec int) *edgeDetectProvider {
	client := resty.New().
		SetTimeout(timeoutDuration(timeoutSec)).
		SetRetryCount(0)
	return &edgeDetectProvider{url: url, client: client}
}

func (p *edgeDetectProvider) Name() string { return "edge" }

func (p *edgeDetectProvider) Detect(ctx context.Context, imageData []byte, mimeType string) ([]string, error) {
	dataURI := utils.BuildDataURI(utils.EncodeImage(imageData), mimeType)

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"imageBase64": dataURI}).
		Post(p.url)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %v", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	// 边缘函数偶尔不带 application/json 头，直接按字节解
	var result edgeDetectResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析响应失败: %v", err)
	}
	if !result.Ok {
		return nil, fmt.Errorf("后端返回失败: %s", result.Error)
	}
	return result.Items, nil
}

// ==================== Gemini 直连后端 ====================

const detectPrompt = `請你根據圖片判斷商品的可能名稱，給我三個候選。

輸出格式：
- 儘量用繁體中文
- 不要解釋
- 不要加 Markdown
- 只輸出 JSON，格式如下：
{"items": ["選項一", "選項二", "選項三"]}

重要：每個選項只能是商品名稱，不要包含原因說明、標點符號 ()、/、- 之前的修飾語。`

type geminiDetectProvider struct {
	ai *AIService
}

func (p *geminiDetectProvider) Name() string { return "gemini" }

func (p *geminiDetectProvider) Detect(ctx context.Context, imageData []byte, mimeType string) ([]string, error) {
	text, err := p.ai.GenerateVisionText(ctx, detectPrompt, imageData, mimeType)
	if err != nil {
		return nil, err
	}
	return parseDetectText(text), nil
}

// parseDetectText 解析模型输出：优先 JSON，失败时按分隔符拆分
func parseDetectText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if items, ok := tryParseItemsJSON(text); ok {
		return items
	}

	// JSON 解析失敗，將文字按逗號或換行拆成最多三個選項
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ',' || r == '，' || r == '；'
	})
	items := make([]string, 0, maxCandidates)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
			if len(items) == maxCandidates {
				break
			}
		}
	}
	if len(items) == 0 {
		items = []string{text}
	}
	return items
}

// tryParseItemsJSON 尝试按裸数组或 {"items": [...]} 两种 JSON 形态解析
func tryParseItemsJSON(text string) ([]string, bool) {
	var arr []string
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return arr, true
	}
	var obj struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj.Items != nil {
		return obj.Items, true
	}
	return nil, false
}

func timeoutDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
