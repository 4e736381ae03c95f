package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"selllink/internal/model"
)

// ==================== 兜底内容 ====================

// 后端完全不可用时的静态文案，保证向导永不卡死
const (
	fallbackResaleCopy = "這是轉售風格文案範例，請自行調整內容。"
	fallbackBrandCopy  = "這是品牌風格文案範例，請自行調整內容。"
)

// 价格建议兜底区间（TWD）
var fallbackPriceHint = model.PriceHint{Min: 500, Max: 1500}

// ==================== 服务 ====================

// CopyService 文案与价格建议服务
// 单后端能力：只走 Gemini，失败时降级为静态兜底内容，不向上抛错
type CopyService struct {
	ai *AIService
}

// NewCopyService 创建文案服务
func NewCopyService(ai *AIService) *CopyService {
	return &CopyService{ai: ai}
}

// ==================== 文案生成 ====================

// CopyRequest 文案生成入参
type CopyRequest struct {
	ItemName    string `json:"itemName" binding:"required"`
	Reason      string `json:"reason"`
	OfficialURL string `json:"officialUrl"`
}

func buildCopyPrompt(req CopyRequest) string {
	itemName := req.ItemName
	reason := req.Reason
	officialURL := req.OfficialURL
	if reason == "" {
		reason = "（未提供）"
	}
	if officialURL == "" {
		officialURL = "（沒有提供）"
	}

	return fmt.Sprintf(`你是一位幫台灣二手賣家寫商品文案的中文助手。
請根據以下資訊，輸出兩段文案：
- 商品名稱：%s
- AI 辨識依據說明：%s
- 官方商品連結：%s

1）「轉售風格」：像一般人賣二手商品的口吻，生活化、誠實說明使用狀況，約 80～120 字，繁體中文。
2）「品牌風格」：偏官方介紹，重點放在材質、設計與特色，約 80～120 字，繁體中文。

請只輸出 JSON，格式如下（不要加反引號、不要加說明文字）：
{
  "resell": "轉售風格文案",
  "brand": "品牌風格文案"
}`, itemName, reason, officialURL)
}

// GenerateCopy 生成双风格文案
// 永不返回错误：未配置或调用失败时返回静态兜底文案
func (s *CopyService) GenerateCopy(ctx context.Context, req CopyRequest) model.CopyText {
	if !s.ai.Config.Configured() {
		return model.CopyText{ResaleStyle: fallbackResaleCopy, BrandStyle: fallbackBrandCopy}
	}

	text, err := s.ai.GenerateText(ctx, buildCopyPrompt(req))
	if err != nil {
		log.Printf("[copy] 生成失败: %v", err)
		return model.CopyText{ResaleStyle: fallbackResaleCopy, BrandStyle: fallbackBrandCopy}
	}

	return ParseCopyText(text)
}

// copyWire 模型输出的 JSON 形态，兼容新旧字段名
type copyWire struct {
	Resell      string `json:"resell"`
	Resale      string `json:"resale"`
	ResaleStyle string `json:"resaleStyle"`
	Brand       string `json:"brand"`
	BrandStyle  string `json:"brandStyle"`
}

var reBlankLines = regexp.MustCompile(`\n{2,}`)

// ParseCopyText 解析文案输出
// 优先 JSON（兼容 resell/resale/resaleStyle 与 brand/brandStyle），
// 失败时按空行拆成两段，仍不足则逐字段补兜底
func ParseCopyText(text string) model.CopyText {
	text = strings.TrimSpace(text)
	result := model.CopyText{}

	if text != "" {
		var wire copyWire
		if err := json.Unmarshal([]byte(stripCodeFence(text)), &wire); err == nil {
			result.ResaleStyle = firstNonEmpty(wire.Resell, wire.Resale, wire.ResaleStyle)
			result.BrandStyle = firstNonEmpty(wire.Brand, wire.BrandStyle)
		} else {
			parts := splitParagraphs(text)
			if len(parts) > 0 {
				result.ResaleStyle = parts[0]
				result.BrandStyle = parts[0]
			}
			if len(parts) > 1 {
				result.BrandStyle = parts[1]
			}
		}
	}

	if result.ResaleStyle == "" {
		result.ResaleStyle = fallbackResaleCopy
	}
	if result.BrandStyle == "" {
		result.BrandStyle = fallbackBrandCopy
	}
	return result
}

func splitParagraphs(text string) []string {
	raw := reBlankLines.Split(text, -1)
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// stripCodeFence 去掉模型偶尔带上的 markdown 代码块包裹
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ==================== 价格建议 ====================

// SuggestPrice 根据商品名称建议二手售价区间
// 永不返回错误：未配置或调用失败时返回静态兜底区间
func (s *CopyService) SuggestPrice(ctx context.Context, itemName string) model.PriceHint {
	if !s.ai.Config.Configured() {
		return fallbackPriceHint
	}

	prompt := fmt.Sprintf(`Based on the product "%s", suggest a reasonable price range in TWD for selling it second-hand.
Output JSON only: {"min": number, "max": number}`, itemName)

	var hint model.PriceHint
	if err := s.ai.GenerateJSON(ctx, prompt, &hint); err != nil {
		log.Printf("[price] 建议失败: %v", err)
		return fallbackPriceHint
	}
	if hint.Min <= 0 || hint.Max <= 0 || hint.Max < hint.Min {
		return fallbackPriceHint
	}
	return hint
}
