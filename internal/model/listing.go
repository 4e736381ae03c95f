package model

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ==================== 常量 ====================

const (
	// 文案风格
	CopyStyleBrand  = "brandStyle"
	CopyStyleResale = "resaleStyle"

	// 联系方式类型
	ContactTypeLine  = "LINE"
	ContactTypeIG    = "IG"
	ContactTypeEmail = "Email"
	ContactTypeNone  = ""
)

// ==================== 草稿聚合 ====================

// OriginalImage 用户上传的原图
// Data 仅在会话内存中存在，序列化时只输出 Base64 + MimeType
type OriginalImage struct {
	Data     []byte `json:"-"`
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
}

// CopyText 双风格文案
type CopyText struct {
	BrandStyle  string `json:"brandStyle"`
	ResaleStyle string `json:"resaleStyle"`
}

// PriceHint AI 建议价格区间
type PriceHint struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contact 卖家联系方式
type Contact struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ListingDraft 上架草稿（单会话内唯一的可变聚合）
// 各阶段只做增量写入，不回收早期字段；重置时整体清空
type ListingDraft struct {
	OriginalImage     *OriginalImage `json:"originalImage,omitempty"`
	Candidates        []string       `json:"candidates,omitempty"`
	SelectedLabel     string         `json:"selectedLabel,omitempty"`
	OfficialURL       string         `json:"officialUrl,omitempty"`
	EnhancedImageURL  string         `json:"enhancedImageUrl,omitempty"`
	UsedFallback      bool           `json:"usedFallback,omitempty"`
	Copy              *CopyText      `json:"copy,omitempty"`
	SelectedCopyStyle string         `json:"selectedCopyStyle,omitempty"`
	PriceHint         *PriceHint     `json:"priceHint,omitempty"`
	Price             float64        `json:"price,omitempty"`
	Nickname          string         `json:"nickname,omitempty"`
	Contact           Contact        `json:"contact"`
	ShareSlug         string         `json:"shareSlug,omitempty"`
}

// ==================== 辅助方法 ====================

// HasImage 是否已上传原图
func (d ListingDraft) HasImage() bool {
	return d.OriginalImage != nil && (len(d.OriginalImage.Data) > 0 || d.OriginalImage.Base64 != "")
}

// HasCopy 是否已生成文案
func (d ListingDraft) HasCopy() bool {
	return d.Copy != nil && (d.Copy.BrandStyle != "" || d.Copy.ResaleStyle != "")
}

// DisplayText 根据选中风格返回展示文案，默认转售风格
func (d ListingDraft) DisplayText() string {
	if d.Copy == nil {
		return ""
	}
	if d.SelectedCopyStyle == CopyStyleBrand {
		return d.Copy.BrandStyle
	}
	return d.Copy.ResaleStyle
}

// ImageDataURI 原图的 data URI 形式（持久化前必须转换，二进制句柄不可序列化）
func (d ListingDraft) ImageDataURI() string {
	if d.OriginalImage == nil || d.OriginalImage.Base64 == "" {
		return ""
	}
	mime := d.OriginalImage.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, d.OriginalImage.Base64)
}

// DisplayImageURL 分享页展示用图：优先去背图，退回原图 data URI
func (d ListingDraft) DisplayImageURL() string {
	if d.EnhancedImageURL != "" {
		return d.EnhancedImageURL
	}
	return d.ImageDataURI()
}

// CanMaterialize 检查是否满足生成分享页的必填条件
func (d ListingDraft) CanMaterialize() error {
	if d.Price <= 0 {
		return errors.New("请填写大于 0 的售价")
	}
	if d.Nickname == "" {
		return errors.New("请填写昵称")
	}
	return nil
}

// ContactLink 根据联系方式类型生成跳转链接，类型为空时返回空
func (c Contact) ContactLink() string {
	if c.Value == "" {
		return ""
	}
	switch c.Type {
	case ContactTypeLine:
		return "https://line.me/ti/p/~" + c.Value
	case ContactTypeIG:
		return "https://instagram.com/" + c.Value
	case ContactTypeEmail:
		return "mailto:" + c.Value
	default:
		return ""
	}
}

// ==================== 数据库模型 ====================

// SharedListing 分享页记录：生成分享页时对草稿做一次性深拷贝快照
// 只写一次，按 slug 读取，从不更新；过期后由清理任务删除
type SharedListing struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `gorm:"index"`
	UpdatedAt time.Time      ``
	DeletedAt gorm.DeletedAt `gorm:"index"`
	Slug      string         `gorm:"size:64;uniqueIndex;not null;comment:分享标识"`
	Label     string         `gorm:"size:255;comment:商品名称"`
	Price     float64        `gorm:"comment:售价"`
	Nickname  string         `gorm:"size:64;comment:卖家昵称"`
	Snapshot  datatypes.JSON `gorm:"type:json;comment:草稿完整快照"`
	ExpiresAt time.Time      `gorm:"index;comment:过期时间"`
}

func (*SharedListing) TableName() string {
	return "shared_listings"
}

// Expired 是否已过期
func (l *SharedListing) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}
