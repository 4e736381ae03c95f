package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"selllink/internal/model"
	"selllink/internal/repository"
)

// ==================== 错误 ====================

// ErrListingNotFound slug 无对应记录或记录已过期
var ErrListingNotFound = errors.New("分享页不存在或已过期")

// ==================== 服务 ====================

// ShareService 分享页固化服务
// 生成分享页时对草稿做一次性快照落库，此后草稿再怎么变都不影响已分享内容
type ShareService struct {
	repo repository.SharedListingRepository
	ttl  time.Duration
}

// NewShareService 创建分享服务
// ttl <= 0 时分享页默认保留 7 天
func NewShareService(repo repository.SharedListingRepository, ttl time.Duration) *ShareService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &ShareService{repo: repo, ttl: ttl}
}

// Materialize 把草稿固化为分享页记录，返回 slug
// 快照里图片以 data URI 存储，二进制句柄不落库
func (s *ShareService) Materialize(ctx context.Context, draft model.ListingDraft) (string, error) {
	if err := draft.CanMaterialize(); err != nil {
		return "", err
	}

	snapshot := draft
	if snapshot.OriginalImage != nil {
		img := *snapshot.OriginalImage
		img.Data = nil
		snapshot.OriginalImage = &img
	}

	// slug 先写进快照再序列化，公开页读到的草稿是完整的
	slug := newSlug()
	snapshot.ShareSlug = slug

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("序列化草稿失败: %v", err)
	}

	now := time.Now()
	record := &model.SharedListing{
		Slug:      slug,
		Label:     snapshot.SelectedLabel,
		Price:     snapshot.Price,
		Nickname:  snapshot.Nickname,
		Snapshot:  snapshotJSON,
		ExpiresAt: now.Add(s.ttl),
	}

	err = s.repo.Create(ctx, record)
	if errors.Is(err, repository.ErrDuplicateSlug) {
		// 时间戳+随机量极少撞车，撞了就换个 slug 再试一次
		slug = newSlug()
		snapshot.ShareSlug = slug
		if snapshotJSON, err = json.Marshal(snapshot); err != nil {
			return "", fmt.Errorf("序列化草稿失败: %v", err)
		}
		record = &model.SharedListing{
			Slug:      slug,
			Label:     snapshot.SelectedLabel,
			Price:     snapshot.Price,
			Nickname:  snapshot.Nickname,
			Snapshot:  snapshotJSON,
			ExpiresAt: now.Add(s.ttl),
		}
		err = s.repo.Create(ctx, record)
	}
	if err != nil {
		return "", fmt.Errorf("保存分享页失败: %v", err)
	}

	return slug, nil
}

// ShareView 公开页视图
type ShareView struct {
	Slug      string             `json:"slug"`
	Draft     model.ListingDraft `json:"draft"`
	CreatedAt time.Time          `json:"createdAt"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

// Resolve 按 slug 解析分享页
// 未找到和已过期统一返回 ErrListingNotFound
func (s *ShareService) Resolve(ctx context.Context, slug string) (*ShareView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrListingNotFound
	}

	record, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if record.Expired(time.Now()) {
		return nil, ErrListingNotFound
	}

	var draft model.ListingDraft
	if err := json.Unmarshal(record.Snapshot, &draft); err != nil {
		return nil, fmt.Errorf("快照损坏: %v", err)
	}

	return &ShareView{
		Slug:      record.Slug,
		Draft:     draft,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// ==================== slug 生成 ====================

// newSlug 毫秒时间戳 36 进制 + 随机尾缀
func newSlug() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	rand := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return ts + rand
}
