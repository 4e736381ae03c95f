package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"selllink/internal/model"
)

// ==================== 仓储接口 ====================

// SharedListingRepository 分享页记录仓储接口
type SharedListingRepository interface {
	Create(ctx context.Context, listing *model.SharedListing) error
	GetBySlug(ctx context.Context, slug string) (*model.SharedListing, error)
	DeleteBySlug(ctx context.Context, slug string) error

	// 过期清理相关
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ErrDuplicateSlug slug 唯一索引冲突
var ErrDuplicateSlug = errors.New("slug 已存在")

// ==================== 仓储实现 ====================

type sharedListingRepo struct {
	db *gorm.DB
}

// NewSharedListingRepository 创建分享页仓储
func NewSharedListingRepository(db *gorm.DB) SharedListingRepository {
	return &sharedListingRepo{db: db}
}

func (r *sharedListingRepo) Create(ctx context.Context, listing *model.SharedListing) error {
	err := r.db.WithContext(ctx).Create(listing).Error
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	return err
}

func (r *sharedListingRepo) GetBySlug(ctx context.Context, slug string) (*model.SharedListing, error) {
	var listing model.SharedListing
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *sharedListingRepo) DeleteBySlug(ctx context.Context, slug string) error {
	return r.db.WithContext(ctx).Where("slug = ?", slug).Delete(&model.SharedListing{}).Error
}

func (r *sharedListingRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at < ?", time.Time{}, before).
		Delete(&model.SharedListing{})
	return result.RowsAffected, result.Error
}

// isUniqueViolation 各驱动的唯一约束错误没有统一类型，按错误文本判断
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
}
