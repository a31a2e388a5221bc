package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sevanet-labs/sevabot-backend/internal/logger"
	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, doc *types.Document) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error)
	// GetByScopeAndHash returns (nil, nil) when no row matches.
	GetByScopeAndHash(ctx context.Context, tx *gorm.DB, scope, hash string) (*types.Document, error)
	ListByScope(ctx context.Context, tx *gorm.DB, scope string) ([]*types.Document, error)
	CountByScope(ctx context.Context, tx *gorm.DB, scope string) (int64, error)
	MarkIndexed(ctx context.Context, tx *gorm.DB, id uuid.UUID, chunkCount int, at time.Time) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, doc *types.Document) error {
	return r.conn(tx).WithContext(ctx).Create(doc).Error
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error) {
	var doc types.Document
	if err := r.conn(tx).WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) GetByScopeAndHash(ctx context.Context, tx *gorm.DB, scope, hash string) (*types.Document, error) {
	var doc types.Document
	err := r.conn(tx).WithContext(ctx).
		Where("owner_scope = ? AND content_hash = ?", scope, hash).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) ListByScope(ctx context.Context, tx *gorm.DB, scope string) ([]*types.Document, error) {
	var docs []*types.Document
	if err := r.conn(tx).WithContext(ctx).
		Where("owner_scope = ?", scope).
		Order("uploaded_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepo) CountByScope(ctx context.Context, tx *gorm.DB, scope string) (int64, error) {
	var n int64
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.Document{}).
		Where("owner_scope = ?", scope).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *documentRepo) MarkIndexed(ctx context.Context, tx *gorm.DB, id uuid.UUID, chunkCount int, at time.Time) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"chunk_count": chunkCount,
			"indexed_at":  at,
		}).Error
}

func (r *documentRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).Delete(&types.Document{}, "id = ?", id).Error
}
