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

type ConversationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) error
	// CreateWithCap inserts conv only while the owner holds fewer than max
	// active conversations, reporting whether the insert happened. Check
	// and insert run in one transaction under a per-owner advisory lock,
	// so two racing creates cannot both squeeze past the cap.
	CreateWithCap(ctx context.Context, tx *gorm.DB, conv *types.Conversation, max int) (bool, error)
	// GetByID returns (nil, nil) when no row matches.
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Conversation, error)
	ListActiveByOwner(ctx context.Context, tx *gorm.DB, owner string) ([]*types.Conversation, error)
	CountActiveByOwner(ctx context.Context, tx *gorm.DB, owner string) (int64, error)
	// TransitionState moves id from one state to another and reports whether
	// the guarded update won. A false return means another writer got there
	// first, which is how concurrent duplicate deletes are fenced off.
	TransitionState(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.ConversationState) (bool, error)
	Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) error {
	return r.conn(tx).WithContext(ctx).Create(conv).Error
}

func (r *conversationRepo) CreateWithCap(ctx context.Context, tx *gorm.DB, conv *types.Conversation, max int) (bool, error) {
	created := false
	err := r.conn(tx).WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", conv.Owner).Error; err != nil {
			return err
		}
		var n int64
		if err := txn.Model(&types.Conversation{}).
			Where("owner = ? AND state = ?", conv.Owner, types.ConversationActive).
			Count(&n).Error; err != nil {
			return err
		}
		if n >= int64(max) {
			return nil
		}
		if err := txn.Create(conv).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *conversationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Conversation, error) {
	var conv types.Conversation
	if err := r.conn(tx).WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) ListActiveByOwner(ctx context.Context, tx *gorm.DB, owner string) ([]*types.Conversation, error) {
	var convs []*types.Conversation
	if err := r.conn(tx).WithContext(ctx).
		Where("owner = ? AND state = ?", owner, types.ConversationActive).
		Order("updated_at DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *conversationRepo) CountActiveByOwner(ctx context.Context, tx *gorm.DB, owner string) (int64, error) {
	var n int64
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.Conversation{}).
		Where("owner = ? AND state = ?", owner, types.ConversationActive).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *conversationRepo) TransitionState(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.ConversationState) (bool, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]interface{}{
			"state":      to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *conversationRepo) Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

func (r *conversationRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).Delete(&types.Conversation{}, "id = ?", id).Error
}
