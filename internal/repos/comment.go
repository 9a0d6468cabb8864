package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

type CommentRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, comment *types.Comment) (*types.Comment, error)
	ListByDoc(ctx context.Context, tx *gorm.DB, docID int64) ([]*types.Comment, error)
}

type commentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommentRepo(db *gorm.DB, baseLog *logger.Logger) CommentRepo {
	return &commentRepo{db: db, log: baseLog.With("repo", "CommentRepo")}
}

func (cr *commentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return cr.db
}

func (cr *commentRepo) Upsert(ctx context.Context, tx *gorm.DB, comment *types.Comment) (*types.Comment, error) {
	transaction := cr.conn(tx)

	var existing types.Comment
	err := transaction.WithContext(ctx).Where("yuque_id = ?", comment.YuqueID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := transaction.WithContext(ctx).Create(comment).Error; err != nil {
			return nil, err
		}
		return comment, nil
	}
	if err != nil {
		return nil, err
	}

	comment.ID = existing.ID
	if existing.CreatedAt != nil {
		comment.CreatedAt = existing.CreatedAt
	}
	if err := transaction.WithContext(ctx).Save(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

func (cr *commentRepo) ListByDoc(ctx context.Context, tx *gorm.DB, docID int64) ([]*types.Comment, error) {
	var results []*types.Comment
	if err := cr.conn(tx).WithContext(ctx).
		Where("doc_id = ?", docID).
		Order("created_at").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
