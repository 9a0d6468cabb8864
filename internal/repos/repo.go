package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

type RepoRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, repo *types.Repo) (*types.Repo, error)
	GetByYuqueID(ctx context.Context, tx *gorm.DB, yuqueID int64) (*types.Repo, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Repo, error)
	DeleteByYuqueID(ctx context.Context, tx *gorm.DB, yuqueID int64) (int64, error)
}

type repoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepoRepo(db *gorm.DB, baseLog *logger.Logger) RepoRepo {
	return &repoRepo{db: db, log: baseLog.With("repo", "RepoRepo")}
}

func (rr *repoRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return rr.db
}

func (rr *repoRepo) Upsert(ctx context.Context, tx *gorm.DB, repo *types.Repo) (*types.Repo, error) {
	transaction := rr.conn(tx)

	existing, err := rr.GetByYuqueID(ctx, transaction, repo.YuqueID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := transaction.WithContext(ctx).Create(repo).Error; err != nil {
			return nil, err
		}
		return repo, nil
	}

	repo.ID = existing.ID
	if existing.CreatedAt != nil {
		repo.CreatedAt = existing.CreatedAt
	}
	if err := transaction.WithContext(ctx).Save(repo).Error; err != nil {
		return nil, err
	}
	return repo, nil
}

func (rr *repoRepo) GetByYuqueID(ctx context.Context, tx *gorm.DB, yuqueID int64) (*types.Repo, error) {
	var result types.Repo
	err := rr.conn(tx).WithContext(ctx).Where("yuque_id = ?", yuqueID).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (rr *repoRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Repo, error) {
	var results []*types.Repo
	if err := rr.conn(tx).WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *repoRepo) DeleteByYuqueID(ctx context.Context, tx *gorm.DB, yuqueID int64) (int64, error) {
	res := rr.conn(tx).WithContext(ctx).
		Where("yuque_id = ?", yuqueID).
		Delete(&types.Repo{})
	return res.RowsAffected, res.Error
}
