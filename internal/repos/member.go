package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

type MemberRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, member *types.Member) (*types.Member, error)
	GetByYuqueID(ctx context.Context, tx *gorm.DB, yuqueID int64) (*types.Member, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Member, error)
}

type memberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return &memberRepo{db: db, log: baseLog.With("repo", "MemberRepo")}
}

func (mr *memberRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return mr.db
}

func (mr *memberRepo) Upsert(ctx context.Context, tx *gorm.DB, member *types.Member) (*types.Member, error) {
	transaction := mr.conn(tx)

	existing, err := mr.GetByYuqueID(ctx, transaction, member.YuqueID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := transaction.WithContext(ctx).Create(member).Error; err != nil {
			return nil, err
		}
		return member, nil
	}

	member.ID = existing.ID
	if err := transaction.WithContext(ctx).Save(member).Error; err != nil {
		return nil, err
	}
	return member, nil
}

func (mr *memberRepo) GetByYuqueID(ctx context.Context, tx *gorm.DB, yuqueID int64) (*types.Member, error) {
	var result types.Member
	err := mr.conn(tx).WithContext(ctx).Where("yuque_id = ?", yuqueID).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (mr *memberRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Member, error) {
	var results []*types.Member
	if err := mr.conn(tx).WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
