package repos

import (
	"context"
	"errors"
	"gorm.io/gorm"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

type DocRepo interface {
	// Upsert is the idempotency anchor for full-sync and webhook paths.
	// Identity resolution prefers the remote numeric id when present and
	// falls back to the structural uuid, so a provisional webhook record
	// and a later TOC record for the same document converge on one row.
	// All fields are replaced except created_at, which is preserved unless
	// it is currently null.
	Upsert(ctx context.Context, tx *gorm.DB, doc *types.Doc) (*types.Doc, error)

	// UpsertStructure updates only the structural column set (title, slug,
	// type, tree pointers, depth, updated_at, last_synced_at), inserting a
	// skeletal row when the node is unknown. Tree pointers are replaced
	// wholesale, never merged.
	UpsertStructure(ctx context.Context, tx *gorm.DB, doc *types.Doc) error

	GetByUUID(ctx context.Context, tx *gorm.DB, uuid string) (*types.Doc, error)
	GetByYuqueID(ctx context.Context, tx *gorm.DB, yuqueID int64) (*types.Doc, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Doc, error)
	ListByRepo(ctx context.Context, tx *gorm.DB, repoID int64) ([]*types.Doc, error)

	// ListStale returns the docs of a repo whose uuid is absent from
	// activeUUIDs, i.e. the pruning candidates after a TOC enumeration.
	ListStale(ctx context.Context, tx *gorm.DB, repoID int64, activeUUIDs []string) ([]*types.Doc, error)

	DeleteByUUIDs(ctx context.Context, tx *gorm.DB, repoID int64, uuids []string) (int64, error)
	DeleteByRepo(ctx context.Context, tx *gorm.DB, repoID int64) (int64, error)
	DeleteByYuqueID(ctx context.Context, tx *gorm.DB, yuqueID int64) (*types.Doc, error)
}

type docRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocRepo(db *gorm.DB, baseLog *logger.Logger) DocRepo {
	return &docRepo{db: db, log: baseLog.With("repo", "DocRepo")}
}

func (dr *docRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return dr.db
}

func (dr *docRepo) Upsert(ctx context.Context, tx *gorm.DB, doc *types.Doc) (*types.Doc, error) {
	transaction := dr.conn(tx)

	existing, err := dr.findExisting(ctx, transaction, doc)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if err := transaction.WithContext(ctx).Create(doc).Error; err != nil {
			return nil, err
		}
		return doc, nil
	}

	doc.ID = existing.ID
	if existing.CreatedAt != nil {
		doc.CreatedAt = existing.CreatedAt
	}
	if err := transaction.WithContext(ctx).Save(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

// findExisting resolves the stored row for an incoming node: remote id
// first, structural uuid second.
func (dr *docRepo) findExisting(ctx context.Context, transaction *gorm.DB, doc *types.Doc) (*types.Doc, error) {
	if doc.YuqueID != nil {
		found, err := dr.getBy(ctx, transaction, "yuque_id = ?", *doc.YuqueID)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}
	if doc.UUID != "" {
		return dr.getBy(ctx, transaction, "uuid = ?", doc.UUID)
	}
	return nil, nil
}

func (dr *docRepo) UpsertStructure(ctx context.Context, tx *gorm.DB, doc *types.Doc) error {
	transaction := dr.conn(tx)

	existing, err := dr.findExisting(ctx, transaction, doc)
	if err != nil {
		return err
	}

	if existing == nil {
		return transaction.WithContext(ctx).Create(doc).Error
	}

	updates := map[string]interface{}{
		"uuid":           doc.UUID,
		"repo_id":        doc.RepoID,
		"slug":           doc.Slug,
		"title":          doc.Title,
		"type":           doc.Type,
		"parent_uuid":    doc.ParentUUID,
		"prev_uuid":      doc.PrevUUID,
		"sibling_uuid":   doc.SiblingUUID,
		"child_uuid":     doc.ChildUUID,
		"depth":          doc.Depth,
		"updated_at":     doc.UpdatedAt,
		"last_synced_at": doc.LastSyncedAt,
	}
	if doc.YuqueID != nil {
		updates["yuque_id"] = *doc.YuqueID
	}
	return transaction.WithContext(ctx).
		Model(&types.Doc{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error
}

func (dr *docRepo) getBy(ctx context.Context, transaction *gorm.DB, query string, args ...interface{}) (*types.Doc, error) {
	var result types.Doc
	err := transaction.WithContext(ctx).Where(query, args...).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (dr *docRepo) GetByUUID(ctx context.Context, tx *gorm.DB, uuid string) (*types.Doc, error) {
	return dr.getBy(ctx, dr.conn(tx), "uuid = ?", uuid)
}

func (dr *docRepo) GetByYuqueID(ctx context.Context, tx *gorm.DB, yuqueID int64) (*types.Doc, error) {
	return dr.getBy(ctx, dr.conn(tx), "yuque_id = ?", yuqueID)
}

func (dr *docRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Doc, error) {
	return dr.getBy(ctx, dr.conn(tx), "slug = ?", slug)
}

func (dr *docRepo) ListByRepo(ctx context.Context, tx *gorm.DB, repoID int64) ([]*types.Doc, error) {
	var results []*types.Doc
	if err := dr.conn(tx).WithContext(ctx).
		Where("repo_id = ?", repoID).
		Order("depth, id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *docRepo) ListStale(ctx context.Context, tx *gorm.DB, repoID int64, activeUUIDs []string) ([]*types.Doc, error) {
	var results []*types.Doc
	q := dr.conn(tx).WithContext(ctx).Where("repo_id = ?", repoID)
	if len(activeUUIDs) > 0 {
		q = q.Where("uuid NOT IN ?", activeUUIDs)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *docRepo) DeleteByUUIDs(ctx context.Context, tx *gorm.DB, repoID int64, uuids []string) (int64, error) {
	if len(uuids) == 0 {
		return 0, nil
	}
	res := dr.conn(tx).WithContext(ctx).
		Where("repo_id = ? AND uuid IN ?", repoID, uuids).
		Delete(&types.Doc{})
	return res.RowsAffected, res.Error
}

func (dr *docRepo) DeleteByRepo(ctx context.Context, tx *gorm.DB, repoID int64) (int64, error) {
	res := dr.conn(tx).WithContext(ctx).
		Where("repo_id = ?", repoID).
		Delete(&types.Doc{})
	return res.RowsAffected, res.Error
}

func (dr *docRepo) DeleteByYuqueID(ctx context.Context, tx *gorm.DB, yuqueID int64) (*types.Doc, error) {
	transaction := dr.conn(tx)
	existing, err := dr.getBy(ctx, transaction, "yuque_id = ?", yuqueID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Delete(existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}
