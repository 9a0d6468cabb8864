package repos

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Doc{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newDoc(uuid string, yuqueID *int64) *types.Doc {
	return &types.Doc{
		UUID:         uuid,
		YuqueID:      yuqueID,
		RepoID:       10,
		Slug:         "slug-" + uuid,
		Title:        "Title " + uuid,
		Type:         types.DocTypeDoc,
		LastSyncedAt: time.Now().UTC(),
	}
}

func int64p(v int64) *int64 { return &v }

func TestDocUpsertCreatesThenUpdates(t *testing.T) {
	dr := NewDocRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	first, err := dr.Upsert(ctx, nil, newDoc("a1", int64p(101)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated := newDoc("a1", int64p(101))
	updated.Title = "Renamed"
	updated.Body = "body"
	second, err := dr.Upsert(ctx, nil, updated)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("update must reuse row, got ids %d / %d", first.ID, second.ID)
	}

	stored, err := dr.GetByUUID(ctx, nil, "a1")
	if err != nil || stored == nil {
		t.Fatalf("get: doc=%v err=%v", stored, err)
	}
	if stored.Title != "Renamed" || stored.Body != "body" {
		t.Fatalf("fields not replaced: %+v", stored)
	}
}

func TestDocUpsertResolvesByRemoteIDFirst(t *testing.T) {
	dr := NewDocRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	// Provisional row from a webhook: same remote id, different uuid.
	if _, err := dr.Upsert(ctx, nil, newDoc("webhook-101", int64p(101))); err != nil {
		t.Fatalf("seed: %v", err)
	}

	canonical := newDoc("a1", int64p(101))
	if _, err := dr.Upsert(ctx, nil, canonical); err != nil {
		t.Fatalf("upsert canonical: %v", err)
	}

	docs, err := dr.ListByRepo(ctx, nil, 10)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("want single converged row got %d", len(docs))
	}
	stored, err := dr.GetByYuqueID(ctx, nil, 101)
	if err != nil || stored == nil {
		t.Fatalf("get: doc=%v err=%v", stored, err)
	}
	if stored.UUID != "a1" {
		t.Fatalf("want canonical uuid a1 got %q", stored.UUID)
	}
}

func TestDocUpsertFallsBackToUUID(t *testing.T) {
	dr := NewDocRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	// TITLE nodes never carry a remote id; uuid is the only key.
	title := newDoc("t1", nil)
	title.Type = types.DocTypeTitle
	if _, err := dr.Upsert(ctx, nil, title); err != nil {
		t.Fatalf("create: %v", err)
	}

	renamed := newDoc("t1", nil)
	renamed.Type = types.DocTypeTitle
	renamed.Title = "Renamed chapter"
	if _, err := dr.Upsert(ctx, nil, renamed); err != nil {
		t.Fatalf("update: %v", err)
	}

	docs, err := dr.ListByRepo(ctx, nil, 10)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("want 1 row got %d", len(docs))
	}
}

func TestDocUpsertPreservesCreatedAt(t *testing.T) {
	dr := NewDocRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	original := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := newDoc("a1", int64p(101))
	doc.CreatedAt = &original
	if _, err := dr.Upsert(ctx, nil, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	later := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	replay := newDoc("a1", int64p(101))
	replay.CreatedAt = &later
	if _, err := dr.Upsert(ctx, nil, replay); err != nil {
		t.Fatalf("replay: %v", err)
	}

	stored, err := dr.GetByUUID(ctx, nil, "a1")
	if err != nil || stored == nil {
		t.Fatalf("get: doc=%v err=%v", stored, err)
	}
	if stored.CreatedAt == nil || !stored.CreatedAt.Equal(original) {
		t.Fatalf("want created_at %v got %v", original, stored.CreatedAt)
	}
}

func TestDocUpsertBackfillsNullCreatedAt(t *testing.T) {
	dr := NewDocRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	if _, err := dr.Upsert(ctx, nil, newDoc("a1", int64p(101))); err != nil {
		t.Fatalf("create: %v", err)
	}

	backfill := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	replay := newDoc("a1", int64p(101))
	replay.CreatedAt = &backfill
	if _, err := dr.Upsert(ctx, nil, replay); err != nil {
		t.Fatalf("replay: %v", err)
	}

	stored, err := dr.GetByUUID(ctx, nil, "a1")
	if err != nil || stored == nil {
		t.Fatalf("get: doc=%v err=%v", stored, err)
	}
	if stored.CreatedAt == nil || !stored.CreatedAt.Equal(backfill) {
		t.Fatalf("null created_at must accept backfill, got %v", stored.CreatedAt)
	}
}

func TestUpsertStructureReplacesTreePointersWholesale(t *testing.T) {
	dr := NewDocRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	doc := newDoc("a1", int64p(101))
	doc.ParentUUID = "p1"
	doc.PrevUUID = "x1"
	doc.SiblingUUID = "s1"
	doc.ChildUUID = "c1"
	doc.Depth = 3
	doc.Body = "content survives structure passes"
	if _, err := dr.Upsert(ctx, nil, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	// The node moved to the root: every pointer clears, not just the changed one.
	moved := &types.Doc{
		UUID:         "a1",
		YuqueID:      int64p(101),
		RepoID:       10,
		Slug:         "slug-a1",
		Title:        "Title a1",
		Type:         types.DocTypeDoc,
		Depth:        1,
		LastSyncedAt: time.Now().UTC(),
	}
	if err := dr.UpsertStructure(ctx, nil, moved); err != nil {
		t.Fatalf("structure upsert: %v", err)
	}

	stored, err := dr.GetByUUID(ctx, nil, "a1")
	if err != nil || stored == nil {
		t.Fatalf("get: doc=%v err=%v", stored, err)
	}
	if stored.ParentUUID != "" || stored.PrevUUID != "" || stored.SiblingUUID != "" || stored.ChildUUID != "" {
		t.Fatalf("tree pointers must be replaced wholesale: %+v", stored)
	}
	if stored.Depth != 1 {
		t.Fatalf("want depth 1 got %d", stored.Depth)
	}
	if stored.Body != "content survives structure passes" {
		t.Fatalf("structure pass must not touch content, got %q", stored.Body)
	}
}

func TestUpsertStructureReconcilesProvisionalUUID(t *testing.T) {
	dr := NewDocRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	if _, err := dr.Upsert(ctx, nil, newDoc("webhook-101", int64p(101))); err != nil {
		t.Fatalf("seed: %v", err)
	}

	canonical := newDoc("a1", int64p(101))
	if err := dr.UpsertStructure(ctx, nil, canonical); err != nil {
		t.Fatalf("structure upsert: %v", err)
	}

	stored, err := dr.GetByYuqueID(ctx, nil, 101)
	if err != nil || stored == nil {
		t.Fatalf("get: doc=%v err=%v", stored, err)
	}
	if stored.UUID != "a1" {
		t.Fatalf("want canonical uuid got %q", stored.UUID)
	}
}

func TestListStaleAndDeleteByUUIDs(t *testing.T) {
	dr := NewDocRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	for i, uuid := range []string{"a1", "a2", "a3"} {
		if _, err := dr.Upsert(ctx, nil, newDoc(uuid, int64p(int64(101+i)))); err != nil {
			t.Fatalf("seed %s: %v", uuid, err)
		}
	}

	stale, err := dr.ListStale(ctx, nil, 10, []string{"a1"})
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("want 2 stale got %d", len(stale))
	}

	uuids := []string{stale[0].UUID, stale[1].UUID}
	deleted, err := dr.DeleteByUUIDs(ctx, nil, 10, uuids)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("want 2 deleted got %d", deleted)
	}

	remaining, err := dr.ListByRepo(ctx, nil, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].UUID != "a1" {
		t.Fatalf("want only a1 left, got %v", remaining)
	}
}

func TestListStaleWithNoActiveUUIDsReturnsAll(t *testing.T) {
	dr := NewDocRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	for _, uuid := range []string{"a1", "a2"} {
		if _, err := dr.Upsert(ctx, nil, newDoc(uuid, nil)); err != nil {
			t.Fatalf("seed %s: %v", uuid, err)
		}
	}

	stale, err := dr.ListStale(ctx, nil, 10, nil)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("empty active set must mark everything stale, got %d", len(stale))
	}
}

func TestDeleteByYuqueIDReturnsRemovedDoc(t *testing.T) {
	dr := NewDocRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	if _, err := dr.Upsert(ctx, nil, newDoc("a1", int64p(101))); err != nil {
		t.Fatalf("seed: %v", err)
	}

	removed, err := dr.DeleteByYuqueID(ctx, nil, 101)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed == nil || removed.UUID != "a1" {
		t.Fatalf("want removed doc a1 got %v", removed)
	}

	missing, err := dr.DeleteByYuqueID(ctx, nil, 101)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if missing != nil {
		t.Fatalf("second delete must be a no-op, got %v", missing)
	}
}
