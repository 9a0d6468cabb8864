package services

import (
	"context"
	"fmt"
	"time"

	"github.com/skylerye/yuquesync-backend/internal/clients/yuque"
	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/repos"
	"github.com/skylerye/yuquesync-backend/internal/search"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

// WebhookService applies incremental updates from Yuque webhook events. The
// payload is trusted only for routing (action type, ids, repo); document
// content is always re-fetched from the API before storage, since webhook
// bodies lag the authoritative record.
type WebhookService interface {
	HandleEvent(ctx context.Context, payload *types.WebhookPayload) error
}

type webhookService struct {
	log        *logger.Logger
	client     yuque.Client
	indexer    search.Indexer
	sync       SyncService
	memberRepo repos.MemberRepo
	repoRepo   repos.RepoRepo
	docRepo    repos.DocRepo
	comments   repos.CommentRepo
}

func NewWebhookService(
	log *logger.Logger,
	client yuque.Client,
	indexer search.Indexer,
	syncSvc SyncService,
	memberRepo repos.MemberRepo,
	repoRepo repos.RepoRepo,
	docRepo repos.DocRepo,
	comments repos.CommentRepo,
) WebhookService {
	return &webhookService{
		log:        log.With("service", "WebhookService"),
		client:     client,
		indexer:    indexer,
		sync:       syncSvc,
		memberRepo: memberRepo,
		repoRepo:   repoRepo,
		docRepo:    docRepo,
		comments:   comments,
	}
}

func (ws *webhookService) HandleEvent(ctx context.Context, payload *types.WebhookPayload) error {
	if payload == nil {
		return fmt.Errorf("empty webhook payload")
	}
	data := &payload.Data
	ws.log.Info("Webhook event received", "action", data.ActionType, "doc_id", data.ID, "slug", data.Slug)

	switch data.ActionType {
	case types.ActionPublish, types.ActionUpdate:
		return ws.handleDocUpsert(ctx, data)
	case types.ActionDelete:
		return ws.handleDocDelete(ctx, data)
	case types.ActionCommentCreate, types.ActionCommentUpdate, types.ActionCommentReplyCreate:
		return ws.handleCommentUpsert(ctx, data)
	default:
		ws.log.Warn("Ignoring unhandled webhook action", "action", data.ActionType)
		return nil
	}
}

func (ws *webhookService) handleDocUpsert(ctx context.Context, data *types.WebhookData) error {
	if data.Book == nil || data.Book.ID == 0 {
		return fmt.Errorf("webhook %s event %d carries no book", data.ActionType, data.ID)
	}
	repoID := data.Book.ID

	ws.ensureActor(ctx, data)
	if err := ws.ensureRepo(ctx, repoID, data.Book); err != nil {
		return err
	}

	// The payload body may be stale; fetch the authoritative record.
	detail, err := ws.client.GetDocDetail(ctx, repoID, data.Slug)
	if err != nil {
		return fmt.Errorf("fetch doc %s detail: %w", data.Slug, err)
	}

	doc := docFromDetail(repoID, detail)

	// The webhook carries no TOC uuid. Reuse the stored uuid when the doc is
	// known; otherwise assign a provisional one that the next structural
	// sync replaces with the canonical TOC value.
	existing, err := ws.docRepo.GetByYuqueID(ctx, nil, detail.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		doc.UUID = existing.UUID
		doc.ParentUUID = existing.ParentUUID
		doc.PrevUUID = existing.PrevUUID
		doc.SiblingUUID = existing.SiblingUUID
		doc.ChildUUID = existing.ChildUUID
		doc.Depth = existing.Depth
	} else {
		doc.UUID = fmt.Sprintf("webhook-%d", detail.ID)
	}

	stored, err := ws.docRepo.Upsert(ctx, nil, doc)
	if err != nil {
		return fmt.Errorf("upsert doc %d: %w", detail.ID, err)
	}
	ws.log.Info("Webhook doc upserted", "doc_id", detail.ID, "slug", stored.Slug, "uuid", stored.UUID)

	if ws.indexer != nil {
		if err := ws.indexer.IndexDoc(ctx, stored); err != nil {
			ws.log.Error("Failed to index webhook doc", "doc_id", detail.ID, "error", err)
		}
	}

	// A publish changes the tree shape: repair structure so the new node
	// gets its canonical uuid and tree pointers.
	if data.ActionType == types.ActionPublish && ws.sync != nil {
		if res := ws.sync.SyncRepoStructure(ctx, repoID); res.Err != nil {
			ws.log.Error("Structure repair after publish failed", "repo_id", repoID, "error", res.Err)
		}
	}
	return nil
}

func (ws *webhookService) handleDocDelete(ctx context.Context, data *types.WebhookData) error {
	deleted, err := ws.docRepo.DeleteByYuqueID(ctx, nil, data.ID)
	if err != nil {
		return fmt.Errorf("delete doc %d: %w", data.ID, err)
	}
	if deleted == nil {
		ws.log.Warn("Webhook delete for unknown doc", "doc_id", data.ID)
		return nil
	}
	ws.log.Info("Webhook doc deleted", "doc_id", data.ID, "slug", deleted.Slug)

	if ws.indexer != nil {
		if err := ws.indexer.DeleteDoc(ctx, data.ID); err != nil {
			ws.log.Error("Failed to delete webhook doc from index", "doc_id", data.ID, "error", err)
		}
	}

	// Removing a node re-links its siblings; repair the tree when the repo
	// is known.
	if data.Book != nil && data.Book.ID != 0 && ws.sync != nil {
		if res := ws.sync.SyncRepoStructure(ctx, data.Book.ID); res.Err != nil {
			ws.log.Error("Structure repair after delete failed", "repo_id", data.Book.ID, "error", res.Err)
		}
	}
	return nil
}

func (ws *webhookService) handleCommentUpsert(ctx context.Context, data *types.WebhookData) error {
	if data.Commentable == nil || data.Commentable.ID == 0 {
		ws.log.Warn("Comment event without commentable, skipping", "comment_id", data.ID)
		return nil
	}
	ws.ensureActor(ctx, data)

	var userID int64
	if data.User != nil {
		userID = data.User.ID
	}
	comment := &types.Comment{
		YuqueID:   data.ID,
		BodyHTML:  data.BodyHTML,
		UserID:    userID,
		DocID:     data.Commentable.ID,
		CreatedAt: data.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := ws.comments.Upsert(ctx, nil, comment); err != nil {
		return fmt.Errorf("upsert comment %d: %w", data.ID, err)
	}

	// Keep the doc's comment counter in step when the doc is mirrored.
	doc, err := ws.docRepo.GetByYuqueID(ctx, nil, data.Commentable.ID)
	if err != nil || doc == nil {
		return err
	}
	doc.CommentsCount++
	if _, err := ws.docRepo.Upsert(ctx, nil, doc); err != nil {
		ws.log.Error("Failed to bump comment count", "doc_id", data.Commentable.ID, "error", err)
	}
	return nil
}

// ensureActor records the event's acting user as a member. Failures are
// logged only; actor bookkeeping never blocks the event itself.
func (ws *webhookService) ensureActor(ctx context.Context, data *types.WebhookData) {
	actor := data.Actor
	if actor == nil {
		actor = data.User
	}
	if actor == nil || actor.ID == 0 {
		return
	}

	login := actor.Login
	if login == "" {
		login = fmt.Sprintf("u_%d", actor.ID)
	}
	name := actor.Name
	if name == "" {
		name = "Unknown"
	}
	member := &types.Member{
		YuqueID:   actor.ID,
		Login:     login,
		Name:      name,
		AvatarURL: actor.AvatarURL,
		IsActive:  true,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := ws.memberRepo.Upsert(ctx, nil, member); err != nil {
		ws.log.Error("Failed to upsert webhook actor", "yuque_id", actor.ID, "error", err)
	}
}

// ensureRepo lazily creates the repository record when a webhook references
// a repo discovery has never seen. The API record is preferred; the payload
// book is the fallback when the fetch fails.
func (ws *webhookService) ensureRepo(ctx context.Context, repoID int64, book *types.WebhookBook) error {
	existing, err := ws.repoRepo.GetByYuqueID(ctx, nil, repoID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	ws.log.Info("Webhook references unknown repo, creating", "repo_id", repoID)

	record, err := ws.client.GetRepo(ctx, repoID)
	if err != nil {
		ws.log.Warn("Failed to fetch repo record, using webhook book fields", "repo_id", repoID, "error", err)
		record = &yuque.RepoRecord{
			ID:          repoID,
			Name:        book.Name,
			Slug:        book.Slug,
			Description: book.Description,
		}
	}
	if record.Name == "" {
		record.Name = book.Name
	}
	if record.Slug == "" {
		record.Slug = book.Slug
	}

	_, err = ws.repoRepo.Upsert(ctx, nil, repoFromRecord(record))
	return err
}

// docFromDetail maps the authoritative detail record onto a storable node.
// Structural fields stay zero here; callers fill them from the stored row or
// leave them for the next structure sync.
func docFromDetail(repoID int64, detail *yuque.DocDetail) *types.Doc {
	id := detail.ID
	doc := &types.Doc{
		YuqueID:          &id,
		RepoID:           repoID,
		Slug:             detail.Slug,
		Title:            detail.Title,
		Type:             types.DocTypeDoc,
		Description:      detail.Description,
		Cover:            detail.Cover,
		Body:             detail.Body,
		BodyHTML:         detail.BodyHTML,
		Format:           detail.Format,
		WordCount:        detail.WordCount,
		LikesCount:       detail.LikesCount,
		ReadCount:        detail.ReadCount,
		CommentsCount:    detail.CommentsCount,
		CreatedAt:        detail.CreatedAt,
		ContentUpdatedAt: detail.ContentUpdatedAt,
		PublishedAt:      detail.PublishedAt,
		FirstPublishedAt: detail.FirstPublishedAt,
		LastSyncedAt:     time.Now().UTC(),
		UserID:           detail.UserID,
		LastEditorID:     detail.LastEditorID,
	}
	switch {
	case detail.ContentUpdatedAt != nil:
		doc.UpdatedAt = detail.ContentUpdatedAt
	case detail.UpdatedAt != nil:
		doc.UpdatedAt = detail.UpdatedAt
	}
	return doc
}
